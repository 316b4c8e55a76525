// Package importance classifies live processes by a continuous importance
// score and drives enforcement (resource groups, kill priority and eviction)
// on class transitions.
package importance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/sirupsen/logrus"

	"dualsched/internal/sched"
)

var (
	ErrUnknownProcess = errors.New("unknown process")
	ErrOverrideRange  = errors.New("priority override out of range")
	ErrTableFull      = errors.New("process table full")
)

const (
	MinOverride = -20
	MaxOverride = 20
)

// Monitor periodically rescores its tracked processes. The table is only
// touched by Track, Launch, Attach, Cycle and Run, which must not run
// concurrently with each other; Views and RequestPriority are safe from any
// goroutine.
type Monitor struct {
	cfg      Config
	scorer   Scorer
	probe    Probe
	enforcer Enforcer
	log      *logrus.Entry
	evict    map[sched.Class]bool
	now      func() time.Time

	table *treemap.Map // int32 pid -> *TrackedProcess

	reqMu    sync.Mutex
	requests map[int32]int

	viewMu sync.RWMutex
	views  []ProcessView
}

// NewMonitor creates a monitor with an empty table.
func NewMonitor(cfg Config, probe Probe, enforcer Enforcer, log *logrus.Entry) (*Monitor, error) {
	cfg.Normalize()
	evict, err := cfg.evictable()
	if err != nil {
		return nil, fmt.Errorf("evict_classes: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Monitor{
		cfg:      cfg,
		scorer:   NewScorer(cfg),
		probe:    probe,
		enforcer: enforcer,
		log:      log,
		evict:    evict,
		now:      time.Now,
		table:    treemap.NewWith(utils.Int32Comparator),
		requests: make(map[int32]int),
	}, nil
}

// Setup creates the class resource groups. Failure is logged only.
func (m *Monitor) Setup() {
	if err := m.enforcer.Setup(m.cfg.Groups()); err != nil {
		m.log.WithError(err).Warn("failed to set up resource groups")
	}
}

// Track starts tracking pid in the given initial class.
func (m *Monitor) Track(pid int32, class sched.Class) error {
	if !sched.KindStrictClass.Accepts(class) {
		return fmt.Errorf("%w: %s", sched.ErrInvalidClass, class)
	}
	if _, ok := m.table.Get(pid); ok {
		return nil
	}
	if m.table.Size() >= m.cfg.MaxProcesses {
		return fmt.Errorf("%w: %d processes", ErrTableFull, m.cfg.MaxProcesses)
	}
	if !m.probe.Exists(pid) {
		return fmt.Errorf("%w %d", ErrUnknownProcess, pid)
	}

	p := newTrackedProcess(pid, class, m.cfg.HistorySize, m.now())
	if name, cmdline, err := m.probe.Describe(pid); err == nil {
		p.Name, p.Cmdline = name, cmdline
	}
	p.SystemService = m.probe.SystemService(pid)
	m.table.Put(pid, p)

	m.apply(p, class)
	m.log.WithFields(logrus.Fields{"pid": pid, "name": p.Name, "class": class.String()}).Info("tracking process")
	m.publish()
	return nil
}

// Launch starts argv and tracks it.
func (m *Monitor) Launch(argv []string, class sched.Class) (int32, error) {
	if len(argv) == 0 {
		return 0, errors.New("launch: empty command")
	}
	pid, err := m.enforcer.Launch(argv)
	if err != nil {
		return 0, fmt.Errorf("launch %s: %w", argv[0], err)
	}
	m.log.WithFields(logrus.Fields{"pid": pid, "cmd": argv[0]}).Info("process started")
	return pid, m.Track(pid, class)
}

// Attach tracks every existing process except this one, up to capacity.
func (m *Monitor) Attach() error {
	pids, err := m.probe.Processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	self := int32(os.Getpid())
	for _, pid := range pids {
		if pid == self || pid <= 1 {
			continue
		}
		if err := m.Track(pid, sched.ClassBackground); err != nil {
			if errors.Is(err, ErrTableFull) {
				m.log.WithError(err).Warn("not attaching remaining processes")
				break
			}
			m.log.WithError(err).WithField("pid", pid).Debug("skipping process")
		}
	}
	return nil
}

// RequestPriority queues a user override for pid; it takes effect on the
// next cycle. Zero clears the override.
func (m *Monitor) RequestPriority(pid int32, override int) error {
	if override < MinOverride || override > MaxOverride {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOverrideRange, override, MinOverride, MaxOverride)
	}
	if !m.known(pid) {
		return fmt.Errorf("%w %d", ErrUnknownProcess, pid)
	}
	m.reqMu.Lock()
	m.requests[pid] = override
	m.reqMu.Unlock()
	return nil
}

func (m *Monitor) known(pid int32) bool {
	m.viewMu.RLock()
	defer m.viewMu.RUnlock()
	for _, v := range m.views {
		if v.PID == pid {
			return true
		}
	}
	return false
}

// Run cycles every interval until ctx is cancelled, then resets every
// tracked process to the neutral group and kill priority.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval())
	defer ticker.Stop()

	m.log.WithField("interval", m.cfg.Interval()).Info("monitor running")
	m.Cycle()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("shutting down, resetting tracked processes")
			m.Cleanup()
			return nil
		case <-ticker.C:
			m.Cycle()
		}
	}
}

// Cycle runs one scoring pass over the whole table.
func (m *Monitor) Cycle() {
	now := m.now()
	focused, hasFocus := m.probe.FocusedProcess()
	var focusParent int32
	var hasParent bool
	if hasFocus {
		focusParent, hasParent = m.probe.Parent(focused)
	}
	pressure := m.probe.MemoryPressure()
	m.applyRequests()

	for _, key := range m.table.Keys() {
		pid := key.(int32)
		v, _ := m.table.Get(pid)
		p := v.(*TrackedProcess)

		if !m.probe.Exists(pid) {
			m.forget(p, "exited")
			continue
		}
		cpu, cpuErr := m.probe.CPUPercent(pid)
		mem, memErr := m.probe.MemoryKB(pid)
		if cpuErr != nil || memErr != nil {
			if !m.probe.Exists(pid) {
				m.forget(p, "exited")
				continue
			}
			m.log.WithError(errors.Join(cpuErr, memErr)).WithFields(logrus.Fields{
				"pid": pid, "name": p.Name, "class": p.Class.String(),
			}).Warn("failed to sample process")
			continue
		}
		p.pushSample(cpu, mem)

		isFocused := hasFocus && pid == focused
		p.PlayingAudio = m.probe.ProducingAudio(pid)
		if m.probe.UsingGPU(pid) {
			p.LastGPU = now
		}
		if m.probe.UsingNetwork(pid) {
			p.LastNetwork = now
		}
		if isFocused {
			p.LastForeground = now
		}
		if isFocused || p.PlayingAudio || cpu >= m.cfg.ActiveCPUPercent {
			p.LastActive = now
		}

		imp, class := m.scorer.Evaluate(Signals{
			Now:             now,
			Focused:         isFocused,
			ParentOfFocused: hasParent && pid == focusParent,
			SystemService:   p.SystemService,
			PlayingAudio:    p.PlayingAudio,
			LastGPU:         p.LastGPU,
			LastNetwork:     p.LastNetwork,
			LastActive:      p.LastActive,
			LastForeground:  p.LastForeground,
			AvgCPU:          p.AvgCPU(),
			AvgMemoryKB:     p.AvgMemoryKB(),
			MemoryPressure:  pressure,
			Override:        p.RequestedPriority,
		})
		p.Importance = imp
		m.apply(p, class)
	}

	if pressure {
		m.evictIdle(now)
	}
	m.publish()
}

// apply moves p into class. A failed group assignment keeps the previous
// class so the transition is retried next cycle; a failed kill priority
// write is retried on its own.
func (m *Monitor) apply(p *TrackedProcess, class sched.Class) {
	group := m.cfg.GroupFor(class)
	fields := logrus.Fields{"pid": p.PID, "name": p.Name, "class": class.String()}

	if class != p.Class || p.Group != group {
		if err := m.enforcer.AssignGroup(group, p.PID); err != nil {
			m.log.WithError(err).WithFields(fields).WithField("group", group).Warn("failed to assign resource group")
			return
		}
		if class != p.Class {
			m.log.WithFields(fields).WithFields(logrus.Fields{
				"from":       p.Class.String(),
				"importance": p.Importance,
			}).Info("class transition")
		}
		p.Class = class
		p.Group = group
	}

	oom := OOMScoreFor(class)
	if p.oomApplied && p.OOMScore == oom {
		return
	}
	if err := m.enforcer.SetKillPriority(p.PID, oom); err != nil {
		m.log.WithError(err).WithFields(fields).WithField("oom_score", oom).Warn("failed to set kill priority")
		return
	}
	p.OOMScore = oom
	p.oomApplied = true
}

func (m *Monitor) evictIdle(now time.Time) {
	idle := seconds(m.cfg.IdleEvictS)
	for _, v := range m.table.Values() {
		p := v.(*TrackedProcess)
		if !m.evict[p.Class] || now.Sub(p.idleSince()) <= idle {
			continue
		}
		fields := logrus.Fields{"pid": p.PID, "name": p.Name, "class": p.Class.String(), "idle": now.Sub(p.idleSince()).Round(time.Second)}
		if err := m.enforcer.Terminate(p.PID); err != nil {
			m.log.WithError(err).WithFields(fields).Warn("failed to evict process")
			continue
		}
		m.log.WithFields(fields).Info("evicted idle process under memory pressure")
		m.table.Remove(p.PID)
	}
}

func (m *Monitor) applyRequests() {
	m.reqMu.Lock()
	pending := m.requests
	m.requests = make(map[int32]int)
	m.reqMu.Unlock()

	for pid, override := range pending {
		v, ok := m.table.Get(pid)
		if !ok {
			continue
		}
		p := v.(*TrackedProcess)
		p.RequestedPriority = override
		m.log.WithFields(logrus.Fields{"pid": pid, "name": p.Name, "override": override}).Info("priority requested")
	}
}

func (m *Monitor) forget(p *TrackedProcess, reason string) {
	m.table.Remove(p.PID)
	m.log.WithFields(logrus.Fields{"pid": p.PID, "name": p.Name}).Debug(reason)
}

// Cleanup returns every tracked process to the neutral group and kill
// priority. Individual failures are logged and ignored.
func (m *Monitor) Cleanup() {
	neutral := m.cfg.NeutralGroup()
	for _, v := range m.table.Values() {
		p := v.(*TrackedProcess)
		fields := logrus.Fields{"pid": p.PID, "name": p.Name, "class": p.Class.String()}
		if err := m.enforcer.AssignGroup(neutral, p.PID); err != nil {
			m.log.WithError(err).WithFields(fields).Warn("failed to reset resource group")
		}
		if err := m.enforcer.SetKillPriority(p.PID, NeutralOOMScore); err != nil {
			m.log.WithError(err).WithFields(fields).Warn("failed to reset kill priority")
		}
	}
}

func (m *Monitor) publish() {
	views := make([]ProcessView, 0, m.table.Size())
	m.table.Each(func(_, v interface{}) {
		views = append(views, v.(*TrackedProcess).view())
	})
	m.viewMu.Lock()
	m.views = views
	m.viewMu.Unlock()
}

// Views returns the table as of the end of the last cycle, ordered by pid.
func (m *Monitor) Views() []ProcessView {
	m.viewMu.RLock()
	defer m.viewMu.RUnlock()
	return append([]ProcessView(nil), m.views...)
}

// Dump writes the table in a human readable form.
func (m *Monitor) Dump(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tNAME\tCLASS\tIMPORTANCE\tCPU%\tMEM\tOOM\tOVERRIDE")
	for _, v := range m.Views() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.1f\t%s\t%d\t%d\n",
			v.PID, v.Name, v.Class, v.Importance, v.AvgCPU, v.Memory, v.OOMScore, v.RequestedPriority)
	}
	return tw.Flush()
}
