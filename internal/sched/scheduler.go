// internal/sched/scheduler.go

package sched

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Recorder persists completed tasks. Failures are logged, never fatal.
type Recorder interface {
	Record(Record) error
}

// Engine hosts one instance of every strategy kind, each with its own
// virtual clock and lock, and exposes the operations used by the shell and
// the HTTP API.
type Engine struct {
	cfg      Config
	log      *logrus.Entry
	recorder Recorder
	events   *EventLog

	nextID atomic.Uint64

	mu       sync.Mutex // protects selected
	selected Kind

	slots map[Kind]*slot
}

// slot is one strategy instance and the state only it touches.
type slot struct {
	mu       sync.Mutex // serializes ticks of this instance
	clock    SimClock
	strategy Strategy
	arrivals []*Task // future arrivals ordered by Arrival
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; the default discards debug output.
func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) { e.log = log }
}

// WithRecorder persists every completed task.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithEventLog writes every status event to a CSV log.
func WithEventLog(l *EventLog) Option {
	return func(e *Engine) { e.events = l }
}

// NewEngine creates an engine with empty strategies.
func NewEngine(cfg Config, opts ...Option) *Engine {
	cfg.Normalize()
	e := &Engine{
		cfg:   cfg,
		log:   logrus.NewEntry(logrus.StandardLogger()),
		slots: make(map[Kind]*slot, len(Kinds)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.selected, _ = ParseKind(cfg.DefaultStrategy)

	for _, kind := range Kinds {
		kind := kind
		hooks := Hooks{
			Observer:   e.handleEvent,
			OnComplete: func(t *Task) { e.taskCompleted(kind, t) },
		}
		s, err := New(kind, cfg, hooks)
		if err != nil {
			panic(err)
		}
		e.slots[kind] = &slot{strategy: s}
	}
	return e
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config { return e.cfg }

// Select makes kind the default strategy for commands that omit one.
func (e *Engine) Select(kind Kind) error {
	if _, err := e.slot(kind); err != nil {
		return err
	}
	e.mu.Lock()
	e.selected = kind
	e.mu.Unlock()
	return nil
}

// Selected returns the default strategy kind.
func (e *Engine) Selected() Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

func (e *Engine) slot(kind Kind) (*slot, error) {
	s, ok := e.slots[kind]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownStrategy, kind)
	}
	return s, nil
}

// CreateTask creates a task that arrives now on the clock of kind.
func (e *Engine) CreateTask(name string, burst int64, nice int, policy Policy, class Class, kind Kind) (TaskID, error) {
	return e.CreateTaskAt(name, burst, nice, policy, class, kind, -1)
}

// CreateTaskAt creates a task arriving at virtual time at; a negative or
// past time means now.
func (e *Engine) CreateTaskAt(name string, burst int64, nice int, policy Policy, class Class, kind Kind, at int64) (TaskID, error) {
	s, err := e.slot(kind)
	if err != nil {
		return 0, err
	}
	if !kind.Accepts(class) {
		return 0, fmt.Errorf("%w: %s is not a %s class", ErrInvalidClass, class, kind)
	}

	// validate before consuming an id
	t, err := NewTask(0, name, burst, nice, policy, class)
	if err != nil {
		return 0, err
	}
	id := TaskID(e.nextID.Add(1))
	t.ID = id
	if t.Name == "" {
		t.Name = fmt.Sprintf("task-%d", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if at <= now {
		t.Arrival = now
		if err := s.strategy.Add(t); err != nil {
			return 0, err
		}
		return id, nil
	}

	t.Arrival = at
	s.arrivals = append(s.arrivals, t)
	sort.SliceStable(s.arrivals, func(i, j int) bool { return s.arrivals[i].Arrival < s.arrivals[j].Arrival })
	return id, nil
}

// Advance moves the strategy forward by ms of virtual time in ticks of the
// configured quantum.
func (e *Engine) Advance(kind Kind, ms int64) error {
	if ms <= 0 {
		return fmt.Errorf("%w: advance must be positive, got %d", ErrInvalidTask, ms)
	}
	s, err := e.slot(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for elapsed := int64(0); elapsed < ms; {
		elapsed += e.step(s, min(int64(e.cfg.TickMS), ms-elapsed))
	}
	return nil
}

// RunToCompletion ticks until every created task, including future
// arrivals, has completed.
func (e *Engine) RunToCompletion(kind Kind) error {
	s, err := e.slot(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.strategy.Pending() > 0 || len(s.arrivals) > 0 {
		e.step(s, int64(e.cfg.TickMS))
	}
	return nil
}

// Run drives the strategy one tick per pace interval of wall time until all
// tasks complete or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, kind Kind, pace time.Duration) error {
	s, err := e.slot(kind)
	if err != nil {
		return err
	}

	clock := NewTickClock(1)
	clock.Start(pace)
	defer func() {
		clock.Stop()
		e.log.WithFields(logrus.Fields{"strategy": kind.String(), "ticks": clock.Count()}).Debug("paced run stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-clock.Ch:
			if !ok {
				return nil
			}
		}

		s.mu.Lock()
		if s.strategy.Pending() == 0 && len(s.arrivals) == 0 {
			s.mu.Unlock()
			return nil
		}
		e.step(s, int64(e.cfg.TickMS))
		s.mu.Unlock()
	}
}

// step admits due arrivals, runs one tick and advances the clock. The caller
// holds s.mu.
func (e *Engine) step(s *slot, quantum int64) int64 {
	now := s.clock.Now()
	for len(s.arrivals) > 0 && s.arrivals[0].Arrival <= now {
		t := s.arrivals[0]
		s.arrivals = s.arrivals[1:]
		if err := s.strategy.Add(t); err != nil {
			e.log.WithError(err).WithField("task", t.ID).Warn("dropping arrival")
		}
	}

	// never tick past the next arrival, so its wait starts on time
	if len(s.arrivals) > 0 {
		quantum = min(quantum, s.arrivals[0].Arrival-now)
	}

	elapsed := s.strategy.Tick(now, quantum)
	s.clock.Advance(elapsed)
	return elapsed
}

// Next returns the task the strategy runs now, selecting one if needed.
func (e *Engine) Next(kind Kind) (TaskView, bool, error) {
	s, err := e.slot(kind)
	if err != nil {
		return TaskView{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.strategy.Next()
	if t == nil {
		return TaskView{}, false, nil
	}
	return viewOf(t), true, nil
}

// Now returns the virtual time of kind.
func (e *Engine) Now(kind Kind) (int64, error) {
	s, err := e.slot(kind)
	if err != nil {
		return 0, err
	}
	return s.clock.Now(), nil
}

// Snapshot returns the queues and running task of kind.
func (e *Engine) Snapshot(kind Kind) (Snapshot, error) {
	s, err := e.slot(kind)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.strategy.Snapshot()
	snap.Now = s.clock.Now()
	if len(s.arrivals) > 0 {
		v := QueueView{Name: "arriving"}
		for _, t := range s.arrivals {
			v.Tasks = append(v.Tasks, viewOf(t))
		}
		snap.Queues = append(snap.Queues, v)
	}
	return snap, nil
}

// Stats returns the records of every completed task of kind.
func (e *Engine) Stats(kind Kind) (Stats, error) {
	s, err := e.slot(kind)
	if err != nil {
		return Stats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsOf(kind, s.strategy.Completed()), nil
}

// Tasks lists every task of kind in creation order.
func (e *Engine) Tasks(kind Kind) ([]TaskView, error) {
	s, err := e.slot(kind)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := s.strategy.Tasks()
	out := make([]TaskView, 0, len(tasks)+len(s.arrivals))
	for _, t := range tasks {
		out = append(out, viewOf(t))
	}
	for _, t := range s.arrivals {
		out = append(out, viewOf(t))
	}
	return out, nil
}

// Task looks a task up by id.
func (e *Engine) Task(kind Kind, id TaskID) (TaskView, error) {
	s, err := e.slot(kind)
	if err != nil {
		return TaskView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.strategy.Task(id); ok {
		return viewOf(t), nil
	}
	for _, t := range s.arrivals {
		if t.ID == id {
			return viewOf(t), nil
		}
	}
	return TaskView{}, fmt.Errorf("%w %d in %s", ErrUnknownTask, id, kind)
}

func (e *Engine) taskCompleted(kind Kind, t *Task) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(RecordOf(kind, t)); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"strategy": kind.String(),
			"task":     t.ID,
		}).Warn("failed to persist completed task")
	}
}

func (e *Engine) handleEvent(ev StatusEvent) {
	if ev.Kind != StatusIdle {
		e.log.WithFields(logrus.Fields{
			"strategy":  ev.Strategy.String(),
			"tick_ms":   ev.Time,
			"task":      ev.TaskID,
			"priority":  ev.Priority,
			"remaining": ev.Remaining,
		}).Debug(ev.Kind.String())
	}

	if e.events != nil {
		if err := e.events.Write(ev); err != nil {
			e.log.WithError(err).Warn("failed to write event log")
		}
	}
}
