package importance

import (
	"time"

	"github.com/docker/go-units"
	"github.com/emirpasic/gods/queues/circularbuffer"

	"dualsched/internal/sched"
)

// TrackedProcess is the live counterpart of a task. It is owned by the
// Monitor and only mutated from its loop.
type TrackedProcess struct {
	PID     int32
	Name    string
	Cmdline string
	Class   sched.Class

	cpu *circularbuffer.Queue // float64 percent samples, oldest first
	mem *circularbuffer.Queue // int64 KB samples, oldest first

	FirstSeen      time.Time
	LastActive     time.Time
	LastForeground time.Time
	LastNetwork    time.Time
	LastGPU        time.Time

	RequestedPriority int
	Importance        float64
	Group             string
	SystemService     bool
	PlayingAudio      bool
	OOMScore          int
	oomApplied        bool
}

func newTrackedProcess(pid int32, class sched.Class, history int, now time.Time) *TrackedProcess {
	return &TrackedProcess{
		PID:       pid,
		Class:     class,
		cpu:       circularbuffer.New(history),
		mem:       circularbuffer.New(history),
		FirstSeen: now,
	}
}

// pushSample records one observation, overwriting the oldest when full.
func (p *TrackedProcess) pushSample(cpuPercent float64, memKB int64) {
	p.cpu.Enqueue(cpuPercent)
	p.mem.Enqueue(memKB)
}

// AvgCPU is the mean of the CPU history.
func (p *TrackedProcess) AvgCPU() float64 {
	values := p.cpu.Values()
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v.(float64)
	}
	return sum / float64(len(values))
}

// AvgMemoryKB is the mean of the memory history.
func (p *TrackedProcess) AvgMemoryKB() int64 {
	values := p.mem.Values()
	if len(values) == 0 {
		return 0
	}
	var sum int64
	for _, v := range values {
		sum += v.(int64)
	}
	return sum / int64(len(values))
}

// Samples returns the number of samples held.
func (p *TrackedProcess) Samples() int { return p.cpu.Size() }

// idleSince is the last moment the process showed any activity.
func (p *TrackedProcess) idleSince() time.Time {
	if p.LastActive.After(p.FirstSeen) {
		return p.LastActive
	}
	return p.FirstSeen
}

// ProcessView is a copy of a tracked process for status output.
type ProcessView struct {
	PID               int32     `json:"pid"`
	Name              string    `json:"name"`
	Cmdline           string    `json:"cmdline"`
	Class             string    `json:"class"`
	Importance        float64   `json:"importance"`
	AvgCPU            float64   `json:"avg_cpu"`
	AvgMemoryKB       int64     `json:"avg_memory_kb"`
	Memory            string    `json:"memory"`
	Group             string    `json:"group"`
	OOMScore          int       `json:"oom_score"`
	RequestedPriority int       `json:"requested_priority"`
	SystemService     bool      `json:"system_service"`
	PlayingAudio      bool      `json:"playing_audio"`
	LastActive        time.Time `json:"last_active"`
}

func (p *TrackedProcess) view() ProcessView {
	avgKB := p.AvgMemoryKB()
	return ProcessView{
		PID:               p.PID,
		Name:              p.Name,
		Cmdline:           p.Cmdline,
		Class:             p.Class.String(),
		Importance:        p.Importance,
		AvgCPU:            p.AvgCPU(),
		AvgMemoryKB:       avgKB,
		Memory:            units.BytesSize(float64(avgKB) * 1024),
		Group:             p.Group,
		OOMScore:          p.OOMScore,
		RequestedPriority: p.RequestedPriority,
		SystemService:     p.SystemService,
		PlayingAudio:      p.PlayingAudio,
		LastActive:        p.idleSince(),
	}
}
