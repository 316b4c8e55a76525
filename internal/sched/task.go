package sched

import "fmt"

// TaskID uniquely identifies a task in the scheduler.
type TaskID uint64

const (
	MinPriority = 0
	MaxPriority = 139

	MinNice = -20
	MaxNice = 19
)

// Task represents one schedulable task unit. All times are virtual
// milliseconds on the clock of the owning strategy.
type Task struct {
	ID   TaskID
	Name string

	Burst      int64
	Remaining  int64
	Arrival    int64
	StartTime  int64 // valid once Started
	Completion int64 // valid once Completed

	Nice      int
	Policy    Policy
	Class     Class
	Priority  int   // 0 - 139, where 0 is the highest priority
	TimeSlice int64 // slice length, set by the strategy on Add
	SliceUsed int64 // time spent in the current slice

	WaitTime     int64
	ResponseTime int64
	Turnaround   int64
	Preemptions  int

	ran       int64
	started   bool
	running   bool
	completed bool
}

// NewTask creates a task with its priority derived from policy, nice and class.
func NewTask(id TaskID, name string, burst int64, nice int, policy Policy, class Class) (*Task, error) {
	if burst <= 0 {
		return nil, fmt.Errorf("%w: burst must be positive, got %d", ErrInvalidTask, burst)
	}
	if nice < MinNice || nice > MaxNice {
		return nil, fmt.Errorf("%w: nice must be in [%d, %d], got %d", ErrInvalidTask, MinNice, MaxNice, nice)
	}
	if policy < PolicyFIFO || policy > PolicyDeadline {
		return nil, fmt.Errorf("%w %d", ErrInvalidPolicy, policy)
	}

	t := &Task{
		ID:        id,
		Name:      name,
		Burst:     burst,
		Remaining: burst,
		Nice:      nice,
		Policy:    policy,
		Class:     class,
	}
	t.UpdatePriority()
	return t, nil
}

// DerivePriority maps policy, nice value and class onto the 0..139 range.
func DerivePriority(policy Policy, nice int, class Class) int {
	var p int
	switch policy {
	case PolicyFIFO, PolicyRoundRobin:
		p = 99 - (nice + 20)
	case PolicyTimeSharing:
		p = 120 + nice
	case PolicyIdle:
		p = MaxPriority
	case PolicyDeadline:
		p = MinPriority
	}

	switch class {
	case ClassBackground:
		p += 5
	case ClassDaemon:
		p -= 3
	case ClassEmpty:
		p = MaxPriority
	}

	return min(max(p, MinPriority), MaxPriority)
}

// UpdatePriority recomputes Priority. Call it after changing Policy, Nice or Class.
func (t *Task) UpdatePriority() {
	t.Priority = DerivePriority(t.Policy, t.Nice, t.Class)
}

func (t *Task) Started() bool   { return t.started }
func (t *Task) Running() bool   { return t.running }
func (t *Task) Completed() bool { return t.completed }

// Ran returns the total time the task has spent executing.
func (t *Task) Ran() int64 { return t.ran }

// run executes the task for up to quantum starting at now. It reports the
// time consumed and whether this call completed the task; done is true at
// most once over the task's lifetime.
func (t *Task) run(quantum, now int64) (consumed int64, done bool) {
	if t.completed {
		panic(fmt.Sprintf("sched: run on completed task %d", t.ID))
	}
	if !t.started {
		t.started = true
		t.StartTime = now
		t.ResponseTime = now - t.Arrival
	}

	consumed = min(quantum, t.Remaining)
	t.Remaining -= consumed
	t.SliceUsed += consumed
	t.ran += consumed

	if t.Remaining == 0 {
		t.Completion = now + consumed
		t.Turnaround = t.Completion - t.Arrival
		t.completed = true
		t.running = false
		return consumed, true
	}
	return consumed, false
}

// preempt stops the task without touching its remaining time.
func (t *Task) preempt() {
	t.running = false
	t.SliceUsed = 0
}
