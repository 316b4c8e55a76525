package sched

import (
	"fmt"
)

// Strategy is a single-threaded scheduling state machine driven by an
// external stepping caller. Implementations are not safe for concurrent use;
// Engine serializes access per instance.
type Strategy interface {
	Kind() Kind
	// Add enqueues a fresh task. The caller sets Arrival beforehand.
	Add(t *Task) error
	// Next returns the task that runs now, selecting one if none is active.
	// Repeated calls without a Tick return the same task.
	Next() *Task
	// Tick runs the current task for up to quantum starting at now and
	// returns the virtual time that elapsed.
	Tick(now, quantum int64) int64
	Snapshot() Snapshot
	Task(id TaskID) (*Task, bool)
	Tasks() []*Task
	Completed() []*Task
	Pending() int
}

// Hooks lets the owner observe a strategy.
type Hooks struct {
	Observer   Observer
	OnComplete func(*Task) // called exactly once per task
}

// New creates the strategy selected by kind.
func New(kind Kind, cfg Config, hooks Hooks) (Strategy, error) {
	switch kind {
	case KindPriorityQueue:
		return NewPriorityQueue(cfg, hooks), nil
	case KindStrictClass:
		return NewStrictClass(cfg, hooks), nil
	}
	return nil, fmt.Errorf("%w %d", ErrUnknownStrategy, kind)
}

// readyQueue is the part that differs between strategies.
type readyQueue interface {
	push(t *Task)
	pop() *Task
	size() int
	// outranks reports whether a ready task must displace cur right away.
	outranks(cur *Task) bool
	// sliceExpired reports whether cur used up its slice and must be requeued.
	sliceExpired(cur *Task) bool
	views() []QueueView
}

// runner holds the bookkeeping shared by both strategies: the current task,
// the task table, statistics, and the tick loop.
type runner struct {
	kind    Kind
	slice   int64
	queue   readyQueue
	hooks   Hooks
	now     int64
	current *Task
	tasks   map[TaskID]*Task
	order   []*Task
	done    []*Task
}

func newRunner(kind Kind, cfg Config, hooks Hooks, q readyQueue) runner {
	return runner{
		kind:  kind,
		slice: int64(cfg.SliceMS),
		queue: q,
		hooks: hooks,
		tasks: make(map[TaskID]*Task),
	}
}

func (r *runner) Kind() Kind { return r.kind }

func (r *runner) Add(t *Task) error {
	if !r.kind.Accepts(t.Class) {
		return fmt.Errorf("%w: %s is not a %s class", ErrInvalidClass, t.Class, r.kind)
	}
	if _, dup := r.tasks[t.ID]; dup {
		return fmt.Errorf("%w: task %d already exists", ErrInvalidTask, t.ID)
	}
	if t.started || t.completed {
		return fmt.Errorf("%w: task %d was already scheduled", ErrInvalidTask, t.ID)
	}

	t.TimeSlice = r.slice
	r.tasks[t.ID] = t
	r.order = append(r.order, t)
	if t.Arrival > r.now {
		r.now = t.Arrival
	}
	r.queue.push(t)
	r.emit(StatusEnqueue, t)
	return nil
}

func (r *runner) Next() *Task {
	if r.current != nil && !r.current.completed {
		return r.current
	}
	t := r.queue.pop()
	if t == nil {
		r.current = nil
		return nil
	}
	r.markRunning(t)
	r.emit(StatusDispatch, t)
	return t
}

func (r *runner) markRunning(t *Task) {
	if r.current != nil && r.current.running {
		panic(fmt.Sprintf("sched: %s marks task %d running while task %d runs", r.kind, t.ID, r.current.ID))
	}
	t.running = true
	r.current = t
}

func (r *runner) Tick(now, quantum int64) int64 {
	r.now = now

	cur := r.Next()
	if cur != nil && r.queue.outranks(cur) {
		r.preemptCurrent()
		cur = r.Next()
	}
	if cur == nil {
		r.emit(StatusIdle, nil)
		return quantum
	}

	consumed, done := cur.run(quantum, now)
	for _, t := range r.order {
		if t != cur && !t.completed {
			t.WaitTime += consumed
		}
	}
	r.now = now + consumed

	if done {
		r.current = nil
		r.done = append(r.done, cur)
		r.emit(StatusFinish, cur)
		if r.hooks.OnComplete != nil {
			r.hooks.OnComplete(cur)
		}
		return consumed
	}

	if r.queue.outranks(cur) || r.queue.sliceExpired(cur) {
		r.preemptCurrent()
		r.Next()
	}
	return consumed
}

func (r *runner) preemptCurrent() {
	t := r.current
	t.preempt()
	t.Preemptions++
	r.current = nil
	r.queue.push(t)
	r.emit(StatusPreempt, t)
}

func (r *runner) emit(kind StatusKind, t *Task) {
	if r.hooks.Observer == nil {
		return
	}
	if t == nil {
		r.hooks.Observer(StatusEvent{Time: r.now, Strategy: r.kind, Kind: kind})
		return
	}
	r.hooks.Observer(taskEvent(kind, r.kind, r.now, t))
}

func (r *runner) Task(id TaskID) (*Task, bool) {
	t, ok := r.tasks[id]
	return t, ok
}

func (r *runner) Tasks() []*Task {
	return append([]*Task(nil), r.order...)
}

func (r *runner) Completed() []*Task {
	return append([]*Task(nil), r.done...)
}

func (r *runner) Pending() int {
	return len(r.order) - len(r.done)
}

func (r *runner) Snapshot() Snapshot {
	s := Snapshot{
		Strategy:  r.kind,
		Name:      r.kind.String(),
		Now:       r.now,
		Queues:    r.queue.views(),
		Ready:     r.queue.size(),
		Completed: len(r.done),
	}
	if r.current != nil && !r.current.completed {
		v := viewOf(r.current)
		s.Running = &v
	}
	return s
}
