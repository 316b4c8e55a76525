// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusEnqueue
	StatusDispatch
	StatusPreempt
	StatusFinish
)

// StatusEvent is emitted on key strategy actions. Time is virtual.
type StatusEvent struct {
	Time      int64
	Strategy  Kind
	Kind      StatusKind
	TaskID    TaskID
	Class     Class
	Priority  int
	Remaining int64
}

// Observer receives status events synchronously from inside a tick.
type Observer func(StatusEvent)

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusEnqueue:
		return "Enqueued"
	case StatusDispatch:
		return "Dispatch"
	case StatusPreempt:
		return "Preempt"
	case StatusFinish:
		return "Finish"
	default:
		return "Unknown"
	}
}

func taskEvent(kind StatusKind, strategy Kind, now int64, t *Task) StatusEvent {
	return StatusEvent{
		Time:      now,
		Strategy:  strategy,
		Kind:      kind,
		TaskID:    t.ID,
		Class:     t.Class,
		Priority:  t.Priority,
		Remaining: t.Remaining,
	}
}
