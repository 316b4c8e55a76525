package sched

import (
	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// StrictClassStrategy runs the front task of the highest ranked non-empty
// class queue. A class never yields to anything of equal or lower rank;
// round-robin happens only inside a class.
type StrictClassStrategy struct {
	runner
}

// NewStrictClass creates the five-class strict priority strategy.
func NewStrictClass(cfg Config, hooks Hooks) *StrictClassStrategy {
	q := &classReady{}
	for i := range q.queues {
		q.queues[i] = linkedlistqueue.New()
	}
	return &StrictClassStrategy{
		runner: newRunner(KindStrictClass, cfg, hooks, q),
	}
}

type classReady struct {
	queues [5]*linkedlistqueue.Queue // indexed by Class.Rank()
}

func (q *classReady) push(t *Task) {
	q.queues[t.Class.Rank()].Enqueue(t)
}

func (q *classReady) pop() *Task {
	for _, cq := range q.queues {
		if v, ok := cq.Dequeue(); ok {
			return v.(*Task)
		}
	}
	return nil
}

func (q *classReady) size() int {
	n := 0
	for _, cq := range q.queues {
		n += cq.Size()
	}
	return n
}

func (q *classReady) outranks(cur *Task) bool {
	for rank := 0; rank < cur.Class.Rank(); rank++ {
		if !q.queues[rank].Empty() {
			return true
		}
	}
	return false
}

func (q *classReady) sliceExpired(cur *Task) bool {
	return cur.SliceUsed >= cur.TimeSlice && !q.queues[cur.Class.Rank()].Empty()
}

func (q *classReady) views() []QueueView {
	out := make([]QueueView, 0, len(q.queues))
	for _, class := range StrictClasses {
		v := QueueView{Name: class.String()}
		for _, val := range q.queues[class.Rank()].Values() {
			v.Tasks = append(v.Tasks, viewOf(val.(*Task)))
		}
		out = append(out, v)
	}
	return out
}
