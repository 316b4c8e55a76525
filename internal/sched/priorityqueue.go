// internal/sched/priorityqueue.go

package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// PriorityQueueStrategy keeps every ready task in one list ordered by
// priority number, then by arrival time, then by task id. A preempted task
// keeps its place, so among equal priorities the earliest arrival runs.
type PriorityQueueStrategy struct {
	runner
}

// NewPriorityQueue creates the global dynamic-priority strategy.
func NewPriorityQueue(cfg Config, hooks Hooks) *PriorityQueueStrategy {
	return &PriorityQueueStrategy{
		runner: newRunner(KindPriorityQueue, cfg, hooks, &priorityReady{
			rbt: redblacktree.NewWith(cmp),
		}),
	}
}

// priorityReady is the red-black tree backed ready list.
type priorityReady struct {
	rbt *redblacktree.Tree // ordered by priority, arrival and task id
}

func (q *priorityReady) push(t *Task) {
	q.rbt.Put(nodeKey{priority: t.Priority, arrival: t.Arrival, id: t.ID}, t)
}

func (q *priorityReady) pop() *Task {
	node := q.rbt.Left()
	if node == nil {
		return nil
	}
	q.rbt.Remove(node.Key)
	return node.Value.(*Task)
}

func (q *priorityReady) head() (nodeKey, bool) {
	node := q.rbt.Left()
	if node == nil {
		return nodeKey{}, false
	}
	return node.Key.(nodeKey), true
}

func (q *priorityReady) size() int { return q.rbt.Size() }

func (q *priorityReady) outranks(cur *Task) bool {
	head, ok := q.head()
	return ok && head.priority < cur.Priority
}

// sliceExpired only applies to time-sliced policies. The preempted task is
// requeued and may be selected again at once.
func (q *priorityReady) sliceExpired(cur *Task) bool {
	if cur.Policy != PolicyRoundRobin && cur.Policy != PolicyTimeSharing {
		return false
	}
	return cur.SliceUsed >= cur.TimeSlice
}

func (q *priorityReady) views() []QueueView {
	v := QueueView{Name: "ready"}
	it := q.rbt.Iterator()
	for it.Next() {
		v.Tasks = append(v.Tasks, viewOf(it.Value().(*Task)))
	}
	return []QueueView{v}
}

// nodeKey is used as a key in the red-black tree.
type nodeKey struct {
	priority int
	arrival  int64
	id       TaskID
}

// cmp implements the Comparator for red-black tree ordering.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.priority != kb.priority:
		return compareInt64(int64(ka.priority), int64(kb.priority))
	case ka.arrival != kb.arrival:
		return compareInt64(ka.arrival, kb.arrival)
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	if a < b {
		return -1
	}
	return 1
}
