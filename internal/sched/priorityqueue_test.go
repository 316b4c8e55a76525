package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{TickMS: 10, SliceMS: 100, DefaultStrategy: "pq"}
}

func mustTask(t *testing.T, id TaskID, burst int64, nice int, policy Policy, class Class, arrival int64) *Task {
	t.Helper()
	task, err := NewTask(id, "", burst, nice, policy, class)
	require.NoError(t, err)
	task.Arrival = arrival
	return task
}

// drive ticks s until every added task completes and returns the finish order.
func drive(t *testing.T, s Strategy, clock *SimClock, quantum int64) []TaskID {
	t.Helper()
	var order []TaskID
	seen := make(map[TaskID]bool)
	for i := 0; s.Pending() > 0; i++ {
		require.Less(t, i, 100000, "strategy did not finish")
		clock.Advance(s.Tick(clock.Now(), quantum))
		for _, done := range s.Completed() {
			if !seen[done.ID] {
				seen[done.ID] = true
				order = append(order, done.ID)
			}
		}
	}
	return order
}

func TestPriorityQueue_ScenarioA(t *testing.T) {
	t.Parallel()

	s := NewPriorityQueue(testConfig(), Hooks{})
	var clock SimClock
	for id := TaskID(1); id <= 3; id++ {
		require.NoError(t, s.Add(mustTask(t, id, 100, 0, PolicyTimeSharing, ClassForeground, 0)))
	}

	order := drive(t, s, &clock, 10)
	assert.Equal(t, []TaskID{1, 2, 3}, order)

	for _, task := range s.Completed() {
		assert.Equal(t, task.WaitTime, task.ResponseTime, "task %d", task.ID)
		assert.Equal(t, int64(0), task.Remaining)
		assert.GreaterOrEqual(t, task.Completion, task.StartTime)
		assert.GreaterOrEqual(t, task.StartTime, task.Arrival)
	}
	assert.Equal(t, int64(300), clock.Now())
}

func TestPriorityQueue_LowerNumberFirst(t *testing.T) {
	t.Parallel()

	// FIFO tasks with nice -5, 0, 5, 10 map to 84, 79, 74, 69.
	nices := map[TaskID]int{1: -5, 2: 0, 3: 5, 4: 10}
	orders := [][]TaskID{
		{1, 2, 3, 4},
		{4, 3, 2, 1},
		{2, 4, 1, 3},
		{3, 1, 4, 2},
	}
	for _, insert := range orders {
		s := NewPriorityQueue(testConfig(), Hooks{})
		var clock SimClock
		for _, id := range insert {
			require.NoError(t, s.Add(mustTask(t, id, 30, nices[id], PolicyFIFO, ClassForeground, 0)))
		}
		assert.Equal(t, []TaskID{4, 3, 2, 1}, drive(t, s, &clock, 10), "insert order %v", insert)
	}
}

func TestPriorityQueue_PreemptsForHigherPriority(t *testing.T) {
	t.Parallel()

	s := NewPriorityQueue(testConfig(), Hooks{})
	var clock SimClock
	low := mustTask(t, 1, 100, 0, PolicyTimeSharing, ClassForeground, 0)
	require.NoError(t, s.Add(low))

	for i := 0; i < 3; i++ {
		clock.Advance(s.Tick(clock.Now(), 10))
	}
	high := mustTask(t, 2, 20, 0, PolicyFIFO, ClassForeground, clock.Now())
	require.NoError(t, s.Add(high))

	drive(t, s, &clock, 10)
	assert.Equal(t, 1, low.Preemptions)
	assert.Equal(t, int64(30), high.StartTime)
	assert.Equal(t, int64(50), high.Completion)
	assert.Equal(t, int64(120), low.Completion)
	assert.Equal(t, int64(20), low.WaitTime)
}

func TestPriorityQueue_EqualPriorityRunsInArrivalOrder(t *testing.T) {
	t.Parallel()

	s := NewPriorityQueue(testConfig(), Hooks{})
	var clock SimClock
	a := mustTask(t, 1, 200, 0, PolicyRoundRobin, ClassForeground, 0)
	b := mustTask(t, 2, 200, 0, PolicyRoundRobin, ClassForeground, 0)
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	assert.Equal(t, []TaskID{1, 2}, drive(t, s, &clock, 10))
	assert.Equal(t, int64(200), a.Completion)
	assert.Equal(t, int64(200), b.StartTime)
	assert.Equal(t, int64(400), b.Completion)
	assert.Equal(t, 1, a.Preemptions)
	assert.Equal(t, 1, b.Preemptions)
}

func TestPriorityQueue_RequeueKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	s := NewPriorityQueue(testConfig(), Hooks{})
	var clock SimClock
	a := mustTask(t, 1, 200, 0, PolicyRoundRobin, ClassForeground, 0)
	require.NoError(t, s.Add(a))
	for i := 0; i < 5; i++ {
		clock.Advance(s.Tick(clock.Now(), 10))
	}
	b := mustTask(t, 2, 100, 0, PolicyRoundRobin, ClassForeground, clock.Now())
	require.NoError(t, s.Add(b))

	for clock.Now() < 110 {
		clock.Advance(s.Tick(clock.Now(), 10))
	}
	snap := s.Snapshot()
	require.NotNil(t, snap.Running)
	assert.Equal(t, TaskID(1), snap.Running.ID, "earlier arrival is reselected after its slice")
	assert.Equal(t, 1, a.Preemptions)

	assert.Equal(t, []TaskID{1, 2}, drive(t, s, &clock, 10))
	assert.Equal(t, int64(200), b.StartTime)
	assert.Equal(t, int64(150), b.WaitTime)
}

func TestPriorityQueue_FIFOIsNotSliced(t *testing.T) {
	t.Parallel()

	s := NewPriorityQueue(testConfig(), Hooks{})
	var clock SimClock
	a := mustTask(t, 1, 250, 0, PolicyFIFO, ClassForeground, 0)
	b := mustTask(t, 2, 50, 0, PolicyFIFO, ClassForeground, 0)
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	assert.Equal(t, []TaskID{1, 2}, drive(t, s, &clock, 10))
	assert.Equal(t, 0, a.Preemptions)
}

func TestPriorityQueue_SliceExpiryReselectsLoneTask(t *testing.T) {
	t.Parallel()

	var preempts int
	s := NewPriorityQueue(testConfig(), Hooks{Observer: func(ev StatusEvent) {
		if ev.Kind == StatusPreempt {
			preempts++
		}
	}})
	var clock SimClock
	a := mustTask(t, 1, 350, 0, PolicyTimeSharing, ClassForeground, 0)
	require.NoError(t, s.Add(a))

	drive(t, s, &clock, 10)
	assert.Equal(t, 3, a.Preemptions)
	assert.Equal(t, 3, preempts)
	assert.Equal(t, int64(350), a.Completion)
	assert.Equal(t, int64(0), a.WaitTime)
}

func TestPriorityQueue_NextIsIdempotent(t *testing.T) {
	t.Parallel()

	var events []StatusEvent
	s := NewPriorityQueue(testConfig(), Hooks{Observer: func(ev StatusEvent) { events = append(events, ev) }})
	require.NoError(t, s.Add(mustTask(t, 1, 50, 0, PolicyTimeSharing, ClassForeground, 0)))
	require.NoError(t, s.Add(mustTask(t, 2, 50, 0, PolicyTimeSharing, ClassForeground, 0)))

	first := s.Next()
	require.NotNil(t, first)
	before := s.Snapshot()
	n := len(events)

	for i := 0; i < 3; i++ {
		assert.Same(t, first, s.Next())
	}
	assert.Equal(t, before, s.Snapshot())
	assert.Len(t, events, n, "repeated Next emits nothing")
}

func TestPriorityQueue_RejectsStrictClass(t *testing.T) {
	t.Parallel()

	s := NewPriorityQueue(testConfig(), Hooks{})
	err := s.Add(mustTask(t, 1, 10, 0, PolicyFIFO, ClassVisible, 0))
	require.ErrorIs(t, err, ErrInvalidClass)
	assert.Equal(t, 0, s.Pending())
}

func TestPriorityQueue_CompletionCallbackOnce(t *testing.T) {
	t.Parallel()

	calls := make(map[TaskID]int)
	s := NewPriorityQueue(testConfig(), Hooks{OnComplete: func(task *Task) { calls[task.ID]++ }})
	var clock SimClock
	for id := TaskID(1); id <= 4; id++ {
		require.NoError(t, s.Add(mustTask(t, id, int64(15*id), 0, PolicyRoundRobin, ClassBackground, 0)))
	}
	drive(t, s, &clock, 10)

	// idle ticks after completion must not fire again
	for i := 0; i < 5; i++ {
		clock.Advance(s.Tick(clock.Now(), 10))
	}
	assert.Equal(t, map[TaskID]int{1: 1, 2: 1, 3: 1, 4: 1}, calls)
}

func TestConservationOfElapsedTime(t *testing.T) {
	t.Parallel()

	for _, kind := range Kinds {
		t.Run(kind.String(), func(t *testing.T) {
			s, err := New(kind, testConfig(), Hooks{})
			require.NoError(t, err)
			var clock SimClock

			classes := []Class{ClassForeground, ClassBackground}
			if kind == KindStrictClass {
				classes = []Class{ClassCached, ClassService, ClassForeground}
			}
			policies := []Policy{PolicyTimeSharing, PolicyRoundRobin, PolicyFIFO}

			id := TaskID(0)
			for step := 0; s.Pending() > 0 || step < 40; step++ {
				require.Less(t, step, 10000)
				if step < 40 && step%7 == 0 {
					id++
					task := mustTask(t, id, int64(35+10*int(id)), int(id)%5, policies[int(id)%len(policies)], classes[int(id)%len(classes)], clock.Now())
					require.NoError(t, s.Add(task))
				}
				clock.Advance(s.Tick(clock.Now(), 10))

				for _, task := range s.Tasks() {
					if task.Completed() {
						assert.Equal(t, task.Turnaround, task.WaitTime+task.Ran(), "task %d", task.ID)
						assert.GreaterOrEqual(t, task.Completion, task.StartTime)
						assert.GreaterOrEqual(t, task.StartTime, task.Arrival)
						continue
					}
					assert.Equal(t, clock.Now()-task.Arrival, task.WaitTime+task.Ran(), "task %d at %d", task.ID, clock.Now())
				}
			}
		})
	}
}
