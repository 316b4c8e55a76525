package sched

// Snapshot is an ordered view of a strategy's queues and running task.
type Snapshot struct {
	Strategy  Kind        `json:"-"`
	Name      string      `json:"strategy"`
	Now       int64       `json:"now_ms"`
	Running   *TaskView   `json:"running,omitempty"`
	Queues    []QueueView `json:"queues"`
	Ready     int         `json:"ready"`
	Completed int         `json:"completed"`
}

// QueueView lists the tasks of one queue in dispatch order.
type QueueView struct {
	Name  string     `json:"name"`
	Tasks []TaskView `json:"tasks"`
}

// TaskView is a copy of the externally interesting task state.
type TaskView struct {
	ID          TaskID `json:"id"`
	Name        string `json:"name"`
	State       string `json:"state"`
	Class       string `json:"class"`
	Policy      string `json:"policy"`
	Nice        int    `json:"nice"`
	Priority    int    `json:"priority"`
	Burst       int64  `json:"burst_ms"`
	Remaining   int64  `json:"remaining_ms"`
	Wait        int64  `json:"wait_ms"`
	Preemptions int    `json:"preemptions"`
}

func viewOf(t *Task) TaskView {
	return TaskView{
		ID:          t.ID,
		Name:        t.Name,
		State:       stateOf(t),
		Class:       t.Class.String(),
		Policy:      t.Policy.String(),
		Nice:        t.Nice,
		Priority:    t.Priority,
		Burst:       t.Burst,
		Remaining:   t.Remaining,
		Wait:        t.WaitTime,
		Preemptions: t.Preemptions,
	}
}

func stateOf(t *Task) string {
	switch {
	case t.completed:
		return "completed"
	case t.running:
		return "running"
	case t.started:
		return "waiting"
	default:
		return "new"
	}
}

// Record is the audit row written for each completed task.
type Record struct {
	Strategy    Kind   `json:"-"`
	ID          TaskID `json:"id"`
	Name        string `json:"name"`
	Class       Class  `json:"-"`
	Policy      Policy `json:"-"`
	ClassName   string `json:"class"`
	PolicyName  string `json:"policy"`
	Arrival     int64  `json:"arrival_ms"`
	Start       int64  `json:"start_ms"`
	Completion  int64  `json:"completion_ms"`
	Burst       int64  `json:"burst_ms"`
	Wait        int64  `json:"wait_ms"`
	Response    int64  `json:"response_ms"`
	Turnaround  int64  `json:"turnaround_ms"`
	Nice        int    `json:"nice"`
	Priority    int    `json:"priority"`
	Preemptions int    `json:"preemptions"`
}

// RecordOf flattens a completed task.
func RecordOf(kind Kind, t *Task) Record {
	return Record{
		Strategy:    kind,
		ID:          t.ID,
		Name:        t.Name,
		Class:       t.Class,
		Policy:      t.Policy,
		ClassName:   t.Class.String(),
		PolicyName:  t.Policy.String(),
		Arrival:     t.Arrival,
		Start:       t.StartTime,
		Completion:  t.Completion,
		Burst:       t.Burst,
		Wait:        t.WaitTime,
		Response:    t.ResponseTime,
		Turnaround:  t.Turnaround,
		Nice:        t.Nice,
		Priority:    t.Priority,
		Preemptions: t.Preemptions,
	}
}

// Stats holds the per-task records of one strategy in completion order and
// their averages.
type Stats struct {
	Strategy      string   `json:"strategy"`
	Records       []Record `json:"records"`
	AvgWait       float64  `json:"avg_wait_ms"`
	AvgResponse   float64  `json:"avg_response_ms"`
	AvgTurnaround float64  `json:"avg_turnaround_ms"`
	Preemptions   int      `json:"preemptions"`
}

func statsOf(kind Kind, done []*Task) Stats {
	s := Stats{Strategy: kind.String(), Records: make([]Record, 0, len(done))}
	if len(done) == 0 {
		return s
	}

	var wait, resp, turn int64
	for _, t := range done {
		s.Records = append(s.Records, RecordOf(kind, t))
		wait += t.WaitTime
		resp += t.ResponseTime
		turn += t.Turnaround
		s.Preemptions += t.Preemptions
	}
	n := float64(len(done))
	s.AvgWait = float64(wait) / n
	s.AvgResponse = float64(resp) / n
	s.AvgTurnaround = float64(turn) / n
	return s
}
