package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualsched/internal/sched"
)

const scenarioB = `
tasks:
  - name: sync
    strategy: strict
    burst_ms: 500
    class: bg
  - name: ui
    strategy: strict
    burst_ms: 100
    class: fg
    at_ms: 50
  - name: batch
    burst_ms: 40
    policy: fifo
    nice: -5
`

func TestWorkload_SubmitAndReplay(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "workload.yml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioB), 0o644))

	w, err := Load(path)
	require.NoError(t, err)
	require.Len(t, w.Tasks, 3)

	e := sched.NewEngine(sched.DefaultConfig())
	ids, err := w.Submit(e)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	// strategy omitted: the engine's selected strategy
	batch, err := e.Task(sched.KindPriorityQueue, ids[2])
	require.NoError(t, err)
	assert.Equal(t, "FIFO", batch.Policy)
	assert.Equal(t, 84, batch.Priority)

	require.NoError(t, e.RunToCompletion(sched.KindStrictClass))
	stats, err := e.Stats(sched.KindStrictClass)
	require.NoError(t, err)
	require.Len(t, stats.Records, 2)
	assert.Equal(t, "ui", stats.Records[0].Name)
	assert.Equal(t, "sync", stats.Records[1].Name)
	assert.Equal(t, 1, stats.Records[1].Preemptions)
}

func TestWorkload_RejectsWholeBatch(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"bad class":    "tasks:\n  - {name: a, burst_ms: 10}\n  - {name: b, burst_ms: 10, strategy: pq, class: vis}\n",
		"bad policy":   "tasks:\n  - {name: a, burst_ms: 10}\n  - {name: b, burst_ms: 10, policy: lottery}\n",
		"bad strategy": "tasks:\n  - {name: a, burst_ms: 10}\n  - {name: b, burst_ms: 10, strategy: bsd}\n",
		"zero burst":   "tasks:\n  - {name: a, burst_ms: 10}\n  - {name: b}\n",
		"nice range":   "tasks:\n  - {name: a, burst_ms: 10}\n  - {name: b, burst_ms: 10, nice: 40}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			w, err := Parse([]byte(doc))
			require.NoError(t, err)

			e := sched.NewEngine(sched.DefaultConfig())
			_, err = w.Submit(e)
			require.Error(t, err)

			tasks, err := e.Tasks(sched.KindPriorityQueue)
			require.NoError(t, err)
			assert.Empty(t, tasks)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("tasks: [\n"))
	require.Error(t, err)
}
