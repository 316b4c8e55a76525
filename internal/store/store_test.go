package store

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualsched/internal/sched"
)

var _ sched.Recorder = (*Store)(nil)

func openTemp(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordsCompletedTasks(t *testing.T) {
	t.Parallel()

	s := openTemp(t, filepath.Join(t.TempDir(), "tasks.db"))
	assert.Len(t, s.RunID(), 36)

	l := logrus.New()
	l.SetOutput(io.Discard)
	e := sched.NewEngine(sched.DefaultConfig(), sched.WithRecorder(s), sched.WithLogger(logrus.NewEntry(l)))

	_, err := e.CreateTask("fg", 150, 0, sched.PolicyTimeSharing, sched.ClassForeground, sched.KindStrictClass)
	require.NoError(t, err)
	_, err = e.CreateTask("bg", 450, 0, sched.PolicyTimeSharing, sched.ClassBackground, sched.KindStrictClass)
	require.NoError(t, err)
	require.NoError(t, e.RunToCompletion(sched.KindStrictClass))

	rows, err := s.List(s.RunID())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	fg, bg := rows[0], rows[1]
	assert.Equal(t, "strict", fg.Strategy)
	assert.Equal(t, "fg", fg.Name)
	assert.Equal(t, "Foreground", fg.Class)
	assert.Equal(t, int64(150), fg.CompletionMS)
	assert.Equal(t, int64(150), fg.TurnaroundMS)
	assert.Equal(t, "bg", bg.Name)
	assert.Equal(t, int64(600), bg.CompletionMS)
	assert.Equal(t, int64(150), bg.WaitMS)
	assert.Equal(t, s.RunID(), bg.RunID)
}

func TestStore_ListSeparatesRuns(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.db")
	first := openTemp(t, path)
	second := openTemp(t, path)
	require.NotEqual(t, first.RunID(), second.RunID())

	require.NoError(t, first.Record(sched.Record{Strategy: sched.KindPriorityQueue, ID: 1, Name: "a"}))
	require.NoError(t, second.Record(sched.Record{Strategy: sched.KindPriorityQueue, ID: 1, Name: "b"}))
	require.NoError(t, second.Record(sched.Record{Strategy: sched.KindStrictClass, ID: 2, Name: "c"}))

	rows, err := second.List(second.RunID())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].Name)
	assert.Equal(t, "strict", rows[1].Strategy)

	all, err := first.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOpen_BadPath(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "tasks.db"))
	require.Error(t, err)
}
