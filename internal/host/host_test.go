package host

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualsched/internal/importance"
)

var (
	_ importance.Probe    = (*Probe)(nil)
	_ importance.Enforcer = (*CgroupEnforcer)(nil)
	_ importance.Enforcer = (*DryRunEnforcer)(nil)
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestCgroupEnforcer_SetupAndAssign(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg := importance.DefaultConfig()
	cfg.CgroupRoot = root
	e := NewCgroupEnforcer(quietLogger())

	require.NoError(t, e.Setup(cfg.Groups()))
	for _, g := range cfg.Groups() {
		info, err := os.Stat(g)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	group := filepath.Join(root, "foreground")
	require.ErrorIs(t, e.AssignGroup(group, 42), os.ErrNotExist, "the kernel provides cgroup.procs")

	procs := filepath.Join(group, "cgroup.procs")
	require.NoError(t, os.WriteFile(procs, nil, 0o644))
	require.NoError(t, e.AssignGroup(group, 42))
	data, err := os.ReadFile(procs)
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))
}

func TestCgroupEnforcer_SetKillPriority(t *testing.T) {
	t.Parallel()

	e := NewCgroupEnforcer(quietLogger())
	e.procRoot = t.TempDir()
	dir := filepath.Join(e.procRoot, "42")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oom_score_adj"), []byte("0"), 0o644))

	require.NoError(t, e.SetKillPriority(42, 900))
	data, err := os.ReadFile(filepath.Join(dir, "oom_score_adj"))
	require.NoError(t, err)
	assert.Equal(t, "900", string(data))

	require.Error(t, e.SetKillPriority(43, 900))
}

func TestLaunchAndTerminate(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	_, err := launch(nil)
	require.Error(t, err)
	_, err = launch([]string{"/definitely/not/a/binary"})
	require.Error(t, err)

	pid, err := launch([]string{"sleep", "30"})
	require.NoError(t, err)
	require.NoError(t, terminate(pid))

	require.Eventually(t, func() bool {
		ok, _ := process.PidExists(pid)
		return !ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDryRunEnforcer_AppliesNothing(t *testing.T) {
	t.Parallel()

	e := NewDryRunEnforcer(quietLogger())
	missing := filepath.Join(t.TempDir(), "nope")
	require.NoError(t, e.Setup([]string{missing}))
	require.NoError(t, e.AssignGroup(missing, 1))
	require.NoError(t, e.SetKillPriority(1, 900))
	require.NoError(t, e.Terminate(1))

	_, err := os.Stat(missing)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProbe_Self(t *testing.T) {
	t.Parallel()

	p := NewProbe(15)
	p.focus = func() (int32, bool) { return 0, false }
	self := int32(os.Getpid())

	assert.True(t, p.Exists(self))
	assert.False(t, p.Exists(1<<30))

	name, _, err := p.Describe(self)
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	kb, err := p.MemoryKB(self)
	require.NoError(t, err)
	assert.Positive(t, kb)

	cpu, err := p.CPUPercent(self)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cpu, 0.0)

	ppid, ok := p.Parent(self)
	assert.True(t, ok)
	assert.Equal(t, int32(os.Getppid()), ppid)

	_, focused := p.FocusedProcess()
	assert.False(t, focused)

	pids, err := p.Processes()
	require.NoError(t, err)
	assert.Contains(t, pids, self)
}

func TestParsePID(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want int32
		ok   bool
	}{
		"plain":        {"1234", 1234, true},
		"newline":      {"1234\n", 1234, true},
		"empty":        {"", 0, false},
		"zero":         {"0", 0, false},
		"garbage":      {"window 12", 0, false},
		"out of range": {strconv.Itoa(1 << 40), 0, false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := parsePID(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAvailablePercent(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 10.0, availablePercent(1<<30, 10<<30), 1e-9)
	assert.InDelta(t, 100.0, availablePercent(4096, 4096), 1e-9)
}
