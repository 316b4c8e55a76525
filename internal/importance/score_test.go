package importance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualsched/internal/sched"
)

func TestScorer_FocusedAudioOutranksIdle(t *testing.T) {
	t.Parallel()

	s := NewScorer(DefaultConfig())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	base := Signals{Now: now, AvgCPU: 0.5, AvgMemoryKB: 10000}
	busy := base
	busy.Focused = true
	busy.PlayingAudio = true

	_, idleClass := s.Evaluate(base)
	_, busyClass := s.Evaluate(busy)

	assert.Less(t, busyClass.Rank(), idleClass.Rank())
	assert.Equal(t, sched.ClassForeground, busyClass)
	assert.Equal(t, sched.ClassCached, idleClass)
}

func TestScorer_Bands(t *testing.T) {
	t.Parallel()

	s := NewScorer(DefaultConfig())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		sig  Signals
		want sched.Class
	}{
		"focused":            {Signals{Now: now, Focused: true}, sched.ClassForeground},
		"parent of focused":  {Signals{Now: now, ParentOfFocused: true}, sched.ClassVisible},
		"system service":     {Signals{Now: now, SystemService: true}, sched.ClassService},
		"recently active":    {Signals{Now: now, LastActive: now.Add(-10 * time.Second)}, sched.ClassBackground},
		"active long ago":    {Signals{Now: now, LastActive: now.Add(-time.Hour)}, sched.ClassCached},
		"nothing":            {Signals{Now: now}, sched.ClassCached},
		"audio and activity": {Signals{Now: now, PlayingAudio: true, LastActive: now}, sched.ClassService},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, got := s.Evaluate(tt.sig)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScorer_RecencyWindows(t *testing.T) {
	t.Parallel()

	s := NewScorer(DefaultConfig())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	gpu := func(age time.Duration) float64 { return s.Raw(Signals{Now: now, LastGPU: now.Add(-age)}) }
	assert.Equal(t, 30.0, gpu(time.Second))
	assert.Equal(t, 0.0, gpu(11*time.Second))

	net := func(age time.Duration) float64 { return s.Raw(Signals{Now: now, LastNetwork: now.Add(-age)}) }
	assert.Equal(t, 20.0, net(0))
	assert.Equal(t, 0.0, net(10*time.Second))

	active := func(age time.Duration) float64 { return s.Raw(Signals{Now: now, LastActive: now.Add(-age)}) }
	assert.InDelta(t, 30.0, active(0), 1e-9)
	assert.InDelta(t, 15.0, active(30*time.Second), 1e-9)
	assert.Equal(t, 0.0, active(60*time.Second))

	fg := func(age time.Duration) float64 { return s.Raw(Signals{Now: now, LastForeground: now.Add(-age)}) }
	assert.InDelta(t, 20.0, fg(300*time.Second), 1e-9)
	assert.Greater(t, fg(120*time.Second), 0.0, "foreground window outlasts the activity window")
}

func TestScorer_MemoryPenaltyOnlyUnderPressure(t *testing.T) {
	t.Parallel()

	s := NewScorer(DefaultConfig())
	big := Signals{Now: time.Now(), SystemService: true, AvgMemoryKB: 2 << 20}

	assert.Equal(t, 60.0, s.Raw(big))
	big.MemoryPressure = true
	assert.Equal(t, 20.0, s.Raw(big))

	small := big
	small.AvgMemoryKB = 1024
	assert.Equal(t, 60.0, s.Raw(small))
}

func TestScorer_Blend(t *testing.T) {
	t.Parallel()

	s := NewScorer(DefaultConfig())
	assert.Equal(t, 60.0, s.Blend(60, 0))
	assert.InDelta(t, 160.0/3, s.Blend(60, -10), 1e-9)
	assert.InDelta(t, -40.0/3, s.Blend(60, 10), 1e-9)

	// a more negative override is never less important
	prev := s.Normalize(s.Blend(60, MaxOverride))
	for ov := MaxOverride - 1; ov >= MinOverride; ov-- {
		if ov == 0 {
			continue
		}
		imp := s.Normalize(s.Blend(60, ov))
		assert.LessOrEqual(t, imp, prev, "override %d", ov)
		prev = imp
	}
}

func TestScorer_Monotonic(t *testing.T) {
	t.Parallel()

	s := NewScorer(DefaultConfig())
	prevRank := s.Classify(s.Normalize(-50)).Rank()
	prevImp := s.Normalize(-50)
	for raw := -50.0; raw <= 400; raw += 0.5 {
		imp := s.Normalize(raw)
		rank := s.Classify(imp).Rank()
		require.LessOrEqual(t, imp, prevImp, "raw %.1f", raw)
		require.LessOrEqual(t, rank, prevRank, "raw %.1f", raw)
		prevImp, prevRank = imp, rank
	}
	assert.Equal(t, 100.0, s.Normalize(-10))
	assert.Equal(t, -100.0, s.Normalize(1000))
}

func TestConfig_Normalize(t *testing.T) {
	t.Parallel()

	cfg := Config{Thresholds: Thresholds{Foreground: 10, Visible: 0, Service: 20, Background: 30}}
	cfg.Normalize()
	def := DefaultConfig()
	assert.Equal(t, def.Thresholds, cfg.Thresholds, "unordered bands fall back to defaults")
	assert.Equal(t, def.IntervalMS, cfg.IntervalMS)
	assert.Equal(t, def.Weights.ScoreCeiling, cfg.Weights.ScoreCeiling)
	assert.Equal(t, "/sys/fs/cgroup/cached", cfg.GroupFor(sched.ClassCached))
	assert.Len(t, cfg.Groups(), 5)
}
