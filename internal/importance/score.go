package importance

import (
	"time"

	"dualsched/internal/sched"
)

// Signals is everything the scorer looks at for one process. Zero
// timestamps mean "never".
type Signals struct {
	Now             time.Time
	Focused         bool
	ParentOfFocused bool
	SystemService   bool
	PlayingAudio    bool
	LastGPU         time.Time
	LastNetwork     time.Time
	LastActive      time.Time
	LastForeground  time.Time
	AvgCPU          float64 // percent
	AvgMemoryKB     int64
	MemoryPressure  bool
	Override        int // user request in [-20, 20], 0 = none
}

// Scorer turns signals into an importance value and a class. It is pure.
type Scorer struct {
	w  Weights
	th Thresholds
}

// NewScorer creates a scorer from the monitor configuration.
func NewScorer(cfg Config) Scorer {
	return Scorer{w: cfg.Weights, th: cfg.Thresholds}
}

// Raw accumulates the signal contributions; higher is more important.
func (s Scorer) Raw(sig Signals) float64 {
	w := s.w
	var score float64

	if sig.Focused {
		score += w.Focused
	}
	if sig.ParentOfFocused {
		score += w.ParentOfFocused
	}
	if sig.SystemService {
		score += w.SystemService
	}
	if sig.PlayingAudio {
		score += w.Audio
	}
	score += within(sig.Now, sig.LastGPU, seconds(w.GPUWindowS), w.GPU)
	score += within(sig.Now, sig.LastNetwork, seconds(w.NetworkWindowS), w.Network)
	score += decay(sig.Now, sig.LastActive, seconds(w.ActivityWindowS), w.Activity)
	score += decay(sig.Now, sig.LastForeground, seconds(w.ForegroundWindowS), w.Foreground)
	score += w.CPUFactor * min(max(sig.AvgCPU, 0), 100)

	if sig.MemoryPressure && sig.AvgMemoryKB > w.MemoryPenaltyKB {
		score -= w.MemoryPenalty
	}
	return score
}

// Blend folds a user override into a raw score. A negative override asks
// for more importance, so it is flipped into score units before averaging.
func (s Scorer) Blend(raw float64, override int) float64 {
	if override == 0 {
		return raw
	}
	ov := -float64(override) * s.w.OverrideScale
	return (raw + s.w.OverrideWeight*ov) / (1 + s.w.OverrideWeight)
}

// Normalize maps a blended score onto [-100, 100] with the sign inverted:
// lower means more important.
func (s Scorer) Normalize(blended float64) float64 {
	n := min(max(blended/s.w.ScoreCeiling, 0), 1)
	return 100 - 200*n
}

// Classify maps an importance value onto a class band.
func (s Scorer) Classify(importance float64) sched.Class {
	switch {
	case importance <= s.th.Foreground:
		return sched.ClassForeground
	case importance <= s.th.Visible:
		return sched.ClassVisible
	case importance <= s.th.Service:
		return sched.ClassService
	case importance <= s.th.Background:
		return sched.ClassBackground
	default:
		return sched.ClassCached
	}
}

// Evaluate runs the whole pipeline for one process.
func (s Scorer) Evaluate(sig Signals) (float64, sched.Class) {
	imp := s.Normalize(s.Blend(s.Raw(sig), sig.Override))
	return imp, s.Classify(imp)
}

// within gives the full bonus while the last event is younger than window.
func within(now, last time.Time, window time.Duration, bonus float64) float64 {
	if last.IsZero() || window <= 0 {
		return 0
	}
	if age := now.Sub(last); age >= 0 && age < window {
		return bonus
	}
	return 0
}

// decay fades the bonus linearly to zero over window.
func decay(now, last time.Time, window time.Duration, bonus float64) float64 {
	if last.IsZero() || window <= 0 {
		return 0
	}
	age := max(now.Sub(last), 0)
	if age >= window {
		return 0
	}
	return bonus * (1 - float64(age)/float64(window))
}

// OOMScoreFor is the kill priority of a class; higher is reclaimed sooner.
func OOMScoreFor(class sched.Class) int {
	switch class {
	case sched.ClassForeground:
		return 0
	case sched.ClassVisible:
		return 100
	case sched.ClassService:
		return 300
	case sched.ClassBackground:
		return 700
	default:
		return 900
	}
}

// NeutralOOMScore is restored on shutdown.
const NeutralOOMScore = 0
