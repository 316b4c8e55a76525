package importance

import (
	"path"
	"strings"
	"time"

	"dualsched/internal/sched"
)

// Config mirrors the monitor section of the config file.
type Config struct {
	IntervalMS       int        `yaml:"interval_ms"`        // 2000 (by default)
	HistorySize      int        `yaml:"history_size"`       // samples kept per ring buffer
	MaxProcesses     int        `yaml:"max_processes"`      // table capacity
	CgroupRoot       string     `yaml:"cgroup_root"`        // class groups live below it; it is the neutral group
	DryRun           bool       `yaml:"dry_run"`            // log enforcement instead of applying it
	LowMemoryPercent float64    `yaml:"low_memory_percent"` // available memory below this is pressure
	ActiveCPUPercent float64    `yaml:"active_cpu_percent"` // CPU at or above this counts as activity
	IdleEvictS       int        `yaml:"idle_evict_s"`       // idle time before eviction under pressure
	EvictClasses     []string   `yaml:"evict_classes"`      // classes eligible for eviction
	Weights          Weights    `yaml:"weights"`
	Thresholds       Thresholds `yaml:"thresholds"`
}

// Weights are the additive signal contributions of the raw score.
type Weights struct {
	Focused           float64 `yaml:"focused"`
	ParentOfFocused   float64 `yaml:"parent_of_focused"`
	SystemService     float64 `yaml:"system_service"`
	Audio             float64 `yaml:"audio"`
	GPU               float64 `yaml:"gpu"`
	GPUWindowS        int     `yaml:"gpu_window_s"`
	Network           float64 `yaml:"network"`
	NetworkWindowS    int     `yaml:"network_window_s"`
	Activity          float64 `yaml:"activity"`
	ActivityWindowS   int     `yaml:"activity_window_s"`
	Foreground        float64 `yaml:"foreground"`
	ForegroundWindowS int     `yaml:"foreground_window_s"`
	CPUFactor         float64 `yaml:"cpu_factor"`
	MemoryPenalty     float64 `yaml:"memory_penalty"`
	MemoryPenaltyKB   int64   `yaml:"memory_penalty_kb"`
	OverrideWeight    float64 `yaml:"override_weight"` // how many times the override counts against the computed score
	OverrideScale     float64 `yaml:"override_scale"`  // score points per override step; negative overrides raise importance
	ScoreCeiling      float64 `yaml:"score_ceiling"`   // raw score that maps to the most important value
}

// Thresholds bound the importance bands; a value at or below a bound belongs
// to that band. Importance runs from -100 (most important) to 100.
type Thresholds struct {
	Foreground float64 `yaml:"foreground"`
	Visible    float64 `yaml:"visible"`
	Service    float64 `yaml:"service"`
	Background float64 `yaml:"background"`
}

// DefaultConfig is used when no config file is found.
func DefaultConfig() Config {
	return Config{
		IntervalMS:       2000,
		HistorySize:      10,
		MaxProcesses:     128,
		CgroupRoot:       "/sys/fs/cgroup",
		LowMemoryPercent: 15,
		ActiveCPUPercent: 1,
		IdleEvictS:       300,
		EvictClasses:     []string{"cache"},
		Weights: Weights{
			Focused:           150,
			ParentOfFocused:   120,
			SystemService:     60,
			Audio:             50,
			GPU:               30,
			GPUWindowS:        10,
			Network:           20,
			NetworkWindowS:    10,
			Activity:          30,
			ActivityWindowS:   60,
			Foreground:        40,
			ForegroundWindowS: 600,
			CPUFactor:         0.5,
			MemoryPenalty:     40,
			MemoryPenaltyKB:   512 * 1024,
			OverrideWeight:    2,
			OverrideScale:     5,
			ScoreCeiling:      200,
		},
		Thresholds: Thresholds{
			Foreground: -40,
			Visible:    -10,
			Service:    50,
			Background: 90,
		},
	}
}

// Normalize applies sanity clamps after decoding.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.IntervalMS <= 0 {
		c.IntervalMS = def.IntervalMS
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if c.MaxProcesses <= 0 {
		c.MaxProcesses = def.MaxProcesses
	}
	if c.CgroupRoot == "" {
		c.CgroupRoot = def.CgroupRoot
	}
	if c.LowMemoryPercent <= 0 || c.LowMemoryPercent >= 100 {
		c.LowMemoryPercent = def.LowMemoryPercent
	}
	if c.ActiveCPUPercent <= 0 {
		c.ActiveCPUPercent = def.ActiveCPUPercent
	}
	if c.IdleEvictS <= 0 {
		c.IdleEvictS = def.IdleEvictS
	}
	if len(c.EvictClasses) == 0 {
		c.EvictClasses = def.EvictClasses
	}

	w := &c.Weights
	if w.ScoreCeiling <= 0 {
		w.ScoreCeiling = def.Weights.ScoreCeiling
	}
	if w.OverrideWeight < 0 {
		w.OverrideWeight = def.Weights.OverrideWeight
	}
	for _, win := range []*int{&w.GPUWindowS, &w.NetworkWindowS, &w.ActivityWindowS, &w.ForegroundWindowS} {
		if *win < 0 {
			*win = 0
		}
	}

	th := c.Thresholds
	if !(th.Foreground < th.Visible && th.Visible < th.Service && th.Service < th.Background) {
		c.Thresholds = def.Thresholds
	}
}

// Interval is the monitoring period.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// GroupFor returns the resource group path of a class.
func (c Config) GroupFor(class sched.Class) string {
	return path.Join(c.CgroupRoot, strings.ToLower(class.String()))
}

// Groups returns every class group in rank order.
func (c Config) Groups() []string {
	out := make([]string, 0, len(sched.StrictClasses))
	for _, class := range sched.StrictClasses {
		out = append(out, c.GroupFor(class))
	}
	return out
}

// NeutralGroup is where processes are returned on shutdown.
func (c Config) NeutralGroup() string { return c.CgroupRoot }

func (c Config) evictable() (map[sched.Class]bool, error) {
	out := make(map[sched.Class]bool, len(c.EvictClasses))
	for _, token := range c.EvictClasses {
		class, err := sched.KindStrictClass.ParseClass(token)
		if err != nil {
			return nil, err
		}
		out[class] = true
	}
	return out, nil
}

func seconds(s int) time.Duration { return time.Duration(s) * time.Second }
