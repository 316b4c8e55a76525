package sched

// Config mirrors the scheduler section of the config file.
type Config struct {
	TickMS          int    `yaml:"tick_ms"`          // 10 (by default)
	SliceMS         int    `yaml:"slice_ms"`         // 100 (by default)
	DefaultStrategy string `yaml:"default_strategy"` // pq (by default)
}

// DefaultConfig is used when no config file is found.
func DefaultConfig() Config {
	return Config{
		TickMS:          10,
		SliceMS:         100,
		DefaultStrategy: "pq",
	}
}

// Normalize applies sanity clamps after decoding.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.TickMS <= 0 {
		c.TickMS = def.TickMS
	}
	if c.SliceMS <= 0 {
		c.SliceMS = def.SliceMS
	}
	if _, err := ParseKind(c.DefaultStrategy); err != nil {
		c.DefaultStrategy = def.DefaultStrategy
	}
}
