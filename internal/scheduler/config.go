package scheduler

import "time"

// Config controls the embedded scheduler interval.
type Config struct {
	TickInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval: time.Hour,
	}
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultConfig().TickInterval
	}
	return c
}
