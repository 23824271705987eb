package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background processing worker.
type Config struct {
	// Concurrency is the number of worker goroutines polling for jobs.
	Concurrency int

	// PollInterval is how often each idle worker checks for new jobs.
	PollInterval time.Duration

	// JobTimeout is the maximum time a single job may run.
	JobTimeout time.Duration

	// ShutdownTimeout bounds how long Stop waits for running jobs.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is how long a job may sit in 'processing' before a
	// restart reclaims it for another attempt.
	StaleJobThreshold time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      2 * time.Second,
		JobTimeout:        2 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Concurrency > 100 {
		return fmt.Errorf("concurrency too high (max 100), got %d", c.Concurrency)
	}
	if c.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("poll interval must be at least 100ms, got %v", c.PollInterval)
	}
	if c.JobTimeout < time.Second {
		return fmt.Errorf("job timeout must be at least 1 second, got %v", c.JobTimeout)
	}
	if c.ShutdownTimeout < time.Second {
		return fmt.Errorf("shutdown timeout must be at least 1 second, got %v", c.ShutdownTimeout)
	}
	if c.StaleJobThreshold < time.Minute {
		return fmt.Errorf("stale job threshold must be at least 1 minute, got %v", c.StaleJobThreshold)
	}
	return nil
}
