// Package bench fires many independent requests through the http client's
// callback API and summarises their latency and outcome.
package bench

import (
	"fmt"
)

// Config holds the shape of a bench run.
type Config struct {
	Requests    int     // total requests to issue
	Concurrency int     // max requests in flight
	Rate        float64 // requests per second, 0 = as fast as Concurrency allows
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Requests:    100,
		Concurrency: 10,
		Rate:        0,
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Requests <= 0 {
		return fmt.Errorf("requests must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate cannot be negative")
	}
	return nil
}
