package eviction

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the thresholds that drive a clearing cycle.
type Config struct {
	// StorageLimitFraction is the share of disk capacity (archives + free)
	// archives may use before a clear is forced.
	StorageLimitFraction float64
	// ClearThresholdFraction is the share of disk capacity archives are
	// brought down to once a clear runs.
	ClearThresholdFraction float64
	// ClearInterval is the minimum time between periodic clears.
	ClearInterval time.Duration
	// RemoveGracePeriod is how long expired metadata is kept before removal.
	RemoveGracePeriod time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		StorageLimitFraction:   0.3,
		ClearThresholdFraction: 0.1,
		ClearInterval:          10 * time.Minute,
		RemoveGracePeriod:      21 * 24 * time.Hour,
	}
}

// Validate checks that the thresholds are consistent.
func (c Config) Validate() error {
	var errs []error
	if c.StorageLimitFraction <= 0 || c.StorageLimitFraction > 1 {
		errs = append(errs, fmt.Errorf("storage limit fraction must be in (0, 1], got %v", c.StorageLimitFraction))
	}
	if c.ClearThresholdFraction <= 0 || c.ClearThresholdFraction > 1 {
		errs = append(errs, fmt.Errorf("clear threshold fraction must be in (0, 1], got %v", c.ClearThresholdFraction))
	}
	if c.ClearThresholdFraction > c.StorageLimitFraction {
		errs = append(errs, fmt.Errorf("clear threshold fraction %v exceeds storage limit fraction %v", c.ClearThresholdFraction, c.StorageLimitFraction))
	}
	if c.ClearInterval <= 0 {
		errs = append(errs, fmt.Errorf("clear interval must be positive, got %s", c.ClearInterval))
	}
	if c.RemoveGracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("remove grace period must be positive, got %s", c.RemoveGracePeriod))
	}
	return errors.Join(errs...)
}
