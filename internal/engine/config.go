package engine

import (
	"fmt"
	"time"

	"github.com/brinkwave/hlswatch/internal/checks"
)

// Config holds one monitor's configuration snapshot, per §6.
type Config struct {
	// StaleLimit is how long a variant's content may go unchanged before
	// StaleManifest fires.
	StaleLimit time.Duration
	// PollInterval is the cadence of the polling loop. Zero means derive it
	// as max(1s, StaleLimit/2), per §4.4 step 1.
	PollInterval time.Duration
	// Scte35Enabled gates the Scte35* checks.
	Scte35Enabled bool
	// ErrorLimit and EventLimit size the per-monitor ring buffers.
	ErrorLimit int
	EventLimit int
	// TargetDurationTolerance, MediaSequenceGapThreshold,
	// VariantSyncDriftThreshold, VariantFailureThreshold and
	// SegmentDurationAnomalyRatio are forwarded to the check library
	// verbatim.
	TargetDurationTolerance     float64
	MediaSequenceGapThreshold   int
	VariantSyncDriftThreshold   int
	VariantFailureThreshold     int
	SegmentDurationAnomalyRatio float64
	// MaxConcurrentFetches bounds per-monitor fetch parallelism.
	MaxConcurrentFetches int
	// RequestTimeout bounds each variant fetch.
	RequestTimeout time.Duration
}

// DefaultConfig returns the configuration defaults from §6.
func DefaultConfig() Config {
	return Config{
		StaleLimit:                  6 * time.Second,
		Scte35Enabled:               false,
		ErrorLimit:                  100,
		EventLimit:                  200,
		TargetDurationTolerance:     0.5,
		MediaSequenceGapThreshold:   5,
		VariantSyncDriftThreshold:   3,
		VariantFailureThreshold:     3,
		SegmentDurationAnomalyRatio: 0.5,
		MaxConcurrentFetches:        4,
		RequestTimeout:              10 * time.Second,
	}
}

// Validate checks the configuration and fills in derived defaults (the
// poll interval) in place, mirroring the validate-then-default pattern used
// throughout this codebase's configuration types.
func (c *Config) Validate() error {
	if c.StaleLimit <= 0 {
		return fmt.Errorf("stale_limit_ms must be positive")
	}
	if c.ErrorLimit <= 0 {
		return fmt.Errorf("error_limit must be positive")
	}
	if c.EventLimit <= 0 {
		return fmt.Errorf("event_limit must be positive")
	}
	if c.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("max_concurrent_fetches must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout_ms must be positive")
	}
	if c.VariantFailureThreshold <= 0 {
		return fmt.Errorf("variant_failure_threshold must be positive")
	}

	if c.PollInterval == 0 {
		c.PollInterval = c.StaleLimit / 2
		if c.PollInterval < time.Second {
			c.PollInterval = time.Second
		}
	}

	return nil
}

// checksConfig projects the subset of Config the check library consumes.
func (c Config) checksConfig() checks.Config {
	cc := checks.DefaultConfig()
	cc.TargetDurationTolerance = c.TargetDurationTolerance
	cc.SegmentDurationAnomalyRatio = c.SegmentDurationAnomalyRatio
	cc.MediaSequenceGapThreshold = c.MediaSequenceGapThreshold
	cc.VariantSyncDriftThreshold = c.VariantSyncDriftThreshold
	cc.VariantFailureThreshold = c.VariantFailureThreshold
	cc.StaleLimit = c.StaleLimit
	cc.Scte35Enabled = c.Scte35Enabled
	return cc
}
