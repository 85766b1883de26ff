// Package checks implements the pure anomaly-detection functions that map a
// variant's prior state and a freshly parsed playlist to zero or more
// findings. Every function here is order-independent and side-effect free;
// callers (internal/state, internal/engine) own all mutation.
package checks

import (
	"time"

	"github.com/brinkwave/hlswatch/internal/finding"
)

// Config holds the tunable thresholds consumed by the check library. Zero
// values are not valid configuration; use DefaultConfig and override.
type Config struct {
	// TargetDurationTolerance is added to target_duration before comparing
	// against a segment's duration for TargetDurationExceeded.
	TargetDurationTolerance float64

	// SegmentDurationAnomalyRatio is the minimum fraction of target_duration
	// a segment's duration may fall to before SegmentDurationAnomaly fires.
	SegmentDurationAnomalyRatio float64

	// MediaSequenceGapThreshold is the largest tolerated forward jump in
	// media_sequence_base before MediaSequenceGap fires.
	MediaSequenceGapThreshold int

	// VariantSyncDriftThreshold is the largest tolerated media_sequence_base
	// gap between two variants of the same stream.
	VariantSyncDriftThreshold int

	// VariantFailureThreshold is the number of consecutive fetch failures
	// before VariantUnavailable fires.
	VariantFailureThreshold int

	// StaleLimit is how long a playlist's content may go unchanged before
	// StaleManifest fires.
	StaleLimit time.Duration

	// Scte35Enabled gates all Scte35* checks.
	Scte35Enabled bool

	// Scte35UnclosedTimeout is how long a CUE-OUT may remain open before
	// Scte35UnclosedCueOut fires. Not part of the published configuration
	// schema (§6); defaulted here since the catalogue (§4.2) requires a
	// threshold to exist.
	Scte35UnclosedTimeout time.Duration
}

// DefaultConfig returns the configuration defaults from §6.
func DefaultConfig() Config {
	return Config{
		TargetDurationTolerance:     0.5,
		SegmentDurationAnomalyRatio: 0.5,
		MediaSequenceGapThreshold:   5,
		VariantSyncDriftThreshold:   3,
		VariantFailureThreshold:     3,
		StaleLimit:                  6 * time.Second,
		Scte35Enabled:               false,
		Scte35UnclosedTimeout:       60 * time.Second,
	}
}

// Result is a check's output before it is wrapped into a finding.Finding by
// the caller, which supplies monitor/stream/variant identity and timestamp.
type Result struct {
	Kind    finding.Kind
	Message string
	Details map[string]any
}
