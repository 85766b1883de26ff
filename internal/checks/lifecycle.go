package checks

import (
	"fmt"
	"time"

	"github.com/brinkwave/hlswatch/internal/finding"
)

// VariantUnavailable fires exactly on the transition where consecutive
// failures first reaches the threshold, not on every poll thereafter.
func VariantUnavailable(failuresBefore, failuresAfter int, cfg Config) []Result {
	if failuresAfter < cfg.VariantFailureThreshold || failuresBefore >= cfg.VariantFailureThreshold {
		return nil
	}
	return []Result{{
		Kind:    finding.KindVariantUnavailable,
		Message: fmt.Sprintf("variant has failed %d consecutive fetches, reaching threshold %d", failuresAfter, cfg.VariantFailureThreshold),
		Details: map[string]any{"consecutive_failures": failuresAfter, "threshold": cfg.VariantFailureThreshold},
	}}
}

// StaleManifest reports whether a variant's content has gone unchanged for
// longer than stale_limit. It is pure with respect to (lastFetchAt, now, cfg); the
// caller is responsible for tracking whether the current staleness episode
// has already been reported, so the finding is emitted at most once per
// episode as required by §4.2.
func StaleManifest(lastFetchAt time.Time, now time.Time, cfg Config) []Result {
	elapsed := now.Sub(lastFetchAt)
	if elapsed <= cfg.StaleLimit {
		return nil
	}
	return []Result{{
		Kind:    finding.KindStaleManifest,
		Message: fmt.Sprintf("manifest unchanged for %s, exceeding stale limit %s", elapsed, cfg.StaleLimit),
		Details: map[string]any{"elapsed_seconds": elapsed.Seconds(), "stale_limit_seconds": cfg.StaleLimit.Seconds()},
	}}
}

// VariantSyncDrift compares the current media_sequence_base of every
// variant belonging to one stream and flags the stream if the spread
// between the furthest-ahead and furthest-behind variant exceeds the
// configured threshold.
func VariantSyncDrift(mediaSequenceByVariant map[string]int, cfg Config) []Result {
	if len(mediaSequenceByVariant) < 2 {
		return nil
	}
	first := true
	var min, max int
	for _, v := range mediaSequenceByVariant {
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	gap := max - min
	if gap <= cfg.VariantSyncDriftThreshold {
		return nil
	}
	return []Result{{
		Kind:    finding.KindVariantSyncDrift,
		Message: fmt.Sprintf("variant media_sequence_base spread is %d, exceeding threshold %d", gap, cfg.VariantSyncDriftThreshold),
		Details: map[string]any{"max_gap": gap, "threshold": cfg.VariantSyncDriftThreshold},
	}}
}
