package checks

import (
	"fmt"

	"github.com/brinkwave/hlswatch/internal/finding"
	"github.com/brinkwave/hlswatch/internal/playlist"
)

// TargetDurationExceeded flags any segment whose duration exceeds
// target_duration + tolerance.
func TargetDurationExceeded(_ Snapshot, pl *playlist.Playlist, cfg Config) []Result {
	var out []Result
	limit := float64(pl.TargetDuration) + cfg.TargetDurationTolerance
	for _, seg := range pl.Segments {
		if seg.Duration > limit {
			out = append(out, Result{
				Kind:    finding.KindTargetDurationExceeded,
				Message: fmt.Sprintf("segment %s duration %.3fs exceeds target %ds + tolerance %.3fs", seg.URI, seg.Duration, pl.TargetDuration, cfg.TargetDurationTolerance),
				Details: map[string]any{
					"segment_uri":     seg.URI,
					"duration":        seg.Duration,
					"target_duration": pl.TargetDuration,
					"tolerance":       cfg.TargetDurationTolerance,
				},
			})
		}
	}
	return out
}

// SegmentDurationAnomaly flags any segment whose duration falls below
// target_duration * anomaly_ratio.
func SegmentDurationAnomaly(_ Snapshot, pl *playlist.Playlist, cfg Config) []Result {
	var out []Result
	floor := float64(pl.TargetDuration) * cfg.SegmentDurationAnomalyRatio
	for _, seg := range pl.Segments {
		if seg.Duration < floor {
			out = append(out, Result{
				Kind:    finding.KindSegmentDurationAnomaly,
				Message: fmt.Sprintf("segment %s duration %.3fs is below %.3fx target %ds", seg.URI, seg.Duration, cfg.SegmentDurationAnomalyRatio, pl.TargetDuration),
				Details: map[string]any{
					"segment_uri":     seg.URI,
					"duration":        seg.Duration,
					"target_duration": pl.TargetDuration,
					"ratio":           cfg.SegmentDurationAnomalyRatio,
				},
			})
		}
	}
	return out
}

// PlaylistGap flags any segment carrying the EXT-X-GAP flag.
func PlaylistGap(_ Snapshot, pl *playlist.Playlist, _ Config) []Result {
	var out []Result
	for _, seg := range pl.Segments {
		if seg.Gap {
			out = append(out, Result{
				Kind:    finding.KindPlaylistGap,
				Message: fmt.Sprintf("segment %s is marked GAP", seg.URI),
				Details: map[string]any{"segment_uri": seg.URI},
			})
		}
	}
	return out
}
