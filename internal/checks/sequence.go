package checks

import (
	"fmt"
	"math"
	"time"

	"github.com/brinkwave/hlswatch/internal/finding"
	"github.com/brinkwave/hlswatch/internal/playlist"
)

// PlaylistTypeViolation flags a change to a previously observed, non-null
// playlist_type.
func PlaylistTypeViolation(old Snapshot, pl *playlist.Playlist, _ Config) []Result {
	if !old.HasPlaylistType || pl.PlaylistType == playlist.PlaylistTypeNone {
		return nil
	}
	if pl.PlaylistType == old.PlaylistType {
		return nil
	}
	return []Result{{
		Kind:    finding.KindPlaylistTypeViolation,
		Message: fmt.Sprintf("playlist_type changed from %s to %s", old.PlaylistType, pl.PlaylistType),
		Details: map[string]any{"previous": old.PlaylistType.String(), "observed": pl.PlaylistType.String()},
	}}
}

// VersionViolation flags a change to a previously observed, non-null version.
func VersionViolation(old Snapshot, pl *playlist.Playlist, _ Config) []Result {
	if !old.HasVersion || !pl.HasVersion || pl.Version == old.Version {
		return nil
	}
	return []Result{{
		Kind:    finding.KindVersionViolation,
		Message: fmt.Sprintf("version changed from %d to %d", old.Version, pl.Version),
		Details: map[string]any{"previous": old.Version, "observed": pl.Version},
	}}
}

// MediaSequenceRegression flags a new media_sequence_base lower than the
// last observed value.
func MediaSequenceRegression(old Snapshot, pl *playlist.Playlist, _ Config) []Result {
	if !old.HasMediaSequence || pl.MediaSequenceBase >= old.MediaSequence {
		return nil
	}
	return []Result{{
		Kind:    finding.KindMediaSequenceRegression,
		Message: fmt.Sprintf("media_sequence_base regressed from %d to %d", old.MediaSequence, pl.MediaSequenceBase),
		Details: map[string]any{"expected": old.MediaSequence, "observed": pl.MediaSequenceBase},
	}}
}

// MediaSequenceGap flags a forward jump in media_sequence_base larger than
// the configured threshold.
func MediaSequenceGap(old Snapshot, pl *playlist.Playlist, cfg Config) []Result {
	if !old.HasMediaSequence {
		return nil
	}
	gap := pl.MediaSequenceBase - old.MediaSequence
	if gap <= cfg.MediaSequenceGapThreshold {
		return nil
	}
	return []Result{{
		Kind:    finding.KindMediaSequenceGap,
		Message: fmt.Sprintf("media_sequence_base jumped by %d, exceeding threshold %d", gap, cfg.MediaSequenceGapThreshold),
		Details: map[string]any{"expected": old.MediaSequence, "observed": pl.MediaSequenceBase, "threshold": cfg.MediaSequenceGapThreshold},
	}}
}

// DiscontinuitySequenceMismatch implements the recommended contract from
// §9's open question: the new discontinuity_sequence_base should equal the
// old one plus the number of EXT-X-DISCONTINUITY-flagged segments that slid
// out of the window between polls (the leading segments of the old window
// no longer present once media_sequence_base advances).
func DiscontinuitySequenceMismatch(old Snapshot, pl *playlist.Playlist, _ Config) []Result {
	if !old.HasMediaSequence || !old.HasDiscontinuitySequence {
		return nil
	}
	advance := pl.MediaSequenceBase - old.MediaSequence
	if advance <= 0 {
		return nil
	}
	slidOut := advance
	if slidOut > len(old.Window) {
		slidOut = len(old.Window)
	}
	discontinuitiesSlidOut := 0
	for i := 0; i < slidOut; i++ {
		if old.Window[i].Discontinuity {
			discontinuitiesSlidOut++
		}
	}
	expected := old.DiscontinuitySequence + discontinuitiesSlidOut
	if pl.DiscontinuitySequenceBase == expected {
		return nil
	}
	return []Result{{
		Kind:    finding.KindDiscontinuitySequenceMismatch,
		Message: fmt.Sprintf("discontinuity_sequence_base %d does not match expected %d", pl.DiscontinuitySequenceBase, expected),
		Details: map[string]any{"expected": expected, "observed": pl.DiscontinuitySequenceBase},
	}}
}

// SegmentContinuityBreak flags a sliding window advance whose overlapping
// segment does not match the URI previously observed at that sequence
// number.
func SegmentContinuityBreak(old Snapshot, pl *playlist.Playlist, _ Config) []Result {
	if !old.HasMediaSequence || len(old.Window) == 0 || len(pl.Segments) == 0 {
		return nil
	}
	advance := pl.MediaSequenceBase - old.MediaSequence
	if advance <= 0 || advance >= len(old.Window) {
		return nil
	}
	expected := old.Window[advance].URI
	observed := pl.Segments[0].URI
	if expected == observed {
		return nil
	}
	return []Result{{
		Kind:    finding.KindSegmentContinuityBreak,
		Message: fmt.Sprintf("expected segment %s at offset 0 of the new window, observed %s", expected, observed),
		Details: map[string]any{"offset": 0, "expected": expected, "observed": observed},
	}}
}

// PlaylistSizeShrank flags a decreased segment count while
// media_sequence_base is unchanged.
func PlaylistSizeShrank(old Snapshot, pl *playlist.Playlist, _ Config) []Result {
	if !old.HasMediaSequence || pl.MediaSequenceBase != old.MediaSequence {
		return nil
	}
	if len(pl.Segments) >= len(old.Window) {
		return nil
	}
	return []Result{{
		Kind:    finding.KindPlaylistSizeShrank,
		Message: fmt.Sprintf("segment count shrank from %d to %d at unchanged media_sequence_base %d", len(old.Window), len(pl.Segments), pl.MediaSequenceBase),
		Details: map[string]any{"previous_count": len(old.Window), "observed_count": len(pl.Segments)},
	}}
}

// PlaylistContentChanged flags a differing per-index segment URI sequence
// while media_sequence_base is unchanged.
func PlaylistContentChanged(old Snapshot, pl *playlist.Playlist, _ Config) []Result {
	if !old.HasMediaSequence || pl.MediaSequenceBase != old.MediaSequence {
		return nil
	}
	n := len(old.Window)
	if len(pl.Segments) < n {
		n = len(pl.Segments)
	}
	for i := 0; i < n; i++ {
		if old.Window[i].URI != pl.Segments[i].URI {
			return []Result{{
				Kind:    finding.KindPlaylistContentChanged,
				Message: fmt.Sprintf("segment URI at index %d changed from %s to %s at unchanged media_sequence_base %d", i, old.Window[i].URI, pl.Segments[i].URI, pl.MediaSequenceBase),
				Details: map[string]any{"index": i, "previous": old.Window[i].URI, "observed": pl.Segments[i].URI},
			}}
		}
	}
	return nil
}

// ProgramDateTimeJump flags consecutive PDT-bearing segments whose observed
// gap disagrees with the leading segment's duration by more than the
// tolerance max(1s, 0.5*target_duration).
func ProgramDateTimeJump(_ Snapshot, pl *playlist.Playlist, _ Config) []Result {
	var out []Result
	tolerance := math.Max(1.0, 0.5*float64(pl.TargetDuration))
	for i := 0; i+1 < len(pl.Segments); i++ {
		a, b := pl.Segments[i], pl.Segments[i+1]
		if !a.HasProgramDate || !b.HasProgramDate {
			continue
		}
		gap := b.ProgramDateTime.Sub(a.ProgramDateTime).Seconds()
		diff := math.Abs(gap - a.Duration)
		if diff <= tolerance {
			continue
		}
		out = append(out, Result{
			Kind:    finding.KindProgramDateTimeJump,
			Message: fmt.Sprintf("PDT gap between %s and %s is %.3fs, expected ~%.3fs", a.URI, b.URI, gap, a.Duration),
			Details: map[string]any{"segment_uri": a.URI, "next_segment_uri": b.URI, "gap_seconds": gap, "expected_seconds": a.Duration},
		})
	}
	return out
}

// DateRangeViolation flags malformed (missing ID or START-DATE, or
// conflicting DURATION/END-DATE) or duplicated EXT-X-DATERANGE entries.
func DateRangeViolation(_ Snapshot, pl *playlist.Playlist, _ Config) []Result {
	var out []Result
	seen := make(map[string]bool)
	for _, seg := range pl.Segments {
		for _, dr := range seg.DateRanges {
			switch {
			case dr.ID == "":
				out = append(out, Result{
					Kind:    finding.KindDateRangeViolation,
					Message: "EXT-X-DATERANGE is missing required ID",
					Details: map[string]any{"segment_uri": seg.URI},
				})
				continue
			case !dr.HasStart:
				out = append(out, Result{
					Kind:    finding.KindDateRangeViolation,
					Message: fmt.Sprintf("EXT-X-DATERANGE %s is missing required START-DATE", dr.ID),
					Details: map[string]any{"id": dr.ID, "segment_uri": seg.URI},
				})
			case dr.HasDur && dr.HasEnd:
				computedEnd := dr.Start.Add(time.Duration(dr.Duration * float64(time.Second)))
				if math.Abs(computedEnd.Sub(dr.End).Seconds()) > 0.001 {
					out = append(out, Result{
						Kind:    finding.KindDateRangeViolation,
						Message: fmt.Sprintf("EXT-X-DATERANGE %s has DURATION/END-DATE disagreement", dr.ID),
						Details: map[string]any{"id": dr.ID, "segment_uri": seg.URI},
					})
				}
			}
			if dr.ID != "" {
				if seen[dr.ID] {
					out = append(out, Result{
						Kind:    finding.KindDateRangeViolation,
						Message: fmt.Sprintf("EXT-X-DATERANGE id %s is duplicated in this playlist", dr.ID),
						Details: map[string]any{"id": dr.ID, "segment_uri": seg.URI},
					})
				}
				seen[dr.ID] = true
			}
		}
	}
	return out
}
