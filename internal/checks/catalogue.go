package checks

import "github.com/brinkwave/hlswatch/internal/playlist"

// perVariantFunc is the uniform signature most checks in the catalogue
// share: a snapshot of prior state plus the freshly parsed playlist yields
// zero or more results.
type perVariantFunc func(Snapshot, *playlist.Playlist, Config) []Result

// catalogue lists the per-variant, same-signature checks in the order
// findings must be emitted within a single poll cycle (§4.2). Checks that
// need additional parameters (StaleManifest, VariantUnavailable,
// Scte35UnclosedCueOut, VariantSyncDrift) are invoked directly by
// internal/state and internal/engine alongside this list, in their
// documented relative position.
var catalogue = []perVariantFunc{
	TargetDurationExceeded,
	SegmentDurationAnomaly,
	PlaylistGap,
	PlaylistTypeViolation,
	VersionViolation,
	MediaSequenceRegression,
	MediaSequenceGap,
	DiscontinuitySequenceMismatch,
	SegmentContinuityBreak,
	PlaylistSizeShrank,
	PlaylistContentChanged,
	ProgramDateTimeJump,
	DateRangeViolation,
	Scte35OrphanCueIn,
	Scte35MissingContinuation,
}

// RunPerVariant runs every same-signature check in catalogue order and
// concatenates their results.
func RunPerVariant(old Snapshot, pl *playlist.Playlist, cfg Config) []Result {
	var out []Result
	for _, fn := range catalogue {
		out = append(out, fn(old, pl, cfg)...)
	}
	return out
}
