package checks

import (
	"time"

	"github.com/brinkwave/hlswatch/internal/playlist"
)

// WindowSegment is the slice of a Segment the check library needs to retain
// across polls: enough to detect continuity breaks and to reconstruct which
// discontinuities slid out of the window.
type WindowSegment struct {
	URI           string
	Discontinuity bool
}

// Snapshot is a read-only copy of a variant's rolling state, built by
// internal/state before invoking the check library, so that this package
// never depends on the state package (avoiding an import cycle: state
// depends on checks, not the reverse).
type Snapshot struct {
	HasMediaSequence        bool
	MediaSequence           int
	HasDiscontinuitySequence bool
	DiscontinuitySequence    int
	Window                   []WindowSegment
	HasVersion               bool
	Version                  int
	HasPlaylistType          bool
	PlaylistType             playlist.PlaylistType
	HasProgramDateTime       bool
	ProgramDateTime          time.Time
	LastFetchAt              time.Time
	ConsecutiveFailures      int
	OpenCues                 map[string]time.Time
}
