// Package playlist parses HLS master and media playlists into typed records.
package playlist

import "time"

// Kind distinguishes a master playlist from a media playlist.
type Kind int

const (
	// KindMedia is a media playlist: a list of segments.
	KindMedia Kind = iota
	// KindMaster is a master playlist: a list of variant streams.
	KindMaster
)

// PlaylistType mirrors EXT-X-PLAYLIST-TYPE.
type PlaylistType int

const (
	// PlaylistTypeNone means no EXT-X-PLAYLIST-TYPE tag was present.
	PlaylistTypeNone PlaylistType = iota
	PlaylistTypeVOD
	PlaylistTypeEvent
)

func (t PlaylistType) String() string {
	switch t {
	case PlaylistTypeVOD:
		return "VOD"
	case PlaylistTypeEvent:
		return "EVENT"
	default:
		return ""
	}
}

// VariantRef is one EXT-X-STREAM-INF entry in a master playlist.
type VariantRef struct {
	URL        string // absolute, resolved against the master's URL
	Bandwidth  int
	Codecs     string
	Resolution string
	GroupAudio string
	GroupVideo string
}

// DateRange corresponds to one EXT-X-DATERANGE tag.
type DateRange struct {
	ID       string
	Class    string
	Start    time.Time
	HasStart bool
	End      time.Time
	HasEnd   bool
	Duration float64
	HasDur   bool
}

// Segment is a single media segment entry in a media playlist.
type Segment struct {
	URI              string // resolved against the playlist URL
	Duration         float64
	Gap              bool
	Discontinuity    bool
	ProgramDateTime  time.Time
	HasProgramDate   bool
	CueOut           bool
	CueIn            bool
	CueOutCont       bool
	CueID            string
	HasCueID         bool
	DateRanges       []DateRange
}

// Playlist is the parsed result of a single HLS manifest fetch.
//
// For a master playlist, Variants is populated and the Media fields are
// zero except where the manifest carries their tags (EXT-X-VERSION sets
// Version in either kind). For a media playlist, Segments and the
// target-duration/sequence fields are populated and Variants is nil.
type Playlist struct {
	Kind Kind

	// Master fields.
	Variants []VariantRef

	// Media fields.
	TargetDuration          int
	MediaSequenceBase       int
	DiscontinuitySequenceBase int
	Version                 int
	HasVersion              bool
	PlaylistType            PlaylistType
	IsEndlist               bool
	Segments                []Segment

	// RawUnknownTags preserves unrecognized tag lines verbatim, in the
	// order encountered, for potential re-emission.
	RawUnknownTags []string
}
