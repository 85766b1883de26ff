// Package state holds per-variant rolling state and drives it through the
// check library on every fetch, per §4.3.
package state

import (
	"time"

	"github.com/brinkwave/hlswatch/internal/checks"
	"github.com/brinkwave/hlswatch/internal/finding"
	"github.com/brinkwave/hlswatch/internal/playlist"
)

// VariantState is the rolling state of one variant, per §3.
type VariantState struct {
	hasMediaSequence         bool
	mediaSequence            int
	hasDiscontinuitySequence bool
	discontinuitySequence    int
	window                   []checks.WindowSegment
	hasVersion               bool
	version                  int
	hasPlaylistType          bool
	playlistType             playlist.PlaylistType
	hasProgramDateTime       bool
	programDateTime          time.Time
	lastFetchAt              time.Time
	consecutiveFailures      int
	openCues                 map[string]time.Time
	staleEmitted             bool
}

// New returns a freshly initialized VariantState, as created when a variant
// is first discovered. lastFetchAt starts at the discovery time rather than
// the zero time so a variant whose very first fetch fails is not
// immediately reported as stale against a multi-century gap (§4.3).
func New(discoveredAt time.Time) *VariantState {
	return &VariantState{openCues: make(map[string]time.Time), lastFetchAt: discoveredAt}
}

// ConsecutiveFailures reports the current failure streak.
func (s *VariantState) ConsecutiveFailures() int { return s.consecutiveFailures }

// HasMediaSequence and MediaSequence expose the last observed
// media_sequence_base, consulted by VariantSyncDrift across variants of the
// same stream.
func (s *VariantState) HasMediaSequence() bool { return s.hasMediaSequence }
func (s *VariantState) MediaSequence() int     { return s.mediaSequence }

// LastFetchAt exposes the timestamp staleness is measured against.
func (s *VariantState) LastFetchAt() time.Time { return s.lastFetchAt }

// StaleEmitted reports whether the current staleness episode has already
// produced a StaleManifest finding.
func (s *VariantState) StaleEmitted() bool { return s.staleEmitted }

func (s *VariantState) snapshot() checks.Snapshot {
	return checks.Snapshot{
		HasMediaSequence:         s.hasMediaSequence,
		MediaSequence:            s.mediaSequence,
		HasDiscontinuitySequence: s.hasDiscontinuitySequence,
		DiscontinuitySequence:    s.discontinuitySequence,
		Window:                   s.window,
		HasVersion:               s.hasVersion,
		Version:                  s.version,
		HasPlaylistType:          s.hasPlaylistType,
		PlaylistType:             s.playlistType,
		HasProgramDateTime:       s.hasProgramDateTime,
		ProgramDateTime:          s.programDateTime,
		LastFetchAt:              s.lastFetchAt,
		ConsecutiveFailures:      s.consecutiveFailures,
		OpenCues:                 s.openCues,
	}
}

// Identity names the monitor, stream and variant a finding belongs to.
// StreamID and VariantURL are nil for monitor-level findings (the schema in
// §6 allows both to be null).
type Identity struct {
	MonitorID  string
	StreamID   *string
	VariantURL *string
}

// VariantIdentity is a convenience constructor for the common case of a
// finding scoped to one stream and variant.
func VariantIdentity(monitorID, streamID, variantURL string) Identity {
	return Identity{MonitorID: monitorID, StreamID: &streamID, VariantURL: &variantURL}
}

func (id Identity) Wrap(now time.Time, r checks.Result) finding.Finding {
	return finding.New(now, id.MonitorID, id.StreamID, id.VariantURL, r.Kind, r.Message, r.Details)
}

func (id Identity) wrap(now time.Time, r checks.Result) finding.Finding {
	return id.Wrap(now, r)
}

// Update runs the §4.3 fetch procedure: on fetchErr, emit FetchError and
// return; otherwise reset the failure streak (emitting VariantRecovered if
// it had been nonzero), run the per-variant check catalogue, compute
// whether content changed, and roll the state forward.
func (s *VariantState) Update(now time.Time, id Identity, cfg checks.Config, pl *playlist.Playlist, fetchErr error) []finding.Finding {
	var out []finding.Finding

	if fetchErr != nil {
		before := s.consecutiveFailures
		s.consecutiveFailures++
		out = append(out, id.wrap(now, checks.Result{
			Kind:    finding.KindFetchError,
			Message: fetchErr.Error(),
			Details: map[string]any{"reason": fetchErr.Error()},
		}))
		for _, r := range checks.VariantUnavailable(before, s.consecutiveFailures, cfg) {
			out = append(out, id.wrap(now, r))
		}
		return out
	}

	if s.consecutiveFailures > 0 {
		out = append(out, id.wrap(now, checks.Result{
			Kind:    finding.KindVariantRecovered,
			Message: "fetch succeeded after prior failures",
			Details: map[string]any{"previous_consecutive_failures": s.consecutiveFailures},
		}))
	}
	s.consecutiveFailures = 0

	old := s.snapshot()
	for _, r := range checks.RunPerVariant(old, pl, cfg) {
		out = append(out, id.wrap(now, r))
	}

	changed := s.contentChanged(pl)
	if changed {
		s.lastFetchAt = now
		s.staleEmitted = false
	}

	s.rollForward(now, pl)

	return out
}

// contentChanged reports whether the playlist, media_sequence_base, or
// segment URI sequence differs from the prior window, per §4.3 step 4.
func (s *VariantState) contentChanged(pl *playlist.Playlist) bool {
	if !s.hasMediaSequence {
		return true
	}
	if pl.MediaSequenceBase != s.mediaSequence {
		return true
	}
	if len(pl.Segments) != len(s.window) {
		return true
	}
	for i, seg := range pl.Segments {
		if seg.URI != s.window[i].URI {
			return true
		}
	}
	return false
}

func (s *VariantState) rollForward(now time.Time, pl *playlist.Playlist) {
	newOpen, _ := checks.SimulateCues(s.openCues, pl, now)
	s.openCues = newOpen

	s.hasMediaSequence = true
	s.mediaSequence = pl.MediaSequenceBase
	s.hasDiscontinuitySequence = true
	s.discontinuitySequence = pl.DiscontinuitySequenceBase

	window := make([]checks.WindowSegment, len(pl.Segments))
	for i, seg := range pl.Segments {
		window[i] = checks.WindowSegment{URI: seg.URI, Discontinuity: seg.Discontinuity}
	}
	s.window = window

	if pl.HasVersion {
		s.hasVersion = true
		s.version = pl.Version
	}
	if pl.PlaylistType != playlist.PlaylistTypeNone {
		s.hasPlaylistType = true
		s.playlistType = pl.PlaylistType
	}
	if len(pl.Segments) > 0 && pl.Segments[0].HasProgramDate {
		s.hasProgramDateTime = true
		s.programDateTime = pl.Segments[0].ProgramDateTime
	}
}

// CheckStale runs the stale-manifest check against this variant's current
// state, marking the episode as reported so it is not emitted again until
// the content changes (Update resets the flag). Called by the monitor
// engine's cross-variant phase, per §4.4 step 4.
func (s *VariantState) CheckStale(now time.Time, id Identity, cfg checks.Config) []finding.Finding {
	if s.staleEmitted {
		return nil
	}
	results := checks.StaleManifest(s.lastFetchAt, now, cfg)
	if len(results) == 0 {
		return nil
	}
	s.staleEmitted = true
	out := make([]finding.Finding, 0, len(results))
	for _, r := range results {
		out = append(out, id.wrap(now, r))
	}
	return out
}

// CheckUnclosedCues runs the Scte35UnclosedCueOut check against this
// variant's currently open cues.
func (s *VariantState) CheckUnclosedCues(now time.Time, id Identity, cfg checks.Config) []finding.Finding {
	results := checks.Scte35UnclosedCueOut(s.snapshot(), now, cfg)
	out := make([]finding.Finding, 0, len(results))
	for _, r := range results {
		out = append(out, id.wrap(now, r))
	}
	return out
}
