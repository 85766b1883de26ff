package checks

import (
	"fmt"
	"time"

	"github.com/brinkwave/hlswatch/internal/finding"
	"github.com/brinkwave/hlswatch/internal/playlist"
)

// SimulateCues replays a playlist's CUE-OUT/CUE-IN/CUE-OUT-CONT sequence
// starting from a variant's currently open cues, returning the resulting
// open-cue set (per §4.3 step 5) and any Scte35OrphanCueIn findings observed
// along the way. Both internal/state (to update rolling state) and
// Scte35OrphanCueIn (to report findings) drive off this single walk so the
// lifecycle rules are defined in exactly one place.
func SimulateCues(open map[string]time.Time, pl *playlist.Playlist, now time.Time) (map[string]time.Time, []Result) {
	next := make(map[string]time.Time, len(open))
	for id, t := range open {
		next[id] = t
	}
	var orphans []Result
	for _, seg := range pl.Segments {
		id := cueKey(seg)
		switch {
		case seg.CueOut:
			if _, ok := next[id]; !ok {
				next[id] = now
			}
		case seg.CueOutCont:
			if _, ok := next[id]; !ok {
				next[id] = now
			}
		case seg.CueIn:
			if _, ok := next[id]; ok {
				delete(next, id)
			} else {
				orphans = append(orphans, Result{
					Kind:    finding.KindScte35OrphanCueIn,
					Message: fmt.Sprintf("CUE-IN for cue %q observed with no open CUE-OUT", id),
					Details: map[string]any{"cue_id": id, "segment_uri": seg.URI},
				})
			}
		}
	}
	return next, orphans
}

func cueKey(seg playlist.Segment) string {
	if seg.HasCueID {
		return seg.CueID
	}
	return ""
}

// Scte35OrphanCueIn flags a CUE-IN with no matching open CUE-OUT in state.
func Scte35OrphanCueIn(old Snapshot, pl *playlist.Playlist, cfg Config) []Result {
	if !cfg.Scte35Enabled {
		return nil
	}
	_, orphans := SimulateCues(old.OpenCues, pl, time.Time{})
	return orphans
}

// Scte35UnclosedCueOut flags any cue that has been open longer than
// scte35_unclosed_timeout. Unlike the rest of the catalogue this needs the
// current wall-clock time rather than a freshly parsed playlist, since it
// can fire even on a cycle where the manifest content itself did not
// change.
func Scte35UnclosedCueOut(old Snapshot, now time.Time, cfg Config) []Result {
	if !cfg.Scte35Enabled {
		return nil
	}
	var out []Result
	for id, openedAt := range old.OpenCues {
		if now.Sub(openedAt) <= cfg.Scte35UnclosedTimeout {
			continue
		}
		out = append(out, Result{
			Kind:    finding.KindScte35UnclosedCueOut,
			Message: fmt.Sprintf("cue %q has been open for %s, exceeding %s", id, now.Sub(openedAt), cfg.Scte35UnclosedTimeout),
			Details: map[string]any{"cue_id": id, "open_duration_seconds": now.Sub(openedAt).Seconds()},
		})
	}
	return out
}

// Scte35MissingContinuation flags a cue that was open in the prior window
// but disappears from the new window without a CUE-IN or CUE-OUT-CONT for
// the same id.
func Scte35MissingContinuation(old Snapshot, pl *playlist.Playlist, cfg Config) []Result {
	if !cfg.Scte35Enabled || len(old.OpenCues) == 0 {
		return nil
	}
	continued := make(map[string]bool)
	for _, seg := range pl.Segments {
		if seg.CueOut || seg.CueIn || seg.CueOutCont {
			continued[cueKey(seg)] = true
		}
	}
	var out []Result
	for id := range old.OpenCues {
		if continued[id] {
			continue
		}
		out = append(out, Result{
			Kind:    finding.KindScte35MissingContinuation,
			Message: fmt.Sprintf("cue %q was open but has no CUE-IN or CUE-OUT-CONT in the new window", id),
			Details: map[string]any{"cue_id": id},
		})
	}
	return out
}
