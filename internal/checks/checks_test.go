package checks

import (
	"testing"
	"time"

	"github.com/brinkwave/hlswatch/internal/finding"
	"github.com/brinkwave/hlswatch/internal/playlist"
)

func mustParse(t *testing.T, text string) *playlist.Playlist {
	t.Helper()
	p, err := playlist.Parse(text, "https://example.com/live/index.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func findKind(results []Result, k finding.Kind) (Result, bool) {
	for _, r := range results {
		if r.Kind == k {
			return r, true
		}
	}
	return Result{}, false
}

// Scenario 1: regression (§8).
func TestMediaSequenceRegression_Scenario(t *testing.T) {
	old := Snapshot{HasMediaSequence: true, MediaSequence: 100}
	pl := mustParse(t, "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXT-X-MEDIA-SEQUENCE:98\n#EXTINF:6.0,\nx.ts\n#EXTINF:6.0,\ny.ts\n#EXTINF:6.0,\nz.ts\n")
	results := MediaSequenceRegression(old, pl, DefaultConfig())
	r, ok := findKind(results, finding.KindMediaSequenceRegression)
	if !ok {
		t.Fatal("expected MediaSequenceRegression")
	}
	if r.Details["expected"] != 100 || r.Details["observed"] != 98 {
		t.Errorf("unexpected details: %+v", r.Details)
	}
}

// Scenario 2: continuity break (§8).
func TestSegmentContinuityBreak_Scenario(t *testing.T) {
	old := Snapshot{
		HasMediaSequence: true,
		MediaSequence:    10,
		Window: []WindowSegment{
			{URI: "https://example.com/live/s10"}, {URI: "https://example.com/live/s11"}, {URI: "https://example.com/live/s12"},
		},
	}
	pl := mustParse(t, "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXT-X-MEDIA-SEQUENCE:11\n#EXTINF:6.0,\nsX\n#EXTINF:6.0,\ns12\n#EXTINF:6.0,\ns13\n")
	results := SegmentContinuityBreak(old, pl, DefaultConfig())
	r, ok := findKind(results, finding.KindSegmentContinuityBreak)
	if !ok {
		t.Fatal("expected SegmentContinuityBreak")
	}
	if r.Details["expected"] != "https://example.com/live/s11" || r.Details["observed"] != "https://example.com/live/sX" || r.Details["offset"] != 0 {
		t.Errorf("unexpected details: %+v", r.Details)
	}
}

// Scenario 3: target-duration exceeded (§8).
func TestTargetDurationExceeded_Scenario(t *testing.T) {
	pl := mustParse(t, "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:7.2,\na.ts\n")

	cfgTight := DefaultConfig()
	cfgTight.TargetDurationTolerance = 0.5
	if _, ok := findKind(TargetDurationExceeded(Snapshot{}, pl, cfgTight), finding.KindTargetDurationExceeded); !ok {
		t.Error("expected TargetDurationExceeded with tolerance 0.5")
	}

	cfgLoose := DefaultConfig()
	cfgLoose.TargetDurationTolerance = 1.5
	if _, ok := findKind(TargetDurationExceeded(Snapshot{}, pl, cfgLoose), finding.KindTargetDurationExceeded); ok {
		t.Error("expected no TargetDurationExceeded with tolerance 1.5")
	}
}

// Scenario 5: variant sync drift (§8).
func TestVariantSyncDrift_Scenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VariantSyncDriftThreshold = 3
	results := VariantSyncDrift(map[string]int{"a": 100, "b": 96}, cfg)
	r, ok := findKind(results, finding.KindVariantSyncDrift)
	if !ok {
		t.Fatal("expected VariantSyncDrift")
	}
	if r.Details["max_gap"] != 4 {
		t.Errorf("expected max_gap=4, got %+v", r.Details)
	}
}

// Scenario 6: SCTE-35 orphan CUE-IN (§8).
func TestScte35OrphanCueIn_Scenario(t *testing.T) {
	pl := mustParse(t, "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXT-X-CUE-IN\n#EXTINF:6.0,\na.ts\n")
	cfg := DefaultConfig()
	cfg.Scte35Enabled = true
	results := Scte35OrphanCueIn(Snapshot{}, pl, cfg)
	if _, ok := findKind(results, finding.KindScte35OrphanCueIn); !ok {
		t.Fatal("expected Scte35OrphanCueIn")
	}
}

func TestScte35OrphanCueIn_DisabledByConfig(t *testing.T) {
	pl := mustParse(t, "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXT-X-CUE-IN\n#EXTINF:6.0,\na.ts\n")
	results := Scte35OrphanCueIn(Snapshot{}, pl, DefaultConfig())
	if len(results) != 0 {
		t.Errorf("expected no results with scte35 disabled, got %+v", results)
	}
}

func TestPlaylistSizeShrankAndContentChanged(t *testing.T) {
	old := Snapshot{
		HasMediaSequence: true,
		MediaSequence:    5,
		Window:           []WindowSegment{{URI: "https://example.com/live/a.ts"}, {URI: "https://example.com/live/b.ts"}, {URI: "https://example.com/live/c.ts"}},
	}
	pl := mustParse(t, "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXT-X-MEDIA-SEQUENCE:5\n#EXTINF:6.0,\na.ts\n#EXTINF:6.0,\nd.ts\n")
	if _, ok := findKind(PlaylistSizeShrank(old, pl, DefaultConfig()), finding.KindPlaylistSizeShrank); !ok {
		t.Error("expected PlaylistSizeShrank")
	}
	if _, ok := findKind(PlaylistContentChanged(old, pl, DefaultConfig()), finding.KindPlaylistContentChanged); !ok {
		t.Error("expected PlaylistContentChanged")
	}
}

func TestProgramDateTimeJump(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pl := &playlist.Playlist{
		TargetDuration: 6,
		Segments: []playlist.Segment{
			{URI: "a.ts", Duration: 6, HasProgramDate: true, ProgramDateTime: base},
			{URI: "b.ts", Duration: 6, HasProgramDate: true, ProgramDateTime: base.Add(20 * time.Second)},
		},
	}
	if _, ok := findKind(ProgramDateTimeJump(Snapshot{}, pl, DefaultConfig()), finding.KindProgramDateTimeJump); !ok {
		t.Error("expected ProgramDateTimeJump")
	}
}

func TestDateRangeViolation_MissingID(t *testing.T) {
	pl := &playlist.Playlist{
		Segments: []playlist.Segment{
			{URI: "a.ts", DateRanges: []playlist.DateRange{{Class: "ad"}}},
		},
	}
	if _, ok := findKind(DateRangeViolation(Snapshot{}, pl, DefaultConfig()), finding.KindDateRangeViolation); !ok {
		t.Error("expected DateRangeViolation for missing ID")
	}
}

func TestVariantUnavailable_FiresOnlyOnTransition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VariantFailureThreshold = 3
	if results := VariantUnavailable(1, 2, cfg); len(results) != 0 {
		t.Errorf("expected no finding below threshold, got %+v", results)
	}
	if _, ok := findKind(VariantUnavailable(2, 3, cfg), finding.KindVariantUnavailable); !ok {
		t.Error("expected VariantUnavailable at the threshold transition")
	}
	if results := VariantUnavailable(3, 4, cfg); len(results) != 0 {
		t.Errorf("expected no repeat finding past the transition, got %+v", results)
	}
}
