package playlist

import "testing"

func TestParse_MediaPlaylist(t *testing.T) {
	text := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:100
#EXTINF:9.9,
a.ts
#EXTINF:10.0,
b.ts
#EXTINF:10.1,
c.ts
`
	p, err := Parse(text, "https://example.com/live/index.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Kind != KindMedia {
		t.Fatalf("expected KindMedia, got %v", p.Kind)
	}
	if p.MediaSequenceBase != 100 {
		t.Errorf("expected media sequence 100, got %d", p.MediaSequenceBase)
	}
	if len(p.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(p.Segments))
	}
	want := "https://example.com/live/a.ts"
	if p.Segments[0].URI != want {
		t.Errorf("expected resolved URI %s, got %s", want, p.Segments[0].URI)
	}
}

func TestParse_MasterPlaylist(t *testing.T) {
	text := `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=640x360,CODECS="avc1.4d401f,mp4a.40.2"
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2560000,RESOLUTION=1280x720
high/index.m3u8
`
	p, err := Parse(text, "https://example.com/master.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Kind != KindMaster {
		t.Fatalf("expected KindMaster, got %v", p.Kind)
	}
	if len(p.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(p.Variants))
	}
	if p.Variants[0].Bandwidth != 1280000 {
		t.Errorf("expected bandwidth 1280000, got %d", p.Variants[0].Bandwidth)
	}
	if p.Variants[0].URL != "https://example.com/low/index.m3u8" {
		t.Errorf("unexpected resolved variant URL: %s", p.Variants[0].URL)
	}
}

func TestParse_MasterWithSegmentsIsTreatedAsMedia(t *testing.T) {
	// §4.1: a playlist with both EXT-X-STREAM-INF and segment URIs is a
	// media playlist; the variant descriptor is ignored.
	text := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1000000
#EXTINF:6.0,
seg0.ts
`
	p, err := Parse(text, "https://example.com/weird.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Kind != KindMedia {
		t.Errorf("expected KindMedia, got %v", p.Kind)
	}
	if len(p.Variants) != 0 {
		t.Errorf("expected variants to be ignored, got %d", len(p.Variants))
	}
}

func TestParse_MissingExtM3U(t *testing.T) {
	_, err := Parse("#EXT-X-VERSION:3\n", "https://example.com/x.m3u8")
	var perr *ParseError
	if !asParseError(err, &perr) || perr.Kind != ErrNotAPlaylist {
		t.Fatalf("expected NotAPlaylist, got %v", err)
	}
}

func TestParse_UnterminatedExtInf(t *testing.T) {
	text := `#EXTM3U
#EXTINF:5.0,
`
	_, err := Parse(text, "https://example.com/x.m3u8")
	var perr *ParseError
	if !asParseError(err, &perr) || perr.Kind != ErrUnterminatedExtInf {
		t.Fatalf("expected UnterminatedExtInf, got %v", err)
	}
}

func TestParse_GapAndDiscontinuityFlags(t *testing.T) {
	text := `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-DISCONTINUITY
#EXTINF:6.0,
a.ts
#EXT-X-GAP
#EXTINF:6.0,
b.ts
`
	p, err := Parse(text, "https://example.com/x.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.Segments[0].Discontinuity {
		t.Error("expected first segment to carry discontinuity flag")
	}
	if !p.Segments[1].Gap {
		t.Error("expected second segment to carry gap flag")
	}
}

func TestParse_Scte35CueTags(t *testing.T) {
	text := `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-CUE-OUT:30
#EXTINF:6.0,
a.ts
#EXT-X-CUE-IN
#EXTINF:6.0,
b.ts
`
	p, err := Parse(text, "https://example.com/x.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !p.Segments[0].CueOut {
		t.Error("expected first segment to carry CueOut")
	}
	if !p.Segments[1].CueIn {
		t.Error("expected second segment to carry CueIn")
	}
}

func TestParse_DateRangeMissingFieldsIsLenient(t *testing.T) {
	text := `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-DATERANGE:CLASS="ad"
#EXTINF:6.0,
a.ts
`
	p, err := Parse(text, "https://example.com/x.m3u8")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Segments[0].DateRanges) != 1 {
		t.Fatalf("expected 1 date range, got %d", len(p.Segments[0].DateRanges))
	}
	dr := p.Segments[0].DateRanges[0]
	if dr.ID != "" || dr.HasStart {
		t.Errorf("expected missing ID/START-DATE to be preserved as absent, got %+v", dr)
	}
}

// asParseError is a small helper since the stdlib errors.As requires the
// target to be addressable to the concrete type.
func asParseError(err error, target **ParseError) bool {
	pe, ok := err.(*ParseError)
	if !ok {
		return false
	}
	*target = pe
	return true
}
