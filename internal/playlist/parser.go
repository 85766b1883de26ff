package playlist

import (
	"bufio"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Parse parses the text of an HLS manifest fetched from playlistURL into a
// typed Playlist. Segment and variant URIs are resolved against
// playlistURL.
func Parse(text string, playlistURL string) (*Playlist, error) {
	base, baseErr := url.Parse(playlistURL)

	p := &Playlist{}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		lineNo          int
		sawM3U          bool
		sawAnyLine      bool
		sawVariantTag   bool
		sawSegmentURI   bool
		pendingVariant  *VariantRef
		pendingSegment  *Segment
		pendingDateRanges []DateRange
		nextDiscontinuity bool
		nextGap           bool
	)

	resolve := func(ref string) string {
		if baseErr != nil || base == nil {
			return ref
		}
		rel, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return base.ResolveReference(rel).String()
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawAnyLine {
			sawAnyLine = true
			if line != "#EXTM3U" {
				return nil, newParseError(ErrNotAPlaylist, lineNo, "first non-empty line is not #EXTM3U")
			}
			sawM3U = true
			continue
		}

		switch {
		case line == "#EXTM3U":
			// tolerated if repeated; only the first line is required.
			continue

		case strings.HasPrefix(line, "#EXT-X-VERSION:"):
			v, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-VERSION:"))
			if err != nil {
				return nil, newParseError(ErrMalformedTag, lineNo, "EXT-X-VERSION: %v", err)
			}
			p.Version = v
			p.HasVersion = true

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			v, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			if err != nil {
				return nil, newParseError(ErrMalformedTag, lineNo, "EXT-X-TARGETDURATION: %v", err)
			}
			p.TargetDuration = v

		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			v, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"))
			if err != nil {
				return nil, newParseError(ErrMalformedTag, lineNo, "EXT-X-MEDIA-SEQUENCE: %v", err)
			}
			p.MediaSequenceBase = v

		case strings.HasPrefix(line, "#EXT-X-DISCONTINUITY-SEQUENCE:"):
			v, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-DISCONTINUITY-SEQUENCE:"))
			if err != nil {
				return nil, newParseError(ErrMalformedTag, lineNo, "EXT-X-DISCONTINUITY-SEQUENCE: %v", err)
			}
			p.DiscontinuitySequenceBase = v

		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:"):
			switch strings.TrimPrefix(line, "#EXT-X-PLAYLIST-TYPE:") {
			case "VOD":
				p.PlaylistType = PlaylistTypeVOD
			case "EVENT":
				p.PlaylistType = PlaylistTypeEvent
			default:
				return nil, newParseError(ErrMalformedTag, lineNo, "unrecognized EXT-X-PLAYLIST-TYPE value")
			}

		case line == "#EXT-X-ENDLIST":
			p.IsEndlist = true

		case line == "#EXT-X-DISCONTINUITY":
			nextDiscontinuity = true

		case line == "#EXT-X-GAP":
			nextGap = true

		case strings.HasPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:"):
			raw := strings.TrimPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:")
			t, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return nil, newParseError(ErrMalformedTag, lineNo, "EXT-X-PROGRAM-DATE-TIME: %v", err)
			}
			if pendingSegment == nil {
				pendingSegment = &Segment{}
			}
			pendingSegment.ProgramDateTime = t
			pendingSegment.HasProgramDate = true

		case strings.HasPrefix(line, "#EXT-X-DATERANGE:"):
			attrs := parseAttrList(strings.TrimPrefix(line, "#EXT-X-DATERANGE:"))
			pendingDateRanges = append(pendingDateRanges, buildDateRange(attrs))

		case strings.HasPrefix(line, "#EXT-X-CUE-OUT-CONT"):
			if pendingSegment == nil {
				pendingSegment = &Segment{}
			}
			pendingSegment.CueOutCont = true
			if attrs := parseAttrList(line); attrs["ID"] != "" {
				pendingSegment.CueID = attrs["ID"]
				pendingSegment.HasCueID = true
			}

		case strings.HasPrefix(line, "#EXT-X-CUE-OUT"):
			if pendingSegment == nil {
				pendingSegment = &Segment{}
			}
			pendingSegment.CueOut = true
			if attrs := parseAttrList(line); attrs["ID"] != "" {
				pendingSegment.CueID = attrs["ID"]
				pendingSegment.HasCueID = true
			}

		case strings.HasPrefix(line, "#EXT-X-CUE-IN"):
			if pendingSegment == nil {
				pendingSegment = &Segment{}
			}
			pendingSegment.CueIn = true
			if attrs := parseAttrList(line); attrs["ID"] != "" {
				pendingSegment.CueID = attrs["ID"]
				pendingSegment.HasCueID = true
			}

		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			sawVariantTag = true
			attrs := parseAttrList(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			v := &VariantRef{}
			if bw, err := strconv.Atoi(attrs["BANDWIDTH"]); err == nil {
				v.Bandwidth = bw
			}
			v.Codecs = attrs["CODECS"]
			v.Resolution = attrs["RESOLUTION"]
			v.GroupAudio = attrs["AUDIO"]
			v.GroupVideo = attrs["VIDEO"]
			pendingVariant = v

		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			// Rendition grouping metadata; not modeled beyond acknowledgment.
			continue

		case strings.HasPrefix(line, "#EXTINF:"):
			rest := strings.TrimPrefix(line, "#EXTINF:")
			durStr := rest
			if idx := strings.IndexByte(rest, ','); idx >= 0 {
				durStr = rest[:idx]
			}
			dur, err := strconv.ParseFloat(durStr, 64)
			if err != nil {
				return nil, newParseError(ErrMalformedTag, lineNo, "EXTINF: %v", err)
			}
			if pendingSegment == nil {
				pendingSegment = &Segment{}
			}
			pendingSegment.Duration = dur

		case strings.HasPrefix(line, "#"):
			p.RawUnknownTags = append(p.RawUnknownTags, line)

		default:
			// A bare line: either a variant playlist URI (follows
			// EXT-X-STREAM-INF) or a segment URI (follows EXTINF).
			// A pending EXTINF takes precedence: a URI after both tags is a
			// segment, and the unmatched variant descriptor is discarded.
			switch {
			case pendingSegment != nil:
				pendingVariant = nil
				seg := pendingSegment
				seg.URI = resolve(line)
				seg.Discontinuity = nextDiscontinuity
				seg.Gap = nextGap
				seg.DateRanges = pendingDateRanges
				nextDiscontinuity = false
				nextGap = false
				pendingDateRanges = nil
				p.Segments = append(p.Segments, *seg)
				pendingSegment = nil
				sawSegmentURI = true
			case pendingVariant != nil:
				pendingVariant.URL = resolve(line)
				p.Variants = append(p.Variants, *pendingVariant)
				pendingVariant = nil
			default:
				return nil, newParseError(ErrMalformedTag, lineNo, "unexpected URI line with no preceding EXTINF or EXT-X-STREAM-INF")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !sawM3U {
		return nil, newParseError(ErrNotAPlaylist, 0, "empty input")
	}
	if pendingSegment != nil {
		return nil, newParseError(ErrUnterminatedExtInf, lineNo, "EXTINF without a following URI")
	}
	if pendingVariant != nil {
		return nil, newParseError(ErrMalformedTag, lineNo, "EXT-X-STREAM-INF without a following URI")
	}

	// A playlist with both EXT-X-STREAM-INF and segment URIs is a media
	// playlist; variant descriptors are ignored (§4.1).
	if sawSegmentURI {
		p.Kind = KindMedia
		p.Variants = nil
	} else if sawVariantTag {
		p.Kind = KindMaster
	} else {
		p.Kind = KindMedia
	}

	return p, nil
}

// buildDateRange best-effort parses an EXT-X-DATERANGE attribute list.
// Missing or inconsistent required fields (ID, START-DATE, a DURATION that
// disagrees with END-DATE) are not parse failures: the DateRangeViolation
// check inspects the Has* flags below and reports them as findings, per
// §4.2's distinction between parse errors and findings.
func buildDateRange(attrs map[string]string) DateRange {
	dr := DateRange{ID: attrs["ID"], Class: attrs["CLASS"]}

	if startRaw, ok := attrs["START-DATE"]; ok {
		if start, err := time.Parse(time.RFC3339Nano, startRaw); err == nil {
			dr.Start = start
			dr.HasStart = true
		}
	}
	if durRaw, ok := attrs["DURATION"]; ok {
		if d, err := strconv.ParseFloat(durRaw, 64); err == nil {
			dr.Duration = d
			dr.HasDur = true
		}
	}
	if endRaw, ok := attrs["END-DATE"]; ok {
		if end, err := time.Parse(time.RFC3339Nano, endRaw); err == nil {
			dr.End = end
			dr.HasEnd = true
		}
	}
	return dr
}
