package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/brinkwave/hlswatch/internal/checks"
	"github.com/brinkwave/hlswatch/internal/finding"
	"github.com/brinkwave/hlswatch/internal/playlist"
	"github.com/brinkwave/hlswatch/internal/state"
	"github.com/brinkwave/hlswatch/internal/variant"
)

// pollCycle runs §4.4 steps 2-4 once: resolve each stream's variants, fan
// the variant fetches out through the per-monitor semaphore, feed each
// fresh playlist into its variant state, then run the cross-variant
// checks. When checkStale is false (poll_once) the staleness check is
// skipped, matching §4.4's description of the shared entry point.
func (m *Monitor) pollCycle(ctx context.Context, checkStale bool) []finding.Finding {
	m.mu.Lock()
	streams := make([]*stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	cfg := m.cfg
	m.mu.Unlock()

	sort.Slice(streams, func(i, j int) bool { return streams[i].id < streams[j].id })

	now := m.clock.Now()
	cc := m.checksConfig()
	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrentFetches))

	var findings []finding.Finding

	for _, s := range streams {
		findings = append(findings, m.pollStream(ctx, s, sem, cfg, cc, now)...)
		if ctx.Err() != nil {
			return nil
		}
	}

	if checkStale {
		for _, s := range streams {
			for _, key := range orderedVariantKeys(s) {
				ve := s.variants[key]
				id := state.VariantIdentity(m.id, s.id, key)
				findings = append(findings, ve.state.CheckStale(now, id, cc)...)
			}
		}
	}

	for _, s := range streams {
		for _, key := range orderedVariantKeys(s) {
			ve := s.variants[key]
			id := state.VariantIdentity(m.id, s.id, key)
			findings = append(findings, ve.state.CheckUnclosedCues(now, id, cc)...)
		}
	}

	for _, s := range streams {
		findings = append(findings, m.variantSyncDrift(s, cc, now)...)
	}

	return findings
}

// pollStream resolves one stream's master playlist into its set of
// variants, fetches each through the shared semaphore, and rolls every
// result into its variant state in discovery order.
func (m *Monitor) pollStream(ctx context.Context, s *stream, sem *semaphore.Weighted, cfg Config, cc checks.Config, now time.Time) []finding.Finding {
	var findings []finding.Finding

	resp, fetchErr := m.fetcher.Fetch(ctx, s.url, cfg.RequestTimeout)

	var masterPlaylist *playlist.Playlist
	if fetchErr == nil {
		masterPlaylist, fetchErr = playlist.Parse(string(resp.Body), s.url)
	}

	var desired []variant.Variant
	var directContent *playlist.Playlist // set when the stream URL is itself a media playlist
	var reuseFailedKey string // set to s.url when its fetch above already failed, so the
	var reuseFailedErr error  // fan-out below doesn't poll it a second time (§3: no
	// variant is polled more than once per cycle).
	switch {
	case fetchErr != nil:
		// Master resolution failed; keep polling the previously known
		// variant set (if any) rather than tearing it down on a transient
		// error.
		m.mu.Lock()
		for _, ve := range s.variants {
			desired = append(desired, ve.v)
		}
		m.mu.Unlock()
		if len(desired) == 0 {
			// No previously known variants to fall back on: there is
			// nothing to fan fetches out to, so report the failure at
			// stream scope instead of silently producing no findings.
			id := state.Identity{MonitorID: m.id, StreamID: &s.id}
			findings = append(findings, id.Wrap(now, checks.Result{
				Kind:    finding.KindFetchError,
				Message: fetchErr.Error(),
				Details: map[string]any{"reason": fetchErr.Error()},
			}))
			return findings
		}
		for _, v := range desired {
			if v.URL == s.url {
				reuseFailedKey, reuseFailedErr = s.url, fetchErr
				break
			}
		}
	case masterPlaylist.Kind == playlist.KindMaster:
		for _, vr := range masterPlaylist.Variants {
			desired = append(desired, variant.Variant{
				StreamID:   s.id,
				URL:        vr.URL,
				Bandwidth:  vr.Bandwidth,
				Codecs:     vr.Codecs,
				Resolution: vr.Resolution,
			})
		}
	default:
		// The stream URL resolved directly to a media playlist: a
		// synthetic single variant at the stream's own URL (§3).
		desired = []variant.Variant{{StreamID: s.id, URL: s.url}}
		directContent = masterPlaylist
	}

	refreshed := m.reconcileVariants(s, desired, now)
	if refreshed {
		id := state.Identity{MonitorID: m.id, StreamID: &s.id}
		findings = append(findings, id.Wrap(now, checks.Result{
			Kind:    finding.KindMasterRefreshed,
			Message: "master playlist variant set changed",
			Details: map[string]any{"stream_id": s.id, "variant_count": len(desired)},
		}))
	}

	order := orderedVariantKeys(s)

	type fetchOutcome struct {
		key string
		pl  *playlist.Playlist
		err error
	}
	results := make([]fetchOutcome, len(order))

	var wg sync.WaitGroup
	for i, key := range order {
		if directContent != nil {
			results[i] = fetchOutcome{key: key, pl: directContent}
			continue
		}
		if key == reuseFailedKey {
			results[i] = fetchOutcome{key: key, err: reuseFailedErr}
			continue
		}
		i, key := i, key
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = fetchOutcome{key: key, err: err}
				return
			}
			defer sem.Release(1)

			resp, err := m.fetcher.Fetch(ctx, key, cfg.RequestTimeout)
			if err != nil {
				results[i] = fetchOutcome{key: key, err: err}
				return
			}
			pl, err := playlist.Parse(string(resp.Body), key)
			results[i] = fetchOutcome{key: key, pl: pl, err: err}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}

	for _, r := range results {
		m.mu.Lock()
		ve := s.variants[r.key]
		m.mu.Unlock()
		if ve == nil {
			continue
		}
		id := state.VariantIdentity(m.id, s.id, r.key)
		findings = append(findings, ve.state.Update(now, id, cc, r.pl, r.err)...)
	}

	return findings
}

// reconcileVariants replaces a stream's variant set with desired, dropping
// state for removed variants and creating fresh state for new ones. It
// reports whether the set of URLs changed, which drives MasterRefreshed.
func (m *Monitor) reconcileVariants(s *stream, desired []variant.Variant, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	desiredKeys := make(map[string]bool, len(desired))
	for _, v := range desired {
		desiredKeys[v.URL] = true
	}

	changed := len(desiredKeys) != len(s.variants)
	for key := range s.variants {
		if !desiredKeys[key] {
			delete(s.variants, key)
			changed = true
		}
	}

	for _, v := range desired {
		if existing, ok := s.variants[v.URL]; ok {
			existing.v = v
			continue
		}
		s.variants[v.URL] = &variantEntry{v: v, state: state.New(now)}
		changed = true
	}

	return changed
}

func orderedVariantKeys(s *stream) []string {
	keys := make([]string, 0, len(s.variants))
	for k := range s.variants {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// variantSyncDrift compares the current media_sequence_base of every
// variant in a stream, per §4.4 step 4.
func (m *Monitor) variantSyncDrift(s *stream, cc checks.Config, now time.Time) []finding.Finding {
	m.mu.Lock()
	mseqs := make(map[string]int)
	for key, ve := range s.variants {
		if ve.state.HasMediaSequence() {
			mseqs[key] = ve.state.MediaSequence()
		}
	}
	m.mu.Unlock()

	id := state.Identity{MonitorID: m.id, StreamID: &s.id}
	var out []finding.Finding
	for _, r := range checks.VariantSyncDrift(mseqs, cc) {
		out = append(out, id.Wrap(now, r))
	}
	return out
}
