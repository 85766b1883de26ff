package engine

import "github.com/brinkwave/hlswatch/internal/finding"

// ring is a bounded FIFO of findings. Overflow drops the oldest entry and
// increments dropped rather than emitting a finding for the drop itself
// (§3 invariants).
type ring struct {
	capacity int
	entries  []finding.Finding
	dropped  int
}

func newRing(capacity int) *ring {
	return &ring{capacity: capacity}
}

func (r *ring) push(f finding.Finding) {
	if len(r.entries) >= r.capacity {
		r.entries = r.entries[1:]
		r.dropped++
	}
	r.entries = append(r.entries, f)
}

// snapshot returns a copy of the ring's current contents; no shared
// reference escapes (§6).
func (r *ring) snapshot() []finding.Finding {
	out := make([]finding.Finding, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *ring) clear() {
	r.entries = nil
}
