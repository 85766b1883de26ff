package engine

import (
	"github.com/brinkwave/hlswatch/internal/state"
	"github.com/brinkwave/hlswatch/internal/variant"
)

// stream is one master playlist URL plus its resolved variants, per §3.
type stream struct {
	id  string
	url string

	// variants maps a variant's URL to its descriptor and rolling state.
	// Keyed by URL alone (not variant.Key) since every entry already
	// belongs to this one stream.
	variants map[string]*variantEntry
}

type variantEntry struct {
	v     variant.Variant
	state *state.VariantState
}

func newStream(id, url string) *stream {
	return &stream{id: id, url: url, variants: make(map[string]*variantEntry)}
}
