// Package variant identifies HLS variant streams resolved from a monitor's
// master playlists.
package variant

// Variant identifies one variant media playlist within a stream, plus the
// descriptor fields carried by the master playlist's EXT-X-STREAM-INF entry
// (empty if the stream resolved directly to a media playlist with no
// master). Identity is the pair (StreamID, URL): the same absolute URL under
// two different streams is tracked as two independent variants.
type Variant struct {
	StreamID   string
	URL        string
	Bandwidth  int
	Codecs     string
	Resolution string
}

// Key is the comparable identity of a Variant. The engine does not use it:
// its per-stream variant maps are keyed by URL alone.
type Key struct {
	StreamID string
	URL      string
}

func (v Variant) Key() Key {
	return Key{StreamID: v.StreamID, URL: v.URL}
}
