package playlist

import "regexp"

// reKeyValue tokenizes an HLS attribute list (the part after a tag's first
// colon), the way mogiioin-hls-m3u8/m3u8/reader.go's reKeyValue does:
// KEY=quoted-or-bare-value, comma separated, commas inside quotes ignored.
var reKeyValue = regexp.MustCompile(`([A-Za-z0-9_-]+)=("[^"]*"|[^",]+)`)

// parseAttrList splits an attribute-list string into a case-sensitive map of
// key to value, with surrounding quotes stripped.
func parseAttrList(s string) map[string]string {
	matches := reKeyValue.FindAllStringSubmatch(s, -1)
	attrs := make(map[string]string, len(matches))
	for _, m := range matches {
		key := m[1]
		val := m[2]
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = val[1 : len(val)-1]
		}
		attrs[key] = val
	}
	return attrs
}
