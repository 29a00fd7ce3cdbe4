package codec

import (
	"slices"
	"strings"
)

const (
	HeaderContentLength    = "content-length"
	HeaderTransferEncoding = "transfer-encoding"

	chunked = "chunked"
)

// Header maps lowercase header names to values. Parsed headers keep the
// last value seen for a name.
type Header map[string]string

// Get returns the value for key, matched case-insensitively.
func (h Header) Get(key string) string {
	return h[strings.ToLower(key)]
}

// Lookup returns the value for key and whether it was present.
func (h Header) Lookup(key string) (string, bool) {
	v, ok := h[strings.ToLower(key)]
	return v, ok
}

// Has reports whether key is present.
func (h Header) Has(key string) bool {
	_, ok := h[strings.ToLower(key)]
	return ok
}

// Set stores value under the lowercased key.
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del removes key.
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Clone returns a copy of h.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// sortedKeys returns the header names in byte order, the order in which
// headers are written.
func (h Header) sortedKeys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (h Header) write(sb *strings.Builder) {
	for _, k := range h.sortedKeys() {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(h[k])
		sb.WriteString("\r\n")
	}
}
