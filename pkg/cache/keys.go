package cache

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// GenerateKey joins a prefix and id into a namespaced cache key.
func GenerateKey(prefix, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams builds a colon-separated key from a prefix and any
// number of parameters.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		b.WriteByte(':')
		fmt.Fprintf(&b, "%v", p)
	}
	return b.String()
}

// HashKey collapses an unbounded input, such as a raw query string, into a
// short fixed-width key segment.
func HashKey(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
