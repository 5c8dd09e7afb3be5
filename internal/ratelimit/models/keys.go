package models

import (
	"strings"
)

// CounterKey builds the flat key used by key-value counter stores.
// Both segments are escaped so a crafted identifier containing ':' cannot
// address another counter.
func CounterKey(prefix, identifier string, action Action) string {
	return prefix + ":" + sanitizeKeySegment(string(action)) + ":" + sanitizeKeySegment(identifier)
}

// sanitizeKeySegment escapes '_' as '__' and then ':' as '_c'. The mapping is
// injective, so distinct inputs never collide.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
