package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// maxAncestorDepth bounds the ancestor walk when resolving a structural
// identifier. Deep enough for list-item wrappers, shallow enough to never
// cross into an unrelated container.
const maxAncestorDepth = 8

// ResolveID computes a stable identifier for a message node. It returns the
// same value for the same logical message across repeated discovery passes,
// even when the host re-renders the subtree.
//
// It first walks ancestors (bounded) for a structurally-provided composite
// identifier attribute. When none exists it falls back to FallbackID.
func ResolveID(n *html.Node, siblingOrdinal int, sel Selectors) string {
	sel.defaults()

	cur := n
	for depth := 0; cur != nil && depth < maxAncestorDepth; depth++ {
		if v, ok := attrVal(cur, sel.IDAttr); ok && v != "" {
			return v
		}
		if v, ok := attrVal(cur, "id"); ok && v != "" {
			return v
		}
		cur = cur.Parent
	}

	text := strings.TrimSpace(collectText(n, func(*html.Node) bool { return false }))
	return FallbackID(text, siblingOrdinal)
}

// FallbackID derives a content-based identifier: a hash of the trimmed text
// combined with the node's ordinal position among sibling candidates at
// discovery time.
//
// Fallback IDs are weaker than structural ones: two simultaneously-visible
// messages with identical trimmed text and the same sibling position after a
// re-render can collide. This is an accepted, bounded limitation of
// content-derived identity, not masked here.
func FallbackID(trimmedText string, siblingOrdinal int) string {
	return fmt.Sprintf("fb:%s:%d", shortHash(trimmedText), siblingOrdinal)
}

// shortHash returns the first 16 hex chars of SHA-256.
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
