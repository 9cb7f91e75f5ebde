// Package feed turns a polled HTML snapshot of a chat feed into an ordered
// list of translatable message candidates.
//
// feed discovers, it does not translate. Each discovery pass parses the host
// tree, enumerates message containers in document order, resolves a stable
// identifier per message, and exposes extraction rules that reduce a message
// subtree to translatable plain text (or signal that there is nothing to
// translate). The engine package owns everything stateful: dedup, lifecycle,
// scheduling.
//
// All functions here are pure over the parsed tree — re-parsing the same
// snapshot yields the same candidates, IDs, and extracted texts.
package feed

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Selectors describe the structural markers of the host chat tree. Class
// selectors match by token prefix because hosts commonly suffix class names
// with build hashes (e.g. "message-2qnXI6").
type Selectors struct {
	// Message matches a top-level message container.
	Message []string
	// Quote matches quoted/reply substructures inside a message.
	Quote []string
	// Embed matches embed/preview/accessory substructures.
	Embed []string
	// Code matches code containers beyond <pre> and <code>.
	Code []string
	// IDAttr is the attribute carrying a composite scope/message identifier
	// on the message node or an ancestor.
	IDAttr string
	// ScopeTitle matches the node whose text identifies the current scope
	// when no structured scope id is available.
	ScopeTitle []string
	// OffscreenAttr marks nodes the snapshot producer determined to be
	// outside the viewport. Set by rodfeed's snapshot script.
	OffscreenAttr string
	// MinTextLen is the minimum rune count of extracted text that is worth
	// translating. Shorter results are reported as empty.
	MinTextLen int
}

// DefaultSelectors returns selectors matching common chat markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Message:       []string{"message", "chat-message"},
		Quote:         []string{"quote", "reply", "repliedMessage"},
		Embed:         []string{"embed", "accessory", "attachment"},
		Code:          []string{"codeBlock", "inlineCode", "hljs"},
		IDAttr:        "data-list-item-id",
		ScopeTitle:    []string{"channel-title", "title"},
		OffscreenAttr: "data-lingo-offscreen",
		MinTextLen:    2,
	}
}

func (s *Selectors) defaults() {
	d := DefaultSelectors()
	if len(s.Message) == 0 {
		s.Message = d.Message
	}
	if len(s.Quote) == 0 {
		s.Quote = d.Quote
	}
	if len(s.Embed) == 0 {
		s.Embed = d.Embed
	}
	if len(s.Code) == 0 {
		s.Code = d.Code
	}
	if s.IDAttr == "" {
		s.IDAttr = d.IDAttr
	}
	if len(s.ScopeTitle) == 0 {
		s.ScopeTitle = d.ScopeTitle
	}
	if s.OffscreenAttr == "" {
		s.OffscreenAttr = d.OffscreenAttr
	}
	if s.MinTextLen <= 0 {
		s.MinTextLen = d.MinTextLen
	}
}

// Candidate is one discovered message node.
type Candidate struct {
	// Node is a non-owning reference into the parsed snapshot tree. It is
	// only valid until the next snapshot replaces the tree.
	Node *html.Node
	// ID is the stable message identifier (see ResolveID).
	ID string
	// Ordinal is the document-order index among all candidates in this pass.
	Ordinal int
	// Visible reports whether the node was inside the viewport and not
	// hidden at snapshot time. Only visible candidates may be offered.
	Visible bool
}

// Snapshot is the result of one discovery pass over a parsed tree.
type Snapshot struct {
	// ScopeKey identifies the channel/conversation the candidates belong to.
	ScopeKey string
	// Candidates are in document order, top to bottom.
	Candidates []Candidate
}

// Parse parses snapshot HTML and discovers candidates. location is the
// host's navigable location (used for structured scope resolution); it may
// be empty.
func Parse(snapshotHTML, location string, sel Selectors) (*Snapshot, error) {
	doc, err := html.Parse(strings.NewReader(snapshotHTML))
	if err != nil {
		return nil, err
	}
	return Discover(doc, location, sel), nil
}

// Discover enumerates message candidates in document order and resolves the
// scope key. Messages inside quote or embed containers are excluded from
// top-level discovery entirely: their content is only ever reached, if at
// all, through the enclosing message's extraction.
func Discover(doc *html.Node, location string, sel Selectors) *Snapshot {
	sel.defaults()

	snap := &Snapshot{ScopeKey: ResolveScope(doc, location, sel)}

	// sibOrdinals counts candidates per parent for fallback identity.
	sibOrdinals := make(map[*html.Node]int)

	var walk func(n *html.Node, inExcluded bool)
	walk = func(n *html.Node, inExcluded bool) {
		if n.Type == html.ElementNode {
			if isQuoteNode(n, sel) || isEmbedNode(n, sel) {
				inExcluded = true
			}
			if !inExcluded && isMessageNode(n, sel) {
				sib := sibOrdinals[n.Parent]
				sibOrdinals[n.Parent] = sib + 1
				snap.Candidates = append(snap.Candidates, Candidate{
					Node:    n,
					ID:      ResolveID(n, sib, sel),
					Ordinal: len(snap.Candidates),
					Visible: isVisible(n, sel),
				})
				// Do not descend: nested message markup inside a message
				// (quoted previews) belongs to this candidate.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inExcluded)
		}
	}
	walk(doc, false)

	return snap
}

// ScopeUnknown is the sentinel scope key when neither a structured
// identifier nor a title node is available.
const ScopeUnknown = "unknown"

// ResolveScope determines the current scope key. Preference order:
// a path segment parsed from the navigable location, then a hash of the
// scope-title node's text, then ScopeUnknown.
func ResolveScope(doc *html.Node, location string, sel Selectors) string {
	sel.defaults()

	if seg := lastPathSegment(location); seg != "" {
		return seg
	}

	if title := findFirstByClass(doc, sel.ScopeTitle); title != nil {
		text := strings.TrimSpace(collectText(title, func(*html.Node) bool { return false }))
		if text != "" {
			return "title:" + shortHash(text)
		}
	}

	return ScopeUnknown
}

// lastPathSegment extracts the final non-empty path segment of a location
// like "https://host/app/channels/123/456" → "456". Query and fragment are
// ignored.
func lastPathSegment(location string) string {
	if location == "" {
		return ""
	}
	s := location
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		// Drop the host.
		if j := strings.IndexByte(s, '/'); j >= 0 {
			s = s[j:]
		} else {
			return ""
		}
	}
	s = strings.Trim(s, "/")
	if s == "" {
		return ""
	}
	segs := strings.Split(s, "/")
	return segs[len(segs)-1]
}

// ---------- tree helpers ----------

func attrVal(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// hasClassPrefix reports whether any class token of n starts with any of the
// given prefixes.
func hasClassPrefix(n *html.Node, prefixes []string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	cls, ok := attrVal(n, "class")
	if !ok {
		return false
	}
	for _, tok := range strings.Fields(cls) {
		for _, p := range prefixes {
			if strings.HasPrefix(tok, p) {
				return true
			}
		}
	}
	return false
}

func isMessageNode(n *html.Node, sel Selectors) bool {
	return hasClassPrefix(n, sel.Message)
}

func isQuoteNode(n *html.Node, sel Selectors) bool {
	if n.Type == html.ElementNode && n.DataAtom == atom.Blockquote {
		return true
	}
	return hasClassPrefix(n, sel.Quote)
}

func isEmbedNode(n *html.Node, sel Selectors) bool {
	switch n.DataAtom {
	case atom.Img, atom.Video, atom.Audio, atom.Iframe, atom.Object, atom.Embed:
		return true
	}
	return hasClassPrefix(n, sel.Embed)
}

func isCodeNode(n *html.Node, sel Selectors) bool {
	switch n.DataAtom {
	case atom.Pre, atom.Code:
		return true
	}
	return hasClassPrefix(n, sel.Code)
}

// isVisible reports whether n is neither hidden by the host markup nor
// stamped offscreen by the snapshot producer.
func isVisible(n *html.Node, sel Selectors) bool {
	if _, off := attrVal(n, sel.OffscreenAttr); off {
		return false
	}
	if _, hidden := attrVal(n, "hidden"); hidden {
		return false
	}
	if v, ok := attrVal(n, "aria-hidden"); ok && v == "true" {
		return false
	}
	if hasHiddenStyle(n) {
		return false
	}
	return true
}

func findFirstByClass(n *html.Node, prefixes []string) *html.Node {
	if hasClassPrefix(n, prefixes) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirstByClass(c, prefixes); found != nil {
			return found
		}
	}
	return nil
}
