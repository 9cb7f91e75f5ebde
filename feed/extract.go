package feed

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrEditing signals that the message is currently being edited by the user.
// Not an error condition: the caller must skip the message entirely this
// pass and leave it untouched.
var ErrEditing = errors.New("lingo/feed: message is being edited")

// ErrEmpty signals that the message has no translatable content after
// filtering. Not an error condition: the caller skips the message.
var ErrEmpty = errors.New("lingo/feed: no translatable content")

var urlPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
	regexp.MustCompile(`(?i)opacity\s*:\s*0[^.]`),
}

func hasHiddenStyle(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	style, ok := attrVal(n, "style")
	if !ok {
		return false
	}
	for _, pat := range hiddenStylePatterns {
		if pat.MatchString(style) {
			return true
		}
	}
	return false
}

// Extract reduces a message subtree to translatable plain text.
//
// Rules, in order: if the subtree contains an editable region the result is
// ErrEditing and the message must not be touched further this pass; quoted
// and reply substructures are dropped; embed and media substructures are
// dropped; code substructures (block and inline) are dropped — their content
// stays in the host and is never sent to translation; URLs are stripped from
// the remaining text; the result is whitespace-normalized and trimmed. Text
// that is empty, shorter than Selectors.MinTextLen, or made of nothing but
// punctuation and symbols yields ErrEmpty.
func Extract(n *html.Node, sel Selectors) (string, error) {
	sel.defaults()

	if IsEditing(n) {
		return "", ErrEditing
	}

	skip := func(c *html.Node) bool {
		return isQuoteNode(c, sel) || isEmbedNode(c, sel) || isCodeNode(c, sel)
	}

	text := collectText(n, skip)
	text = urlPattern.ReplaceAllString(text, " ")
	text = normalizeSpace(text)

	if !translatable(text, sel.MinTextLen) {
		return "", ErrEmpty
	}
	return text, nil
}

// IsEditing reports whether the subtree contains an editable region: a
// textarea, a text input, or a contenteditable/textbox element.
func IsEditing(n *html.Node) bool {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Textarea:
			return true
		case atom.Input:
			t, ok := attrVal(n, "type")
			if !ok || t == "text" || t == "search" {
				return true
			}
		}
		if v, ok := attrVal(n, "contenteditable"); ok && v != "false" {
			return true
		}
		if v, ok := attrVal(n, "role"); ok && v == "textbox" {
			return true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsEditing(c) {
			return true
		}
	}
	return false
}

// IsQuote reports whether n is a quoted/reply container.
func IsQuote(n *html.Node, sel Selectors) bool {
	sel.defaults()
	return isQuoteNode(n, sel)
}

// IsEmbed reports whether n is an embed/media/accessory container.
func IsEmbed(n *html.Node, sel Selectors) bool {
	sel.defaults()
	return isEmbedNode(n, sel)
}

// IsCode reports whether n is a code container (block or inline).
func IsCode(n *html.Node, sel Selectors) bool {
	sel.defaults()
	return isCodeNode(n, sel)
}

// collectText walks the subtree and concatenates text nodes, skipping
// script/style and any subtree for which skip returns true. Line-breaking
// elements contribute a space so adjacent words do not fuse.
func collectText(n *html.Node, skip func(*html.Node) bool) string {
	var b strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.Br, atom.P, atom.Div, atom.Li:
				b.WriteByte(' ')
			}
			if skip(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	return b.String()
}

// normalizeSpace collapses runs of whitespace into single spaces and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// translatable reports whether text is worth sending to the backend: at
// least minLen runes and at least one letter or digit (bare emoji and
// punctuation are not meaningfully translatable).
func translatable(text string, minLen int) bool {
	if len([]rune(text)) < minLen {
		return false
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}
