package feed

import (
	"errors"
	"testing"
)

// messageNode parses src and returns the first message candidate's node.
func messageNode(t *testing.T, src string) *Candidate {
	t.Helper()
	doc := parseDoc(t, src)
	snap := Discover(doc, "", Selectors{})
	if len(snap.Candidates) == 0 {
		t.Fatalf("no candidate in %q", src)
	}
	return &snap.Candidates[0]
}

func TestExtract_PlainText(t *testing.T) {
	c := messageNode(t, `<div class="message">Bonjour tout le monde</div>`)
	text, err := Extract(c.Node, Selectors{})
	if err != nil {
		t.Fatal(err)
	}
	if text != "Bonjour tout le monde" {
		t.Errorf("text = %q", text)
	}
}

func TestExtract_EditingFailsBeforeAnythingElse(t *testing.T) {
	// WHAT: a message whose subtree contains an editable region is
	// ineligible, even if it also has plain translatable text.
	// WHY: touching a message mid-edit would corrupt the user's input.
	cases := []string{
		`<div class="message">text <textarea>draft</textarea></div>`,
		`<div class="message">text <div contenteditable="true">draft</div></div>`,
		`<div class="message">text <input type="text"></div>`,
		`<div class="message">text <span role="textbox">draft</span></div>`,
	}
	for _, src := range cases {
		c := messageNode(t, src)
		if _, err := Extract(c.Node, Selectors{}); !errors.Is(err, ErrEditing) {
			t.Errorf("%s: err = %v, want ErrEditing", src, err)
		}
	}
}

func TestExtract_StripsQuotesEmbedsAndCode(t *testing.T) {
	c := messageNode(t, `
		<div class="message">
			<div class="quote-content">original quoted line</div>
			I agree with <code>doThing()</code> completely
			<div class="embed-card">link preview title</div>
			<pre>block of code</pre>
		</div>`)

	text, err := Extract(c.Node, Selectors{})
	if err != nil {
		t.Fatal(err)
	}
	if text != "I agree with completely" {
		t.Errorf("text = %q", text)
	}
}

func TestExtract_StripsURLs(t *testing.T) {
	c := messageNode(t, `<div class="message">look at https://example.com/a?b=c and www.example.org/x now</div>`)
	text, err := Extract(c.Node, Selectors{})
	if err != nil {
		t.Fatal(err)
	}
	if text != "look at and now" {
		t.Errorf("text = %q", text)
	}
}

func TestExtract_EmptyResults(t *testing.T) {
	cases := []string{
		`<div class="message"></div>`,
		`<div class="message">   </div>`,
		`<div class="message">https://only-a-link.example</div>`,
		`<div class="message"><pre>code only</pre></div>`,
		`<div class="message">!!!</div>`,
		`<div class="message">🔥</div>`,
	}
	for _, src := range cases {
		c := messageNode(t, src)
		if _, err := Extract(c.Node, Selectors{}); !errors.Is(err, ErrEmpty) {
			t.Errorf("%s: err = %v, want ErrEmpty", src, err)
		}
	}
}

func TestExtract_NormalizesWhitespace(t *testing.T) {
	c := messageNode(t, "<div class=\"message\">line one<br>line\n\ttwo</div>")
	text, err := Extract(c.Node, Selectors{})
	if err != nil {
		t.Fatal(err)
	}
	if text != "line one line two" {
		t.Errorf("text = %q", text)
	}
}

func TestPredicates(t *testing.T) {
	sel := Selectors{}

	quote := messageNode(t, `<div class="message"><blockquote>q</blockquote></div>`)
	if !IsQuote(quote.Node.FirstChild, sel) {
		t.Error("blockquote not recognised as quote")
	}

	embed := messageNode(t, `<div class="message"><img src="x.png"></div>`)
	if !IsEmbed(embed.Node.FirstChild, sel) {
		t.Error("img not recognised as embed")
	}

	code := messageNode(t, `<div class="message"><code>x</code></div>`)
	if !IsCode(code.Node.FirstChild, sel) {
		t.Error("code not recognised as code")
	}

	editing := messageNode(t, `<div class="message"><textarea></textarea></div>`)
	if !IsEditing(editing.Node) {
		t.Error("textarea subtree not recognised as editing")
	}
}
