package feed

import (
	"strings"
	"testing"
)

func TestResolveID_StructuralAttribute(t *testing.T) {
	c := messageNode(t, `<div class="message" data-list-item-id="chat-90210-777">hi there</div>`)
	if c.ID != "chat-90210-777" {
		t.Errorf("id = %q", c.ID)
	}
}

func TestResolveID_AncestorAttribute(t *testing.T) {
	// The identifier often lives on a list-item wrapper above the message
	// container.
	doc := parseDoc(t, `
		<li data-list-item-id="chat-90210-778">
			<div><div class="message">wrapped</div></div>
		</li>`)
	snap := Discover(doc, "", Selectors{})
	if len(snap.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(snap.Candidates))
	}
	if snap.Candidates[0].ID != "chat-90210-778" {
		t.Errorf("id = %q, want ancestor identifier", snap.Candidates[0].ID)
	}
}

func TestResolveID_StableAcrossReparse(t *testing.T) {
	// WHAT: re-parsing the same snapshot yields the same IDs.
	// WHY: dedup across discovery passes depends on identity stability.
	src := `<div class="message" id="msg-1">stable content</div>`

	a := messageNode(t, src)
	b := messageNode(t, src)
	if a.ID != b.ID {
		t.Errorf("ids differ across parses: %q vs %q", a.ID, b.ID)
	}
}

func TestResolveID_FallbackHashesContent(t *testing.T) {
	c := messageNode(t, `<div class="message">no identifiers anywhere</div>`)
	if !strings.HasPrefix(c.ID, "fb:") {
		t.Fatalf("id = %q, want fb: fallback", c.ID)
	}

	// Same text, same sibling position: same fallback ID. This is the
	// documented collision window for identical simultaneous messages.
	d := messageNode(t, `<div class="message">no identifiers anywhere</div>`)
	if c.ID != d.ID {
		t.Errorf("fallback not deterministic: %q vs %q", c.ID, d.ID)
	}

	// Different text: different ID.
	e := messageNode(t, `<div class="message">different words entirely</div>`)
	if e.ID == c.ID {
		t.Error("distinct texts produced the same fallback ID")
	}
}

func TestResolveID_FallbackUsesSiblingOrdinal(t *testing.T) {
	doc := parseDoc(t, `
		<div class="message">same text</div>
		<div class="message">same text</div>`)
	snap := Discover(doc, "", Selectors{})
	if len(snap.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(snap.Candidates))
	}
	if snap.Candidates[0].ID == snap.Candidates[1].ID {
		t.Error("sibling ordinal did not disambiguate identical texts")
	}
}
