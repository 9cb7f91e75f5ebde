package rodfeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/lingo/feed"
)

// markAttr anchors a message container across snapshots. Stamped once by the
// snapshot script and never rewritten, so Surface operations can address the
// live node even when the resolved message ID is a content-hash fallback.
const markAttr = "data-lingo-mark"

// snapshotJS stamps message containers and serialises the document.
//
// For every element whose class list has a token starting with one of the
// message prefixes: assign a persistent mark if missing, and set or clear the
// offscreen attribute from the element's current viewport intersection.
// Hosts virtualise their scrollback, so the off-viewport set changes every
// scroll; the attribute is recomputed per snapshot.
const snapshotJS = `(prefixes, markAttr, offAttr) => {
	let seq = window.__lingoMarkSeq || 0;
	const isMsg = (el) => {
		const cls = el.classList;
		for (const tok of cls) {
			for (const p of prefixes) {
				if (tok.startsWith(p)) return true;
			}
		}
		return false;
	};
	for (const el of document.querySelectorAll('[class]')) {
		if (!isMsg(el)) continue;
		if (!el.hasAttribute(markAttr)) {
			el.setAttribute(markAttr, String(++seq));
		}
		const r = el.getBoundingClientRect();
		const off = r.width === 0 || r.height === 0 ||
			r.bottom < 0 || r.top > window.innerHeight;
		if (off) {
			el.setAttribute(offAttr, '1');
		} else {
			el.removeAttribute(offAttr);
		}
	}
	window.__lingoMarkSeq = seq;
	return JSON.stringify({
		html: document.documentElement.outerHTML,
		location: window.location.href,
	});
}`

type pageSnapshot struct {
	HTML     string `json:"html"`
	Location string `json:"location"`
}

// Snapshot stamps the live DOM, serialises it, and discovers message
// candidates. Implements engine.Source.
func (s *Session) Snapshot(ctx context.Context) (*feed.Snapshot, error) {
	sel := s.cfg.Selectors
	d := feed.DefaultSelectors()
	if len(sel.Message) == 0 {
		sel.Message = d.Message
	}
	if sel.OffscreenAttr == "" {
		sel.OffscreenAttr = d.OffscreenAttr
	}

	res, err := s.page.Context(ctx).Eval(snapshotJS, sel.Message, markAttr, sel.OffscreenAttr)
	if err != nil {
		return nil, fmt.Errorf("rodfeed: snapshot eval: %w", err)
	}

	var ps pageSnapshot
	if err := json.Unmarshal([]byte(res.Value.Str()), &ps); err != nil {
		return nil, fmt.Errorf("rodfeed: snapshot decode: %w", err)
	}

	snap, err := feed.Parse(ps.HTML, ps.Location, sel)
	if err != nil {
		return nil, fmt.Errorf("rodfeed: snapshot parse: %w", err)
	}

	// Refresh the ID→mark table from the parsed candidates.
	marks := make(map[string]string, len(snap.Candidates))
	for i := range snap.Candidates {
		c := &snap.Candidates[i]
		for _, a := range c.Node.Attr {
			if a.Key == markAttr {
				marks[c.ID] = a.Val
				break
			}
		}
	}
	s.setMarks(marks)

	return snap, nil
}
