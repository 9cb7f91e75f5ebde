package rodfeed

import (
	"context"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
)

// sanitizer strips any markup from translated text before it reaches the
// page. Translations are plain text by contract; a backend echoing HTML must
// not become an injection vector.
var sanitizer = bluemonday.StrictPolicy()

// offerJS appends the translate affordance to a message container. Clicks
// push the mark onto a page-global queue drained by DrainClicks; the engine
// side never registers page callbacks.
const offerJS = `(mark, markAttr) => {
	const el = document.querySelector('[' + markAttr + '="' + mark + '"]');
	if (!el) return false;
	if (el.querySelector('.lingo-trigger')) return true;
	const btn = document.createElement('button');
	btn.className = 'lingo-trigger';
	btn.type = 'button';
	btn.textContent = '訳';
	btn.style.cssText = 'margin-left:6px;font-size:11px;cursor:pointer;' +
		'opacity:0.6;background:none;border:1px solid currentColor;' +
		'border-radius:3px;padding:0 4px;';
	btn.addEventListener('click', (ev) => {
		ev.stopPropagation();
		(window.__lingoClicks = window.__lingoClicks || []).push(mark);
	});
	el.appendChild(btn);
	return true;
}`

const removeJS = `(mark, markAttr) => {
	const el = document.querySelector('[' + markAttr + '="' + mark + '"]');
	if (!el) return false;
	const btn = el.querySelector('.lingo-trigger');
	if (btn) btn.remove();
	return true;
}`

const errorJS = `(mark, markAttr) => {
	const el = document.querySelector('[' + markAttr + '="' + mark + '"]');
	if (!el) return false;
	const btn = el.querySelector('.lingo-trigger');
	if (!btn) return false;
	btn.textContent = '⚠ 訳';
	btn.style.opacity = '1';
	btn.style.color = '#c44';
	return true;
}`

// renderJS attaches the translated text under the message content. The text
// arrives pre-sanitized and is assigned through textContent, never as HTML.
const renderJS = `(mark, markAttr, text) => {
	const el = document.querySelector('[' + markAttr + '="' + mark + '"]');
	if (!el) return false;
	if (el.querySelector('.lingo-rendering')) return true;
	const div = document.createElement('div');
	div.className = 'lingo-rendering';
	div.textContent = text;
	div.style.cssText = 'opacity:0.75;font-style:italic;margin-top:2px;';
	el.appendChild(div);
	return true;
}`

const hasRenderingJS = `(mark, markAttr) => {
	const el = document.querySelector('[' + markAttr + '="' + mark + '"]');
	return !!(el && el.querySelector('.lingo-rendering'));
}`

const drainClicksJS = `() => {
	const q = window.__lingoClicks || [];
	window.__lingoClicks = [];
	return q;
}`

// evalMark runs a mark-addressed page operation. A vanished node (message
// scrolled out of the virtualised list) is not an error: the next snapshot
// re-resolves it.
func (s *Session) evalMark(ctx context.Context, js, messageID string, extra ...any) (bool, error) {
	mark, ok := s.mark(messageID)
	if !ok {
		return false, fmt.Errorf("rodfeed: no mark for message %s", messageID)
	}
	args := append([]any{mark, markAttr}, extra...)
	res, err := s.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return false, fmt.Errorf("rodfeed: eval: %w", err)
	}
	return res.Value.Bool(), nil
}

// OfferTrigger implements engine.Surface.
func (s *Session) OfferTrigger(ctx context.Context, messageID string) error {
	ok, err := s.evalMark(ctx, offerJS, messageID)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Debug("rodfeed: offer target vanished", "message", messageID)
	}
	return nil
}

// RemoveTrigger implements engine.Surface.
func (s *Session) RemoveTrigger(ctx context.Context, messageID string) error {
	_, err := s.evalMark(ctx, removeJS, messageID)
	return err
}

// ShowError implements engine.Surface.
func (s *Session) ShowError(ctx context.Context, messageID string) error {
	_, err := s.evalMark(ctx, errorJS, messageID)
	return err
}

// RenderTranslation implements engine.Surface.
func (s *Session) RenderTranslation(ctx context.Context, messageID, translated string) error {
	clean := sanitizer.Sanitize(translated)
	ok, err := s.evalMark(ctx, renderJS, messageID, clean)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rodfeed: render target vanished for message %s", messageID)
	}
	return nil
}

// HasRendering implements engine.Surface.
func (s *Session) HasRendering(ctx context.Context, messageID string) (bool, error) {
	return s.evalMark(ctx, hasRenderingJS, messageID)
}

// DrainClicks returns the message IDs whose triggers were clicked since the
// previous drain, in click order. The host loop feeds these to
// engine.Trigger.
func (s *Session) DrainClicks(ctx context.Context) ([]string, error) {
	res, err := s.page.Context(ctx).Eval(drainClicksJS)
	if err != nil {
		return nil, fmt.Errorf("rodfeed: drain clicks: %w", err)
	}

	var marks []string
	for _, v := range res.Value.Arr() {
		marks = append(marks, v.Str())
	}
	if len(marks) == 0 {
		return nil, nil
	}

	// Reverse-map marks to message IDs via the latest snapshot table.
	s.mu.Lock()
	byMark := make(map[string]string, len(s.marks))
	for id, m := range s.marks {
		byMark[m] = id
	}
	s.mu.Unlock()

	ids := make([]string, 0, len(marks))
	for _, m := range marks {
		if id, ok := byMark[m]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
