package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/lingo/feed"
)

// fakeSource serves a swappable HTML snapshot.
type fakeSource struct {
	mu       sync.Mutex
	html     string
	location string
	block    chan struct{} // when non-nil, Snapshot waits on it
}

func (f *fakeSource) set(html, location string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html = html
	f.location = location
}

func (f *fakeSource) Snapshot(ctx context.Context) (*feed.Snapshot, error) {
	f.mu.Lock()
	html, location, block := f.html, f.location, f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}
	return feed.Parse(html, location, feed.Selectors{})
}

// fakeSurface records every mutation the engine performs.
type fakeSurface struct {
	mu        sync.Mutex
	offered   []string
	removed   []string
	errored   []string
	rendered  map[string]string
	mutations int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{rendered: make(map[string]string)}
}

func (f *fakeSurface) OfferTrigger(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offered = append(f.offered, id)
	f.mutations++
	return nil
}

func (f *fakeSurface) RemoveTrigger(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	f.mutations++
	return nil
}

func (f *fakeSurface) ShowError(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errored = append(f.errored, id)
	f.mutations++
	return nil
}

func (f *fakeSurface) RenderTranslation(ctx context.Context, id, translated string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rendered[id] = translated
	f.mutations++
	return nil
}

func (f *fakeSurface) HasRendering(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rendered[id]
	return ok, nil
}

func (f *fakeSurface) mutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations
}

func (f *fakeSurface) renderedText(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.rendered[id]
	return v, ok
}

// fakeTranslator echoes texts with a marker and can fail selected texts.
type fakeTranslator struct {
	mu       sync.Mutex
	calls    []string
	failText map[string]error
	block    chan struct{} // when non-nil, Translate waits on it
}

func newFakeTranslator() *fakeTranslator {
	return &fakeTranslator{failText: make(map[string]error)}
}

func (f *fakeTranslator) Translate(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	err := f.failText[text]
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return "", err
	}
	return "xlat(" + text + ")", nil
}

func (f *fakeTranslator) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func msgHTML(id, body string) string {
	return fmt.Sprintf(`<div class="message" data-list-item-id=%q>%s</div>`, id, body)
}

func testEngine(t *testing.T, src *fakeSource, auto bool) (*Engine, *fakeSurface, *fakeTranslator, *Generation) {
	t.Helper()
	surface := newFakeSurface()
	tr := newFakeTranslator()
	e := New(src, surface, tr, nil, Config{Auto: auto}, nil)
	gen := e.Activate()
	return e, surface, tr, gen
}

func TestRunOnce_OffersVisibleEligibleMessages(t *testing.T) {
	src := &fakeSource{}
	src.set(msgHTML("m1", "Bonjour")+msgHTML("m2", "Salut"), "/channels/1/100")

	e, surface, _, gen := testEngine(t, src, false)
	if err := e.RunOnce(context.Background(), gen); err != nil {
		t.Fatal(err)
	}

	surface.mu.Lock()
	offered := append([]string(nil), surface.offered...)
	surface.mu.Unlock()
	if len(offered) != 2 || offered[0] != "m1" || offered[1] != "m2" {
		t.Errorf("offered = %v", offered)
	}

	// A second pass over the same snapshot must not re-offer.
	if err := e.RunOnce(context.Background(), gen); err != nil {
		t.Fatal(err)
	}
	if n := surface.mutationCount(); n != 2 {
		t.Errorf("mutations after second pass = %d, want 2", n)
	}
}

func TestRunOnce_AutoTranslatesInDocumentOrder(t *testing.T) {
	// WHAT: "Hello", a code-only message, "World" yield exactly two
	// translations, in top-to-bottom order.
	src := &fakeSource{}
	src.set(
		msgHTML("m1", "Hello")+
			msgHTML("m2", "<pre><code>fmt.Println()</code></pre>")+
			msgHTML("m3", "World"),
		"/channels/1/100")

	e, surface, tr, gen := testEngine(t, src, true)
	if err := e.RunOnce(context.Background(), gen); err != nil {
		t.Fatal(err)
	}

	calls := tr.callLog()
	if len(calls) != 2 || calls[0] != "Hello" || calls[1] != "World" {
		t.Errorf("translator calls = %v, want [Hello World]", calls)
	}
	if _, ok := surface.renderedText("m2"); ok {
		t.Error("code-only message was rendered")
	}
	if got, _ := surface.renderedText("m1"); got != "xlat(Hello)" {
		t.Errorf("m1 rendering = %q", got)
	}
}

func TestRunOnce_EditingMessageStaysUnseen(t *testing.T) {
	// WHAT: a message under active edit never leaves Unseen; once editing
	// ends it becomes eligible again.
	src := &fakeSource{}
	src.set(msgHTML("m1", `draft <div contenteditable="true">typing</div>`), "/channels/1/100")

	e, surface, _, gen := testEngine(t, src, false)
	ctx := context.Background()

	if err := e.RunOnce(ctx, gen); err != nil {
		t.Fatal(err)
	}
	if st := e.Tracker().messageState("m1"); st != StateUnseen {
		t.Fatalf("state = %s, want unseen", st)
	}
	if n := surface.mutationCount(); n != 0 {
		t.Fatalf("surface touched %d times during edit", n)
	}

	// Edit finished: same message, plain content.
	src.set(msgHTML("m1", "draft final"), "/channels/1/100")
	if err := e.RunOnce(ctx, gen); err != nil {
		t.Fatal(err)
	}
	if st := e.Tracker().messageState("m1"); st != StateOffered {
		t.Errorf("state = %s, want offered", st)
	}
}

func TestRunOnce_InvisibleMessagesNotOffered(t *testing.T) {
	src := &fakeSource{}
	src.set(
		`<div class="message" data-list-item-id="m1" data-lingo-offscreen="1">far away</div>`+
			msgHTML("m2", "near"),
		"/channels/1/100")

	e, _, _, gen := testEngine(t, src, false)
	if err := e.RunOnce(context.Background(), gen); err != nil {
		t.Fatal(err)
	}

	if st := e.Tracker().messageState("m1"); st != StateUnseen {
		t.Errorf("offscreen message state = %s, want unseen", st)
	}
	if st := e.Tracker().messageState("m2"); st != StateOffered {
		t.Errorf("visible message state = %s, want offered", st)
	}
}

func TestRunOnce_FailureIsolation(t *testing.T) {
	// WHAT: a transport failure on one message in automatic mode records
	// a failure for that message only; the rest of the pass proceeds.
	src := &fakeSource{}
	src.set(
		msgHTML("m1", "alpha")+msgHTML("m2", "bravo")+msgHTML("m3", "charlie"),
		"/channels/1/100")

	e, _, tr, gen := testEngine(t, src, true)
	tr.failText["bravo"] = errors.New("translate: transport failure")

	if err := e.RunOnce(context.Background(), gen); err != nil {
		t.Fatal(err)
	}

	if st := e.Tracker().messageState("m2"); st != StateFailed {
		t.Errorf("m2 state = %s, want failed", st)
	}
	rec, ok := e.Tracker().Record("m2")
	if !ok || !rec.Failed {
		t.Errorf("m2 sentinel record = %+v, ok=%v", rec, ok)
	}
	for _, id := range []string{"m1", "m3"} {
		if st := e.Tracker().messageState(id); st != StateTranslated {
			t.Errorf("%s state = %s, want translated", id, st)
		}
	}

	// Next pass: automatic mode must not retry the failed message.
	if err := e.RunOnce(context.Background(), gen); err != nil {
		t.Fatal(err)
	}
	calls := 0
	for _, c := range tr.callLog() {
		if c == "bravo" {
			calls++
		}
	}
	if calls != 1 {
		t.Errorf("bravo attempted %d times, want 1", calls)
	}
}

func TestTrigger_ManualFlow(t *testing.T) {
	src := &fakeSource{}
	src.set(msgHTML("m1", "Guten Morgen"), "/channels/1/100")

	e, surface, _, gen := testEngine(t, src, false)
	ctx := context.Background()

	if err := e.RunOnce(ctx, gen); err != nil {
		t.Fatal(err)
	}
	if err := e.Trigger(ctx, "m1"); err != nil {
		t.Fatal(err)
	}

	if st := e.Tracker().messageState("m1"); st != StateTranslated {
		t.Fatalf("state = %s, want translated", st)
	}
	if got, _ := surface.renderedText("m1"); got != "xlat(Guten Morgen)" {
		t.Errorf("rendering = %q", got)
	}
	surface.mu.Lock()
	removed := len(surface.removed)
	surface.mu.Unlock()
	if removed != 1 {
		t.Errorf("trigger not removed after success")
	}

	// Terminal: a second trigger is rejected.
	if err := e.Trigger(ctx, "m1"); err == nil {
		t.Error("expected error triggering a translated message")
	}
}

func TestTrigger_FailedIsRetriable(t *testing.T) {
	src := &fakeSource{}
	src.set(msgHTML("m1", "Hola"), "/channels/1/100")

	e, surface, tr, gen := testEngine(t, src, false)
	ctx := context.Background()
	tr.failText["Hola"] = errors.New("translate: transport failure")

	if err := e.RunOnce(ctx, gen); err != nil {
		t.Fatal(err)
	}
	if err := e.Trigger(ctx, "m1"); err != nil {
		t.Fatal(err)
	}

	if st := e.Tracker().messageState("m1"); st != StateFailed {
		t.Fatalf("state = %s, want failed", st)
	}
	surface.mu.Lock()
	errored := len(surface.errored)
	surface.mu.Unlock()
	if errored != 1 {
		t.Fatal("error affordance not shown")
	}

	// Backend recovers; the user retries the same message.
	tr.mu.Lock()
	delete(tr.failText, "Hola")
	tr.mu.Unlock()
	if err := e.Trigger(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	if st := e.Tracker().messageState("m1"); st != StateTranslated {
		t.Errorf("state after retry = %s, want translated", st)
	}
}

func TestRunOnce_SkipsOverlappingPass(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	src.set(msgHTML("m1", "hello there"), "/channels/1/100")

	e, _, _, gen := testEngine(t, src, false)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		e.RunOnce(ctx, gen)
		close(done)
	}()

	// The first pass is blocked inside Snapshot; a second pass must be
	// skipped, not queued.
	waitFor(t, func() bool { return e.passRunning.Load() })
	if err := e.RunOnce(ctx, gen); err != nil {
		t.Fatal(err)
	}
	if got := e.State().Stats.PassesSkipped; got != 1 {
		t.Errorf("skipped = %d, want 1", got)
	}

	close(src.block)
	<-done
}

func TestInactiveEngine_DoesNothing(t *testing.T) {
	src := &fakeSource{}
	src.set(msgHTML("m1", "hello there"), "/channels/1/100")

	e, surface, _, gen := testEngine(t, src, true)
	ctx := context.Background()

	if _, err := e.Toggle(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.RunOnce(ctx, gen); err != nil {
		t.Fatal(err)
	}
	if n := surface.mutationCount(); n != 0 {
		t.Errorf("inactive engine touched the surface %d times", n)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}
