package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeBackend is a Proxy that answers with a canned translation and counts
// outbound calls.
type fakeBackend struct {
	calls atomic.Int64
	fail  atomic.Bool
	delay time.Duration
}

func (f *fakeBackend) proxy(ctx context.Context, _ string, body []byte) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.fail.Load() {
		return nil, fmt.Errorf("%w: connection refused", ErrTransport)
	}
	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	translated := "xlat(" + req.Query + ")"
	return json.Marshal(map[string]string{"translatedText": translated})
}

func testCoordinator(t *testing.T, backend *fakeBackend) *Coordinator {
	t.Helper()
	client := NewClient("https://mt.example/translate", "en", backend.proxy)
	return New(client, Config{
		MinRequestInterval: time.Nanosecond,
	}, nil)
}

func TestTranslate_SecondCallIsCacheServed(t *testing.T) {
	// WHAT: translating the same text twice issues at most one outbound
	// request; the second call is a cache hit.
	backend := &fakeBackend{}
	c := testCoordinator(t, backend)
	ctx := context.Background()

	first, err := c.Translate(ctx, "Bonjour")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Translate(ctx, "Bonjour")
	if err != nil {
		t.Fatal(err)
	}

	if first != "xlat(Bonjour)" || second != first {
		t.Errorf("translations: %q, %q", first, second)
	}
	if n := backend.calls.Load(); n != 1 {
		t.Errorf("outbound calls = %d, want 1", n)
	}
	if s := c.Stats(); s.CacheHits != 1 || s.Requests != 1 || s.CacheSize != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestTranslate_NormalizesBeforeLookup(t *testing.T) {
	backend := &fakeBackend{}
	c := testCoordinator(t, backend)
	ctx := context.Background()

	if _, err := c.Translate(ctx, "  Hallo  "); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Translate(ctx, "Hallo"); err != nil {
		t.Fatal(err)
	}
	if n := backend.calls.Load(); n != 1 {
		t.Errorf("outbound calls = %d, want 1 (trim must unify keys)", n)
	}
}

func TestTranslate_CoalescesConcurrentIdenticalTexts(t *testing.T) {
	// WHAT: two concurrent callers for the same uncached text share one
	// backend call; the second waits on the first's result.
	backend := &fakeBackend{delay: 30 * time.Millisecond}
	c := testCoordinator(t, backend)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Translate(ctx, "Hola")
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = got
		}()
	}
	wg.Wait()

	if n := backend.calls.Load(); n != 1 {
		t.Errorf("outbound calls = %d, want 1", n)
	}
	for i, r := range results {
		if r != "xlat(Hola)" {
			t.Errorf("caller %d got %q", i, r)
		}
	}
}

func TestTranslate_FailuresAreNotCached(t *testing.T) {
	backend := &fakeBackend{}
	backend.fail.Store(true)
	c := testCoordinator(t, backend)
	ctx := context.Background()

	if _, err := c.Translate(ctx, "Ciao"); !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if c.Cache().Len() != 0 {
		t.Fatal("failure was cached")
	}

	// Backend recovers: the retry goes out and succeeds.
	backend.fail.Store(false)
	got, err := c.Translate(ctx, "Ciao")
	if err != nil {
		t.Fatal(err)
	}
	if got != "xlat(Ciao)" {
		t.Errorf("got %q", got)
	}
	if n := backend.calls.Load(); n != 2 {
		t.Errorf("outbound calls = %d, want 2", n)
	}
}

func TestTranslate_EnforcesMinimumSpacing(t *testing.T) {
	// Fake clock: each recorded sleep advances it, so the pacing math is
	// deterministic.
	var mu sync.Mutex
	now := time.Unix(0, 0)
	var slept []time.Duration

	backend := &fakeBackend{}
	client := NewClient("https://mt.example/translate", "en", backend.proxy)
	c := New(client, Config{
		MinRequestInterval: time.Second,
		Clock: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
		Sleep: func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			slept = append(slept, d)
			now = now.Add(d)
			return nil
		},
	}, nil)

	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		if _, err := c.Translate(ctx, text); err != nil {
			t.Fatal(err)
		}
	}

	// First request goes immediately; the next two each wait a full
	// interval because the fake clock only advances while sleeping.
	if len(slept) != 2 {
		t.Fatalf("sleeps = %v, want 2 entries", slept)
	}
	for _, d := range slept {
		if d != time.Second {
			t.Errorf("slept %v, want 1s", d)
		}
	}
}

func TestTranslate_EmptyInput(t *testing.T) {
	backend := &fakeBackend{}
	c := testCoordinator(t, backend)

	if _, err := c.Translate(context.Background(), "   "); !errors.Is(err, ErrEmptyTranslation) {
		t.Fatalf("err = %v, want ErrEmptyTranslation", err)
	}
	if backend.calls.Load() != 0 {
		t.Error("empty input reached the backend")
	}
}
