// Package translate owns the translation cache and orchestrates calls to
// the external translation backend.
//
// The Coordinator is the single path to the backend: it serves repeats from
// an append-only cache, coalesces concurrent requests for the same text into
// one underlying call, and enforces a minimum spacing between consecutive
// outbound requests system-wide. Callers never talk to the backend directly.
package translate

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config tunes the Coordinator.
type Config struct {
	// MinRequestInterval is the minimum delay between consecutive outbound
	// requests, regardless of caller. Default: 500ms.
	MinRequestInterval time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// Sleep overrides the pacing wait, for tests. It must respect ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c *Config) defaults() {
	if c.MinRequestInterval <= 0 {
		c.MinRequestInterval = 500 * time.Millisecond
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = sleepCtx
	}
}

// Stats are point-in-time coordinator counters.
type Stats struct {
	Requests  int64 `json:"requests"`   // outbound backend calls issued
	CacheHits int64 `json:"cache_hits"` // lookups served without a call
	Failures  int64 `json:"failures"`   // outbound calls that failed
	CacheSize int   `json:"cache_size"`
}

// Coordinator resolves texts to translations through the cache, the
// single-flight group, and the paced client, in that order.
type Coordinator struct {
	client *Client
	cache  *Cache
	config Config
	group  singleflight.Group
	logger *slog.Logger

	// paceMu serialises outbound requests so spacing holds system-wide.
	paceMu   sync.Mutex
	lastSent time.Time

	requests  atomic.Int64
	cacheHits atomic.Int64
	failures  atomic.Int64
}

// New creates a Coordinator around client with a fresh cache.
func New(client *Client, cfg Config, logger *slog.Logger) *Coordinator {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		client: client,
		cache:  NewCache(),
		config: cfg,
		logger: logger,
	}
}

// Cache exposes the underlying cache (read-mostly; used by the control
// surface for size reporting).
func (c *Coordinator) Cache() *Cache { return c.cache }

// Stats returns current counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Requests:  c.requests.Load(),
		CacheHits: c.cacheHits.Load(),
		Failures:  c.failures.Load(),
		CacheSize: c.cache.Len(),
	}
}

// Translate resolves text to its translation. The text is normalized
// (trimmed) and used as the cache key. On a cache hit no network activity
// occurs. On a miss, concurrent calls for the same text share one backend
// request; distinct texts may be in flight at once but outbound requests
// are spaced by MinRequestInterval.
//
// Failures are typed (ErrTransport, ErrMalformed, ErrEmptyTranslation) and
// never cached: the next call for the same text retries.
func (c *Coordinator) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranslation
	}

	if translated, ok := c.cache.Get(text); ok {
		c.cacheHits.Add(1)
		return translated, nil
	}

	v, err, _ := c.group.Do(text, func() (any, error) {
		// A coalesced waiter may have populated the cache between the
		// caller's lookup and this execution.
		if translated, ok := c.cache.Get(text); ok {
			c.cacheHits.Add(1)
			return translated, nil
		}

		if err := c.pace(ctx); err != nil {
			return nil, err
		}

		c.requests.Add(1)
		translated, err := c.client.Translate(ctx, text)
		if err != nil {
			c.failures.Add(1)
			c.logger.Warn("translate: backend call failed", "error", err)
			return nil, err
		}

		// Written before returning so the next lookup is a hit.
		c.cache.Put(text, translated)
		return translated, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// pace blocks until at least MinRequestInterval has passed since the
// previous outbound request, then claims the send slot.
func (c *Coordinator) pace(ctx context.Context) error {
	c.paceMu.Lock()
	defer c.paceMu.Unlock()

	now := c.config.Clock()
	if !c.lastSent.IsZero() {
		if wait := c.config.MinRequestInterval - now.Sub(c.lastSent); wait > 0 {
			if err := c.config.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	c.lastSent = c.config.Clock()
	return nil
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
