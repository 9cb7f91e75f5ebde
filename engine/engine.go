// Package engine is the message-tracking and translation-orchestration
// core: it polls a Source for feed snapshots, deduplicates messages per
// scope, drives each message's UI lifecycle through a Surface, and resolves
// texts through a Translator.
//
// One Engine serves one hosting context. Concurrent activations are
// arbitrated by generation: activating a new generation cancels the old one
// before it can mutate anything further.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/lingo/feed"
	"github.com/hazyhaar/lingo/flagstore"
	"github.com/hazyhaar/lingo/idgen"
)

// Source produces one snapshot of the observed feed per discovery pass.
type Source interface {
	Snapshot(ctx context.Context) (*feed.Snapshot, error)
}

// Translator resolves a text to its translation. Implemented by
// translate.Coordinator.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Config tunes the Engine.
type Config struct {
	// ScanInterval is the discovery period. Default: 2s.
	ScanInterval time.Duration
	// Auto translates eligible messages immediately instead of waiting
	// for a manual trigger.
	Auto bool
	// Selectors configure discovery and extraction.
	Selectors feed.Selectors
}

func (c *Config) defaults() {
	if c.ScanInterval <= 0 {
		c.ScanInterval = 2 * time.Second
	}
}

// Stats are the engine's live counters.
type Stats struct {
	TranslatedCount int64  `json:"translated_count"`
	CachedCount     int64  `json:"cached_count"`
	FailedCount     int64  `json:"failed_count"`
	OfferedCount    int    `json:"offered_count"`
	Passes          int64  `json:"passes"`
	PassesSkipped   int64  `json:"passes_skipped"`
	Scope           string `json:"scope"`
}

// State is the engine snapshot exposed on the control surface.
type State struct {
	Active     bool   `json:"active"`
	Generation string `json:"generation,omitempty"`
	Stats      Stats  `json:"stats"`
}

// Engine orchestrates discovery, dedup, and translation for one feed.
type Engine struct {
	source     Source
	surface    Surface
	translator Translator
	flags      *flagstore.Store
	tracker    *Tracker
	arbiter    *Arbiter
	config     Config
	logger     *slog.Logger
	newID      idgen.Generator

	active      atomic.Bool
	passRunning atomic.Bool

	translated atomic.Int64
	cached     atomic.Int64
	failed     atomic.Int64
	passes     atomic.Int64
	skipped    atomic.Int64
}

// New creates an Engine. flags may be nil (the active flag then lives only
// in memory). The engine starts active; call SyncFlag to adopt a persisted
// flag.
func New(source Source, surface Surface, translator Translator, flags *flagstore.Store, cfg Config, logger *slog.Logger) *Engine {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		source:     source,
		surface:    surface,
		translator: translator,
		flags:      flags,
		tracker:    NewTracker(),
		arbiter:    NewArbiter(),
		config:     cfg,
		logger:     logger,
		newID:      idgen.Prefixed("rec_", idgen.Default),
	}
	e.active.Store(true)
	return e
}

// Tracker exposes the scope tracker (read access for tests and the control
// surface).
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Activate mints a new generation, cancelling any previous one.
func (e *Engine) Activate() *Generation {
	gen := e.arbiter.Activate()
	e.logger.Info("engine: generation activated", "generation", gen.ID(), "seq", gen.Seq())
	return gen
}

// Active reports whether the engine is processing.
func (e *Engine) Active() bool { return e.active.Load() }

// State returns the control-surface snapshot.
func (e *Engine) State() State {
	offered, _ := e.tracker.counts()
	st := State{
		Active: e.active.Load(),
		Stats: Stats{
			TranslatedCount: e.translated.Load(),
			CachedCount:     e.cached.Load(),
			FailedCount:     e.failed.Load(),
			OfferedCount:    offered,
			Passes:          e.passes.Load(),
			PassesSkipped:   e.skipped.Load(),
			Scope:           e.tracker.CurrentScopeID(),
		},
	}
	if gen := e.arbiter.Current(); gen != nil {
		st.Generation = gen.ID()
	}
	return st
}

// Toggle flips the active flag, persists it, and returns the new value.
func (e *Engine) Toggle(ctx context.Context) (bool, error) {
	next := !e.active.Load()
	e.active.Store(next)
	if e.flags != nil {
		if err := e.flags.SetFlag(ctx, next); err != nil {
			return next, err
		}
	}
	e.logger.Info("engine: toggled", "active", next)
	return next, nil
}

// SyncFlag loads the persisted active flag and applies it. Wired to a
// watch.Watcher so external flag writes take effect without restart.
func (e *Engine) SyncFlag(ctx context.Context) error {
	if e.flags == nil {
		return nil
	}
	active, err := e.flags.GetFlag(ctx)
	if err != nil {
		return err
	}
	if e.active.Swap(active) != active {
		e.logger.Info("engine: active flag synced", "active", active)
	}
	return nil
}

// ReportStats folds externally observed counts (a hosting layer rendering
// translations on its own) into the engine counters.
func (e *Engine) ReportStats(translated, cached int64) {
	e.translated.Add(translated)
	e.cached.Add(cached)
}

// Trigger starts translation of an offered message, the manual-mode path.
// A Failed message may be re-triggered. Returns an error when the message
// is not in a triggerable state.
func (e *Engine) Trigger(ctx context.Context, messageID string) error {
	gen := e.arbiter.Current()
	if gen == nil || gen.Cancelled() {
		return errors.New("lingo/engine: no live generation")
	}
	scopeID := e.tracker.CurrentScopeID()

	text, ok := e.tracker.pendingText(scopeID, messageID)
	if !ok {
		return fmt.Errorf("lingo/engine: message %s has no pending text", messageID)
	}
	if !e.tracker.setMessageState(scopeID, messageID, []MessageState{StateOffered, StateFailed}, StateTranslating) {
		return fmt.Errorf("lingo/engine: message %s not triggerable (state %s)",
			messageID, e.tracker.messageState(messageID))
	}

	e.translateMessage(ctx, gen, scopeID, messageID, text, false)
	return nil
}

// translateMessage runs Translating → {Translated | Failed}. The caller has
// already transitioned the message into Translating.
func (e *Engine) translateMessage(ctx context.Context, gen *Generation, scopeID, messageID, text string, auto bool) {
	translated, err := e.translator.Translate(ctx, text)

	// The call above is a suspension point: re-check liveness before any
	// mutation. A rotated scope means this message's state is already
	// gone; a cancelled generation must not touch the surface at all.
	if gen.Cancelled() || e.tracker.CurrentScopeID() != scopeID {
		return
	}

	if err != nil {
		e.failed.Add(1)
		e.tracker.setMessageState(scopeID, messageID, []MessageState{StateTranslating}, StateFailed)
		if auto {
			// Automatic mode records a sentinel so the message is not
			// retried this scope lifetime.
			e.tracker.setRecord(scopeID, TranslationRecord{
				ID:           e.newID(),
				MessageID:    messageID,
				OriginalText: text,
				ProducedAt:   time.Now(),
				Failed:       true,
			})
			e.logger.Warn("engine: translation failed", "message", messageID, "error", err)
			return
		}
		if serr := e.surface.ShowError(ctx, messageID); serr != nil {
			e.logger.Warn("engine: show error failed", "message", messageID, "error", serr)
		}
		e.logger.Warn("engine: translation failed, retriable", "message", messageID, "error", err)
		return
	}

	// Re-entrancy guard: overlapping passes must not attach twice.
	if exists, herr := e.surface.HasRendering(ctx, messageID); herr == nil && exists {
		e.tracker.setMessageState(scopeID, messageID, []MessageState{StateTranslating}, StateTranslated)
		return
	}
	if gen.Cancelled() || e.tracker.CurrentScopeID() != scopeID {
		return
	}

	if rerr := e.surface.RemoveTrigger(ctx, messageID); rerr != nil {
		e.logger.Warn("engine: remove trigger failed", "message", messageID, "error", rerr)
	}
	if rerr := e.surface.RenderTranslation(ctx, messageID, translated); rerr != nil {
		e.logger.Warn("engine: render failed", "message", messageID, "error", rerr)
		e.tracker.setMessageState(scopeID, messageID, []MessageState{StateTranslating}, StateFailed)
		return
	}

	e.tracker.setMessageState(scopeID, messageID, []MessageState{StateTranslating}, StateTranslated)
	e.tracker.setRecord(scopeID, TranslationRecord{
		ID:             e.newID(),
		MessageID:      messageID,
		OriginalText:   text,
		TranslatedText: translated,
		ProducedAt:     time.Now(),
	})
	e.translated.Add(1)
}
