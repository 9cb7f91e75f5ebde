package engine

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/lingo/feed"
)

// Run executes discovery passes on ScanInterval until ctx is cancelled or
// the generation is superseded. A cancelled generation halts permanently;
// a pass that would overlap a still-running one is skipped, never queued.
func (e *Engine) Run(ctx context.Context, gen *Generation) {
	ticker := time.NewTicker(e.config.ScanInterval)
	defer ticker.Stop()

	e.logger.Info("engine: scheduler started",
		"generation", gen.ID(), "interval", e.config.ScanInterval, "auto", e.config.Auto)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine: scheduler stopped", "generation", gen.ID())
			return
		case <-gen.Done():
			e.logger.Info("engine: generation superseded, scheduler halted", "generation", gen.ID())
			return
		case <-ticker.C:
			if err := e.RunOnce(ctx, gen); err != nil {
				e.logger.Error("engine: pass failed", "generation", gen.ID(), "error", err)
			}
		}
	}
}

// RunOnce executes a single discovery pass. Exported so tests and hosts can
// drive the engine one cycle at a time.
func (e *Engine) RunOnce(ctx context.Context, gen *Generation) error {
	if gen.Cancelled() || !e.active.Load() {
		return nil
	}
	if !e.passRunning.CompareAndSwap(false, true) {
		e.skipped.Add(1)
		return nil
	}
	defer e.passRunning.Store(false)

	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return err
	}
	if gen.Cancelled() {
		return nil
	}

	if e.tracker.CheckAndRotate(snap.ScopeKey) {
		e.logger.Info("engine: scope rotated", "scope", snap.ScopeKey)
	}
	scopeID := snap.ScopeKey
	e.passes.Add(1)

	// Candidates arrive in document order; processing preserves it so
	// translations land oldest-first.
	for i := range snap.Candidates {
		if gen.Cancelled() {
			return nil
		}
		e.processCandidate(ctx, gen, scopeID, &snap.Candidates[i])
	}
	return nil
}

// processCandidate advances one message through the lifecycle. A failure on
// one message never aborts the rest of the pass.
func (e *Engine) processCandidate(ctx context.Context, gen *Generation, scopeID string, c *feed.Candidate) {
	state := e.tracker.messageState(c.ID)

	switch state {
	case StateUnseen:
		// Only visible messages leave Unseen; recomputed every pass.
		if !c.Visible {
			return
		}

		text, err := feed.Extract(c.Node, e.config.Selectors)
		switch {
		case errors.Is(err, feed.ErrEditing):
			// Under active edit: untouched this pass, eligible again once
			// editing ends.
			return
		case errors.Is(err, feed.ErrEmpty):
			return
		case err != nil:
			e.logger.Warn("engine: extract failed", "message", c.ID, "error", err)
			return
		}

		if !e.tracker.setMessageState(scopeID, c.ID, []MessageState{StateUnseen}, StateOffered) {
			return
		}
		e.tracker.setPending(scopeID, c.ID, text)

		if err := e.surface.OfferTrigger(ctx, c.ID); err != nil {
			e.logger.Warn("engine: offer trigger failed", "message", c.ID, "error", err)
		}

		if e.config.Auto {
			if e.tracker.setMessageState(scopeID, c.ID, []MessageState{StateOffered}, StateTranslating) {
				e.translateMessage(ctx, gen, scopeID, c.ID, text, true)
			}
		}

	case StateOffered, StateTranslating, StateTranslated, StateFailed:
		// Already offered or beyond: never reprocessed from scratch.
		// Automatic mode does not retry Failed within a scope lifetime.
		return
	}
}
