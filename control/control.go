// Package control exposes the engine's runtime surface over HTTP and MCP:
// state inspection, the active toggle, externally reported stats, and manual
// translation triggers. Both transports share the same kit endpoints.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/lingo/engine"
	"github.com/hazyhaar/lingo/translate"
)

// Controller binds the control endpoints to a running engine.
type Controller struct {
	engine *engine.Engine
	coord  *translate.Coordinator
	logger *slog.Logger
}

// New creates a Controller. coord may be nil when the translator is not a
// translate.Coordinator (stats then omit cache counters).
func New(eng *engine.Engine, coord *translate.Coordinator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{engine: eng, coord: coord, logger: logger}
}

// stateResponse is the full control-surface snapshot.
type stateResponse struct {
	engine.State
	Translate *translate.Stats `json:"translate,omitempty"`
}

func (c *Controller) stateEndpoint(ctx context.Context, _ any) (any, error) {
	resp := stateResponse{State: c.engine.State()}
	if c.coord != nil {
		st := c.coord.Stats()
		resp.Translate = &st
	}
	return resp, nil
}

func (c *Controller) toggleEndpoint(ctx context.Context, _ any) (any, error) {
	active, err := c.engine.Toggle(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"active": active}, nil
}

// reportStatsRequest carries counts observed by an external hosting layer.
type reportStatsRequest struct {
	Translated int64 `json:"translated"`
	Cached     int64 `json:"cached"`
}

func (c *Controller) reportStatsEndpoint(ctx context.Context, req any) (any, error) {
	r, ok := req.(*reportStatsRequest)
	if !ok || r == nil {
		return nil, fmt.Errorf("lingo/control: bad stats request")
	}
	c.engine.ReportStats(r.Translated, r.Cached)
	return map[string]string{"status": "ok"}, nil
}

// triggerRequest starts a manual translation.
type triggerRequest struct {
	MessageID string `json:"message_id"`
}

func (c *Controller) triggerEndpoint(ctx context.Context, req any) (any, error) {
	r, ok := req.(*triggerRequest)
	if !ok || r == nil || r.MessageID == "" {
		return nil, fmt.Errorf("lingo/control: message_id is required")
	}
	if err := c.engine.Trigger(ctx, r.MessageID); err != nil {
		return nil, err
	}
	return map[string]string{"status": "translating", "message_id": r.MessageID}, nil
}
