package control

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/lingo/kit"
)

// RegisterMCP registers the control tools on an MCP server.
func (c *Controller) RegisterMCP(srv *mcp.Server) {
	c.registerStateTool(srv)
	c.registerToggleTool(srv)
	c.registerReportStatsTool(srv)
	c.registerTriggerTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (c *Controller) registerStateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lingo_state",
		Description: "Get engine state: active flag, current generation, scope, and translation counters.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, c.stateEndpoint, decode)
}

func (c *Controller) registerToggleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lingo_toggle",
		Description: "Flip the engine's active flag and persist it. Returns the new value.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, c.toggleEndpoint, decode)
}

func (c *Controller) registerReportStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lingo_report_stats",
		Description: "Fold externally observed translation counts into the engine counters.",
		InputSchema: inputSchema(map[string]any{
			"translated": map[string]any{"type": "integer", "description": "Translations rendered by the reporting layer"},
			"cached":     map[string]any{"type": "integer", "description": "Cache-served translations"},
		}, nil),
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r reportStatsRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, c.reportStatsEndpoint, decode)
}

func (c *Controller) registerTriggerTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lingo_trigger",
		Description: "Start a manual translation of an offered (or failed) message.",
		InputSchema: inputSchema(map[string]any{
			"message_id": map[string]any{"type": "string", "description": "Message ID as resolved by discovery"},
		}, []string{"message_id"}),
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r triggerRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, c.triggerEndpoint, decode)
}
