package control

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/covwatch/kit"
)

// RegisterMCP registers the covwatch tools on an MCP server.
func (d *Dispatcher) RegisterMCP(srv *mcp.Server) {
	d.registerActionTool(srv)
	d.registerTakeCoverageTool(srv)
	d.registerListScriptsTool(srv)
}

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

var tabProperty = map[string]any{"type": "string", "description": "DevTools target ID of the tab"}

func decodeRequest(args json.RawMessage) (any, error) {
	var r Request
	if len(args) > 0 {
		if err := json.Unmarshal(args, &r); err != nil {
			return nil, err
		}
	}
	if r.TabID == "" {
		return nil, fmt.Errorf("tab_id is required")
	}
	return &r, nil
}

// fixedAction decodes the tab and forces the action.
func fixedAction(action string) kit.MCPDecoder {
	return func(args json.RawMessage) (any, error) {
		req, err := decodeRequest(args)
		if err != nil {
			return nil, err
		}
		req.(*Request).Action = action
		return req, nil
	}
}

// dataOnly unwraps a *Result to its Data for tools bound to one action.
func dataOnly(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		res, err := next(ctx, req)
		if err != nil {
			return nil, err
		}
		return res.(*Result).Data, nil
	}
}

// --- covwatch_action ---

func (d *Dispatcher) registerActionTool(srv *mcp.Server) {
	enum := make([]any, len(Actions))
	for i, a := range Actions {
		enum[i] = a
	}
	tool := &mcp.Tool{
		Name:        "covwatch_action",
		Description: "Run one DevTools action on a tab: attach, enable domains, manage the script listener, drive the profiler.",
		InputSchema: inputSchema(map[string]any{
			"action":  map[string]any{"type": "string", "enum": enum, "description": "Action name"},
			"tab_id":  tabProperty,
			"payload": map[string]any{"description": "Action argument; setTargetScriptUrl takes the script URL"},
		}, []string{"action", "tab_id"}),
	}
	kit.RegisterMCPTool(srv, tool, d.Endpoint(), decodeRequest, kit.Logging(d.logger, tool.Name))
}

// --- covwatch_take_coverage ---

func (d *Dispatcher) registerTakeCoverageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "covwatch_take_coverage",
		Description: "Take precise coverage on an attached tab and return the annotated report.",
		InputSchema: inputSchema(map[string]any{"tab_id": tabProperty}, []string{"tab_id"}),
	}
	kit.RegisterMCPTool(srv, tool, d.Endpoint(), fixedAction(ActionTakePreciseCoverage), kit.Logging(d.logger, tool.Name), dataOnly)
}

// --- covwatch_list_scripts ---

func (d *Dispatcher) registerListScriptsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "covwatch_list_scripts",
		Description: "List the URLs of scripts parsed in a tab since the listener was added.",
		InputSchema: inputSchema(map[string]any{"tab_id": tabProperty}, []string{"tab_id"}),
	}
	kit.RegisterMCPTool(srv, tool, d.Endpoint(), fixedAction(ActionGetParsedScriptsURLs), kit.Logging(d.logger, tool.Name), dataOnly)
}
