package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/covwatch/idgen"
)

var mcpTraceIDs = idgen.Prefixed("trc_", idgen.UUIDv7())

// MCPDecoder turns the raw arguments of a tool call into the request its
// endpoint takes.
type MCPDecoder func(args json.RawMessage) (any, error)

// RegisterMCPTool serves endpoint, wrapped in mws, as an MCP tool. Decode
// and endpoint failures come back as tool results flagged IsError so the
// calling agent reads the message; a response is returned as JSON text.
// Calls arriving without a trace ID get one.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode MCPDecoder, mws ...Middleware) {
	endpoint = Chain(mws...)(endpoint)
	srv.AddTool(tool, func(ctx context.Context, call *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := decode(call.Params.Arguments)
		if err != nil {
			return toolError(fmt.Errorf("%s: invalid arguments: %w", tool.Name, err)), nil
		}

		ctx = WithTransport(ctx, "mcp")
		if GetTraceID(ctx) == "" {
			ctx = WithTraceID(ctx, mcpTraceIDs())
		}
		resp, err := endpoint(ctx, req)
		if err != nil {
			return toolError(err), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("%s: encode result: %w", tool.Name, err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
