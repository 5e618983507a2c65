package kit

import "context"

type ctxKey int

const (
	transportKey ctxKey = iota
	traceIDKey
	tabIDKey
)

func stringValue(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// WithTransport records which surface ("http", "mcp") a call came in on.
func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// GetTransport defaults to "http".
func GetTransport(ctx context.Context) string {
	if t := stringValue(ctx, transportKey); t != "" {
		return t
	}
	return "http"
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func GetTraceID(ctx context.Context) string { return stringValue(ctx, traceIDKey) }

// WithTabID tags ctx with the browser tab a control call targets so lower
// layers (SQL tracing, call logging) can attribute their output.
func WithTabID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tabIDKey, id)
}

func GetTabID(ctx context.Context) string { return stringValue(ctx, tabIDKey) }
