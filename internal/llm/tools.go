package llm

import "context"

// ToolHandler turns tool calls into an assistant answer. It is the extension
// point for tool calling; handled=false means the response content is used.
type ToolHandler interface {
	HandleToolCalls(ctx context.Context, calls []ToolCall) (answer string, handled bool)
}

// NoopToolHandler never handles tool calls.
type NoopToolHandler struct{}

func (NoopToolHandler) HandleToolCalls(context.Context, []ToolCall) (string, bool) {
	return "", false
}

// ToolHandlerFunc adapts a function to ToolHandler.
type ToolHandlerFunc func(ctx context.Context, calls []ToolCall) (string, bool)

func (f ToolHandlerFunc) HandleToolCalls(ctx context.Context, calls []ToolCall) (string, bool) {
	return f(ctx, calls)
}
