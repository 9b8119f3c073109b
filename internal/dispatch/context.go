package dispatch

import "context"

type ctxKey int

const (
	flowKey ctxKey = iota
	depthKey
)

// WithFlow attaches a flow token to ctx. Every dispatch triggered while
// handling a root dispatch inherits its flow token through the context.
func WithFlow(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, flowKey, token)
}

// FlowFrom returns the flow token carried by ctx, or "".
func FlowFrom(ctx context.Context) string {
	token, _ := ctx.Value(flowKey).(string)
	return token
}

// WithDepth records the re-entrance depth of a dispatch.
// Root dispatches have depth 0.
func WithDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey, depth)
}

// Depth returns the re-entrance depth carried by ctx.
func Depth(ctx context.Context) int {
	depth, _ := ctx.Value(depthKey).(int)
	return depth
}
