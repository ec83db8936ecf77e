package core

import "context"

// RuntimeContext is caller-supplied per-turn data (user id, locale, auth
// hints) made available to tools. The orchestrator never interprets it.
type RuntimeContext map[string]any

type runtimeContextKey struct{}

// WithRuntimeContext attaches rc to ctx.
func WithRuntimeContext(ctx context.Context, rc RuntimeContext) context.Context {
	if rc == nil {
		return ctx
	}
	return context.WithValue(ctx, runtimeContextKey{}, rc)
}

// RuntimeContextFrom returns the runtime context attached to ctx or an empty one.
func RuntimeContextFrom(ctx context.Context) RuntimeContext {
	if rc, ok := ctx.Value(runtimeContextKey{}).(RuntimeContext); ok {
		return rc
	}
	return RuntimeContext{}
}

// String returns the string value stored under key, if any.
func (rc RuntimeContext) String(key string) (string, bool) {
	v, ok := rc[key].(string)
	return v, ok
}
