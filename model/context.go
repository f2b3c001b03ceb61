package model

import "context"

// RequestContext carries the correlation and client information for the
// lifetime of one UI request. It is immutable after construction and safe for
// concurrent reads.
type RequestContext struct {
	CorrelationID string
	DeviceID      string
	TraceID       string
	SpanID        string
	Locale        string
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or returns nil
// if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}

// CorrelationIDFrom returns the correlation id of ctx, or "".
func CorrelationIDFrom(ctx context.Context) string {
	if rctx := RequestContextFrom(ctx); rctx != nil {
		return rctx.CorrelationID
	}
	return ""
}
