// Package context carries the ids that tie log lines, spans and error
// bodies of one operation together, whichever surface started it.
package context

import (
	"context"

	"github.com/google/uuid"
)

// Origins of an operation.
const (
	OriginHTTP = "http"
	OriginCLI  = "cli"
)

// TraceContext identifies one operation.
type TraceContext struct {
	TraceID   string
	RequestID string
	Origin    string
}

type traceKey struct{}

// NewTraceContext starts an operation. Empty ids are generated, so callers
// can pass ids received from a client as they are.
func NewTraceContext(origin, requestID, traceID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return &TraceContext{TraceID: traceID, RequestID: requestID, Origin: origin}
}

// WithTrace stores tc in ctx.
func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey{}, tc)
}

// GetTrace returns the operation ids of ctx, or nil outside an operation.
func GetTrace(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceKey{}).(*TraceContext)
	return tc
}

// RequestID returns the request id of ctx, or "".
func RequestID(ctx context.Context) string {
	if tc := GetTrace(ctx); tc != nil {
		return tc.RequestID
	}
	return ""
}
