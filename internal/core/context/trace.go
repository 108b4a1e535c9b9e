// Package context carries request-scoped values: tracing ids, the acting
// user and the document a request works on.
package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext identifies one API request across logs, spans and the audit trail.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type (
	traceContextKey    struct{}
	documentContextKey struct{}
)

// NewTraceContext keeps the ids forwarded by the caller and generates the missing ones.
func NewTraceContext(requestID, traceID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return &TraceContext{
		TraceID:   traceID,
		SpanID:    uuid.New().String()[:16],
		RequestID: requestID,
	}
}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// WithDocument records the id of the document addressed by the request.
func WithDocument(ctx context.Context, docID string) context.Context {
	return context.WithValue(ctx, documentContextKey{}, docID)
}

// GetDocumentID returns the addressed document id or empty string.
func GetDocumentID(ctx context.Context) string {
	v, _ := ctx.Value(documentContextKey{}).(string)
	return v
}
