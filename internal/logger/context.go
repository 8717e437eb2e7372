package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// WithRequest stores the request-scoped logger in ctx. The HTTP middleware
// attaches request_id and route fields before handlers run.
func WithRequest(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Request returns the request-scoped logger, or a nop logger outside a
// request.
func Request(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
