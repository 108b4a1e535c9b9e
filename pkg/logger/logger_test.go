package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "docflow/internal/core/context"
	"docflow/pkg/logger"
)

func observed() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestInfo_BindsRequestActorAndDocument(t *testing.T) {
	log, logs := observed()

	ctx := appctx.WithTrace(context.Background(), appctx.NewTraceContext("req-1", "trace-1"))
	ctx = appctx.WithActor(ctx, &appctx.Actor{UserID: "u-7", Name: "Nadia"})
	ctx = appctx.WithDocument(ctx, "0192c4f1-7f5e-7a3b-9c1d-2e4f6a8b0c1d")
	ctx = logger.WithLogger(ctx, log)

	logger.Info(ctx, "document issued", "number", "FAC-2026-000001")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "document issued", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "u-7", fields["user_id"])
	assert.Equal(t, "Nadia", fields["user_name"])
	assert.Equal(t, "0192c4f1-7f5e-7a3b-9c1d-2e4f6a8b0c1d", fields["document_id"])
	assert.Equal(t, "FAC-2026-000001", fields["number"])
}

func TestWithContext_EmptyContextAddsNothing(t *testing.T) {
	log, logs := observed()

	log.WithContext(context.Background()).Infow("worker started")
	log.WithComponent("outbox").Warnw("batch failed", "count", 3)

	require.Equal(t, 2, logs.Len())
	assert.Empty(t, logs.All()[0].ContextMap())
	assert.Equal(t, map[string]any{"component": "outbox", "count": int64(3)}, logs.All()[1].ContextMap())
}
