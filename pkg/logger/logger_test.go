package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextEnrichesLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	ctx := WithRequestID(context.Background(), "42")
	ctx = WithDatabase(ctx, "prod")
	ctx = WithModel(ctx, "res.partner")

	WithContext(ctx, zap.New(core)).Debug("call completed")

	require.Len(t, logs.All(), 1)
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "42", fields["request_id"])
	assert.Equal(t, "prod", fields["database"])
	assert.Equal(t, "res.partner", fields["model"])
}

func TestWithContextBareContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	WithContext(context.Background(), zap.New(core)).Debug("no scope")

	require.Len(t, logs.All(), 1)
	assert.Empty(t, logs.All()[0].ContextMap())
}
