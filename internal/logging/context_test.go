package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestWithRequestID_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() {
		WithRequestID(context.Background(), "")
	})
	assert.Panics(t, func() {
		WithRequestID(context.Background(), "bad id with spaces")
	})
}

func TestWithAgentID_DropsInvalid(t *testing.T) {
	ctx := WithAgentID(context.Background(), "agent-7")
	assert.Equal(t, "agent-7", AgentIDFromContext(ctx))

	// Invalid agent IDs come from client payloads and are silently dropped
	ctx = WithAgentID(context.Background(), "agent 7; DROP TABLE")
	assert.Empty(t, AgentIDFromContext(ctx))

	ctx = WithAgentID(context.Background(), "")
	assert.Empty(t, AgentIDFromContext(ctx))
}

func TestContextFields(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithAgentID(ctx, "agent-1")

	fields := ContextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "request.id", fields[0].Key)
	assert.Equal(t, "agent.id", fields[1].Key)
}

func TestFromContext_Fallback(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)

	// Nop logger should be safe to use
	logger.Info(context.Background(), "ignored")
}

func TestWithLogger_RoundTrip(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)

	got := FromContext(ctx)
	assert.Same(t, tl.Logger, got)
}
