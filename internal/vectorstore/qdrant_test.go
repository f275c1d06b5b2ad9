package vectorstore

import (
	"errors"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	cfg := QdrantConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, uint64(384), cfg.VectorSize)
	assert.Equal(t, qdrant.Distance_Cosine, cfg.Distance)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.CircuitBreakerThreshold)
}

func TestQdrantConfig_Validate(t *testing.T) {
	valid := QdrantConfig{Host: "localhost", Port: 6334, VectorSize: 384}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		cfg  QdrantConfig
	}{
		{"missing host", QdrantConfig{Port: 6334, VectorSize: 384}},
		{"invalid port", QdrantConfig{Host: "localhost", Port: 99999, VectorSize: 384}},
		{"missing vector size", QdrantConfig{Host: "localhost", Port: 6334}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", status.Error(codes.Unavailable, "down"), true},
		{"deadline exceeded", status.Error(codes.DeadlineExceeded, "slow"), true},
		{"aborted", status.Error(codes.Aborted, "conflict"), true},
		{"resource exhausted", status.Error(codes.ResourceExhausted, "quota"), true},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad"), false},
		{"not found", status.Error(codes.NotFound, "missing"), false},
		{"permission denied", status.Error(codes.PermissionDenied, "nope"), false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

func TestResultFromPayload(t *testing.T) {
	payload := map[string]*qdrant.Value{
		"content": qdrant.NewValueString("Question: q\nSolution: s"),
		"id":      qdrant.NewValueString("doc-9"),
		"brand":   qdrant.NewValueString("bosch"),
		"count":   qdrant.NewValueInt(3),
	}

	res := resultFromPayload("point-uuid", 0.92, []float32{1, 0}, payload)

	assert.Equal(t, "doc-9", res.ID)
	assert.Equal(t, "Question: q\nSolution: s", res.Content)
	assert.InDelta(t, 0.92, res.Score, 0.001)
	assert.Equal(t, []float32{1, 0}, res.Embedding)
	assert.Equal(t, "bosch", res.Metadata["brand"])

	// Non-string payload values are skipped, not copied into metadata.
	_, ok := res.Metadata["count"]
	assert.False(t, ok)
}

func TestResultFromPayload_NilPayload(t *testing.T) {
	res := resultFromPayload("point-uuid", 0.5, nil, nil)

	assert.Equal(t, "point-uuid", res.ID)
	assert.Empty(t, res.Content)
	assert.Nil(t, res.Metadata)
}
