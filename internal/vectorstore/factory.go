package vectorstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/supportd/internal/config"
	"go.uber.org/zap"
)

// NewStore creates a new Store based on the configuration.
//
// This factory function examines the VectorStore.Provider field and
// creates the appropriate store implementation:
//   - "chromem" (default): embedded ChromemStore, no external deps
//   - "qdrant": QdrantStore over gRPC, requires a Qdrant server
//   - "pgvector": PgvectorStore, requires PostgreSQL with pgvector
//
// The chromem provider is recommended for single-node deployments as it
// requires no setup. Example usage:
//
//	cfg := config.Load()
//	store, err := vectorstore.NewStore(ctx, cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.VectorStore.Chromem.Path,
			Compress:   cfg.VectorStore.Chromem.Compress,
			VectorSize: cfg.VectorStore.VectorSize,
		}, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.VectorStore.Qdrant.Host,
			Port:       cfg.VectorStore.Qdrant.Port,
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
			VectorSize: uint64(cfg.VectorStore.VectorSize),
		}, logger)

	case "pgvector":
		return NewPgvectorStore(ctx, PgvectorConfig{
			DSN:        cfg.VectorStore.Pgvector.DSN.Value(),
			VectorSize: cfg.VectorStore.VectorSize,
			MaxConns:   cfg.VectorStore.Pgvector.MaxConns,
		}, logger)

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant, pgvector)", cfg.VectorStore.Provider)
	}
}
