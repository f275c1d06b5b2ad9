package vectorstore

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgvectorConfig_Validate(t *testing.T) {
	valid := PgvectorConfig{DSN: "postgres://localhost:5432/supportd", VectorSize: 384}
	assert.NoError(t, valid.Validate())

	missing := PgvectorConfig{VectorSize: 384}
	assert.ErrorIs(t, missing.Validate(), ErrInvalidConfig)
}

func TestPgvectorConfig_ApplyDefaults(t *testing.T) {
	cfg := PgvectorConfig{DSN: "postgres://localhost:5432/supportd"}
	cfg.ApplyDefaults()
	assert.Equal(t, 384, cfg.VectorSize)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, `"kb_reference"`, tableName("kb_reference"))
}

func TestPgvectorStore_MapTableError(t *testing.T) {
	s := &PgvectorStore{}

	missing := &pgconn.PgError{Code: pgUndefinedTable}
	assert.ErrorIs(t, s.mapTableError("kb_test", missing), ErrCollectionNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, s.mapTableError("kb_test", other))
}
