package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, SQLite, "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Migrate(ctx))
	p, err := s.Provider()
	require.NoError(t, err)
	v, err := p.GetDBVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, "oracle", "x")
	assert.ErrorContains(t, err, "unknown backend")

	_, err = Open(ctx, Postgres, "")
	assert.ErrorContains(t, err, "database url is required")

	_, err = Open(ctx, MySQL, "not a dsn")
	assert.Error(t, err)
}
