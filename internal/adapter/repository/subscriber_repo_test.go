package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessment-generator/internal/infrastructure/migration"
	"assessment-generator/pkg/infrastructure"
)

func TestSubscriberRepo(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := infrastructure.NewSubscriberPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migration.RunMigrations(ctx, pool, nil))
	// migrations are idempotent
	require.NoError(t, migration.RunMigrations(ctx, pool, nil))

	runStoreContract(t, NewSubscriberRepo(pool))
}

func TestDecodeLeadMagnets(t *testing.T) {
	got, err := decodeLeadMagnets([]byte(`{"IT Assessment":"2025-01-01T10:00:00.000Z","count":3,"gone":null}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"IT Assessment": "2025-01-01T10:00:00.000Z", "count": "3"}, got)

	_, err = decodeLeadMagnets([]byte(`[1,2]`))
	assert.Error(t, err)
}
