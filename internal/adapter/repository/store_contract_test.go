package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessment-generator/internal/domain"
	"assessment-generator/internal/usecase"
)

const magnet = "IT Assessment"

func strPtr(s string) *string { return &s }

// runStoreContract exercises the behaviour every SubscriberStore must share.
func runStoreContract(t *testing.T, store usecase.SubscriberStore) {
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"
	token := "tok-" + uuid.NewString()
	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(72 * time.Hour)

	t.Run("unknown token", func(t *testing.T) {
		sub, err := store.FindByToken(ctx, "missing-"+token)
		require.NoError(t, err)
		assert.Nil(t, sub)

		ok, err := store.CompareAndSwapGenerated(ctx, "missing-"+token, magnet, nil, strPtr("x"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("upsert creates record", func(t *testing.T) {
		require.NoError(t, store.UpsertGenerated(ctx, email, token, magnet, t0))
		sub, err := store.FindByToken(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.Equal(t, email, sub.Email)
		assert.Equal(t, domain.FormatTimestamp(t0), sub.LeadMagnets[magnet])
	})

	t.Run("swap requires matching expected value", func(t *testing.T) {
		ok, err := store.CompareAndSwapGenerated(ctx, token, magnet, nil, strPtr(domain.FormatTimestamp(t1)))
		require.NoError(t, err)
		assert.False(t, ok, "absent expected must not match a present key")

		ok, err = store.CompareAndSwapGenerated(ctx, token, magnet, strPtr("2000-01-01T00:00:00.000Z"), strPtr(domain.FormatTimestamp(t1)))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.CompareAndSwapGenerated(ctx, token, magnet, strPtr(domain.FormatTimestamp(t0)), strPtr(domain.FormatTimestamp(t1)))
		require.NoError(t, err)
		assert.True(t, ok)

		sub, err := store.FindByToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, domain.FormatTimestamp(t1), sub.LeadMagnets[magnet])
	})

	t.Run("nil next removes the key", func(t *testing.T) {
		ok, err := store.CompareAndSwapGenerated(ctx, token, magnet, strPtr(domain.FormatTimestamp(t1)), nil)
		require.NoError(t, err)
		assert.True(t, ok)

		sub, err := store.FindByToken(ctx, token)
		require.NoError(t, err)
		_, present := sub.LeadMagnets[magnet]
		assert.False(t, present)

		ok, err = store.CompareAndSwapGenerated(ctx, token, magnet, nil, strPtr(domain.FormatTimestamp(t0)))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("upsert merges and keeps token", func(t *testing.T) {
		require.NoError(t, store.UpsertGenerated(ctx, email, "other-token", "Checklist", t1))
		sub, err := store.FindByToken(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.Equal(t, domain.FormatTimestamp(t0), sub.LeadMagnets[magnet])
		assert.Equal(t, domain.FormatTimestamp(t1), sub.LeadMagnets["Checklist"])
	})

	t.Run("token owned by another email is rejected", func(t *testing.T) {
		other := uuid.NewString() + "@example.com"
		err := store.UpsertGenerated(ctx, other, token, magnet, t1)
		assert.ErrorIs(t, err, domain.ErrTokenInUse)

		sub, err := store.FindByToken(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.Equal(t, email, sub.Email)
	})

	t.Run("subscriber with its own token keeps it", func(t *testing.T) {
		other := uuid.NewString() + "@example.com"
		ownToken := "tok-" + uuid.NewString()
		require.NoError(t, store.UpsertGenerated(ctx, other, ownToken, magnet, t0))

		require.NoError(t, store.UpsertGenerated(ctx, other, token, "Checklist", t1))

		sub, err := store.FindByToken(ctx, ownToken)
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.Equal(t, other, sub.Email)
		assert.Equal(t, domain.FormatTimestamp(t1), sub.LeadMagnets["Checklist"])

		sub, err = store.FindByToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, email, sub.Email)
	})

	t.Run("concurrent swaps have one winner", func(t *testing.T) {
		expected := domain.FormatTimestamp(t0)
		const n = 10
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				next := fmt.Sprintf("2025-02-01T00:00:%02d.000Z", i)
				ok, err := store.CompareAndSwapGenerated(ctx, token, magnet, &expected, &next)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
