package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	tokens := TokenSet{AccessToken: "a1", RefreshToken: "r1", AccountID: "acc1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, tokens))

	got, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tokens, got)

	require.NoError(t, store.Clear(ctx))

	_, ok, err = store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryDeviceIDStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeviceIDStore()

	_, ok, err := store.Load(ctx, "a@b.c")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "a@b.c", "device-1"))

	got, ok, err := store.Load(ctx, "a@b.c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "device-1", got)

	require.NoError(t, store.Clear(ctx, "a@b.c"))

	_, ok, err = store.Load(ctx, "a@b.c")
	require.NoError(t, err)
	assert.False(t, ok)
}
