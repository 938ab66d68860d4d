package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectory(t *testing.T) (*NameDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewNameDirectory(client, ""), mr
}

func TestNameDirectoryLookup(t *testing.T) {
	ctx := context.Background()
	dir, mr := newDirectory(t)
	id := uuid.New()

	require.NoError(t, dir.Remember(ctx, "  Notch ", id))
	assert.Equal(t, id.String(), mr.HGet(DefaultNamesKey, "notch"))

	got, ok, err := dir.LookupName(ctx, "NOTCH")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	require.NoError(t, dir.Forget(ctx, "notch"))
	_, ok, err = dir.LookupName(ctx, "notch")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNameDirectoryUnknownAndEmpty(t *testing.T) {
	dir, _ := newDirectory(t)

	_, ok, err := dir.LookupName(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = dir.LookupName(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, dir.Remember(context.Background(), "", uuid.New()))
}

func TestNameDirectoryErrors(t *testing.T) {
	ctx := context.Background()
	dir, mr := newDirectory(t)

	mr.HSet(DefaultNamesKey, "broken", "not-a-uuid")
	_, _, err := dir.LookupName(ctx, "broken")
	assert.Error(t, err)

	mr.Close()
	_, ok, err := dir.LookupName(ctx, "anyone")
	assert.Error(t, err)
	assert.False(t, ok)
}
