package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-orders/internal/cache"
)

// fakeRedis implements only Del; any other command panics on the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable
	deleted []string
	err     error
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.deleted = append(f.deleted, keys...)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestRedisInvalidator(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes_keys", func(t *testing.T) {
		client := &fakeRedis{}
		require.NoError(t, cache.NewRedisInvalidator(client).Invalidate(ctx, "orders:recent"))
		assert.Equal(t, []string{"orders:recent"}, client.deleted)
	})

	t.Run("no_keys", func(t *testing.T) {
		client := &fakeRedis{}
		require.NoError(t, cache.NewRedisInvalidator(client).Invalidate(ctx))
		assert.Empty(t, client.deleted)
	})

	t.Run("wraps_errors", func(t *testing.T) {
		down := errors.New("dial tcp: connection refused")
		err := cache.NewRedisInvalidator(&fakeRedis{err: down}).Invalidate(ctx, "orders:recent")
		assert.ErrorIs(t, err, down)
	})
}

func TestNoop(t *testing.T) {
	assert.NoError(t, cache.Noop{}.Invalidate(context.Background(), "orders:recent"))
}
