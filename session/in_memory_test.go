package session

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hupe1980/jubilee/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	id := fmt.Sprintf("s-%d", time.Now().UnixNano())

	h, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, h.Len())

	h.Append(
		core.Message{Role: core.RoleUser, Content: "hello"},
		core.Message{Role: core.RoleAssistant, Content: "peace be with you"},
	)
	require.NoError(t, store.Save(ctx, id, h))

	again, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, h.Messages(), again.Messages())

	require.NoError(t, store.Delete(ctx, id))
	gone, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, gone.Len())

	_, err = store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore()
	exerciseStore(t, store)

	_, err := store.Load(context.Background(), "b")
	require.NoError(t, err)
	_, err = store.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, store.IDs())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("JUBILEE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("JUBILEE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	exerciseStore(t, NewRedisStore(client, "jubilee-test:session:", time.Minute))
}
