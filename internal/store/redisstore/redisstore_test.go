package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/guruji-chat/internal/common"
	"github.com/suPer8Hu/guruji-chat/internal/history"
)

var _ history.Store = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s := New(addr, os.Getenv("REDIS_PASSWORD"), 0, time.Minute)
	require.NoError(t, s.Ping(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "guruji:chat:session:abc", sessionKey("abc"))
	assert.Equal(t, "guruji:chat:history:abc", historyKey("abc"))
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := common.NewULID()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Delete(ctx, id) })

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, history.ErrNotFound)

	_, err = s.Create(ctx, id)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, id,
		history.Entry{Role: "user", Content: "Hello"},
		history.Entry{Role: "assistant", Content: "Hi there"},
	))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Hi there", got[1].Content)
}
