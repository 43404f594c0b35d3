package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := s.Create(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, created.IsZero())

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Append(ctx, "s1",
		Entry{Role: "user", Content: "Hello"},
		Entry{Role: "assistant", Content: "Hi there"},
	))
	got, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Hello", got[0].Content)
	assert.Equal(t, "Hi there", got[1].Content)

	// callers get a copy
	got[0].Content = "changed"
	again, _ := s.Get(ctx, "s1")
	assert.Equal(t, "Hello", again[0].Content)
}

func TestMemoryStore_AppendCreatesUnknownSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	require.NoError(t, s.Append(ctx, "fresh", Entry{Role: "user", Content: "x"}))
	got, err := s.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, s.Delete(ctx, "fresh"))
	_, err = s.Get(ctx, "fresh")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_SlidingExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(200 * time.Millisecond)
	_, _ = s.Create(ctx, "s1")

	time.Sleep(120 * time.Millisecond)
	_, err := s.Get(ctx, "s1")
	require.NoError(t, err)

	// past the original deadline, within the refreshed one
	time.Sleep(120 * time.Millisecond)
	_, err = s.Get(ctx, "s1")
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)
	_, err = s.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWindow(t *testing.T) {
	entries := []Entry{{Content: "1"}, {Content: "2"}, {Content: "3"}}

	assert.Equal(t, entries, Window(entries, 0))
	assert.Equal(t, entries, Window(entries, 5))
	assert.Equal(t, []Entry{{Content: "2"}, {Content: "3"}}, Window(entries, 2))
}
