package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWMAddAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WMAdd(ctx, "u1", []string{"first", "second", "third"}, 5))

	entries, err := s.WMGet(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, entries)
}

func TestWMTrimsToCapacity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WMAdd(ctx, "u1", []string{"e1", "e2", "e3", "e4", "e5"}, 3))

	entries, err := s.WMGet(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e4", "e5"}, entries)

	// Later adds keep trimming the oldest.
	require.NoError(t, s.WMAdd(ctx, "u1", []string{"e6"}, 3))
	entries, err = s.WMGet(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"e4", "e5", "e6"}, entries)
}

func TestWMDefaultCapacity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := make([]string, 9)
	for i := 0; i < 9; i++ {
		entries[i] = string(rune('a' + i))
	}
	require.NoError(t, s.WMAdd(ctx, "u1", entries, 0))

	got, err := s.WMGet(ctx, "u1", 0)
	require.NoError(t, err)
	// Default ring holds seven.
	assert.Equal(t, []string{"c", "d", "e", "f", "g", "h", "i"}, got)
}

func TestWMIsolatesUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WMAdd(ctx, "u1", []string{"mine"}, 5))
	require.NoError(t, s.WMAdd(ctx, "u2", []string{"yours"}, 5))

	u1, err := s.WMGet(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, u1)

	u2, err := s.WMGet(ctx, "u2", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"yours"}, u2)
}

func TestWMClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WMAdd(ctx, "u1", []string{"a", "b"}, 5))

	n, err := s.WMClear(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := s.WMGet(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWMRequiresUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.WMAdd(ctx, "", []string{"x"}, 5))
	_, err := s.WMGet(ctx, "", 5)
	assert.Error(t, err)
	_, err = s.WMClear(ctx, "")
	assert.Error(t, err)
}

func TestWMAddNothingIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.WMAdd(context.Background(), "u1", nil, 5))
}
