package precontext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemory implements MemorySource with per-user rings in a map.
type fakeMemory struct {
	snippets []string
	episodes []string
	hints    []string
	rings    map[string][]string
	err      error
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{rings: map[string][]string{}}
}

func (f *fakeMemory) RetrieveSnippets(ctx context.Context, query string, k int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.snippets) > k {
		return f.snippets[:k], nil
	}
	return f.snippets, nil
}

func (f *fakeMemory) RecentEpisodes(ctx context.Context, n int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.episodes) > n {
		return f.episodes[len(f.episodes)-n:], nil
	}
	return f.episodes, nil
}

func (f *fakeMemory) WMAdd(ctx context.Context, userID string, entries []string, capacity int) error {
	if f.err != nil {
		return f.err
	}
	ring := append(f.rings[userID], entries...)
	if len(ring) > capacity {
		ring = ring[len(ring)-capacity:]
	}
	f.rings[userID] = ring
	return nil
}

func (f *fakeMemory) WMGet(ctx context.Context, userID string, capacity int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	ring := f.rings[userID]
	if len(ring) > capacity {
		ring = ring[len(ring)-capacity:]
	}
	return ring, nil
}

func (f *fakeMemory) ProceduralHints(ctx context.Context, limit int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hints) > limit {
		return f.hints[:limit], nil
	}
	return f.hints, nil
}

func TestPreprocessBundle(t *testing.T) {
	mem := newFakeMemory()
	mem.snippets = []string{"we planned the memory subsystem"}
	mem.episodes = []string{"earlier: discussed pruning"}
	mem.hints = []string{"deploy-checklist"}

	p := New(mem)
	bundle := p.Preprocess(context.Background(), "u1", "What did we plan?")

	assert.NotEmpty(t, bundle.Timestamp)
	assert.Equal(t, "u1", bundle.UserID)
	assert.Equal(t, []string{"we planned the memory subsystem"}, bundle.Snippets)
	assert.Equal(t, []string{"earlier: discussed pruning"}, bundle.RecentMemory)
	assert.Equal(t, []string{"deploy-checklist"}, bundle.ProceduralHints)
	assert.Equal(t, "What did we plan?", bundle.RawTextPreview)
	assert.Equal(t, "cortex", bundle.Env["app"])
}

func TestPreprocessWorkingMemoryPersistsAcrossCalls(t *testing.T) {
	p := New(newFakeMemory())

	p.Preprocess(context.Background(), "u1", "alpha one")
	bundle := p.Preprocess(context.Background(), "u1", "beta two")

	joined := strings.Join(bundle.WorkingMemory, "\n")
	assert.Contains(t, joined, "alpha one")
	assert.Contains(t, joined, "beta two")
}

func TestPreprocessGlobalRingForAnonymous(t *testing.T) {
	p := New(nil, WithWMCap(2))

	p.Preprocess(context.Background(), "", "m1")
	p.Preprocess(context.Background(), "", "m2")
	bundle := p.Preprocess(context.Background(), "", "m3")

	// Ring is capped, oldest evicted first.
	require.Len(t, bundle.WorkingMemory, 2)
	assert.Equal(t, []string{"m2", "m3"}, bundle.WorkingMemory)
}

func TestPreprocessMemoryFailureDegrades(t *testing.T) {
	mem := newFakeMemory()
	mem.err = errors.New("store offline")

	p := New(mem)
	bundle := p.Preprocess(context.Background(), "u1", "query")

	assert.Empty(t, bundle.Snippets)
	assert.Empty(t, bundle.RecentMemory)
	assert.NotEmpty(t, bundle.Timestamp)
}

func TestPreprocessTruncation(t *testing.T) {
	long := strings.Repeat("x", 500)

	mem := newFakeMemory()
	mem.episodes = []string{long}

	p := New(mem)
	bundle := p.Preprocess(context.Background(), "", long)

	assert.Len(t, bundle.RawTextPreview, 280)
	require.Len(t, bundle.RecentMemory, 1)
	assert.Len(t, bundle.RecentMemory[0], 400)
}

func TestPreprocessSnippetSectionBudgeted(t *testing.T) {
	long := strings.Repeat("s", 1000) // 250 estimated tokens

	mem := newFakeMemory()
	mem.snippets = []string{"best " + long, "second " + long, "third " + long}

	p := New(mem)
	bundle := p.Preprocess(context.Background(), "", "query")

	// Drop-lowest: the top-ranked snippets within the budget survive.
	require.Len(t, bundle.Snippets, 2)
	assert.True(t, strings.HasPrefix(bundle.Snippets[0], "best"))
	assert.True(t, strings.HasPrefix(bundle.Snippets[1], "second"))
}

func TestPreprocessWorkingMemoryEchoBudgeted(t *testing.T) {
	p := New(newFakeMemory())

	var bundle *Context
	for _, q := range []string{"one", "two", "three", "four"} {
		bundle = p.Preprocess(context.Background(), "u1", q+" "+strings.Repeat("w", 600))
	}

	// The ring keeps all four entries; the prompt-facing echo keeps the
	// most recent ones that fit the token budget.
	require.Len(t, bundle.WorkingMemory, 3)
	assert.True(t, strings.HasPrefix(bundle.WorkingMemory[0], "two"))
	assert.True(t, strings.HasPrefix(bundle.WorkingMemory[2], "four"))
}

func TestPreprocessReadsUserProfile(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "user_info.json"), []byte(`{"name":"Ada"}`), 0o644)
	require.NoError(t, err)

	p := New(nil, WithProfilePath(dir))
	bundle := p.Preprocess(context.Background(), "u1", "hello")

	require.NotNil(t, bundle.UserProfile)
	assert.Equal(t, "Ada", bundle.UserProfile["name"])
}

func TestContextString(t *testing.T) {
	p := New(nil)
	bundle := p.Preprocess(context.Background(), "", "hi")

	s := bundle.String()
	assert.Contains(t, s, `"timestamp"`)
	assert.Contains(t, s, `"rawTextPreview":"hi"`)
}

func TestTokenBudgetFallbackEstimate(t *testing.T) {
	// Zero-value budget uses the len/4 estimate.
	var b *TokenBudget

	assert.Equal(t, 2, b.Count("12345678"))
	assert.Equal(t, "1234", b.Truncate("123456789", 1))
	assert.Equal(t, "", b.Truncate("anything", 0))
}

func TestTokenBudgetFitLines(t *testing.T) {
	var b *TokenBudget

	lines := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc"} // 2 estimated tokens each
	fitted := b.FitLines(lines, 4)

	// Most recent lines are kept.
	assert.Equal(t, []string{"bbbbbbbb", "cccccccc"}, fitted)
}

func TestTokenBudgetFitLinesOversizeNewest(t *testing.T) {
	var b *TokenBudget

	fitted := b.FitLines([]string{"old", strings.Repeat("n", 40)}, 2)

	// The newest line never vanishes outright; it is truncated instead.
	require.Len(t, fitted, 1)
	assert.Equal(t, strings.Repeat("n", 8), fitted[0])
}

func TestTokenBudgetFitTop(t *testing.T) {
	var b *TokenBudget

	lines := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc"} // 2 estimated tokens each
	assert.Equal(t, []string{"aaaaaaaa", "bbbbbbbb"}, b.FitTop(lines, 4))

	// An oversize top hit is kept truncated.
	fitted := b.FitTop([]string{strings.Repeat("t", 40), "rest"}, 2)
	require.Len(t, fitted, 1)
	assert.Equal(t, strings.Repeat("t", 8), fitted[0])

	assert.Nil(t, b.FitTop(nil, 4))
	assert.Nil(t, b.FitTop(lines, 0))
}
