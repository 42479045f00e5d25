package workspace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/reasoner"
)

func TestNewItem(t *testing.T) {
	item := NewItem("hello", []reasoner.AgentType{reasoner.Logical}, 0.8)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "hello", item.Text)
	assert.InDelta(t, 0.8, item.Confidence, 1e-9)
	assert.False(t, item.Speculative)
	assert.NotNil(t, item.Metadata)
	assert.WithinDuration(t, time.Now(), item.CreatedAt, time.Second)
}

func TestHasContributor(t *testing.T) {
	item := NewItem("x", []reasoner.AgentType{reasoner.Logical, reasoner.Creative}, 0.5)
	assert.True(t, item.HasContributor(reasoner.Logical))
	assert.True(t, item.HasContributor(reasoner.Creative))
	assert.False(t, item.HasContributor(reasoner.Verifier))
}

func TestBroadcastStoresItem(t *testing.T) {
	ws := New(nil)
	item := NewItem("the plan holds", []reasoner.AgentType{reasoner.Logical}, 0.9)
	ws.Broadcast(item)

	got, ok := ws.Item(item.ID)
	require.True(t, ok)
	assert.Equal(t, item, got)

	_, ok = ws.Item("missing")
	assert.False(t, ok)
}

func TestSubscribeWithoutTopicsReceivesEverything(t *testing.T) {
	ws := New(nil)
	var received []string
	ws.Subscribe("all", func(item *BroadcastItem) {
		received = append(received, item.Text)
	})

	ws.Broadcast(NewItem("first", []reasoner.AgentType{reasoner.Logical}, 0.5))
	ws.Broadcast(NewItem("second", []reasoner.AgentType{reasoner.Creative}, 0.5))

	assert.Equal(t, []string{"first", "second"}, received)
}

func TestSubscribeTopicFilters(t *testing.T) {
	tests := []struct {
		name   string
		topics []string
		text   string
		agents []reasoner.AgentType
		want   bool
	}{
		{
			name:   "topic matches text substring",
			topics: []string{"budget"},
			text:   "The budget forecast looks stable.",
			agents: []reasoner.AgentType{reasoner.Logical},
			want:   true,
		},
		{
			name:   "topic matches case-insensitively",
			topics: []string{"Budget"},
			text:   "the BUDGET forecast",
			agents: []reasoner.AgentType{reasoner.Logical},
			want:   true,
		},
		{
			name:   "topic matches contributor type",
			topics: []string{"creative"},
			text:   "nothing relevant here",
			agents: []reasoner.AgentType{reasoner.Creative},
			want:   true,
		},
		{
			name:   "no match drops the item",
			topics: []string{"budget"},
			text:   "weather report",
			agents: []reasoner.AgentType{reasoner.Logical},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := New(nil)
			called := false
			ws.Subscribe("sub", func(*BroadcastItem) { called = true }, tt.topics...)
			ws.Broadcast(NewItem(tt.text, tt.agents, 0.5))
			assert.Equal(t, tt.want, called)
		})
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ws := New(nil)
	calls := 0
	ws.Subscribe("sub", func(*BroadcastItem) { calls++ })

	ws.Broadcast(NewItem("one", nil, 0.5))
	ws.Unsubscribe("sub")
	ws.Broadcast(NewItem("two", nil, 0.5))

	assert.Equal(t, 1, calls)
}

func TestPanickingSubscriberIsolated(t *testing.T) {
	ws := New(nil)
	ws.Subscribe("bad", func(*BroadcastItem) { panic("boom") })
	goodCalled := false
	ws.Subscribe("good", func(*BroadcastItem) { goodCalled = true })

	ws.Broadcast(NewItem("item", nil, 0.5))

	assert.True(t, goodCalled)
}

func TestItemsByAgent(t *testing.T) {
	ws := New(nil)
	a := NewItem("from logical", []reasoner.AgentType{reasoner.Logical}, 0.4)
	b := NewItem("joint", []reasoner.AgentType{reasoner.Logical, reasoner.Creative}, 0.9)
	c := NewItem("from creative", []reasoner.AgentType{reasoner.Creative}, 0.6)
	ws.Broadcast(a)
	ws.Broadcast(b)
	ws.Broadcast(c)

	got := ws.ItemsByAgent(reasoner.Logical)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID, "higher confidence first")
	assert.Equal(t, a.ID, got[1].ID)
}

func TestItemsByConfidence(t *testing.T) {
	ws := New(nil)
	ws.Broadcast(NewItem("low", nil, 0.2))
	high := NewItem("high", nil, 0.9)
	ws.Broadcast(high)

	got := ws.ItemsByConfidence(0.5)
	require.Len(t, got, 1)
	assert.Equal(t, high.ID, got[0].ID)
}

func TestRecentItems(t *testing.T) {
	ws := New(nil)
	old := NewItem("old", nil, 0.5)
	old.CreatedAt = time.Now().Add(-30 * time.Minute)
	ws.Broadcast(old)
	fresh := NewItem("fresh", nil, 0.5)
	ws.Broadcast(fresh)

	got := ws.RecentItems(10 * time.Minute)
	require.Len(t, got, 1)
	assert.Equal(t, fresh.ID, got[0].ID)
}

func TestSearchOrderingAndCap(t *testing.T) {
	ws := New(nil)
	low := NewItem("alpha result low", nil, 0.3)
	mid := NewItem("alpha result mid", nil, 0.6)
	top := NewItem("ALPHA result top", nil, 0.9)
	other := NewItem("beta only", nil, 0.99)
	for _, item := range []*BroadcastItem{low, mid, top, other} {
		ws.Broadcast(item)
	}

	got := ws.Search("alpha", 10)
	require.Len(t, got, 3)
	assert.Equal(t, top.ID, got[0].ID)
	assert.Equal(t, mid.ID, got[1].ID)
	assert.Equal(t, low.ID, got[2].ID)

	capped := ws.Search("alpha", 2)
	require.Len(t, capped, 2)
	assert.Equal(t, top.ID, capped[0].ID)
}

func TestSearchTiesBreakOnRecency(t *testing.T) {
	ws := New(nil)
	older := NewItem("tie one", nil, 0.5)
	older.CreatedAt = time.Now().Add(-time.Minute)
	newer := NewItem("tie two", nil, 0.5)
	ws.Broadcast(older)
	ws.Broadcast(newer)

	got := ws.Search("tie", 10)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
}

func TestCleanupExpiresTTL(t *testing.T) {
	ws := New(nil)
	expired := NewItem("stale", nil, 0.5)
	expired.CreatedAt = time.Now().Add(-2 * time.Hour)
	ws.Broadcast(expired)

	ws.lastCleanup = time.Now().Add(-10 * time.Minute)
	fresh := NewItem("fresh", nil, 0.5)
	ws.Broadcast(fresh)

	_, ok := ws.Item(expired.ID)
	assert.False(t, ok, "expired item swept")
	_, ok = ws.Item(fresh.ID)
	assert.True(t, ok)
}

func TestCleanupTrimsOldestOverCapacity(t *testing.T) {
	cfg := &config.WorkspaceConfig{MaxItems: 2}
	ws := New(cfg)

	oldest := NewItem("oldest", nil, 0.9)
	oldest.CreatedAt = time.Now().Add(-3 * time.Minute)
	middle := NewItem("middle", nil, 0.1)
	middle.CreatedAt = time.Now().Add(-2 * time.Minute)
	ws.Broadcast(oldest)
	ws.Broadcast(middle)

	ws.lastCleanup = time.Now().Add(-10 * time.Minute)
	newest := NewItem("newest", nil, 0.5)
	ws.Broadcast(newest)

	_, ok := ws.Item(oldest.ID)
	assert.False(t, ok, "oldest trimmed regardless of confidence")
	_, ok = ws.Item(middle.ID)
	assert.True(t, ok)
	_, ok = ws.Item(newest.ID)
	assert.True(t, ok)
}

func TestCleanupRespectsInterval(t *testing.T) {
	ws := New(nil)
	expired := NewItem("stale", nil, 0.5)
	expired.CreatedAt = time.Now().Add(-2 * time.Hour)
	ws.Broadcast(expired)

	// lastCleanup is recent, so the sweep must not run yet.
	ws.Broadcast(NewItem("fresh", nil, 0.5))

	_, ok := ws.Item(expired.ID)
	assert.True(t, ok, "sweep paced by the cleanup interval")
}

func TestWorkspaceStats(t *testing.T) {
	ws := New(nil)
	ws.Subscribe("a", func(*BroadcastItem) {}, "budget", "risk")
	ws.Subscribe("b", func(*BroadcastItem) {})

	older := NewItem("one", nil, 0.5)
	older.CreatedAt = time.Now().Add(-time.Minute)
	ws.Broadcast(older)
	newer := NewItem("two", nil, 0.5)
	ws.Broadcast(newer)

	stats := ws.Stats()
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, 2, stats.TotalSubscribers)
	assert.Equal(t, []string{"budget", "risk"}, stats.Topics)
	assert.Equal(t, older.CreatedAt, stats.OldestItem)
	assert.Equal(t, newer.CreatedAt, stats.NewestItem)
}

func TestWorkspaceStatsEmpty(t *testing.T) {
	stats := New(nil).Stats()
	assert.Equal(t, 0, stats.TotalItems)
	assert.True(t, stats.OldestItem.IsZero())
	assert.True(t, stats.NewestItem.IsZero())
}
