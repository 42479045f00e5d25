package workspace

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/reasoner"
)

func TestWorkingMemoryAdd(t *testing.T) {
	wm := NewWorkingMemory(7, 0.1)
	wm.Add("remember this", []reasoner.AgentType{reasoner.Logical}, 0.8, nil)

	reps := wm.Representations(0)
	require.Len(t, reps, 1)
	assert.Equal(t, "remember this", reps[0].Content)
	assert.InDelta(t, 0.8, reps[0].Priority, 1e-9)
	assert.InDelta(t, 1.0, reps[0].Decay, 1e-6)
	assert.NotNil(t, reps[0].Metadata)
}

func TestWorkingMemoryEvictsLowestPriority(t *testing.T) {
	wm := NewWorkingMemory(3, 0.1)
	wm.Add("low", nil, 0.1, nil)
	wm.Add("mid", nil, 0.5, nil)
	wm.Add("high", nil, 0.9, nil)
	wm.Add("new", nil, 0.7, nil)

	reps := wm.Representations(0)
	require.Len(t, reps, 3)
	contents := make([]string, len(reps))
	for i, rep := range reps {
		contents[i] = rep.Content
	}
	assert.NotContains(t, contents, "low")
	assert.Contains(t, contents, "high")
	assert.Contains(t, contents, "new")
}

func TestWorkingMemoryCapacityIsSeven(t *testing.T) {
	wm := NewWorkingMemory(0, 0)
	for i := 0; i < 10; i++ {
		wm.Add(fmt.Sprintf("item %d", i), nil, 0.5, nil)
	}
	assert.Len(t, wm.Representations(0), 7)
}

func TestWorkingMemoryDecay(t *testing.T) {
	wm := NewWorkingMemory(7, 0.1)
	wm.Add("fading", nil, 0.5, nil)

	wm.lastDecay = time.Now().Add(-5 * time.Minute)
	reps := wm.Representations(0)
	require.Len(t, reps, 1)
	// decay ×= (1 − 0.1·5)
	assert.InDelta(t, 0.5, reps[0].Decay, 0.01)
}

func TestWorkingMemoryDropsFullyDecayed(t *testing.T) {
	wm := NewWorkingMemory(7, 0.1)
	wm.Add("gone", nil, 0.9, nil)

	wm.lastDecay = time.Now().Add(-30 * time.Minute)
	assert.Empty(t, wm.Representations(0))
}

func TestWorkingMemoryMinPriorityFilter(t *testing.T) {
	wm := NewWorkingMemory(7, 0.1)
	wm.Add("low", nil, 0.2, nil)
	wm.Add("high", nil, 0.8, nil)

	reps := wm.Representations(0.5)
	require.Len(t, reps, 1)
	assert.Equal(t, "high", reps[0].Content)
}

func TestWorkingMemoryByAgent(t *testing.T) {
	wm := NewWorkingMemory(7, 0.1)
	wm.Add("logical note", []reasoner.AgentType{reasoner.Logical}, 0.5, nil)
	wm.Add("creative note", []reasoner.AgentType{reasoner.Creative}, 0.5, nil)

	reps := wm.ByAgent(reasoner.Creative)
	require.Len(t, reps, 1)
	assert.Equal(t, "creative note", reps[0].Content)
}

func TestWorkingMemoryUpdatePriority(t *testing.T) {
	wm := NewWorkingMemory(7, 0.1)
	wm.Add("note", nil, 0.3, nil)

	assert.True(t, wm.UpdatePriority("note", 0.9))
	assert.False(t, wm.UpdatePriority("missing", 0.9))

	reps := wm.Representations(0.8)
	require.Len(t, reps, 1)
	assert.InDelta(t, 0.9, reps[0].Priority, 1e-9)
}

func TestWorkingMemoryRemoveAndClear(t *testing.T) {
	wm := NewWorkingMemory(7, 0.1)
	wm.Add("a", nil, 0.5, nil)
	wm.Add("b", nil, 0.5, nil)

	assert.True(t, wm.Remove("a"))
	assert.False(t, wm.Remove("a"))
	assert.Len(t, wm.Representations(0), 1)

	wm.Clear()
	assert.Empty(t, wm.Representations(0))
}

func TestWorkingMemoryStats(t *testing.T) {
	wm := NewWorkingMemory(7, 0.1)
	wm.Add("a", []reasoner.AgentType{reasoner.Logical}, 0.4, nil)
	wm.Add("b", []reasoner.AgentType{reasoner.Logical, reasoner.Creative}, 0.8, nil)

	stats := wm.Stats()
	assert.Equal(t, 2, stats.ActiveSlots)
	assert.Equal(t, 7, stats.MaxSlots)
	assert.InDelta(t, 0.6, stats.AvgPriority, 1e-9)
	assert.InDelta(t, 1.0, stats.AvgDecay, 1e-6)
	assert.Equal(t, 2, stats.AgentsRepresented)
}

func TestWorkingMemoryStatsEmpty(t *testing.T) {
	stats := NewWorkingMemory(7, 0.1).Stats()
	assert.Equal(t, 0, stats.ActiveSlots)
	assert.Zero(t, stats.AvgPriority)
}

func TestManagerBroadcastAndStore(t *testing.T) {
	m := NewManager(nil)
	item := NewItem("shared insight", []reasoner.AgentType{reasoner.Strategic}, 0.75)
	item.Speculative = true
	m.BroadcastAndStore(item, true)

	_, ok := m.Workspace().Item(item.ID)
	assert.True(t, ok)

	reps := m.WorkingMemory().Representations(0)
	require.Len(t, reps, 1)
	assert.Equal(t, "shared insight", reps[0].Content)
	assert.InDelta(t, 0.75, reps[0].Priority, 1e-9, "priority mirrors confidence")
	assert.Equal(t, item.ID, reps[0].Metadata["broadcast_id"])
	assert.Equal(t, true, reps[0].Metadata["speculative"])
}

func TestManagerBroadcastWithoutWM(t *testing.T) {
	m := NewManager(nil)
	item := NewItem("broadcast only", nil, 0.5)
	m.BroadcastAndStore(item, false)

	_, ok := m.Workspace().Item(item.ID)
	assert.True(t, ok)
	assert.Empty(t, m.WorkingMemory().Representations(0))
}

func TestManagerView(t *testing.T) {
	m := NewManager(nil)
	m.BroadcastAndStore(NewItem("x", nil, 0.5), true)

	view := m.View()
	ws, ok := view["global_workspace"].(Stats)
	require.True(t, ok)
	assert.Equal(t, 1, ws.TotalItems)
	wm, ok := view["working_memory"].(WMStats)
	require.True(t, ok)
	assert.Equal(t, 1, wm.ActiveSlots)
}
