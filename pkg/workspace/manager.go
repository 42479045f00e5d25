package workspace

import (
	"sync"

	"github.com/cortexkit/cortex/pkg/config"
)

// Manager couples the global workspace with working memory so that a
// broadcast and its working-memory mirror land together.
type Manager struct {
	mu sync.Mutex
	ws *GlobalWorkspace
	wm *WorkingMemory
}

// NewManager builds both halves from cfg; a nil cfg uses defaults.
func NewManager(cfg *config.WorkspaceConfig) *Manager {
	if cfg == nil {
		cfg = &config.WorkspaceConfig{}
	}
	cfg.SetDefaults()
	return &Manager{
		ws: New(cfg),
		wm: NewWorkingMemory(cfg.WMMaxSlots, cfg.WMDecayRate),
	}
}

// Workspace exposes the global workspace.
func (m *Manager) Workspace() *GlobalWorkspace { return m.ws }

// WorkingMemory exposes the working-memory slots.
func (m *Manager) WorkingMemory() *WorkingMemory { return m.wm }

// BroadcastAndStore publishes the item and, when storeInWM is set,
// mirrors it into a working-memory slot whose priority is the item's
// confidence. The two inserts happen under one lock so readers never see
// a broadcast without its slot.
func (m *Manager) BroadcastAndStore(item *BroadcastItem, storeInWM bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ws.Broadcast(item)
	if storeInWM {
		m.wm.Add(item.Text, item.Contributors, item.Confidence, map[string]any{
			"broadcast_id": item.ID,
			"speculative":  item.Speculative,
		})
	}
}

// View reports the combined state of both halves.
func (m *Manager) View() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"global_workspace": m.ws.Stats(),
		"working_memory":   m.wm.Stats(),
	}
}
