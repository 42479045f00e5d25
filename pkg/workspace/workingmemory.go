package workspace

import (
	"sort"
	"sync"
	"time"

	"github.com/cortexkit/cortex/pkg/reasoner"
)

// decayFloor is the activation below which a slot is dropped.
const decayFloor = 0.01

// ActiveRepresentation is one working-memory slot.
type ActiveRepresentation struct {
	Content      string               `json:"content"`
	SourceAgents []reasoner.AgentType `json:"source_agents"`
	Priority     float64              `json:"priority"`
	Decay        float64              `json:"decay"`
	Metadata     map[string]any       `json:"metadata,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// WMStats summarizes the working-memory occupancy.
type WMStats struct {
	ActiveSlots       int     `json:"active_slots"`
	MaxSlots          int     `json:"max_slots"`
	AvgPriority       float64 `json:"avg_priority"`
	AvgDecay          float64 `json:"avg_decay"`
	AgentsRepresented int     `json:"agents_represented"`
}

// WorkingMemory holds a small set of active representations whose
// activation decays per minute. Capacity follows the classic seven-slot
// span; inserting past it evicts the lowest (priority, decay) slot.
// All methods are safe for concurrent use.
type WorkingMemory struct {
	mu        sync.Mutex
	slots     []*ActiveRepresentation
	maxSlots  int
	decayRate float64
	lastDecay time.Time
}

// NewWorkingMemory builds a working memory with the given capacity and
// per-minute decay rate. Non-positive arguments fall back to defaults.
func NewWorkingMemory(maxSlots int, decayRate float64) *WorkingMemory {
	if maxSlots <= 0 {
		maxSlots = 7
	}
	if decayRate <= 0 {
		decayRate = 0.1
	}
	return &WorkingMemory{
		maxSlots:  maxSlots,
		decayRate: decayRate,
		lastDecay: time.Now(),
	}
}

// Add stores a new representation at full activation. When the capacity
// is exceeded the lowest (priority, decay) slots are evicted.
func (m *WorkingMemory) Add(content string, sources []reasoner.AgentType, priority float64, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyDecay()

	if metadata == nil {
		metadata = map[string]any{}
	}
	m.slots = append(m.slots, &ActiveRepresentation{
		Content:      content,
		SourceAgents: sources,
		Priority:     priority,
		Decay:        1.0,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	})

	if len(m.slots) > m.maxSlots {
		sort.SliceStable(m.slots, func(i, j int) bool {
			if m.slots[i].Priority != m.slots[j].Priority {
				return m.slots[i].Priority > m.slots[j].Priority
			}
			return m.slots[i].Decay > m.slots[j].Decay
		})
		m.slots = m.slots[:m.maxSlots]
	}
}

// Representations returns the slots at or above minPriority.
func (m *WorkingMemory) Representations(minPriority float64) []*ActiveRepresentation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyDecay()
	var out []*ActiveRepresentation
	for _, rep := range m.slots {
		if rep.Priority >= minPriority {
			out = append(out, rep)
		}
	}
	return out
}

// ByAgent returns the slots the agent contributed to.
func (m *WorkingMemory) ByAgent(agent reasoner.AgentType) []*ActiveRepresentation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyDecay()
	var out []*ActiveRepresentation
	for _, rep := range m.slots {
		for _, a := range rep.SourceAgents {
			if a == agent {
				out = append(out, rep)
				break
			}
		}
	}
	return out
}

// UpdatePriority sets the priority of the slot holding content.
func (m *WorkingMemory) UpdatePriority(content string, priority float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rep := range m.slots {
		if rep.Content == content {
			rep.Priority = priority
			return true
		}
	}
	return false
}

// Remove drops the slot holding content.
func (m *WorkingMemory) Remove(content string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rep := range m.slots {
		if rep.Content == content {
			m.slots = append(m.slots[:i], m.slots[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every slot.
func (m *WorkingMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = nil
}

// Stats reports working-memory occupancy after applying decay.
func (m *WorkingMemory) Stats() WMStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyDecay()
	stats := WMStats{
		ActiveSlots: len(m.slots),
		MaxSlots:    m.maxSlots,
	}
	if len(m.slots) == 0 {
		return stats
	}
	agents := make(map[reasoner.AgentType]bool)
	for _, rep := range m.slots {
		stats.AvgPriority += rep.Priority
		stats.AvgDecay += rep.Decay
		for _, a := range rep.SourceAgents {
			agents[a] = true
		}
	}
	stats.AvgPriority /= float64(len(m.slots))
	stats.AvgDecay /= float64(len(m.slots))
	stats.AgentsRepresented = len(agents)
	return stats
}

// applyDecay multiplies each slot's activation by the elapsed-minutes
// decay factor and drops fully decayed slots. Caller must hold the lock.
func (m *WorkingMemory) applyDecay() {
	now := time.Now()
	minutes := now.Sub(m.lastDecay).Minutes()
	if minutes <= 0 {
		return
	}
	m.lastDecay = now

	kept := m.slots[:0]
	for _, rep := range m.slots {
		rep.Decay *= 1.0 - m.decayRate*minutes
		rep.Decay = max(0, rep.Decay)
		if rep.Decay > decayFloor {
			kept = append(kept, rep)
		}
	}
	m.slots = kept
}
