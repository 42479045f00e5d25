// Package workspace implements the global broadcast workspace and the
// bounded working memory that sits beside it.
//
// The workspace is a pub/sub surface: gated content is broadcast as
// BroadcastItems, subscribers receive items matching their topic filters,
// and a periodic sweep expires old items and trims the history to
// capacity. Working memory holds a handful of active representations
// whose activation decays over time. A Manager couples the two so a
// broadcast can be mirrored into a working-memory slot atomically.
package workspace

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/reasoner"
)

// BroadcastItem is one unit of gated content made globally available.
type BroadcastItem struct {
	ID           string               `json:"id"`
	Text         string               `json:"text"`
	Contributors []reasoner.AgentType `json:"contributors"`
	Confidence   float64              `json:"confidence"`
	Speculative  bool                 `json:"speculative"`
	Iteration    int                  `json:"iteration"`
	Metadata     map[string]any       `json:"metadata,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// NewItem builds a broadcast item with a fresh id and timestamp.
func NewItem(text string, contributors []reasoner.AgentType, confidence float64) *BroadcastItem {
	return &BroadcastItem{
		ID:           uuid.NewString(),
		Text:         text,
		Contributors: contributors,
		Confidence:   confidence,
		Metadata:     map[string]any{},
		CreatedAt:    time.Now(),
	}
}

// HasContributor reports whether agent contributed to the item.
func (b *BroadcastItem) HasContributor(agent reasoner.AgentType) bool {
	for _, a := range b.Contributors {
		if a == agent {
			return true
		}
	}
	return false
}

// SetMeta attaches a metadata entry, allocating the map on first use.
func (b *BroadcastItem) SetMeta(key string, value any) {
	if b.Metadata == nil {
		b.Metadata = make(map[string]any)
	}
	b.Metadata[key] = value
}

// Subscriber receives broadcast items as they are published.
type Subscriber func(*BroadcastItem)

// subscription pairs a callback with its topic filters. An empty topic
// list means the subscriber receives every item.
type subscription struct {
	callback Subscriber
	topics   []string
}

// Stats summarizes the workspace contents.
type Stats struct {
	TotalItems       int       `json:"total_items"`
	TotalSubscribers int       `json:"total_subscribers"`
	Topics           []string  `json:"topics"`
	OldestItem       time.Time `json:"oldest_item"`
	NewestItem       time.Time `json:"newest_item"`
}

// GlobalWorkspace stores broadcast items and fans them out to
// subscribers. All methods are safe for concurrent use.
type GlobalWorkspace struct {
	mu            sync.Mutex
	items         map[string]*BroadcastItem
	subscriptions map[string]*subscription

	maxItems     int
	ttl          time.Duration
	cleanupEvery time.Duration
	lastCleanup  time.Time
}

// New builds a workspace from cfg; a nil cfg uses defaults.
func New(cfg *config.WorkspaceConfig) *GlobalWorkspace {
	if cfg == nil {
		cfg = &config.WorkspaceConfig{}
	}
	cfg.SetDefaults()
	return &GlobalWorkspace{
		items:         make(map[string]*BroadcastItem),
		subscriptions: make(map[string]*subscription),
		maxItems:      cfg.MaxItems,
		ttl:           time.Duration(cfg.TTLSeconds) * time.Second,
		cleanupEvery:  time.Duration(cfg.CleanupIntervalSeconds) * time.Second,
		lastCleanup:   time.Now(),
	}
}

// Broadcast stores the item and notifies matching subscribers. Callback
// panics are recovered and logged so one subscriber cannot abort the
// fan-out.
func (w *GlobalWorkspace) Broadcast(item *BroadcastItem) {
	w.mu.Lock()
	w.items[item.ID] = item
	targets := w.matchingSubscribers(item)
	w.cleanupIfNeeded()
	w.mu.Unlock()

	for _, cb := range targets {
		safeNotify(cb, item)
	}
}

// Subscribe registers a callback under id, replacing any previous
// registration. With no topics the subscriber receives every broadcast;
// with topics it receives items whose text contains a topic or whose
// contributors include an agent named by one.
func (w *GlobalWorkspace) Subscribe(id string, callback Subscriber, topics ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	lowered := make([]string, len(topics))
	for i, t := range topics {
		lowered[i] = strings.ToLower(t)
	}
	w.subscriptions[id] = &subscription{callback: callback, topics: lowered}
}

// Unsubscribe removes the registration for id.
func (w *GlobalWorkspace) Unsubscribe(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.subscriptions, id)
}

// Item returns the broadcast item with the given id.
func (w *GlobalWorkspace) Item(id string) (*BroadcastItem, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	item, ok := w.items[id]
	return item, ok
}

// ItemsByAgent returns all items the agent contributed to, ordered by
// (confidence, created-at) descending.
func (w *GlobalWorkspace) ItemsByAgent(agent reasoner.AgentType) []*BroadcastItem {
	return w.collect(func(item *BroadcastItem) bool {
		return item.HasContributor(agent)
	})
}

// ItemsByConfidence returns all items at or above minConfidence, ordered
// by (confidence, created-at) descending.
func (w *GlobalWorkspace) ItemsByConfidence(minConfidence float64) []*BroadcastItem {
	return w.collect(func(item *BroadcastItem) bool {
		return item.Confidence >= minConfidence
	})
}

// RecentItems returns items broadcast within the window, ordered by
// (confidence, created-at) descending.
func (w *GlobalWorkspace) RecentItems(window time.Duration) []*BroadcastItem {
	cutoff := time.Now().Add(-window)
	return w.collect(func(item *BroadcastItem) bool {
		return !item.CreatedAt.Before(cutoff)
	})
}

// Search returns up to maxResults items whose text contains the query,
// case-insensitively, ordered by (confidence, created-at) descending.
func (w *GlobalWorkspace) Search(query string, maxResults int) []*BroadcastItem {
	needle := strings.ToLower(query)
	matches := w.collect(func(item *BroadcastItem) bool {
		return strings.Contains(strings.ToLower(item.Text), needle)
	})
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

// Stats reports the current workspace shape.
func (w *GlobalWorkspace) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := Stats{
		TotalItems:       len(w.items),
		TotalSubscribers: len(w.subscriptions),
	}
	topicSet := make(map[string]bool)
	for _, sub := range w.subscriptions {
		for _, t := range sub.topics {
			topicSet[t] = true
		}
	}
	for t := range topicSet {
		stats.Topics = append(stats.Topics, t)
	}
	sort.Strings(stats.Topics)
	for _, item := range w.items {
		if stats.OldestItem.IsZero() || item.CreatedAt.Before(stats.OldestItem) {
			stats.OldestItem = item.CreatedAt
		}
		if item.CreatedAt.After(stats.NewestItem) {
			stats.NewestItem = item.CreatedAt
		}
	}
	return stats
}

// collect snapshots items passing the filter, sorted by (confidence,
// created-at) descending.
func (w *GlobalWorkspace) collect(keep func(*BroadcastItem) bool) []*BroadcastItem {
	w.mu.Lock()
	var out []*BroadcastItem
	for _, item := range w.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// matchingSubscribers resolves the callbacks to notify for item. Caller
// must hold the lock.
func (w *GlobalWorkspace) matchingSubscribers(item *BroadcastItem) []Subscriber {
	loweredText := strings.ToLower(item.Text)
	var targets []Subscriber
	for _, sub := range w.subscriptions {
		if len(sub.topics) == 0 {
			targets = append(targets, sub.callback)
			continue
		}
		for _, topic := range sub.topics {
			if strings.Contains(loweredText, topic) || topicNamesContributor(topic, item.Contributors) {
				targets = append(targets, sub.callback)
				break
			}
		}
	}
	return targets
}

func topicNamesContributor(topic string, contributors []reasoner.AgentType) bool {
	for _, agent := range contributors {
		if topic == string(agent) {
			return true
		}
	}
	return false
}

// cleanupIfNeeded expires items past TTL and trims oldest-first down to
// capacity, at most once per cleanup interval. Caller must hold the lock.
func (w *GlobalWorkspace) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(w.lastCleanup) < w.cleanupEvery {
		return
	}
	w.lastCleanup = now

	cutoff := now.Add(-w.ttl)
	for id, item := range w.items {
		if item.CreatedAt.Before(cutoff) {
			delete(w.items, id)
		}
	}

	if len(w.items) <= w.maxItems {
		return
	}
	byAge := make([]*BroadcastItem, 0, len(w.items))
	for _, item := range w.items {
		byAge = append(byAge, item)
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].CreatedAt.Before(byAge[j].CreatedAt)
	})
	for _, item := range byAge[:len(w.items)-w.maxItems] {
		delete(w.items, item.ID)
	}
}

func safeNotify(cb Subscriber, item *BroadcastItem) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Workspace subscriber panicked", "item", item.ID, "panic", r)
		}
	}()
	cb(item)
}
