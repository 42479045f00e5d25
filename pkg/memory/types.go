package memory

import (
	"errors"
	"time"
)

// Kind classifies a memory item.
type Kind string

const (
	KindEpisodic   Kind = "episodic"
	KindSemantic   Kind = "semantic"
	KindReflective Kind = "reflective"
	KindProcedural Kind = "procedural"
)

// ValidKind reports whether k names a known memory kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindEpisodic, KindSemantic, KindReflective, KindProcedural:
		return true
	}
	return false
}

// PrivacyLevel restricts retrieval of an item. High and sensitive items
// never surface in retrieval results.
type PrivacyLevel string

const (
	PrivacyLow       PrivacyLevel = "low"
	PrivacyMedium    PrivacyLevel = "medium"
	PrivacyHigh      PrivacyLevel = "high"
	PrivacySensitive PrivacyLevel = "sensitive"
)

// Sentinel errors callers branch on.
var (
	// ErrNotFound reports a missing memory item.
	ErrNotFound = errors.New("memory item not found")

	// ErrConsentRequired rejects writes without consent.
	ErrConsentRequired = errors.New("consent required for memory write")

	// ErrLowNovelty rejects near-duplicate writes.
	ErrLowNovelty = errors.New("content below novelty floor")
)

// Item is one stored memory.
type Item struct {
	ID         string       `json:"id"`
	Kind       Kind         `json:"kind"`
	RawText    string       `json:"raw_text"`
	Summary    string       `json:"summary,omitempty"`
	Tags       []string     `json:"tags,omitempty"`
	Importance float64      `json:"importance"`
	Consent    bool         `json:"consent"`
	Privacy    PrivacyLevel `json:"privacy"`
	Tombstoned bool         `json:"tombstoned"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Hit is one retrieval result.
type Hit struct {
	MemoryID   string    `json:"memory_id"`
	ChunkText  string    `json:"chunk_text"`
	Distance   float64   `json:"distance"`
	Importance float64   `json:"importance"`
	Score      float64   `json:"score"`
	Kind       Kind      `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event is one session event log entry.
type Event struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ProceduralItem names a registered procedure.
type ProceduralItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Steps       []string  `json:"steps,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats summarizes the store contents and counters.
type Stats struct {
	ItemsByKind    map[Kind]int `json:"items_by_kind"`
	TotalItems     int          `json:"total_items"`
	TotalChunks    int          `json:"total_chunks"`
	TombstoneShare float64      `json:"tombstone_share"`
	SemanticFacts  int          `json:"semantic_facts"`
	Events         int          `json:"events"`
	Procedural     int          `json:"procedural"`
	Hits           int64        `json:"hits"`
	Misses         int64        `json:"misses"`
}

// WriteRequest carries the full parameter set for Write.
type WriteRequest struct {
	Kind       Kind
	Text       string
	Tags       []string
	Importance float64
	Consent    bool
	Privacy    PrivacyLevel
}
