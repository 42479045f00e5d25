// Copyright 2025 The CortexKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// MemoryDriver identifies the SQL driver backing the memory store.
type MemoryDriver string

const (
	MemoryDriverSQLite   MemoryDriver = "sqlite"
	MemoryDriverPostgres MemoryDriver = "postgres"
	MemoryDriverMySQL    MemoryDriver = "mysql"
)

// MemoryConfig configures the layered memory system.
type MemoryConfig struct {
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Enable persistent memory,default=true"`

	// Path is the on-disk root for memory artifacts (DB, vectors).
	Path string `yaml:"path,omitempty" json:"path,omitempty" jsonschema:"title=Path,description=Memory root directory,default=memory/"`

	Driver MemoryDriver `yaml:"driver,omitempty" json:"driver,omitempty" jsonschema:"title=Driver,description=SQL driver,enum=sqlite,enum=postgres,enum=mysql,default=sqlite"`

	// DSN overrides the connection string. Defaults to <path>/cortex.db
	// for sqlite; required for postgres and mysql.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty" jsonschema:"title=DSN,description=Database connection string"`

	MaxEntries int `yaml:"max_entries,omitempty" json:"max_entries,omitempty" jsonschema:"title=Max Entries,description=Maximum stored memory items,default=1000"`

	// TopK is the default retrieval fan-out per layer.
	TopK int `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"title=Top K,description=Results per retrieval,default=5"`

	// ChunkSize caps stored chunk length in characters.
	ChunkSize int `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty" jsonschema:"title=Chunk Size,description=Maximum chunk size in characters,default=800"`

	WorkingMemorySlots int `yaml:"working_memory_slots,omitempty" json:"working_memory_slots,omitempty" jsonschema:"title=Working Memory Slots,description=Working memory ring capacity,default=7"`

	// EncryptionKey enables AES-GCM encryption of stored content when
	// set. Must be 16, 24, or 32 bytes.
	EncryptionKey string `yaml:"encryption_key,omitempty" json:"encryption_key,omitempty" jsonschema:"title=Encryption Key,description=AES key for content encryption at rest"`

	// NoveltyFloor rejects writes whose novelty falls below it.
	NoveltyFloor float64 `yaml:"novelty_floor,omitempty" json:"novelty_floor,omitempty" jsonschema:"title=Novelty Floor,description=Minimum novelty for writes,default=0.1"`

	// TombstoneRebuildThreshold triggers an index rebuild once the
	// tombstone ratio exceeds it.
	TombstoneRebuildThreshold float64 `yaml:"tombstone_rebuild_threshold,omitempty" json:"tombstone_rebuild_threshold,omitempty" jsonschema:"title=Tombstone Rebuild Threshold,description=Tombstone ratio that forces index rebuild,default=0.3"`

	// ConsolidationWindow bounds how far back consolidation scans.
	ConsolidationWindow time.Duration `yaml:"consolidation_window,omitempty" json:"consolidation_window,omitempty" jsonschema:"title=Consolidation Window,description=Episodic consolidation lookback,default=24h"`

	// PruneMaxAgeDays and PruneImportanceCeiling bound what Maintain
	// may prune: items older than the age with importance below the
	// ceiling.
	PruneMaxAgeDays        int     `yaml:"prune_max_age_days,omitempty" json:"prune_max_age_days,omitempty" jsonschema:"title=Prune Max Age Days,description=Age threshold for pruning,default=30"`
	PruneImportanceCeiling float64 `yaml:"prune_importance_ceiling,omitempty" json:"prune_importance_ceiling,omitempty" jsonschema:"title=Prune Importance Ceiling,description=Importance below which old items prune,default=0.3"`
}

// IsEnabled reports whether persistent memory is on.
func (c *MemoryConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SetDefaults applies default values.
func (c *MemoryConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.Path == "" {
		c.Path = "memory/"
	}
	if c.Driver == "" {
		c.Driver = MemoryDriverSQLite
	}
	if c.DSN == "" && c.Driver == MemoryDriverSQLite {
		c.DSN = filepath.Join(c.Path, "cortex.db")
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = 1000
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 800
	}
	if c.WorkingMemorySlots == 0 {
		c.WorkingMemorySlots = 7
	}
	if c.NoveltyFloor == 0 {
		c.NoveltyFloor = 0.1
	}
	if c.TombstoneRebuildThreshold == 0 {
		c.TombstoneRebuildThreshold = 0.3
	}
	if c.ConsolidationWindow == 0 {
		c.ConsolidationWindow = 24 * time.Hour
	}
	if c.PruneMaxAgeDays == 0 {
		c.PruneMaxAgeDays = 30
	}
	if c.PruneImportanceCeiling == 0 {
		c.PruneImportanceCeiling = 0.3
	}
}

// Validate checks the memory configuration.
func (c *MemoryConfig) Validate() error {
	switch c.Driver {
	case MemoryDriverSQLite, MemoryDriverPostgres, MemoryDriverMySQL:
	default:
		return fmt.Errorf("invalid driver %q (valid: sqlite, postgres, mysql)", c.Driver)
	}
	if c.Driver != MemoryDriverSQLite && c.DSN == "" {
		return fmt.Errorf("dsn is required for driver %q", c.Driver)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("max_entries must be non-negative, got %d", c.MaxEntries)
	}
	if k := len(c.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return fmt.Errorf("encryption_key must be 16, 24, or 32 bytes, got %d", k)
	}
	if c.NoveltyFloor < 0 || c.NoveltyFloor > 1 {
		return fmt.Errorf("novelty_floor must be in [0, 1], got %f", c.NoveltyFloor)
	}
	if c.TombstoneRebuildThreshold < 0 || c.TombstoneRebuildThreshold > 1 {
		return fmt.Errorf("tombstone_rebuild_threshold must be in [0, 1], got %f", c.TombstoneRebuildThreshold)
	}
	return nil
}
