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
)

// VectorProvider identifies the vector index provider type.
type VectorProvider string

const (
	VectorProviderChromem  VectorProvider = "chromem"
	VectorProviderQdrant   VectorProvider = "qdrant"
	VectorProviderPinecone VectorProvider = "pinecone"
)

// VectorConfig configures the vector index.
type VectorConfig struct {
	Provider VectorProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=Vector index provider,enum=chromem,enum=qdrant,enum=pinecone,default=chromem"`

	// Collection is the logical collection/index name.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty" jsonschema:"title=Collection,description=Collection name,default=cortex-memory"`

	Chromem  ChromemConfig  `yaml:"chromem,omitempty" json:"chromem,omitempty" jsonschema:"title=Chromem,description=Embedded chromem index settings"`
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty" json:"qdrant,omitempty" jsonschema:"title=Qdrant,description=Qdrant settings"`
	Pinecone PineconeConfig `yaml:"pinecone,omitempty" json:"pinecone,omitempty" jsonschema:"title=Pinecone,description=Pinecone settings"`
}

// ChromemConfig configures the embedded chromem index.
type ChromemConfig struct {
	// Path enables persistence when set; empty keeps the index in memory.
	Path string `yaml:"path,omitempty" json:"path,omitempty" jsonschema:"title=Path,description=Persistence path (empty = in-memory)"`

	// Compress gzips the persisted index.
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty" jsonschema:"title=Compress,description=Compress persisted index,default=true"`
}

// QdrantConfig configures a qdrant server connection.
type QdrantConfig struct {
	Host   string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Qdrant host,default=localhost"`
	Port   int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,description=Qdrant gRPC port,default=6334"`
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=Qdrant API key"`
	UseTLS bool   `yaml:"use_tls,omitempty" json:"use_tls,omitempty" jsonschema:"title=Use TLS,description=Connect with TLS"`
}

// PineconeConfig configures a pinecone index connection.
type PineconeConfig struct {
	APIKey    string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=Pinecone API key"`
	IndexHost string `yaml:"index_host,omitempty" json:"index_host,omitempty" jsonschema:"title=Index Host,description=Pinecone index host URL"`
}

// SetDefaults applies default values. memoryPath anchors the default
// chromem persistence directory.
func (c *VectorConfig) SetDefaults(memoryPath string) {
	if c.Provider == "" {
		c.Provider = VectorProviderChromem
	}
	if c.Collection == "" {
		c.Collection = "cortex-memory"
	}
	if c.Provider == VectorProviderChromem && c.Chromem.Path == "" && memoryPath != "" {
		c.Chromem.Path = filepath.Join(memoryPath, "vectors")
	}
	if c.Qdrant.Host == "" {
		c.Qdrant.Host = "localhost"
	}
	if c.Qdrant.Port == 0 {
		c.Qdrant.Port = 6334
	}
}

// Validate checks the vector configuration.
func (c *VectorConfig) Validate() error {
	switch c.Provider {
	case VectorProviderChromem, VectorProviderQdrant, VectorProviderPinecone:
	default:
		return fmt.Errorf("invalid provider %q (valid: chromem, qdrant, pinecone)", c.Provider)
	}
	if c.Provider == VectorProviderPinecone {
		if c.Pinecone.APIKey == "" {
			return fmt.Errorf("pinecone.api_key is required")
		}
		if c.Pinecone.IndexHost == "" {
			return fmt.Errorf("pinecone.index_host is required")
		}
	}
	return nil
}
