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

// Package vector provides the vector index behind semantic memory
// retrieval. The default chromem provider is embedded and zero-config;
// qdrant and pinecone back larger deployments.
package vector

import (
	"context"
	"fmt"

	"github.com/cortexkit/cortex/pkg/config"
)

// Result is one similarity search hit.
type Result struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]any
	Score    float32
}

// Provider is the interface all vector index backends implement.
type Provider interface {
	// Upsert adds or replaces a document with its pre-computed vector.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search finds the topK most similar vectors.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter combines similarity with metadata equality filters.
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes a document by ID.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes all documents matching the filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection ensures a collection exists.
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error

	// DeleteCollection removes a collection and its documents.
	DeleteCollection(ctx context.Context, collection string) error

	Name() string

	Close() error
}

// NilProvider is the disabled index: writes are dropped, searches are
// empty. Used when memory is off.
type NilProvider struct{}

func (NilProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	return nil
}

func (NilProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return nil, nil
}

func (NilProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	return nil, nil
}

func (NilProvider) Delete(ctx context.Context, collection string, id string) error {
	return nil
}

func (NilProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	return nil
}

func (NilProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	return nil
}

func (NilProvider) DeleteCollection(ctx context.Context, collection string) error {
	return nil
}

func (NilProvider) Name() string {
	return "nil"
}

func (NilProvider) Close() error {
	return nil
}

var _ Provider = NilProvider{}

// New builds a provider from configuration.
func New(cfg *config.VectorConfig) (Provider, error) {
	if cfg == nil {
		return NilProvider{}, nil
	}

	switch cfg.Provider {
	case config.VectorProviderChromem:
		return NewChromemProvider(cfg.Chromem)
	case config.VectorProviderQdrant:
		return NewQdrantProvider(cfg.Qdrant)
	case config.VectorProviderPinecone:
		return NewPineconeProvider(cfg.Pinecone)
	default:
		return nil, fmt.Errorf("unknown vector provider: %q (supported: chromem, qdrant, pinecone)", cfg.Provider)
	}
}
