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

package vector

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cortexkit/cortex/pkg/config"
)

// PineconeProvider backs the index with a managed pinecone index. The
// index itself must exist already; CreateCollection only verifies it.
type PineconeProvider struct {
	client    *pinecone.Client
	indexHost string
}

func NewPineconeProvider(cfg config.PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone api key is required")
	}
	if cfg.IndexHost == "" {
		return nil, fmt.Errorf("pinecone index host is required")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	return &PineconeProvider{
		client:    client,
		indexHost: cfg.IndexHost,
	}, nil
}

func (p *PineconeProvider) Name() string {
	return "pinecone"
}

// connect opens an index connection namespaced to the collection.
// Collections map to pinecone namespaces within the configured index.
func (p *PineconeProvider) connect(collection string) (*pinecone.IndexConnection, error) {
	conn, err := p.client.Index(pinecone.NewIndexConnParams{
		Host:      p.indexHost,
		Namespace: collection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pinecone index: %w", err)
	}
	return conn, nil
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	conn, err := p.connect(collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	var pcMetadata *pinecone.Metadata
	if len(metadata) > 0 {
		pcMetadata, err = structpb.NewStruct(metadata)
		if err != nil {
			return fmt.Errorf("failed to convert metadata: %w", err)
		}
	}

	_, err = conn.UpsertVectors(ctx, []*pinecone.Vector{{
		Id:       id,
		Values:   vector,
		Metadata: pcMetadata,
	}})
	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}

	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

func (p *PineconeProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	conn, err := p.connect(collection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var metadataFilter *pinecone.MetadataFilter
	if len(filter) > 0 {
		metadataFilter, err = structpb.NewStruct(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to convert filter: %w", err)
		}
	}

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		MetadataFilter:  metadataFilter,
		IncludeMetadata: true,
		IncludeValues:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query pinecone: %w", err)
	}

	return convertPineconeResults(resp.Matches), nil
}

func (p *PineconeProvider) Delete(ctx context.Context, collection string, id string) error {
	conn, err := p.connect(collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete vector: %w", err)
	}
	return nil
}

func (p *PineconeProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	conn, err := p.connect(collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	var metadataFilter *pinecone.MetadataFilter
	if len(filter) > 0 {
		metadataFilter, err = structpb.NewStruct(filter)
		if err != nil {
			return fmt.Errorf("failed to convert filter: %w", err)
		}
	}

	if err := conn.DeleteVectorsByFilter(ctx, metadataFilter); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// CreateCollection verifies the index is reachable. Pinecone indexes
// are provisioned out of band; namespaces appear on first upsert.
func (p *PineconeProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	conn, err := p.connect(collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.DescribeIndexStats(ctx); err != nil {
		return fmt.Errorf("pinecone index not reachable: %w", err)
	}
	return nil
}

// DeleteCollection clears all vectors in the collection's namespace.
func (p *PineconeProvider) DeleteCollection(ctx context.Context, collection string) error {
	conn, err := p.connect(collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DeleteAllVectorsInNamespace(ctx); err != nil {
		return fmt.Errorf("failed to clear namespace: %w", err)
	}
	return nil
}

func (p *PineconeProvider) Close() error {
	return nil
}

func convertPineconeResults(matches []*pinecone.ScoredVector) []Result {
	results := make([]Result, 0, len(matches))

	for _, match := range matches {
		if match == nil || match.Vector == nil {
			continue
		}

		metadata := make(map[string]any)
		if match.Vector.Metadata != nil {
			metadata = match.Vector.Metadata.AsMap()
		}

		content := ""
		if contentValue, ok := metadata["content"].(string); ok {
			content = contentValue
		}

		results = append(results, Result{
			ID:       match.Vector.Id,
			Content:  content,
			Vector:   match.Vector.Values,
			Metadata: metadata,
			Score:    match.Score,
		})
	}

	return results
}

var _ Provider = (*PineconeProvider)(nil)
