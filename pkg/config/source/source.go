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

// Package source defines the config source abstraction.
//
// Sources load configuration from various backends (file, consul, etcd,
// zookeeper) and support watching for changes.
package source

import (
	"context"
	"fmt"
)

// Type identifies the config source type.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// ParseType converts a string to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "file", "":
		return TypeFile, nil
	case "consul":
		return TypeConsul, nil
	case "etcd":
		return TypeEtcd, nil
	case "zookeeper", "zk":
		return TypeZookeeper, nil
	default:
		return "", fmt.Errorf("unknown source type: %s", s)
	}
}

// Source abstracts config backends.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Type returns the source type for logging/debugging.
	Type() Type

	// Load reads raw config bytes from the backend.
	Load(ctx context.Context) ([]byte, error)

	// Watch starts watching for changes and signals via the returned channel.
	// The channel receives a value when config changes.
	// Cancel the context to stop watching.
	// Returns nil channel if watching is not supported.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases any resources held by the source.
	Close() error
}

// Options configures source creation.
type Options struct {
	// Type specifies the source type (file, consul, etcd, zookeeper).
	Type Type

	// Path is the config path (file path or key path).
	Path string

	// Endpoints for remote sources (consul, etcd, zookeeper).
	Endpoints []string
}

// New creates a Source based on Options.
func New(opts Options) (Source, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	if len(opts.Endpoints) == 0 {
		switch opts.Type {
		case TypeConsul:
			opts.Endpoints = []string{"localhost:8500"}
		case TypeEtcd:
			opts.Endpoints = []string{"localhost:2379"}
		case TypeZookeeper:
			opts.Endpoints = []string{"localhost:2181"}
		}
	}

	switch opts.Type {
	case TypeFile, "":
		return NewFileSource(opts.Path)
	case TypeConsul:
		return NewConsulSource(opts.Endpoints[0], opts.Path)
	case TypeEtcd:
		return NewEtcdSource(opts.Endpoints, opts.Path)
	case TypeZookeeper:
		return NewZookeeperSource(opts.Endpoints, opts.Path)
	default:
		return nil, fmt.Errorf("unknown source type: %s", opts.Type)
	}
}
