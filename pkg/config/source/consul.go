package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/consul/api"
)

// ConsulSource loads config from a Consul KV key.
type ConsulSource struct {
	client *api.Client
	key    string
}

// NewConsulSource creates a source that reads from a Consul KV key.
func NewConsulSource(address, key string) (*ConsulSource, error) {
	if key == "" {
		return nil, fmt.Errorf("consul key is required")
	}

	consulConfig := api.DefaultConfig()
	if address != "" {
		consulConfig.Address = address
	}

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulSource{
		client: client,
		key:    key,
	}, nil
}

// Type returns TypeConsul.
func (s *ConsulSource) Type() Type {
	return TypeConsul
}

// Load reads the config key from Consul.
func (s *ConsulSource) Load(ctx context.Context) ([]byte, error) {
	opts := (&api.QueryOptions{}).WithContext(ctx)
	pair, _, err := s.client.KV().Get(s.key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", s.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", s.key)
	}
	return pair.Value, nil
}

// Watch uses Consul blocking queries to signal on key changes.
func (s *ConsulSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go s.watchLoop(ctx, ch)
	return ch, nil
}

func (s *ConsulSource) watchLoop(ctx context.Context, ch chan<- struct{}) {
	defer close(ch)

	var lastIndex uint64
	for {
		if ctx.Err() != nil {
			return
		}

		opts := (&api.QueryOptions{
			WaitIndex: lastIndex,
			WaitTime:  30 * time.Second,
		}).WithContext(ctx)

		pair, meta, err := s.client.KV().Get(s.key, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Consul watch error", "key", s.key, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		if meta == nil || meta.LastIndex == lastIndex {
			continue
		}

		// First observation establishes the baseline
		if lastIndex != 0 && pair != nil {
			select {
			case ch <- struct{}{}:
				slog.Debug("Consul key changed", "key", s.key)
			default:
			}
		}
		lastIndex = meta.LastIndex
	}
}

// Close releases the consul client.
func (s *ConsulSource) Close() error {
	return nil
}

// Ensure ConsulSource implements Source
var _ Source = (*ConsulSource)(nil)
