package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdSource loads config from an etcd key.
type EtcdSource struct {
	client *clientv3.Client
	key    string
}

// NewEtcdSource creates a source that reads from an etcd key.
func NewEtcdSource(endpoints []string, key string) (*EtcdSource, error) {
	if key == "" {
		return nil, fmt.Errorf("etcd key is required")
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints are required")
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return &EtcdSource{
		client: client,
		key:    key,
	}, nil
}

// Type returns TypeEtcd.
func (s *EtcdSource) Type() Type {
	return TypeEtcd
}

// Load reads the config key from etcd.
func (s *EtcdSource) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.client.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read etcd key %s: %w", s.key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("etcd key %s not found", s.key)
	}
	return resp.Kvs[0].Value, nil
}

// Watch uses the etcd watch API to signal on key changes.
func (s *EtcdSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	watchCh := s.client.Watch(ctx, s.key)

	go func() {
		defer close(ch)
		for resp := range watchCh {
			if err := resp.Err(); err != nil {
				slog.Error("Etcd watch error", "key", s.key, "error", err)
				continue
			}
			if len(resp.Events) == 0 {
				continue
			}
			select {
			case ch <- struct{}{}:
				slog.Debug("Etcd key changed", "key", s.key)
			default:
			}
		}
	}()

	return ch, nil
}

// Close releases the etcd client.
func (s *EtcdSource) Close() error {
	return s.client.Close()
}

// Ensure EtcdSource implements Source
var _ Source = (*EtcdSource)(nil)
