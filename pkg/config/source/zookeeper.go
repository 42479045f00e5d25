package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-zookeeper/zk"
)

// ZookeeperSource loads config from a ZooKeeper node.
type ZookeeperSource struct {
	conn *zk.Conn
	path string
}

// NewZookeeperSource creates a source that reads from a ZooKeeper node.
func NewZookeeperSource(endpoints []string, path string) (*ZookeeperSource, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("zookeeper endpoints are required")
	}
	if path == "" {
		return nil, fmt.Errorf("zookeeper path is required")
	}

	conn, _, err := zk.Connect(endpoints, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	return &ZookeeperSource{
		conn: conn,
		path: path,
	}, nil
}

// Type returns TypeZookeeper.
func (s *ZookeeperSource) Type() Type {
	return TypeZookeeper
}

// Load reads the config node from ZooKeeper.
func (s *ZookeeperSource) Load(ctx context.Context) ([]byte, error) {
	data, _, err := s.conn.Get(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zookeeper path %s: %w", s.path, err)
	}
	return data, nil
}

// Watch re-arms a ZooKeeper data watch and signals on node changes.
func (s *ZookeeperSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go s.watchLoop(ctx, ch)
	return ch, nil
}

func (s *ZookeeperSource) watchLoop(ctx context.Context, ch chan<- struct{}) {
	defer close(ch)

	for {
		if ctx.Err() != nil {
			return
		}

		// zk watches are one-shot, re-arm after each event
		_, _, eventCh, err := s.conn.GetW(s.path)
		if err != nil {
			slog.Error("Zookeeper watch error", "path", s.path, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case event := <-eventCh:
			switch event.Type {
			case zk.EventNodeDataChanged:
				select {
				case ch <- struct{}{}:
					slog.Debug("Zookeeper node changed", "path", s.path)
				default:
				}
			case zk.EventNodeDeleted:
				slog.Warn("Zookeeper node was deleted", "path", s.path)
				return
			case zk.EventNotWatching:
				slog.Warn("Zookeeper watch lost", "path", s.path)
				return
			}
		}
	}
}

// Close releases the zookeeper connection.
func (s *ZookeeperSource) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// Ensure ZookeeperSource implements Source
var _ Source = (*ZookeeperSource)(nil)
