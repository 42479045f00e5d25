package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"file", TypeFile, false},
		{"", TypeFile, false},
		{"consul", TypeConsul, false},
		{"etcd", TypeEtcd, false},
		{"zookeeper", TypeZookeeper, false},
		{"zk", TypeZookeeper, false},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		got, err := ParseType(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Options{Type: TypeFile})
	require.Error(t, err)
}

func TestFileSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key: value\n"), 0o644))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, TypeFile, src.Type())

	data, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key: value\n", string(data))
}

func TestFileSourceLoadMissing(t *testing.T) {
	src, err := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Load(context.Background())
	require.Error(t, err)
}

func TestFileSourceWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key: one\n"), 0o644))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := src.Watch(ctx)
	require.NoError(t, err)

	// Give the watch loop a moment to start, then modify the file.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("key: two\n"), 0o644))

	select {
	case _, ok := <-changes:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change signal")
	}
}

func TestFileSourceWatchAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key: value\n"), 0o644))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, err = src.Watch(context.Background())
	require.Error(t, err)
}
