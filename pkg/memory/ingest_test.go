package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestSingleFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "notes.md", "# Harvest\nThe pears ripen in September.")

	results, err := s.IngestPath(ctx, path)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Empty(t, results[0].Error)
	require.NotEmpty(t, results[0].MemoryID)

	item, err := s.Get(ctx, results[0].MemoryID)
	require.NoError(t, err)
	assert.Equal(t, KindSemantic, item.Kind)
	assert.Equal(t, "# Harvest\nThe pears ripen in September.", item.RawText)
	assert.Contains(t, item.Tags, "ingested")
	assert.Contains(t, item.Tags, "notes.md")
}

func TestIngestDirectory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	writeFile(t, dir, "a.txt", "Alpha document body.")
	writeFile(t, dir, "b.log", "Beta log line.")
	writeFile(t, dir, "binary.bin", "\x00\x01\x02")
	writeFile(t, dir, "empty.txt", "   ")

	results, err := s.IngestPath(ctx, dir)
	require.NoError(t, err)
	require.Len(t, results, 4)

	byName := make(map[string]IngestResult)
	for _, r := range results {
		byName[filepath.Base(r.Path)] = r
	}

	assert.NotEmpty(t, byName["a.txt"].MemoryID)
	assert.NotEmpty(t, byName["b.log"].MemoryID)
	assert.True(t, byName["binary.bin"].Skipped)
	assert.True(t, byName["empty.txt"].Skipped)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ItemsByKind[KindSemantic])
}

func TestIngestMissingPath(t *testing.T) {
	s := newTestStore(t)

	_, err := s.IngestPath(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.ErrorContains(t, err, "failed to stat")
}

func TestIngestReportsParserErrors(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()

	// Extension says PDF; content is not.
	path := writeFile(t, dir, "broken.pdf", "plain text pretending")

	results, err := s.IngestPath(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].MemoryID)
	assert.NotEmpty(t, results[0].Error)
}

func TestParserRegistryCoverage(t *testing.T) {
	for _, ext := range []string{".pdf", ".docx", ".xlsx", ".txt", ".md", ".markdown", ".rst", ".log"} {
		_, ok := parsers[ext]
		assert.True(t, ok, ext)
	}
	_, ok := parsers[".exe"]
	assert.False(t, ok)
}
