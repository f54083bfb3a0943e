package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return dir
}

func collect(t *testing.T, l Loader) []string {
	t.Helper()
	var docs []string
	require.NoError(t, l.Each(func(doc []byte) error {
		docs = append(docs, string(doc))
		return nil
	}))
	return docs
}

func TestTextDirectory(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"b.txt":       "second",
		"a.txt":       "first",
		"c/d.txt":     "third",
		"c/notes.md":  "skipped",
		"e.txt.bak":   "skipped",
		"f/g/h.txt":   "fourth",
		"f/empty.txt": "",
	})
	l, err := Open("text", dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third", "", "fourth"}, collect(t, l))

	// Repeated iteration yields the same order.
	assert.Equal(t, collect(t, l), collect(t, l))
}

func TestTextSingleFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{"corpus.dat": "raw \x00\xff bytes"})
	l, err := NewText(filepath.Join(dir, "corpus.dat"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"raw \x00\xff bytes"}, collect(t, l))
}

func TestTextMaxDocs(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.txt": "1", "b.txt": "2", "c.txt": "3"})
	l, err := NewText(dir, Options{MaxDocs: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, collect(t, l))
	assert.Len(t, l.Files(), 2)
}

func TestSourceNotFound(t *testing.T) {
	_, err := Open("text", filepath.Join(t.TempDir(), "missing"), Options{})
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestLoaderDependencyMissing(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"arrow", "parquet"} {
		_, err := Open(backend, dir, Options{})
		assert.ErrorIs(t, err, ErrLoaderDependencyMissing, backend)
	}
	_, err := Open("arrow", dir, Options{})
	assert.Contains(t, err.Error(), "jsonl")
}

func TestEachStopsOnError(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.txt": "1", "b.txt": "2"})
	l, err := NewText(dir, Options{})
	require.NoError(t, err)
	stop := assert.AnError
	n := 0
	err = l.Each(func(doc []byte) error {
		n++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, n)
}

func TestRegister(t *testing.T) {
	Register("test-static", func(path string, opts Options) (Loader, error) {
		return NewText(path, opts)
	})
	assert.Contains(t, Backends(), "test-static")
	assert.Contains(t, Backends(), "text")
}
