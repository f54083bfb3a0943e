package ngram

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data: corpus/\nn: 5\nmin_count: 3\ntext_mode: true\nmemory_limit: 4GiB\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	want := DefaultConfig()
	want.Data = "corpus/"
	want.Order = 5
	want.MinCount = 3
	want.TextMode = true
	want.MemoryLimit = "4GiB"
	assert.Equal(t, want, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "text", cfg.LoaderBackend())

	limit, err := cfg.memoryLimit(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4<<30), limit)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("n: [1, 2\n"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Data = "corpus"
	require.NoError(t, valid.Validate())
	assert.Equal(t, "jsonl", valid.LoaderBackend())

	tests := []struct {
		name   string
		modify func(*Config)
		target error
	}{
		{"no data", func(c *Config) { c.Data = "" }, ErrInvalidConfig},
		{"order", func(c *Config) { c.Order = 0 }, ErrInvalidOrder},
		{"min count", func(c *Config) { c.MinCount = 0 }, ErrInvalidMinCount},
		{"no output", func(c *Config) { c.Output = "" }, ErrInvalidConfig},
		{"no backend", func(c *Config) { c.Backend = "" }, ErrInvalidConfig},
		{"max docs", func(c *Config) { c.MaxDocs = -1 }, ErrInvalidConfig},
		{"workers", func(c *Config) { c.Workers = 0 }, ErrInvalidConfig},
		{"memory limit", func(c *Config) { c.MemoryLimit = "lots" }, ErrInvalidConfig},
		{"size warning", func(c *Config) { c.SizeWarning = "big" }, ErrInvalidConfig},
	}
	for _, test := range tests {
		cfg := valid
		test.modify(&cfg)
		assert.ErrorIs(t, cfg.Validate(), test.target, test.name)
	}
}

func TestConfigMemoryLimit(t *testing.T) {
	cfg := DefaultConfig()
	limit, err := cfg.memoryLimit(func() (uint64, error) { return 1000, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(800), limit)

	cfg.MemoryLimit = MemoryLimitOff
	limit, err = cfg.memoryLimit(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), limit)
}
