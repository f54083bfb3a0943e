package ngram

import (
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid config")

const (
	// MemoryLimitAuto sizes the memory limit from the memory available when training starts.
	MemoryLimitAuto = "auto"
	// MemoryLimitOff disables the memory limit.
	MemoryLimitOff = "off"

	// autoMemoryFraction is the share of available memory the auto limit allows the table to use.
	autoMemoryFraction = 0.8
)

// Config configures a training run.
type Config struct {
	// Data is the corpus location.
	Data string `yaml:"data"`
	// Order is the n-gram order N; contexts hold up to N-1 bytes.
	Order int `yaml:"n"`
	// MinCount is the pruning threshold.
	MinCount uint64 `yaml:"min_count"`
	// Output is the artifact path. It is given a ".json.gz" suffix if it lacks ".gz".
	Output string `yaml:"output"`

	// TextMode reads plain text files instead of a structured dataset.
	TextMode bool `yaml:"text_mode"`
	// Backend names the structured dataset backend used when TextMode is false.
	Backend string `yaml:"backend"`
	// Field is the record field holding document text in structured datasets.
	Field string `yaml:"field"`
	// MaxDocs caps the number of documents loaded; zero loads all.
	MaxDocs int `yaml:"max_docs"`

	// Workers is the number of counting goroutines.
	Workers int `yaml:"workers"`
	// MemoryLimit bounds the estimated table size: MemoryLimitAuto, MemoryLimitOff, or a size such as "4GiB".
	MemoryLimit string `yaml:"memory_limit"`
	// SizeWarning is the artifact size above which training warns.
	SizeWarning string `yaml:"size_warning"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Order:       1,
		MinCount:    2,
		Output:      "submission/counts.json.gz",
		Backend:     "jsonl",
		Field:       "text",
		Workers:     1,
		MemoryLimit: MemoryLimitAuto,
		SizeWarning: "900KiB",
	}
}

// LoadConfig reads a YAML configuration file.
// Fields absent from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Validate checks that cfg describes a runnable training job.
func (cfg Config) Validate() error {
	if cfg.Data == "" {
		return errors.Wrap(ErrInvalidConfig, "data path is required")
	}
	if cfg.Order < 1 {
		return errors.Wrapf(ErrInvalidOrder, "n=%d", cfg.Order)
	}
	if cfg.MinCount < 1 {
		return errors.Wrapf(ErrInvalidMinCount, "min_count=%d", cfg.MinCount)
	}
	if cfg.Output == "" {
		return errors.Wrap(ErrInvalidConfig, "output path is required")
	}
	if !cfg.TextMode && cfg.Backend == "" {
		return errors.Wrap(ErrInvalidConfig, "backend is required unless text_mode is set")
	}
	if cfg.MaxDocs < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_docs=%d", cfg.MaxDocs)
	}
	if cfg.Workers < 1 {
		return errors.Wrapf(ErrInvalidConfig, "workers=%d", cfg.Workers)
	}
	if _, err := cfg.sizeWarning(); err != nil {
		return err
	}
	switch strings.ToLower(cfg.MemoryLimit) {
	case "", MemoryLimitAuto, MemoryLimitOff:
	default:
		if _, err := humanize.ParseBytes(cfg.MemoryLimit); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "memory_limit=%q: %v", cfg.MemoryLimit, err)
		}
	}
	return nil
}

// LoaderBackend returns the corpus backend name cfg selects.
func (cfg Config) LoaderBackend() string {
	if cfg.TextMode {
		return "text"
	}
	return cfg.Backend
}

func (cfg Config) sizeWarning() (uint64, error) {
	if cfg.SizeWarning == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(cfg.SizeWarning)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "size_warning=%q: %v", cfg.SizeWarning, err)
	}
	return n, nil
}

// memoryLimit resolves MemoryLimit to a byte count, zero meaning unlimited.
// available reports the memory available to the process and is only consulted for MemoryLimitAuto.
func (cfg Config) memoryLimit(available func() (uint64, error)) (int64, error) {
	switch strings.ToLower(cfg.MemoryLimit) {
	case MemoryLimitOff:
		return 0, nil
	case "", MemoryLimitAuto:
		avail, err := available()
		if err != nil {
			return 0, errors.Wrap(err, "")
		}
		return int64(float64(avail) * autoMemoryFraction), nil
	}
	n, err := humanize.ParseBytes(cfg.MemoryLimit)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "memory_limit=%q: %v", cfg.MemoryLimit, err)
	}
	return int64(n), nil
}
