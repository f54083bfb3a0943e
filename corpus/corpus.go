// Package corpus defines how training documents are loaded.
// A backend turns a source location into a Loader; see its subpackages for backends other than plain text files.
package corpus

import (
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrSourceNotFound is returned when the source location does not exist.
	ErrSourceNotFound = errors.New("corpus source not found")
	// ErrLoaderDependencyMissing is returned when a backend is not available in this build.
	ErrLoaderDependencyMissing = errors.New("corpus backend not available")
)

// A Loader produces the documents of a corpus.
type Loader interface {
	// Each calls fn with every document, in an order that is the same on every call.
	// fn must not retain doc after it returns.
	// Each stops and returns the first error returned by fn.
	Each(fn func(doc []byte) error) error
}

// Options configures a Loader.
type Options struct {
	// MaxDocs caps the number of documents; zero or less means all.
	MaxDocs int
	// Field names the record field that holds the text in structured datasets.
	Field string
}

// An Opener creates a Loader for the source at path.
type Opener func(path string, opts Options) (Loader, error)

var (
	mu       sync.RWMutex
	registry = map[string]Opener{}
)

// hints explain how to obtain backends that are known but not compiled in.
var hints = map[string]string{
	"jsonl": `import _ "github.com/fumin/ngram/corpus/jsonl" to enable it`,
	"arrow": "HuggingFace on-disk datasets are not supported natively; export the dataset with dataset.to_json(path, lines=True) and use the jsonl backend",
}

// Register makes a backend available by name.
// It is intended to be called from the init function of backend packages.
func Register(name string, open Opener) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = open
}

// Backends returns the names of the registered backends.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns a Loader for path using the named backend.
func Open(backend, path string, opts Options) (Loader, error) {
	mu.RLock()
	open, ok := registry[backend]
	mu.RUnlock()
	if !ok {
		hint, known := hints[backend]
		if !known {
			hint = "unknown backend"
		}
		return nil, errors.Wrapf(ErrLoaderDependencyMissing, "%q (%s); available: %v", backend, hint, Backends())
	}
	return open(path, opts)
}

// Stat returns the file info of path, or ErrSourceNotFound if it does not exist.
func Stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrSourceNotFound, path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return info, nil
}
