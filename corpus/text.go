package corpus

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// TextExt is the extension of the files read from a directory by the text backend.
const TextExt = ".txt"

func init() {
	Register("text", func(path string, opts Options) (Loader, error) {
		return NewText(path, opts)
	})
}

// A Text loads plain text files, one document per file.
type Text struct {
	files   []string
	maxDocs int
}

// NewText returns a Text loader for path.
// If path is a file, it is the only document.
// If path is a directory, every file with the TextExt extension below it is a document, in lexical order of their paths.
func NewText(path string, opts Options) (*Text, error) {
	info, err := Stat(path)
	if err != nil {
		return nil, err
	}
	t := &Text{maxDocs: opts.MaxDocs}
	if !info.IsDir() {
		t.files = []string{path}
		return t, nil
	}

	// WalkDir visits entries in lexical order.
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != TextExt {
			return nil
		}
		t.files = append(t.files, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return t, nil
}

// Files returns the files loaded as documents.
func (t *Text) Files() []string {
	if t.maxDocs > 0 && len(t.files) > t.maxDocs {
		return t.files[:t.maxDocs]
	}
	return t.files
}

// Each reads the files one at a time and passes their contents to fn.
func (t *Text) Each(fn func(doc []byte) error) error {
	for _, p := range t.Files() {
		b, err := os.ReadFile(p)
		if err != nil {
			return errors.Wrap(err, "")
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}
