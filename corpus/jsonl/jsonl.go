// Package jsonl implements a corpus backend for JSON Lines datasets.
// Each record is a JSON object, and the string value of one of its fields is a document.
// Importing this package registers the backend under the name "jsonl".
package jsonl

import (
	"bufio"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fumin/ngram/corpus"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// DefaultField is the record field read when Options.Field is empty.
const DefaultField = "text"

// exts are the extensions of the files read from a directory.
var exts = []string{".jsonl", ".jsonl.gz", ".ndjson", ".ndjson.gz"}

func init() {
	corpus.Register("jsonl", func(path string, opts corpus.Options) (corpus.Loader, error) {
		return New(path, opts)
	})
}

// A Loader reads documents from JSON Lines files.
type Loader struct {
	files   []string
	field   string
	maxDocs int
}

// New returns a Loader for path, which is either a JSON Lines file or a directory of them.
// Files in a directory are read in lexical order of their paths.
func New(path string, opts corpus.Options) (*Loader, error) {
	info, err := corpus.Stat(path)
	if err != nil {
		return nil, err
	}
	l := &Loader{field: opts.Field, maxDocs: opts.MaxDocs}
	if l.field == "" {
		l.field = DefaultField
	}
	if !info.IsDir() {
		l.files = []string{path}
		return l, nil
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasDataExt(p) {
			return nil
		}
		l.files = append(l.files, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return l, nil
}

func hasDataExt(p string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// Files returns the files the Loader reads.
func (l *Loader) Files() []string {
	return l.files
}

// Each passes the text of every record to fn.
// Records lacking the field are skipped but still count towards MaxDocs.
// A field that is present but not a string is an error.
// Once MaxDocs records have been read, nothing further is decoded, so a dataset may be cut off after the cap.
func (l *Loader) Each(fn func(doc []byte) error) error {
	records := 0
	more := func() bool { return l.maxDocs <= 0 || records < l.maxDocs }
	for _, p := range l.files {
		if !more() {
			return nil
		}
		err := l.eachRecord(p, more, func(rec map[string]json.RawMessage) error {
			records++
			raw, ok := rec[l.field]
			if !ok || string(raw) == "null" {
				return nil
			}
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return errors.Wrapf(err, "%s: record %d field %q", p, records, l.field)
			}
			return fn([]byte(text))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// eachRecord decodes the records of p while more reports true.
func (l *Loader) eachRecord(p string, more func() bool, fn func(map[string]json.RawMessage) error) error {
	f, err := os.Open(p)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(p, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return errors.Wrap(err, p)
		}
		defer zr.Close()
		r = zr
	}

	dec := json.NewDecoder(r)
	for more() {
		var rec map[string]json.RawMessage
		err := dec.Decode(&rec)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, p)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}
