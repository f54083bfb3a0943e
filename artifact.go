package ngram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Artifact format:
//
//	gzip( {"<context>":[[byte,count],...],...} )
//
// The JSON is compact.
// A context key renders its bytes as a list of integers separated by ", ", for example "[104, 101]", and "[]" for the empty context.
// Readers on the inference side match keys textually, so the rendering must not change.
const (
	// maxArtifactBytes bounds the decompressed size accepted by Decode.
	maxArtifactBytes = 1 << 30 // 1 GiB

	artifactSuffix = ".json.gz"
)

var (
	// ErrEncodeIO is matched by errors returned when an artifact cannot be written.
	ErrEncodeIO = errors.New("cannot write artifact")
	// ErrDecodeFormat is matched by errors returned when an artifact is malformed.
	ErrDecodeFormat = errors.New("invalid artifact format")
)

// An EncodeIOError records a failure to write an artifact.
type EncodeIOError struct {
	Path string
	Err  error
}

func (e *EncodeIOError) Error() string {
	return fmt.Sprintf("%v %s: %v", ErrEncodeIO, e.Path, e.Err)
}

func (e *EncodeIOError) Unwrap() error { return e.Err }

func (e *EncodeIOError) Is(target error) bool { return target == ErrEncodeIO }

// A FormatError describes why an artifact could not be decoded.
// Key is the offending context key, empty when the problem is not tied to one.
type FormatError struct {
	Key    string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%v: %s", ErrDecodeFormat, e.Reason)
	}
	return fmt.Sprintf("%v: key %q: %s", ErrDecodeFormat, e.Key, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrDecodeFormat }

func formatErrorf(key, format string, args ...interface{}) error {
	return errors.WithStack(&FormatError{Key: key, Reason: fmt.Sprintf(format, args...)})
}

// FormatContext renders ctx as an artifact key.
func FormatContext(ctx Context) string {
	return string(appendContext(nil, ctx))
}

func appendContext(dst []byte, ctx Context) []byte {
	dst = append(dst, '[')
	for i := 0; i < len(ctx); i++ {
		if i > 0 {
			dst = append(dst, ',', ' ')
		}
		dst = strconv.AppendUint(dst, uint64(ctx[i]), 10)
	}
	return append(dst, ']')
}

// ParseContext parses an artifact key.
// Only the exact rendering of FormatContext is accepted.
func ParseContext(key string) (Context, error) {
	if len(key) < 2 || key[0] != '[' || key[len(key)-1] != ']' {
		return "", formatErrorf(key, "context key is not a bracketed list")
	}
	inner := key[1 : len(key)-1]
	if inner == "" {
		return "", nil
	}
	fields := strings.Split(inner, ", ")
	b := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return "", formatErrorf(key, "context element %q is not a byte value", f)
		}
		b = append(b, byte(v))
	}
	ctx := Context(b)
	if FormatContext(ctx) != key {
		return "", formatErrorf(key, "context key is not canonical, want %q", FormatContext(ctx))
	}
	return ctx, nil
}

// Marshal returns the JSON text of t.
// The output is deterministic: contexts are ordered as by Table.Contexts and the pairs of each context as by Distribution.Pairs.
func Marshal(t *Table) []byte {
	buf := make([]byte, 0, 64+t.Len()*16+t.Entries()*8)
	buf = append(buf, '{')
	for i, ctx := range t.Contexts() {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '"')
		buf = appendContext(buf, ctx)
		buf = append(buf, '"', ':', '[')
		d, _ := t.Get(ctx)
		for j, p := range d.Pairs() {
			if j > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, '[')
			buf = strconv.AppendUint(buf, uint64(p.Byte), 10)
			buf = append(buf, ',')
			buf = strconv.AppendUint(buf, p.Count, 10)
			buf = append(buf, ']')
		}
		buf = append(buf, ']')
	}
	buf = append(buf, '}')
	return buf
}

// Unmarshal parses the JSON text of a table.
// Anything that Marshal could not have produced from a pruned table is rejected with a FormatError:
// malformed or duplicate keys, values that are not lists of [byte, count] pairs, byte values above 255, zero counts, and bytes repeated within a context.
func Unmarshal(data []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, formatErrorf("", "%v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, formatErrorf("", "artifact is not a JSON object")
	}

	t := NewTable()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, formatErrorf("", "%v", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, formatErrorf("", "unexpected token %v", tok)
		}
		ctx, err := ParseContext(key)
		if err != nil {
			return nil, err
		}
		if _, ok := t.Get(ctx); ok {
			return nil, formatErrorf(key, "duplicate context")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, formatErrorf(key, "%v", err)
		}
		if len(raw) == 0 || raw[0] != '[' {
			return nil, formatErrorf(key, "value is not a list")
		}
		var pairs [][]uint64
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, formatErrorf(key, "%v", err)
		}

		t.Insert(ctx)
		d, _ := t.Get(ctx)
		for _, p := range pairs {
			if len(p) != 2 {
				return nil, formatErrorf(key, "pair %v does not have two elements", p)
			}
			if p[0] > 255 {
				return nil, formatErrorf(key, "byte value %d out of range", p[0])
			}
			if p[1] == 0 {
				return nil, formatErrorf(key, "zero count for byte %d", p[0])
			}
			if _, ok := d[byte(p[0])]; ok {
				return nil, formatErrorf(key, "duplicate byte %d", p[0])
			}
			t.Add(ctx, byte(p[0]), p[1])
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, formatErrorf("", "%v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, formatErrorf("", "trailing data after JSON object")
	}
	return t, nil
}

// Encode writes the gzipped JSON text of t to w.
func Encode(w io.Writer, t *Table) error {
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if _, err := zw.Write(Marshal(t)); err != nil {
		return errors.Wrap(err, "")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Decode reads a table written by Encode.
// Corrupt compression and malformed JSON are reported as FormatErrors.
func Decode(r io.Reader) (*Table, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, formatErrorf("", "gzip: %v", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(io.LimitReader(zr, maxArtifactBytes+1))
	if err != nil {
		return nil, formatErrorf("", "gzip: %v", err)
	}
	if len(data) > maxArtifactBytes {
		return nil, formatErrorf("", "decompressed artifact exceeds %d bytes", maxArtifactBytes)
	}
	return Unmarshal(data)
}

// ArtifactPath returns path with a gzip suffix.
// A path not ending in ".gz" has its extension replaced by ".json.gz".
// The leading dot of a base name such as ".model" does not start an extension.
func ArtifactPath(path string) string {
	if strings.HasSuffix(path, ".gz") {
		return path
	}
	ext := filepath.Ext(path)
	if len(ext) == len(filepath.Base(path)) {
		ext = ""
	}
	return strings.TrimSuffix(path, ext) + artifactSuffix
}

// WriteFile encodes t to path and returns the size of the written file.
// The artifact is written to a temporary file in the same directory and renamed into place, so readers never observe a truncated artifact.
// Failures are reported as an EncodeIOError.
func WriteFile(path string, t *Table) (int64, error) {
	wrap := func(err error) error {
		return errors.WithStack(&EncodeIOError{Path: path, Err: err})
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return -1, wrap(err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return -1, wrap(err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := Encode(f, t); err != nil {
		f.Close()
		return -1, wrap(errors.Cause(err))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return -1, wrap(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return -1, wrap(err)
	}
	if err := f.Close(); err != nil {
		return -1, wrap(err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		return -1, wrap(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return -1, wrap(err)
	}
	return info.Size(), nil
}

// ReadFile decodes the artifact at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer f.Close()
	t, err := Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return t, nil
}

// Fingerprint returns a hash of the canonical JSON text of t.
// Tables with equal contents have equal fingerprints.
func Fingerprint(t *Table) uint64 {
	return xxhash.Sum64(Marshal(t))
}
