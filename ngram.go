// Package ngram builds byte-level n-gram models.
// A model is a frequency table that maps every observed context of up to N-1 preceding bytes to the distribution of the byte that follows it.
// Tables are counted from a corpus, pruned by a minimum count, and serialized as a gzipped JSON artifact that an inference-side predictor reads back.
//
// Below is an example of training a trigram model on a directory of text files and inspecting the result:
//    go run train/main.go -data corpus/ -text-mode -n 3 -min-count 2
//    go run inspect/main.go -top 10 submission/counts.json.gz
package ngram

import (
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidOrder is returned when the n-gram order is less than one.
	ErrInvalidOrder = errors.New("n-gram order must be at least 1")
	// ErrInvalidMinCount is returned when the pruning threshold is less than one.
	ErrInvalidMinCount = errors.New("min count must be at least 1")
)

// A Context is the sequence of bytes immediately preceding a prediction point.
// It holds the raw bytes, so two contexts are equal iff their byte sequences are identical.
type Context string

// NewContext returns the context made of b.
func NewContext(b ...byte) Context {
	return Context(b)
}

// Bytes returns a copy of the context's bytes.
func (ctx Context) Bytes() []byte {
	return []byte(ctx)
}

// A Distribution maps a byte value to the number of times it was observed.
type Distribution map[byte]uint64

// Total returns the sum of all counts in d.
func (d Distribution) Total() uint64 {
	var total uint64
	for _, c := range d {
		total += c
	}
	return total
}

// A Pair is a byte value and its count.
type Pair struct {
	Byte  byte
	Count uint64
}

// Pairs returns the entries of d, most frequent first.
// Ties are broken by byte value.
func (d Distribution) Pairs() []Pair {
	pairs := make([]Pair, 0, len(d))
	for b, c := range d {
		pairs = append(pairs, Pair{Byte: b, Count: c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		return pairs[i].Byte < pairs[j].Byte
	})
	return pairs
}

// A Table is a frequency table from contexts to byte distributions.
// A Table has a single writer; it is not safe for concurrent mutation.
type Table struct {
	dists   map[string]Distribution
	entries int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{dists: make(map[string]Distribution)}
}

// Observe records one occurrence of b following ctx.
func (t *Table) Observe(ctx []byte, b byte) {
	t.add(ctx, b, 1)
}

// Add adds count occurrences of b following ctx.
func (t *Table) Add(ctx Context, b byte, count uint64) {
	t.add([]byte(ctx), b, count)
}

func (t *Table) add(ctx []byte, b byte, count uint64) {
	// Indexing with string(ctx) does not allocate.
	d, ok := t.dists[string(ctx)]
	if !ok {
		d = make(Distribution)
		t.dists[string(ctx)] = d
	}
	if _, ok := d[b]; !ok {
		t.entries++
	}
	d[b] += count
}

// Insert adds ctx with an empty distribution if it is not yet present.
// Pruning can leave a context whose every byte fell below the threshold, and such a context is still part of the table.
func (t *Table) Insert(ctx Context) {
	if _, ok := t.dists[string(ctx)]; ok {
		return
	}
	t.dists[string(ctx)] = make(Distribution)
}

// Get returns the distribution following ctx.
// The returned distribution must not be modified.
func (t *Table) Get(ctx Context) (Distribution, bool) {
	d, ok := t.dists[string(ctx)]
	return d, ok
}

// Len returns the number of contexts in the table.
func (t *Table) Len() int {
	return len(t.dists)
}

// Entries returns the number of (context, byte) pairs in the table.
func (t *Table) Entries() int {
	return t.entries
}

// Contexts returns all contexts, shortest first and then in byte order.
func (t *Table) Contexts() []Context {
	ctxs := make([]Context, 0, len(t.dists))
	for k := range t.dists {
		ctxs = append(ctxs, Context(k))
	}
	sort.Slice(ctxs, func(i, j int) bool {
		if len(ctxs[i]) != len(ctxs[j]) {
			return len(ctxs[i]) < len(ctxs[j])
		}
		return ctxs[i] < ctxs[j]
	})
	return ctxs
}

// Each calls fn for every context in the order of Contexts.
func (t *Table) Each(fn func(ctx Context, d Distribution)) {
	for _, ctx := range t.Contexts() {
		fn(ctx, t.dists[string(ctx)])
	}
}

// Equal reports whether t and u hold the same contexts with the same counts.
func (t *Table) Equal(u *Table) bool {
	if t.Len() != u.Len() || t.entries != u.entries {
		return false
	}
	for k, d := range t.dists {
		e, ok := u.dists[k]
		if !ok || len(d) != len(e) {
			return false
		}
		for b, c := range d {
			if e[b] != c {
				return false
			}
		}
	}
	return true
}

// Memory accounting for ApproxBytes.
// These are upper estimates of what a map[string]map[byte]uint64 costs on 64-bit platforms.
// A context costs its key rounded up to a word, its slot in the outer map at a half grown load factor,
// and the header and first bucket of its inner map, which holds eight bytes before it grows.
// Every byte entry is charged for its share of the inner map buckets.
const (
	contextOverhead = 232
	entryOverhead   = 16
)

// ApproxBytes estimates the resident size of the table in bytes.
// It errs high, so a limit on ApproxBytes also bounds the heap.
func (t *Table) ApproxBytes() int64 {
	var keyBytes int64
	for k := range t.dists {
		keyBytes += int64(len(k)+7) &^ 7
	}
	return keyBytes + int64(len(t.dists))*contextOverhead + int64(t.entries)*entryOverhead
}

// Merge adds every count in src to dst.
// Merging is a plain sum, so shards counted independently merge to the table counted in one pass.
func Merge(dst, src *Table) {
	for k, d := range src.dists {
		if len(d) == 0 {
			dst.Insert(Context(k))
			continue
		}
		for b, c := range d {
			dst.add([]byte(k), b, c)
		}
	}
}

// A Counter counts n-grams of a fixed order.
type Counter struct {
	order        int
	table        *Table
	documents    int
	observations uint64
}

// NewCounter returns a Counter for n-grams of the given order.
// Contexts hold at most order-1 bytes.
func NewCounter(order int) (*Counter, error) {
	if order < 1 {
		return nil, errors.Wrapf(ErrInvalidOrder, "order %d", order)
	}
	c := &Counter{
		order: order,
		table: NewTable(),
	}
	return c, nil
}

// Add counts every position of doc.
// The context of position i is doc[max(0, i-(order-1)):i], so positions near the start of doc have shorter contexts.
// Each document is an independent sequence, contexts never reach into a previous document.
func (c *Counter) Add(doc []byte) {
	width := c.order - 1
	for i := range doc {
		start := i - width
		if start < 0 {
			start = 0
		}
		c.table.Observe(doc[start:i], doc[i])
	}
	c.documents++
	c.observations += uint64(len(doc))
}

// Order returns the n-gram order.
func (c *Counter) Order() int {
	return c.order
}

// Documents returns the number of documents counted.
func (c *Counter) Documents() int {
	return c.documents
}

// Observations returns the number of n-grams counted, which is the number of bytes seen.
func (c *Counter) Observations() uint64 {
	return c.observations
}

// Table returns the table being counted.
func (c *Counter) Table() *Table {
	return c.table
}

// Prune returns a new table with the rare entries of t removed.
// A context is dropped when the total of its counts is below minCount.
// Within a surviving context, bytes whose own count is below minCount are dropped, which may leave the context with an empty distribution.
func Prune(t *Table, minCount uint64) (*Table, error) {
	if minCount < 1 {
		return nil, errors.Wrapf(ErrInvalidMinCount, "min count %d", minCount)
	}
	pruned := NewTable()
	for k, d := range t.dists {
		if d.Total() < minCount {
			continue
		}
		pruned.Insert(Context(k))
		for b, c := range d {
			if c >= minCount {
				pruned.add([]byte(k), b, c)
			}
		}
	}
	return pruned, nil
}
