package ngram

import (
	"context"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fumin/ngram/corpus"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"
)

// ErrMemoryLimit is returned when the table being counted outgrows the configured memory limit.
var ErrMemoryLimit = errors.New("frequency table exceeds memory limit")

// memoryCheckInterval is the number of documents counted between two checks of the table size.
const memoryCheckInterval = 256

// A Report summarizes a training run.
type Report struct {
	Documents    int
	Observations uint64
	// Contexts and Entries describe the table before pruning.
	Contexts int
	Entries  int
	// Summary describes the pruned table that was written.
	Summary Summary

	Path        string
	Size        int64
	Fingerprint uint64

	CountTime time.Duration
	WriteTime time.Duration

	// Table is the pruned table that was written.
	Table *Table
}

// Train counts the documents of loader, prunes the table and writes the artifact described by cfg.
// With more than one worker, documents are spread over workers that count privately, and the partial tables are summed before pruning.
func Train(ctx context.Context, cfg Config, loader corpus.Loader) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	limit, err := cfg.memoryLimit(availableMemory)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if limit > 0 {
		log.Printf("memory limit for the frequency table: %s", humanize.IBytes(uint64(limit)))
	}

	start := time.Now()
	var counter *Counter
	if cfg.Workers <= 1 {
		counter, err = count(ctx, cfg.Order, loader, limit)
	} else {
		counter, err = countSharded(ctx, cfg.Order, cfg.Workers, loader, limit)
	}
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	rep := &Report{
		Documents:    counter.Documents(),
		Observations: counter.Observations(),
		Contexts:     counter.Table().Len(),
		Entries:      counter.Table().Entries(),
		CountTime:    time.Since(start),
	}
	log.Printf("total: %s bytes from %d documents", humanize.Comma(int64(rep.Observations)), rep.Documents)
	log.Printf("counted %s %d-grams", humanize.Comma(int64(rep.Observations)), counter.Order())
	log.Printf("unique contexts: %s", humanize.Comma(int64(rep.Contexts)))
	log.Printf("counting time: %v", rep.CountTime)

	pruned, err := Prune(counter.Table(), cfg.MinCount)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	log.Printf("after pruning (min_count=%d): %s contexts", cfg.MinCount, humanize.Comma(int64(pruned.Len())))
	rep.Table = pruned
	rep.Summary, err = Summarize(pruned)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	log.Printf("%v", rep.Summary)

	start = time.Now()
	rep.Path = ArtifactPath(cfg.Output)
	rep.Size, err = WriteFile(rep.Path, pruned)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	rep.WriteTime = time.Since(start)
	rep.Fingerprint = Fingerprint(pruned)
	log.Printf("saved to %s (%s, fingerprint %016x)", rep.Path, humanize.IBytes(uint64(rep.Size)), rep.Fingerprint)

	warn, err := cfg.sizeWarning()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if warn > 0 && uint64(rep.Size) > warn {
		log.Printf("WARNING: artifact is larger than %s; try increasing min_count or decreasing n", humanize.IBytes(warn))
	}
	return rep, nil
}

func availableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	return vm.Available, nil
}

func checkMemory(t *Table, limit int64) error {
	if limit <= 0 {
		return nil
	}
	if size := t.ApproxBytes(); size > limit {
		return errors.Wrapf(ErrMemoryLimit, "estimated %s > %s with %d contexts", humanize.IBytes(uint64(size)), humanize.IBytes(uint64(limit)), t.Len())
	}
	return nil
}

// count counts every document in the calling goroutine.
func count(ctx context.Context, order int, loader corpus.Loader, limit int64) (*Counter, error) {
	counter, err := NewCounter(order)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	err = loader.Each(func(doc []byte) error {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "")
		}
		counter.Add(doc)
		if counter.Documents()%memoryCheckInterval == 0 {
			return checkMemory(counter.Table(), limit)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := checkMemory(counter.Table(), limit); err != nil {
		return nil, err
	}
	return counter, nil
}

// countSharded feeds documents to workers that each own a Counter, then sums the workers' tables.
// Each worker gets an equal share of the memory limit.
func countSharded(ctx context.Context, order, workers int, loader corpus.Loader, limit int64) (*Counter, error) {
	counters := make([]*Counter, workers)
	for i := range counters {
		c, err := NewCounter(order)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		counters[i] = c
	}

	g, gctx := errgroup.WithContext(ctx)
	docs := make(chan []byte, 2*workers)
	g.Go(func() error {
		defer close(docs)
		return loader.Each(func(doc []byte) error {
			buf := make([]byte, len(doc))
			copy(buf, doc)
			select {
			case docs <- buf:
				return nil
			case <-gctx.Done():
				return errors.Wrap(gctx.Err(), "")
			}
		})
	})
	shareLimit := limit / int64(workers)
	for _, c := range counters {
		c := c
		g.Go(func() error {
			for doc := range docs {
				c.Add(doc)
				if c.Documents()%memoryCheckInterval == 0 {
					if err := checkMemory(c.Table(), shareLimit); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	total := counters[0]
	for _, c := range counters[1:] {
		Merge(total.table, c.table)
		total.documents += c.documents
		total.observations += c.observations
	}
	if err := checkMemory(total.Table(), limit); err != nil {
		return nil, err
	}
	return total, nil
}
