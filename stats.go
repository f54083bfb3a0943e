package ngram

import (
	"fmt"

	"github.com/caio/go-tdigest/v4"
	"github.com/pkg/errors"
)

// A Summary describes the shape of a table.
type Summary struct {
	Contexts       int
	Entries        int
	Observations   uint64
	EmptyContexts  int
	LongestContext int

	// Quantiles of the per-context totals.
	// They show how many contexts a given min count would prune.
	TotalP50 float64
	TotalP90 float64
	TotalP99 float64
}

func (s Summary) String() string {
	return fmt.Sprintf("contexts=%d entries=%d observations=%d empty=%d longest=%d total[p50=%.0f p90=%.0f p99=%.0f]",
		s.Contexts, s.Entries, s.Observations, s.EmptyContexts, s.LongestContext, s.TotalP50, s.TotalP90, s.TotalP99)
}

// Summarize computes the Summary of t.
func Summarize(t *Table) (Summary, error) {
	s := Summary{
		Contexts: t.Len(),
		Entries:  t.Entries(),
	}
	if t.Len() == 0 {
		return s, nil
	}

	td, err := tdigest.New()
	if err != nil {
		return Summary{}, errors.Wrap(err, "")
	}
	for k, d := range t.dists {
		total := d.Total()
		s.Observations += total
		if len(d) == 0 {
			s.EmptyContexts++
		}
		if len(k) > s.LongestContext {
			s.LongestContext = len(k)
		}
		if err := td.AddWeighted(float64(total), 1); err != nil {
			return Summary{}, errors.Wrap(err, "")
		}
	}
	s.TotalP50 = td.Quantile(0.5)
	s.TotalP90 = td.Quantile(0.9)
	s.TotalP99 = td.Quantile(0.99)
	return s, nil
}
