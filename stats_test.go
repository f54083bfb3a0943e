package ngram

import (
	"testing"
)

func TestSummarize(t *testing.T) {
	s, err := Summarize(NewTable())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if s != (Summary{}) {
		t.Errorf("%+v", s)
	}

	table := countDocs(t, 3, "abcabc")
	s, err = Summarize(table)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	// Totals: [] 1, [97] 1, [97, 98] 2, [98, 99] 1, [99, 97] 1.
	if s.Contexts != table.Len() || s.Entries != table.Entries() {
		t.Errorf("%+v", s)
	}
	if s.Observations != 6 {
		t.Errorf("%d", s.Observations)
	}
	if s.LongestContext != 2 {
		t.Errorf("%d", s.LongestContext)
	}
	if s.TotalP50 < 1 || s.TotalP99 > 2 {
		t.Errorf("%+v", s)
	}

	pruned, err := Prune(countDocs(t, 2, "xa", "xb"), 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	s, err = Summarize(pruned)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if s.EmptyContexts != 1 {
		t.Errorf("%+v", s)
	}
}
