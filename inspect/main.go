package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/fumin/ngram"
	"github.com/pkg/errors"
)

var (
	lookup = flag.String("context", "", `print the distribution of a context given as an artifact key, e.g. "[104, 101]"`)
	top    = flag.Int("top", 0, "print the contexts with the largest totals")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] artifact\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	name := flag.Arg(0)
	if name == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(os.Stdout, name, *lookup, *top); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(w io.Writer, name, key string, top int) error {
	t, err := ngram.ReadFile(name)
	if err != nil {
		return errors.Wrap(err, "")
	}
	s, err := ngram.Summarize(t)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Fprintf(w, "%s\n%v\nfingerprint %016x\n", name, s, ngram.Fingerprint(t))

	if key != "" {
		ctx, err := ngram.ParseContext(key)
		if err != nil {
			return errors.Wrap(err, "")
		}
		d, ok := t.Get(ctx)
		if !ok {
			fmt.Fprintf(w, "%s: not in model\n", key)
		} else {
			printDistribution(w, ctx, d)
		}
	}

	if top > 0 {
		ctxs := t.Contexts()
		totals := make(map[ngram.Context]uint64, len(ctxs))
		for _, ctx := range ctxs {
			d, _ := t.Get(ctx)
			totals[ctx] = d.Total()
		}
		sort.SliceStable(ctxs, func(i, j int) bool { return totals[ctxs[i]] > totals[ctxs[j]] })
		if len(ctxs) > top {
			ctxs = ctxs[:top]
		}
		for _, ctx := range ctxs {
			d, _ := t.Get(ctx)
			printDistribution(w, ctx, d)
		}
	}
	return nil
}

func printDistribution(w io.Writer, ctx ngram.Context, d ngram.Distribution) {
	fmt.Fprintf(w, "%s %q total=%d:", ngram.FormatContext(ctx), ctx.Bytes(), d.Total())
	for _, p := range d.Pairs() {
		fmt.Fprintf(w, " %q:%d", p.Byte, p.Count)
	}
	fmt.Fprintln(w)
}
