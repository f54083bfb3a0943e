package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fumin/ngram"
	"github.com/fumin/ngram/corpus"
	_ "github.com/fumin/ngram/corpus/jsonl"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	configPath  = flag.String("config", "", "YAML configuration file, flags given explicitly override it")
	data        = flag.String("data", "", "path to training data (dataset file or directory, or text files)")
	order       = flag.Int("n", 1, "n-gram order, 1 is unigram")
	minCount    = flag.Uint64("min-count", 2, "minimum count to keep")
	output      = flag.String("output", "submission/counts.json.gz", "output file path")
	textMode    = flag.Bool("text-mode", false, "load from .txt files instead of a structured dataset")
	backend     = flag.String("backend", "jsonl", "structured dataset backend")
	field       = flag.String("field", "text", "dataset field holding document text")
	maxDocs     = flag.Int("max-docs", 0, "maximum documents to load, 0 loads all")
	workers     = flag.Int("workers", 1, "number of counting goroutines")
	memoryLimit = flag.String("memory-limit", ngram.MemoryLimitAuto, `memory limit for the frequency table, "auto", "off" or a size such as 8GiB`)
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := parseConfig()
	if err != nil {
		log.Fatalf("%+v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("%+v", err)
	}
}

func parseConfig() (ngram.Config, error) {
	cfg := ngram.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = ngram.LoadConfig(*configPath)
		if err != nil {
			return ngram.Config{}, errors.Wrap(err, "")
		}
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	override := func(name string, apply func()) {
		if *configPath == "" || set[name] {
			apply()
		}
	}
	override("data", func() { cfg.Data = *data })
	override("n", func() { cfg.Order = *order })
	override("min-count", func() { cfg.MinCount = *minCount })
	override("output", func() { cfg.Output = *output })
	override("text-mode", func() { cfg.TextMode = *textMode })
	override("backend", func() { cfg.Backend = *backend })
	override("field", func() { cfg.Field = *field })
	override("max-docs", func() { cfg.MaxDocs = *maxDocs })
	override("workers", func() { cfg.Workers = *workers })
	override("memory-limit", func() { cfg.MemoryLimit = *memoryLimit })

	if err := cfg.Validate(); err != nil {
		return ngram.Config{}, errors.Wrap(err, "")
	}
	cfgB, err := yaml.Marshal(cfg)
	if err != nil {
		return ngram.Config{}, errors.Wrap(err, "")
	}
	log.Printf("config:\n%s", cfgB)
	return cfg, nil
}

func run(cfg ngram.Config) error {
	log.Printf("training %d-gram model on %s (min count %d)", cfg.Order, cfg.Data, cfg.MinCount)
	loader, err := corpus.Open(cfg.LoaderBackend(), cfg.Data, corpus.Options{MaxDocs: cfg.MaxDocs, Field: cfg.Field})
	if err != nil {
		return errors.Wrap(err, "")
	}
	if fl, ok := loader.(interface{ Files() []string }); ok {
		log.Printf("reading %d %s files", len(fl.Files()), cfg.LoaderBackend())
	}
	rep, err := ngram.Train(context.Background(), cfg, loader)
	if err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("done in %v, now package %s with the submission tool", rep.CountTime+rep.WriteTime, rep.Path)
	return nil
}
