package ngram

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fumin/ngram/corpus"
	"github.com/pkg/errors"
)

func writeCorpus(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, doc := range docs {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("%v", err)
		}
		if err := os.WriteFile(p, []byte(doc), 0644); err != nil {
			t.Fatalf("%v", err)
		}
	}
	return dir
}

func testConfig(t *testing.T, data string) Config {
	cfg := DefaultConfig()
	cfg.Data = data
	cfg.TextMode = true
	cfg.Output = filepath.Join(t.TempDir(), "submission", "counts.json.gz")
	cfg.MemoryLimit = MemoryLimitOff
	return cfg
}

func TestTrain(t *testing.T) {
	data := writeCorpus(t, map[string]string{
		"a.txt":        "aaab",
		"sub/b.txt":    "abab",
		"ignored.json": "zzzz",
	})
	cfg := testConfig(t, data)
	cfg.Order = 2
	cfg.MinCount = 2

	loader, err := corpus.Open(cfg.LoaderBackend(), cfg.Data, corpus.Options{})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	rep, err := Train(context.Background(), cfg, loader)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if rep.Documents != 2 || rep.Observations != 8 {
		t.Errorf("%+v", rep)
	}

	// "aaab" and "abab" give [] -> {a:2}, [a] -> {a:2, b:3}, [b] -> {a:1}.
	got, err := ReadFile(rep.Path)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	want := NewTable()
	want.Add(NewContext(), 'a', 2)
	want.Add(NewContext('a'), 'a', 2)
	want.Add(NewContext('a'), 'b', 3)
	if !got.Equal(want) {
		t.Errorf("%s", Marshal(got))
	}
	if !got.Equal(rep.Table) {
		t.Errorf("%s != %s", Marshal(got), Marshal(rep.Table))
	}
	if rep.Fingerprint != Fingerprint(want) {
		t.Errorf("%x != %x", rep.Fingerprint, Fingerprint(want))
	}
	info, err := os.Stat(rep.Path)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if info.Size() != rep.Size {
		t.Errorf("%d != %d", info.Size(), rep.Size)
	}
}

func TestTrainOutputSuffix(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"a.txt": "hello"}))
	cfg.Output = filepath.Join(t.TempDir(), "counts.json")

	loader, err := corpus.Open("text", cfg.Data, corpus.Options{})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	rep, err := Train(context.Background(), cfg, loader)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if rep.Path != cfg.Output+".gz" {
		t.Errorf("%s", rep.Path)
	}
}

// TestTrainSharded checks that counting on several workers writes the same artifact as counting on one.
func TestTrainSharded(t *testing.T) {
	docs := map[string]string{}
	for i, doc := range randomCorpus(7, 60, 400, "abcdef \n") {
		docs[filepath.Join(string(rune('a'+i%5)), string(rune('a'+i/5))+".txt")] = doc
	}
	data := writeCorpus(t, docs)

	var fingerprints []uint64
	var artifacts [][]byte
	for _, workers := range []int{1, 2, 5} {
		cfg := testConfig(t, data)
		cfg.Order = 3
		cfg.Workers = workers

		loader, err := corpus.Open("text", data, corpus.Options{})
		if err != nil {
			t.Fatalf("%+v", err)
		}
		rep, err := Train(context.Background(), cfg, loader)
		if err != nil {
			t.Fatalf("workers %d: %+v", workers, err)
		}
		if rep.Documents != 60 {
			t.Errorf("workers %d: %d documents", workers, rep.Documents)
		}
		b, err := os.ReadFile(rep.Path)
		if err != nil {
			t.Fatalf("%v", err)
		}
		fingerprints = append(fingerprints, rep.Fingerprint)
		artifacts = append(artifacts, b)
	}
	for i := range fingerprints[1:] {
		if fingerprints[i+1] != fingerprints[0] {
			t.Errorf("%x != %x", fingerprints[i+1], fingerprints[0])
		}
		if string(artifacts[i+1]) != string(artifacts[0]) {
			t.Errorf("artifact %d differs", i+1)
		}
	}
}

func TestTrainMemoryLimit(t *testing.T) {
	data := writeCorpus(t, map[string]string{"a.txt": string(randomCorpus(8, 1, 5000, "abcdefghijklmnop")[0]) + "0123456789"})
	for _, workers := range []int{1, 3} {
		cfg := testConfig(t, data)
		cfg.Order = 4
		cfg.Workers = workers
		cfg.MemoryLimit = "1KiB"

		loader, err := corpus.Open("text", data, corpus.Options{})
		if err != nil {
			t.Fatalf("%+v", err)
		}
		_, err = Train(context.Background(), cfg, loader)
		if !errors.Is(err, ErrMemoryLimit) {
			t.Errorf("workers %d: %+v", workers, err)
		}
		if _, err := os.Stat(ArtifactPath(cfg.Output)); !os.IsNotExist(err) {
			t.Errorf("workers %d: artifact written: %v", workers, err)
		}
	}
}

func TestTrainCancelled(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"a.txt": "abc"}))
	loader, err := corpus.Open("text", cfg.Data, corpus.Options{})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Train(ctx, cfg, loader); !errors.Is(err, context.Canceled) {
		t.Errorf("%+v", err)
	}
}

func TestTrainInvalidConfig(t *testing.T) {
	cfg := testConfig(t, writeCorpus(t, map[string]string{"a.txt": "abc"}))
	cfg.MinCount = 0
	loader, err := corpus.Open("text", cfg.Data, corpus.Options{})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if _, err := Train(context.Background(), cfg, loader); !errors.Is(err, ErrInvalidMinCount) {
		t.Errorf("%+v", err)
	}
}
