package main

import (
	"flag"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

var (
	srcDir    = flag.String("d", "submission_5gram", "submission directory")
	dstFile   = flag.String("o", "", "output archive, defaults to the directory name with a .zip extension")
	entry     = flag.String("entry", "model.py", "inference entry point that must exist in the submission directory")
	sizeLimit = flag.String("limit", "1MiB", "archive size limit")
)

// closeFraction of the limit triggers a warning that the archive is close to it.
const closeFraction = 0.9

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	dst := *dstFile
	if dst == "" {
		dst = filepath.Clean(*srcDir) + ".zip"
	}
	if err := run(*srcDir, dst, *entry, *sizeLimit); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(dir, dst, entry, limitStr string) error {
	limit, err := humanize.ParseBytes(limitStr)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if _, err := os.Stat(dir); err != nil {
		return errors.Wrapf(err, "submission directory %s not found, it should contain %s and optionally the trained counts", dir, entry)
	}
	if _, err := os.Stat(filepath.Join(dir, entry)); err != nil {
		return errors.Wrapf(err, "entry point %s not found", entry)
	}

	files, err := listFiles(dir)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := archive(dst, dir, files); err != nil {
		return errors.Wrap(err, "")
	}

	info, err := os.Stat(dst)
	if err != nil {
		return errors.Wrap(err, "")
	}
	size := uint64(info.Size())
	log.Printf("created %s, size %s (%d bytes)", dst, humanize.IBytes(size), size)
	if w := sizeWarning(size, limit); w != "" {
		log.Printf("WARNING: %s", w)
	}
	return nil
}

func sizeWarning(size, limit uint64) string {
	switch {
	case size > limit:
		return "archive exceeds the " + humanize.IBytes(limit) + " limit; consider increasing -min-count when training, using a smaller n-gram order, or compressing the counts more aggressively"
	case float64(size) > closeFraction*float64(limit):
		return "archive is close to the " + humanize.IBytes(limit) + " limit"
	}
	return ""
}

// listFiles returns the regular files below dir relative to it, in lexical order.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return files, nil
}

func archive(dst, dir string, files []string) error {
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, rel := range files {
		err := func(rel string) error {
			f, err := os.Open(filepath.Join(dir, rel))
			if err != nil {
				return errors.Wrap(err, "")
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return errors.Wrap(err, "")
			}
			hdr, err := zip.FileInfoHeader(info)
			if err != nil {
				return errors.Wrap(err, "")
			}
			hdr.Name = filepath.ToSlash(rel)
			hdr.Method = zip.Deflate
			w, err := zw.CreateHeader(hdr)
			if err != nil {
				return errors.Wrap(err, "")
			}
			if _, err := io.Copy(w, f); err != nil {
				return errors.Wrap(err, "")
			}
			log.Printf("added: %s", hdr.Name)
			return nil
		}(rel)
		if err != nil {
			return errors.Wrap(err, "")
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
