// Package store persists strategy statistics, session logs and job results.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
)

// BrotliExt is appended to compressed history files.
const BrotliExt = ".br"

type brotliReadCloser struct {
	br *brotli.Reader
	rc io.ReadCloser
}

func (b *brotliReadCloser) Read(p []byte) (n int, err error) {
	return b.br.Read(p)
}

func (b *brotliReadCloser) Close() error {
	return b.rc.Close()
}

func newBrotliReadCloser(r io.ReadCloser) io.ReadCloser {
	return &brotliReadCloser{
		br: brotli.NewReader(r),
		rc: r,
	}
}

// writeJSON writes v as indented JSON to path through a temp file and a
// rename, brotli-compressed when path ends in .br.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	var w io.Writer = tmp
	var bw *brotli.Writer
	if strings.HasSuffix(path, BrotliExt) {
		bw = brotli.NewWriterLevel(tmp, brotli.DefaultCompression)
		w = bw
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if bw != nil {
		if err := bw.Close(); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to compress %s: %w", path, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// readJSON decodes path into v, decompressing .br files.
func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	var r io.ReadCloser = f
	if strings.HasSuffix(path, BrotliExt) {
		r = newBrotliReadCloser(f)
	}
	defer r.Close()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
