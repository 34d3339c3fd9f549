// Package snapshot saves the raw result page next to the extracted record
// so extraction gaps can be inspected later.
package snapshot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"cnpjscraper/cnpj"
)

// Mode selects whether and how snapshots are written.
type Mode string

const (
	ModeNone Mode = "none"
	ModeHTML Mode = "html"
	ModeGzip Mode = "gzip"
	ModeBr   Mode = "br"
	ModeZstd Mode = "zstd"
)

// Modes lists every accepted Mode.
var Modes = []Mode{ModeNone, ModeHTML, ModeGzip, ModeBr, ModeZstd}

// ParseMode validates s. An empty string means ModeNone.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeNone, nil
	}
	m := Mode(strings.ToLower(s))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown snapshot mode %q", s)
}

// Ext returns the file extension used for m.
func (m Mode) Ext() string {
	switch m {
	case ModeGzip:
		return ".html.gz"
	case ModeBr:
		return ".html.br"
	case ModeZstd:
		return ".html.zst"
	default:
		return ".html"
	}
}

// Writer writes page snapshots into Dir.
type Writer struct {
	Dir  string
	Mode Mode
}

// Enabled reports whether Save will write anything.
func (w *Writer) Enabled() bool {
	return w != nil && w.Mode != "" && w.Mode != ModeNone
}

// Path returns the snapshot path for id.
func (w *Writer) Path(id cnpj.Identifier) string {
	return filepath.Join(w.Dir, "DadosCNPJ_"+id.Digits()+w.Mode.Ext())
}

// Save writes html for id and returns the file path. It is a no-op
// returning "" when the writer is disabled.
func (w *Writer) Save(id cnpj.Identifier, html string) (string, error) {
	if !w.Enabled() {
		return "", nil
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir %s: %w", w.Dir, err)
	}

	path := w.Path(id)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot %s: %w", path, err)
	}
	defer f.Close()

	enc, err := newEncoder(w.Mode, f)
	if err != nil {
		return "", err
	}
	if _, err := io.WriteString(enc, html); err != nil {
		enc.Close()
		return "", fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("flush snapshot %s: %w", path, err)
	}
	return path, f.Close()
}

// Open returns a reader over the decompressed snapshot at path. The
// compression is chosen from the file extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case strings.HasSuffix(path, ".br"):
		return &stackedCloser{Reader: brotli.NewReader(f), closers: []io.Closer{f}}, nil
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		rc := zr.IOReadCloser()
		return &stackedCloser{Reader: rc, closers: []io.Closer{rc, f}}, nil
	default:
		return f, nil
	}
}

// ReadFile returns the decompressed contents of the snapshot at path.
func ReadFile(path string) (string, error) {
	rc, err := Open(path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot: %w", err)
	}
	return string(body), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newEncoder(m Mode, w io.Writer) (io.WriteCloser, error) {
	switch m {
	case ModeGzip:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case ModeBr:
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	case ModeZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return enc, nil
	default:
		return nopWriteCloser{w}, nil
	}
}

// stackedCloser closes every layer of a decoder chain, innermost first.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
