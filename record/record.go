// Package record persists extracted registration records as JSON files.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	"cnpjscraper/cnpj"
)

const (
	filePrefix = "DadosCNPJ_"
	fileExt    = ".json"
)

// ErrNotFound is returned by Load when no file exists for the identifier.
var ErrNotFound = errors.New("record not found")

// Record maps page labels to their trimmed values.
type Record map[string]string

// Labels returns the record's keys in sorted order.
func (r Record) Labels() []string {
	labels := maps.Keys(r)
	slices.Sort(labels)
	return labels
}

// FileName returns the deterministic output file name for id.
func FileName(id cnpj.Identifier) string {
	return filePrefix + id.Digits() + fileExt
}

// Store reads and writes records under Dir.
type Store struct {
	Dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns where the record for id is stored.
func (s *Store) Path(id cnpj.Identifier) string {
	return filepath.Join(s.Dir, FileName(id))
}

// Save writes rec for id, creating Dir if needed and overwriting any
// previous file for the same identifier. The write is not atomic.
func (s *Store) Save(id cnpj.Identifier, rec Record) (string, error) {
	if id.Digits() == "" {
		return "", fmt.Errorf("save record: identifier %q has no digits", id)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", s.Dir, err)
	}

	data, err := Marshal(rec)
	if err != nil {
		return "", err
	}

	path := s.Path(id)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Load reads the record saved for id.
func (s *Store) Load(id cnpj.Identifier) (Record, error) {
	path := s.Path(id)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.Digits())
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rec, nil
}

// List returns the normalized identifiers of every saved record, sorted.
// A missing Dir yields an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.Dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		digits := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt)
		if digits == "" || cnpj.Normalize(digits) != digits {
			continue
		}
		ids = append(ids, digits)
	}
	slices.Sort(ids)
	return ids, nil
}

// Marshal renders rec as 4-space indented JSON without HTML escaping.
func Marshal(rec Record) ([]byte, error) {
	if rec == nil {
		rec = Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
