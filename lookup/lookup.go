// Package lookup runs one CNPJ lookup end to end: fetch the result page,
// extract the labeled fields and persist them.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cnpjscraper/browser"
	"cnpjscraper/cache"
	"cnpjscraper/cnpj"
	"cnpjscraper/logger"
	"cnpjscraper/record"
	"cnpjscraper/scraper"
	"cnpjscraper/snapshot"
)

var (
	// ErrNoData means the result page yielded no known label. Nothing is
	// written.
	ErrNoData = errors.New("no data could be extracted from the result page")
	// ErrPartialRecord means strict mode rejected a record with missing
	// labels. Nothing is written.
	ErrPartialRecord = errors.New("result page is missing labels")
)

// Fetcher retrieves the result page for an identifier.
type Fetcher interface {
	Fetch(ctx context.Context, id cnpj.Identifier) (*browser.Page, error)
}

// SnapshotFetcher replays a saved result page instead of opening a browser.
type SnapshotFetcher struct {
	Path string
	// URL is reported as the page address for scraper selection.
	URL string
}

// Fetch reads and decompresses the snapshot at f.Path.
func (f SnapshotFetcher) Fetch(ctx context.Context, id cnpj.Identifier) (*browser.Page, error) {
	html, err := snapshot.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", f.Path, err)
	}
	return &browser.Page{URL: f.URL, HTML: html}, nil
}

// Outcome describes a successful lookup.
type Outcome struct {
	CNPJ     string
	Path     string
	Record   record.Record
	Missing  []string
	Cached   bool
	Snapshot string
}

// Service wires the lookup steps together.
type Service struct {
	fetcher   Fetcher
	scraper   *scraper.Service
	store     *record.Store
	snapshots *snapshot.Writer
	cache     *cache.Cache
	strict    bool
	log       logger.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithSnapshots saves every fetched page through w.
func WithSnapshots(w *snapshot.Writer) Option {
	return func(svc *Service) { svc.snapshots = w }
}

// WithCache memoizes extraction results in c.
func WithCache(c *cache.Cache) Option {
	return func(svc *Service) { svc.cache = c }
}

// WithStrict makes partial records an error.
func WithStrict(strict bool) Option {
	return func(svc *Service) { svc.strict = strict }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) { svc.log = l }
}

// NewService returns a Service fetching with f and saving to store.
func NewService(f Fetcher, store *record.Store, opts ...Option) *Service {
	svc := &Service{
		fetcher: f,
		scraper: scraper.DefaultService,
		store:   store,
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Run looks up id and saves its record. An empty extraction returns
// ErrNoData and writes nothing.
func (s *Service) Run(ctx context.Context, id cnpj.Identifier) (*Outcome, error) {
	digits := id.Digits()
	if digits == "" {
		return nil, fmt.Errorf("%w: %q has no digits", cnpj.ErrInvalid, id.String())
	}
	log := s.log.With(logger.String("cnpj", digits))

	var snapshotPath string
	res, cached, err := cache.Memoize(ctx, s.cache, cache.Key(digits),
		func(r *scraper.Result) bool { return !r.Empty() },
		func() (*scraper.Result, error) {
			page, err := s.fetcher.Fetch(ctx, id)
			if err != nil {
				return nil, err
			}
			snapshotPath = s.saveSnapshot(log, id, page.HTML)
			return s.scraper.ScrapeHTML(page.HTML, page.URL)
		})
	if err != nil {
		return nil, err
	}
	if cached {
		log.Info("using cached record")
	}

	if res.Empty() {
		log.Error("could not extract any data, check that the result page is correct")
		return nil, ErrNoData
	}
	if res.Partial() {
		if s.strict {
			return nil, fmt.Errorf("%w: %s", ErrPartialRecord, strings.Join(res.Missing, ", "))
		}
		log.Warn("result page is missing labels", logger.Strings("missing", res.Missing))
	}

	path, err := s.store.Save(id, res.Record)
	if err != nil {
		return nil, err
	}
	log.Info("record saved",
		logger.String("path", path),
		logger.Strings("labels", res.Record.Labels()),
		logger.Bool("cached", cached),
	)

	return &Outcome{
		CNPJ:     digits,
		Path:     path,
		Record:   res.Record,
		Missing:  res.Missing,
		Cached:   cached,
		Snapshot: snapshotPath,
	}, nil
}

// saveSnapshot never fails the lookup; errors are only logged.
func (s *Service) saveSnapshot(log logger.Logger, id cnpj.Identifier, html string) string {
	if !s.snapshots.Enabled() {
		return ""
	}
	path, err := s.snapshots.Save(id, html)
	if err != nil {
		log.Warn("failed to save page snapshot", logger.Err(err))
		return ""
	}
	log.Debug("page snapshot saved", logger.String("path", path))
	return path
}
