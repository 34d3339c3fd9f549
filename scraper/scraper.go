// Package scraper extracts labeled fields from registration result pages.
package scraper

import (
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"cnpjscraper/record"
)

// Result is what a Scraper pulled out of one page.
type Result struct {
	URL    string        `json:"url"`
	Record record.Record `json:"record"`
	// Missing lists allowed labels that were not found, in rule set order.
	Missing []string `json:"missing,omitempty"`
}

// Empty reports whether no label was extracted.
func (r *Result) Empty() bool {
	return r == nil || len(r.Record) == 0
}

// Partial reports whether some, but not all, labels were extracted.
func (r *Result) Partial() bool {
	return !r.Empty() && len(r.Missing) > 0
}

// Scraper interface defines the methods required for a result page scraper
type Scraper interface {
	// CanHandle determines if this scraper can handle the given URL
	CanHandle(url string) bool

	// Scrape extracts the labeled fields from the HTML document
	Scrape(doc *goquery.Document, url string) (*Result, error)
}

// Registry manages the available scrapers
type Registry struct {
	scrapers []Scraper
	fallback Scraper
	mu       sync.RWMutex
}

// NewRegistry creates a new scraper registry
func NewRegistry() *Registry {
	return &Registry{
		scrapers: make([]Scraper, 0),
	}
}

// Register adds a new scraper to the registry
func (r *Registry) Register(scraper Scraper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers = append(r.scrapers, scraper)
}

// SetFallback sets the scraper used when no other scraper matches
func (r *Registry) SetFallback(scraper Scraper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = scraper
}

// FindScraper returns the appropriate scraper for the given URL
func (r *Registry) FindScraper(urlStr string) Scraper {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, scraper := range r.scrapers {
		if scraper.CanHandle(urlStr) {
			return scraper
		}
	}

	return r.fallback
}

// hostOf returns the lowercased host of urlStr, or "" if it doesn't parse.
func hostOf(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// DefaultRegistry knows the Receita Federal result page and falls back to
// the same rules for anything else (saved snapshots have no URL).
var DefaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register(NewLabelScraper(ReceitaRules))
	r.SetFallback(NewLabelScraper(ReceitaRules))
	return r
}()
