package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Service turns fetched HTML into extraction results
type Service struct {
	registry *Registry
}

// NewService creates a new scraper service
func NewService(registry *Registry) *Service {
	return &Service{registry: registry}
}

// DefaultService is the scraper service backed by DefaultRegistry
var DefaultService = NewService(DefaultRegistry)

// ScrapeHTML parses htmlContent and runs the scraper registered for urlStr.
func (s *Service) ScrapeHTML(htmlContent, urlStr string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	scraper := s.registry.FindScraper(urlStr)
	if scraper == nil {
		return nil, fmt.Errorf("no scraper available for URL: %s", urlStr)
	}

	return scraper.Scrape(doc, urlStr)
}
