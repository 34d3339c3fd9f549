package browser

import (
	"context"

	"cnpjscraper/cnpj"
	"cnpjscraper/logger"
)

// Fetcher runs one full browser lookup: launch, open, wait for the
// operator, read the result, close.
type Fetcher struct {
	opts Options
}

// NewFetcher returns a Fetcher using opts for every session.
func NewFetcher(opts Options) *Fetcher {
	return &Fetcher{opts: opts}
}

// Fetch returns the result page for id. The browser is closed on every
// path, including errors.
func (f *Fetcher) Fetch(ctx context.Context, id cnpj.Identifier) (*Page, error) {
	log := f.opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	session, err := Launch(ctx, f.opts)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	log.Info("opening lookup page", logger.String("cnpj", id.String()), logger.String("url", f.opts.PortalURL))
	if err := session.Open(id); err != nil {
		return nil, err
	}

	log.Info("waiting for operator to solve the challenge")
	result, err := session.AwaitResult(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("result page loaded", logger.String("url", result.URL), logger.Int("bytes", len(result.HTML)))
	return result, nil
}
