package fetcher

import (
	"context"
	"fmt"

	"quota-scraper/config"

	"go.uber.org/zap"
)

// Fetcher interface defines the contract for fetching implementations
type Fetcher interface {
	// Fetch retrieves the HTML content of the page at url
	Fetch(ctx context.Context, url string) (string, error)
}

// New returns the fetcher named by kind (config.FetcherColly or config.FetcherRod)
func New(kind string, log *zap.SugaredLogger) (Fetcher, error) {
	switch kind {
	case config.FetcherColly, "":
		return NewCollyFetcher(log), nil
	case config.FetcherRod:
		return NewRodFetcher(log), nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q", kind)
	}
}
