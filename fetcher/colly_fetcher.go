package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// CollyFetcher implements the Fetcher interface using colly.
// It suits pages whose quotas are present in the served HTML.
type CollyFetcher struct {
	log            *zap.SugaredLogger
	userAgent      string
	requestTimeout time.Duration
	delay          time.Duration
}

// NewCollyFetcher creates a new CollyFetcher instance
func NewCollyFetcher(log *zap.SugaredLogger) *CollyFetcher {
	return &CollyFetcher{
		log:            log,
		userAgent:      defaultUserAgent,
		requestTimeout: 30 * time.Second,
		delay:          time.Second,
	}
}

// newCollector builds a collector per call so callbacks never pile up across fetches.
// Requests carry ctx, so cancelling it aborts a request already on the wire.
func (cf *CollyFetcher) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(cf.userAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(cf.requestTimeout)

	// one request at a time per domain
	_ = c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cf.delay,
	})
	return c
}

// Fetch implements the Fetcher interface
func (cf *CollyFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := cf.newCollector(ctx)

	var (
		html     string
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		html = string(r.Body)
		cf.log.Debugf("Fetched %s (status %d, %d bytes)", r.Request.URL, r.StatusCode, len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		cf.log.Warnf("Error fetching %s: %v", r.Request.URL, err)
		fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	visitErr := c.Visit(url)
	c.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fetchErr != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, fetchErr)
	}
	if visitErr != nil {
		return "", fmt.Errorf("failed to visit URL: %w", visitErr)
	}
	if html == "" {
		return "", fmt.Errorf("empty response from %s", url)
	}
	return html, nil
}
