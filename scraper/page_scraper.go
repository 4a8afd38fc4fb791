package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"

	"quota-scraper/config"
	"quota-scraper/fetcher"
	"quota-scraper/models"
	"quota-scraper/parser"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Page is one source page: where it lives and how to read it
type Page struct {
	Name    string
	URL     string
	Fetcher fetcher.Fetcher
	Parser  *parser.Parser
}

// PageScraper implements Scraper by fetching and parsing the configured pages itself
type PageScraper struct {
	first  *Page
	second *Page
	log    *zap.SugaredLogger
}

// NewPageScraper creates a PageScraper. Either page may be nil when not configured.
func NewPageScraper(first, second *Page, log *zap.SugaredLogger) *PageScraper {
	return &PageScraper{first: first, second: second, log: log}
}

// NewPageScraperFromConfig builds the pages described by cfg
func NewPageScraperFromConfig(cfg *config.Config, log *zap.SugaredLogger) (*PageScraper, error) {
	first, err := pageFromConfig("first", cfg.Pages.First, log)
	if err != nil {
		return nil, err
	}
	second, err := pageFromConfig("second", cfg.Pages.Second, log)
	if err != nil {
		return nil, err
	}
	return NewPageScraper(first, second, log), nil
}

func pageFromConfig(name string, pc config.PageConfig, log *zap.SugaredLogger) (*Page, error) {
	if pc.URL == "" {
		return nil, nil
	}

	f, err := fetcher.New(pc.Fetcher, log.With("page", name))
	if err != nil {
		return nil, fmt.Errorf("%s page: %w", name, err)
	}
	p, err := parser.NewParser(parser.SelectorsFromConfig(pc))
	if err != nil {
		return nil, fmt.Errorf("%s page: %w", name, err)
	}
	return &Page{Name: name, URL: pc.URL, Fetcher: f, Parser: p}, nil
}

// FetchScrapData implements Scraper. Requested pages are fetched concurrently;
// the payload lists are zipped into entries by position.
func (ps *PageScraper) FetchScrapData(ctx context.Context, wantFirst, wantSecond bool) ([]models.RawResultEntry, error) {
	var firstData, secondData []models.PagePayload

	g, gctx := errgroup.WithContext(ctx)
	if wantFirst {
		g.Go(func() error {
			payloads, err := ps.scrapePage(gctx, ps.first, "first")
			firstData = payloads
			return err
		})
	}
	if wantSecond {
		g.Go(func() error {
			payloads, err := ps.scrapePage(gctx, ps.second, "second")
			secondData = payloads
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return zipEntries(firstData, secondData), nil
}

func (ps *PageScraper) scrapePage(ctx context.Context, page *Page, name string) ([]models.PagePayload, error) {
	if page == nil {
		return nil, newFetchError("scrape "+name+" page", errors.New("page not configured"))
	}

	html, err := page.Fetcher.Fetch(ctx, page.URL)
	if err != nil {
		return nil, newFetchError("fetch "+page.Name+" page", err)
	}

	payloads, err := page.Parser.ParseHTML(html)
	if err != nil {
		return nil, newFetchError("parse "+page.Name+" page", err)
	}
	if len(payloads) == 0 {
		ps.log.Warnf("No quotas found on %s page %s", page.Name, page.URL)
	}
	ps.log.Infof("Scraped %d quotas from %s page", len(payloads), page.Name)
	return payloads, nil
}

// zipEntries builds one entry per index; the shorter side leaves nil payloads
func zipEntries(first, second []models.PagePayload) []models.RawResultEntry {
	n := max(len(first), len(second))
	entries := make([]models.RawResultEntry, n)
	for i := 0; i < n; i++ {
		if i < len(first) {
			p := first[i]
			entries[i].FirstPageData = &p
		}
		if i < len(second) {
			p := second[i]
			entries[i].SecondPageData = &p
		}
	}
	return entries
}

// Close releases fetchers that hold resources, such as a headless browser
func (ps *PageScraper) Close() error {
	var errs []error
	for _, page := range []*Page{ps.first, ps.second} {
		if page == nil {
			continue
		}
		if c, ok := page.Fetcher.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
