package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"quota-scraper/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RemoteScraper implements Scraper by calling a scrape service over HTTP:
// GET {baseURL}/scrap?first=<bool>&second=<bool> returning a JSON array of entries.
type RemoteScraper struct {
	client *resty.Client
	log    *zap.SugaredLogger
}

// NewRemoteScraper creates a RemoteScraper for the service at baseURL
func NewRemoteScraper(baseURL string, timeout time.Duration, log *zap.SugaredLogger) *RemoteScraper {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &RemoteScraper{client: client, log: log}
}

// FetchScrapData implements Scraper
func (rs *RemoteScraper) FetchScrapData(ctx context.Context, wantFirst, wantSecond bool) ([]models.RawResultEntry, error) {
	resp, err := rs.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"first":  strconv.FormatBool(wantFirst),
			"second": strconv.FormatBool(wantSecond),
		}).
		Get("/scrap")
	if err != nil {
		return nil, newFetchError("call scrape service", err)
	}

	if resp.IsError() {
		return nil, newFetchError("call scrape service", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	var entries []models.RawResultEntry
	if err := json.Unmarshal(resp.Body(), &entries); err != nil {
		return nil, newFetchError("decode scrape response", err)
	}
	if entries == nil {
		entries = []models.RawResultEntry{}
	}

	rs.log.Debugf("Scrape service returned %d entries in %s", len(entries), resp.Time())
	return entries, nil
}
