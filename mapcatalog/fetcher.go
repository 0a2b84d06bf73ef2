package mapcatalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"
)

// Fetcher downloads the catalog, a json object of map name to rating key.
type Fetcher struct {
	url        string
	httpClient *resty.Client
}

func NewFetcher(url string, timeout time.Duration) *Fetcher {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &Fetcher{
		url:        url,
		httpClient: client,
	}
}

func (f *Fetcher) Fetch(ctx context.Context) (Catalog, error) {
	var result Catalog

	resp, err := f.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&result).
		Get(f.url)
	if err != nil {
		return nil, fmt.Errorf("fetching map catalog failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetching map catalog failed: %v", resp.Status())
	}

	return result.normalized(), nil
}

func (f *Fetcher) Close() error {
	return f.httpClient.Close()
}
