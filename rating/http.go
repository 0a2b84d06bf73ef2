package rating

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"resty.dev/v3"
)

// HttpProvider reads records from a REST api shaped as
// GET {apiRoot}/ratings/{mapKey}/{player}?region={region}.
type HttpProvider struct {
	apiRoot    string
	apiKey     string
	httpClient *resty.Client
}

func NewHttpProvider(apiRoot string, apiKey string, timeout time.Duration) *HttpProvider {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &HttpProvider{
		apiRoot:    apiRoot,
		apiKey:     apiKey,
		httpClient: client,
	}
}

func (p *HttpProvider) Name() string {
	return "http"
}

func (p *HttpProvider) Lookup(ctx context.Context, q Query) (*Record, error) {
	requestUrl := p.apiRoot + "/ratings/" + url.PathEscape(q.MapKey) + "/" + url.PathEscape(q.Player)

	var result Record

	req := p.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&result)

	if q.Region != "" {
		req.SetQueryParam("region", q.Region)
	}

	if p.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := req.Get(requestUrl)
	if err != nil {
		return nil, fmt.Errorf("fetching rating for %s failed: %w", q.Player, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetching rating for %s failed: %v", q.Player, resp.Status())
	}

	return &result, nil
}

func (p *HttpProvider) Close() error {
	return p.httpClient.Close()
}
