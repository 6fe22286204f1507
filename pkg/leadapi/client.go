// Package leadapi provides a client for the RapidAPI local business lead
// listing endpoint.
package leadapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client fetches business listings for an area and search term.
type Client interface {
	FetchLeads(ctx context.Context, area, category string) ([]Listing, error)
}

// Listing is one business returned by the listing API. OtherInfo and Info
// are "·"-separated display strings holding the phone and address.
type Listing struct {
	Name      string `json:"name"`
	OtherInfo string `json:"other-info"`
	Info      string `json:"info"`
	Website   string `json:"website"`
}

type listResponse struct {
	Result []Listing `json:"result"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHost overrides the x-rapidapi-host header.
func WithHost(host string) Option {
	return func(c *httpClient) {
		c.host = host
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

const (
	defaultBaseURL = "https://lead-generation2.p.rapidapi.com"
	defaultHost    = "lead-generation2.p.rapidapi.com"
)

type httpClient struct {
	apiKey  string
	baseURL string
	host    string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a listing API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		host:    defaultHost,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(1, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

func (c *httpClient) FetchLeads(ctx context.Context, area, category string) ([]Listing, error) {
	if c.apiKey == "" {
		return nil, eris.New("leadapi: api key is not configured")
	}

	q := url.Values{}
	q.Set("area", area)
	q.Set("search", category)
	reqURL := c.baseURL + "/lead?" + q.Encode()

	const maxAttempts = 3
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "leadapi: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "leadapi: create request")
		}
		req.Header.Set("x-rapidapi-host", c.host)
		req.Header.Set("x-rapidapi-key", c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "leadapi: send request")
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, eris.Wrap(err, "leadapi: read response")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("leadapi: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("leadapi: unexpected status %d: %s", resp.StatusCode, string(body))
		}

		var out listResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, eris.Wrap(err, "leadapi: unmarshal response")
		}
		return out.Result, nil
	}
	return nil, lastErr
}
