// Package peoplesearch provides a client for the USA People Search public
// records API.
package peoplesearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://usa-people-search-public-records.p.rapidapi.com"
	defaultHost    = "usa-people-search-public-records.p.rapidapi.com"
)

// Client searches public records for a person by name and state.
type Client interface {
	Search(ctx context.Context, first, last, state string) ([]Person, error)
}

// Person is one public-records match.
type Person struct {
	FullName string  `json:"FullName"`
	City     string  `json:"City"`
	State    string  `json:"State"`
	Phones   []Phone `json:"PeoplePhone"`
	Emails   []Email `json:"Email"`
}

// Phone is a phone number with its carrier line type (WIRELESS, LANDLINE).
type Phone struct {
	Number   string `json:"PhoneNumber"`
	LineType string `json:"LineType"`
}

// Email is an email address on a record.
type Email struct {
	Address string `json:"Email"`
}

type searchResponse struct {
	Source1 []Person `json:"Source1"`
}

// StatusError is returned for non-200 responses so callers can classify
// the failure.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "peoplesearch: unexpected status " + strconv.Itoa(e.StatusCode) + ": " + e.Body
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

type httpClient struct {
	apiKey  string
	baseURL string
	host    string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a people-search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		host:    defaultHost,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(2, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search returns the first page of matches.
func (c *httpClient) Search(ctx context.Context, first, last, state string) ([]Person, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "peoplesearch: rate limit wait")
	}

	q := url.Values{}
	q.Set("FirstName", first)
	q.Set("LastName", last)
	q.Set("State", state)
	q.Set("Page", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/SearchPeople?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "peoplesearch: create request")
	}
	req.Header.Set("x-rapidapi-host", c.host)
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "peoplesearch: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "peoplesearch: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "peoplesearch: unmarshal response")
	}
	return out.Source1, nil
}
