// Package lawcrawler is a client for the LawCrawler legal search service.
package lawcrawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://lawcrawler-api-production.up.railway.app"

// ErrNotFound is returned by Law when the service has no law with that id.
var ErrNotFound = errors.New("lawcrawler: law not found")

// Client queries the legal search service.
type Client interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
	Law(ctx context.Context, id string) (json.RawMessage, error)
}

// SearchResponse is the body of GET /search. Results are kept opaque.
type SearchResponse struct {
	Results []json.RawMessage `json:"resultados"`
}

// StatusError is returned for unexpected non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lawcrawler: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default service URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a LawCrawler client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	u := c.baseURL + "/search?" + url.Values{"q": {query}}.Encode()
	body, err := c.get(ctx, u, "search")
	if err != nil {
		return nil, err
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "lawcrawler: unmarshal search response")
	}
	return &result, nil
}

func (c *httpClient) Law(ctx context.Context, id string) (json.RawMessage, error) {
	body, err := c.get(ctx, c.baseURL+"/law/"+url.PathEscape(id), "law")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, eris.Errorf("lawcrawler: law %s returned invalid JSON", id)
	}
	return json.RawMessage(body), nil
}

func (c *httpClient) get(ctx context.Context, u, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "lawcrawler: create %s request", op)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "lawcrawler: send %s request", op)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "lawcrawler: read %s response", op)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && op == "law":
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
