// Package weather fetches current conditions from weatherapi.com. It is the
// downstream resource served behind the payment gate in the examples, exposed
// as a FetchFunc so the gate stays resource-agnostic.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the weatherapi.com API root.
const DefaultBaseURL = "https://api.weatherapi.com/v1"

// ErrLocationNotFound indicates the upstream has no data for the requested
// location.
var ErrLocationNotFound = errors.New("weather: location not found")

// ErrUpstream indicates the upstream API failed or was unreachable.
var ErrUpstream = errors.New("weather: upstream unavailable")

// Report is the subset of the upstream payload served to paying clients.
type Report struct {
	Location    string  `json:"location"`
	Region      string  `json:"region,omitempty"`
	Country     string  `json:"country"`
	TempC       float64 `json:"temp_c"`
	FeelsLikeC  float64 `json:"feelslike_c"`
	Condition   string  `json:"condition"`
	Humidity    int     `json:"humidity"`
	WindKph     float64 `json:"wind_kph"`
	LastUpdated string  `json:"last_updated"`
}

// Client queries weatherapi.com.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

// NewClient creates a weatherapi.com client. The API key is required.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("weather: API key is required")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// upstream mirrors the fields of the current.json response we use.
type upstream struct {
	Location struct {
		Name    string `json:"name"`
		Region  string `json:"region"`
		Country string `json:"country"`
	} `json:"location"`
	Current struct {
		TempC      float64 `json:"temp_c"`
		FeelsLikeC float64 `json:"feelslike_c"`
		Condition  struct {
			Text string `json:"text"`
		} `json:"condition"`
		Humidity    int     `json:"humidity"`
		WindKph     float64 `json:"wind_kph"`
		LastUpdated string  `json:"last_updated"`
	} `json:"current"`
}

type upstreamError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Current fetches the current conditions for a location.
func (c *Client) Current(ctx context.Context, location string) (*Report, error) {
	if location == "" {
		return nil, errors.New("weather: location is required")
	}

	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("q", location)
	query.Set("aqi", "no")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/current.json?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr upstreamError
		// Error code 1006 is "no matching location found".
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code == 1006 {
			return nil, fmt.Errorf("%w: %q", ErrLocationNotFound, location)
		}
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var raw upstream
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	return &Report{
		Location:    raw.Location.Name,
		Region:      raw.Location.Region,
		Country:     raw.Location.Country,
		TempC:       raw.Current.TempC,
		FeelsLikeC:  raw.Current.FeelsLikeC,
		Condition:   raw.Current.Condition.Text,
		Humidity:    raw.Current.Humidity,
		WindKph:     raw.Current.WindKph,
		LastUpdated: raw.Current.LastUpdated,
	}, nil
}

// FetchFunc adapts the client to the payment gate's resource callback. The
// resource id is expected to end in "/<location>", as produced by
// gatehttp.QueryResourceID.
func (c *Client) FetchFunc() func(ctx context.Context, resourceID string) (json.RawMessage, error) {
	return func(ctx context.Context, resourceID string) (json.RawMessage, error) {
		location := resourceID
		if idx := strings.LastIndex(resourceID, "/"); idx >= 0 {
			location = resourceID[idx+1:]
		}
		report, err := c.Current(ctx, location)
		if err != nil {
			return nil, err
		}
		return json.Marshal(report)
	}
}
