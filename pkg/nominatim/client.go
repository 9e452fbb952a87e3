// Package nominatim implements the primary geocoding provider client. It
// supports both structured (locality/county/country) and free-form query
// shapes, enforces a shared rate limit across all callers, and parses the
// provider payload into the fixed ProviderResult shape at the boundary.
package nominatim

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

	"github.com/sells-group/geocode-cli/internal/model"
	"github.com/sells-group/geocode-cli/internal/resilience"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org/search"

// Client queries the Nominatim search API. One Client holds the shared
// per-provider rate limiter, so all requests in a batch serialize through
// it regardless of which worker issues them.
type Client struct {
	baseURL      string
	userAgent    string
	countryCodes string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests point this at httptest).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit sets the outbound requests-per-second limit. Burst stays 1
// so the minimum inter-request interval holds exactly.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithCountryCodes restricts results to the given ISO codes (default "bg").
func WithCountryCodes(codes string) Option {
	return func(c *Client) { c.countryCodes = codes }
}

// New creates a Client. Nominatim's usage policy requires an identifying
// User-Agent and at most 1 request per second, which is the default.
func New(userAgent string, opts ...Option) *Client {
	c := &Client{
		baseURL:      defaultBaseURL,
		userAgent:    userAgent,
		countryCodes: "bg",
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		limiter:      rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// place is the subset of a Nominatim jsonv2 result we decode. Everything
// else survives only in the opaque raw payload.
type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Class       string  `json:"class"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
	Address     struct {
		HouseNumber  string `json:"house_number"`
		Road         string `json:"road"`
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Hamlet       string `json:"hamlet"`
		Municipality string `json:"municipality"`
	} `json:"address"`
}

// Freeform runs a single free-form text query.
func (c *Client) Freeform(ctx context.Context, query string) (*model.ProviderResult, error) {
	params := url.Values{"q": {query}}
	return c.search(ctx, params, query, model.QueryFreeform)
}

// Structured runs a structured query built from separate locality, parent
// administrative area, and country fields, with no street text.
func (c *Client) Structured(ctx context.Context, locality, county, country string) (*model.ProviderResult, error) {
	params := url.Values{
		"city":    {locality},
		"county":  {county},
		"country": {country},
	}
	q := model.EncodeStructuredQuery(locality, county, country)
	return c.search(ctx, params, q, model.QueryStructured)
}

func (c *Client) search(ctx context.Context, params url.Values, query string, kind model.QueryKind) (*model.ProviderResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "nominatim: rate limit")
	}

	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: read body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("nominatim: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	// Keep the provider's own bytes for the raw payload: fields the subset
	// struct does not decode must survive for audit and re-scoring.
	var rawPlaces []json.RawMessage
	if err := json.Unmarshal(body, &rawPlaces); err != nil {
		return nil, eris.Wrap(err, "nominatim: parse response")
	}

	now := time.Now().UTC()
	if len(rawPlaces) == 0 {
		return &model.ProviderResult{
			Success:   false,
			Kind:      model.KindUnknown,
			Raw:       json.RawMessage(body),
			Query:     query,
			QueryKind: kind,
			QueriedAt: now,
		}, nil
	}

	var p place
	if err := json.Unmarshal(rawPlaces[0], &p); err != nil {
		return nil, eris.Wrap(err, "nominatim: parse place")
	}
	lat, latErr := strconv.ParseFloat(p.Lat, 64)
	lon, lonErr := strconv.ParseFloat(p.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, eris.Errorf("nominatim: malformed coordinates %q,%q", p.Lat, p.Lon)
	}

	return &model.ProviderResult{
		Success:     true,
		Coord:       &model.Coordinate{Lat: lat, Lon: lon},
		Kind:        classify(p.Class, p.Type),
		DisplayName: p.DisplayName,
		Importance:  p.Importance,
		HouseNumber: p.Address.HouseNumber,
		Road:        p.Address.Road,
		Locality:    locality(p),
		Raw:         rawPlaces[0],
		Query:       query,
		QueryKind:   kind,
		QueriedAt:   now,
	}, nil
}

// classify maps Nominatim's class/type taxonomy onto the result-kind set.
func classify(class, typ string) model.ResultKind {
	switch class {
	case "building", "amenity", "tourism", "leisure", "shop", "office", "historic":
		return model.KindBuilding
	case "highway":
		return model.KindStreet
	case "place":
		return model.KindPlace
	case "boundary":
		if typ == "administrative" {
			return model.KindAdmin
		}
		return model.KindUnknown
	}
	switch typ {
	case "house", "residential", "commercial":
		return model.KindStreet
	case "administrative":
		return model.KindAdmin
	}
	return model.KindUnknown
}

// locality picks the provider's claimed settlement name from the address
// details, most specific field first.
func locality(p place) string {
	for _, s := range []string{p.Address.City, p.Address.Town, p.Address.Village, p.Address.Hamlet, p.Address.Municipality} {
		if s != "" {
			return s
		}
	}
	return ""
}
