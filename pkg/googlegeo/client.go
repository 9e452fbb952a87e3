// Package googlegeo implements the secondary, single-query geocoding
// provider. It supports only one free-form query shape; confidence comes
// from the provider's own precision classification.
package googlegeo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/geocode-cli/internal/model"
	"github.com/sells-group/geocode-cli/internal/resilience"
	"github.com/sells-group/geocode-cli/internal/score"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Client queries the Google Geocoding API.
type Client struct {
	apiKey     string
	baseURL    string
	region     string
	httpClient *http.Client
	limiter    *rate.Limiter
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

// WithRateLimit sets the outbound requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithRegion sets the region bias (default "bg").
func WithRegion(region string) Option {
	return func(c *Client) { c.region = region }
}

// New creates a Client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		region:     "bg",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is present. An unconfigured client
// is skipped, not an error.
func (c *Client) Configured() bool { return c.apiKey != "" }

// response keeps each result as raw bytes so the full provider payload,
// including fields the subset struct does not decode, survives for audit.
type response struct {
	Results []json.RawMessage `json:"results"`
	Status  string            `json:"status"`
}

type result struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress  string   `json:"formatted_address"`
	Types             []string `json:"types"`
	AddressComponents []struct {
		LongName string   `json:"long_name"`
		Types    []string `json:"types"`
	} `json:"address_components"`
}

// Query geocodes one free-form address string.
func (c *Client) Query(ctx context.Context, query string) (*model.ProviderResult, error) {
	if !c.Configured() {
		return nil, eris.New("googlegeo: api key not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "googlegeo: rate limit")
	}

	params := url.Values{
		"address": {query},
		"key":     {c.apiKey},
		"region":  {c.region},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "googlegeo: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "googlegeo: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "googlegeo: read body")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("googlegeo: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "googlegeo: parse response")
	}

	now := time.Now().UTC()
	if parsed.Status != "OK" || len(parsed.Results) == 0 {
		return &model.ProviderResult{
			Success:   false,
			Kind:      model.KindUnknown,
			Raw:       json.RawMessage(body),
			Query:     query,
			QueryKind: model.QueryFreeform,
			QueriedAt: now,
		}, nil
	}

	var r result
	if err := json.Unmarshal(parsed.Results[0], &r); err != nil {
		return nil, eris.Wrap(err, "googlegeo: parse result")
	}
	return &model.ProviderResult{
		Success:     true,
		Coord:       &model.Coordinate{Lat: r.Geometry.Location.Lat, Lon: r.Geometry.Location.Lng},
		Kind:        classify(r.Types),
		DisplayName: r.FormattedAddress,
		Locality:    locality(r),
		Confidence:  score.Precision(r.Geometry.LocationType),
		Raw:         parsed.Results[0],
		Query:       query,
		QueryKind:   model.QueryFreeform,
		QueriedAt:   now,
	}, nil
}

// classify maps Google's result types onto the result-kind set. Specific
// kinds win over the generic "political" tag that accompanies most results.
func classify(types []string) model.ResultKind {
	kinds := map[string]model.ResultKind{
		"street_address": model.KindBuilding, "premise": model.KindBuilding,
		"subpremise": model.KindBuilding, "establishment": model.KindBuilding,
		"point_of_interest": model.KindBuilding,
		"route":             model.KindStreet, "intersection": model.KindStreet,
		"locality": model.KindPlace, "sublocality": model.KindPlace,
		"neighborhood":                model.KindPlace,
		"administrative_area_level_1": model.KindAdmin,
		"administrative_area_level_2": model.KindAdmin,
		"country":                     model.KindAdmin,
	}
	for _, want := range []model.ResultKind{model.KindBuilding, model.KindStreet, model.KindPlace, model.KindAdmin} {
		for _, t := range types {
			if kinds[t] == want {
				return want
			}
		}
	}
	return model.KindUnknown
}

// locality extracts the claimed settlement from address components.
func locality(r result) string {
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			if t == "locality" {
				return c.LongName
			}
		}
	}
	return ""
}
