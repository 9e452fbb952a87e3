package googlegeo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/geocode-cli/internal/model"
)

func testClient(srv *httptest.Server) *Client {
	c := New("test-key", WithBaseURL(srv.URL))
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestQuery_RooftopMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "bg", r.URL.Query().Get("region"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {"location": {"lat": 42.494, "lng": 27.472}, "location_type": "ROOFTOP"},
				"formatted_address": "ul. Hristo Arnaudov 15, Burgas, Bulgaria",
				"types": ["street_address"],
				"address_components": [
					{"long_name": "Burgas", "types": ["locality", "political"]}
				]
			}]
		}`)
	}))
	defer srv.Close()

	r, err := testClient(srv).Query(context.Background(), "Hristo Arnaudov 15, Burgas")
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, 95, r.Confidence)
	assert.Equal(t, model.KindBuilding, r.Kind)
	assert.Equal(t, "Burgas", r.Locality)
	assert.Equal(t, model.QueryFreeform, r.QueryKind)
}

func TestQuery_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	r, err := testClient(srv).Query(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Equal(t, 0, r.Confidence)
	assert.NotEmpty(t, r.Raw, "raw payload retained on failure")
}

func TestQuery_RawKeepsUndecodedFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"place_id": "ChIJqRWJrmSpqkAR4mEJ7QOzrJM",
				"plus_code": {"global_code": "8GJ5FFVC+HR"},
				"geometry": {"location": {"lat": 42.494, "lng": 27.472}, "location_type": "ROOFTOP"},
				"formatted_address": "ul. Hristo Arnaudov 15, Burgas, Bulgaria",
				"types": ["street_address"]
			}]
		}`)
	}))
	defer srv.Close()

	r, err := testClient(srv).Query(context.Background(), "Hristo Arnaudov 15, Burgas")
	require.NoError(t, err)
	require.True(t, r.Success)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(r.Raw, &raw))
	assert.Equal(t, "ChIJqRWJrmSpqkAR4mEJ7QOzrJM", raw["place_id"], "fields outside the decoded subset survive in the raw payload")
	assert.Contains(t, raw, "plus_code")
}

func TestQuery_ApproximateCentroid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {"location": {"lat": 42.5, "lng": 27.46}, "location_type": "APPROXIMATE"},
				"formatted_address": "Burgas, Bulgaria",
				"types": ["locality", "political"]
			}]
		}`)
	}))
	defer srv.Close()

	r, err := testClient(srv).Query(context.Background(), "Burgas")
	require.NoError(t, err)
	assert.Equal(t, 40, r.Confidence)
	assert.Equal(t, model.KindPlace, r.Kind, "specific locality type wins over political")
}

func TestQuery_NotConfigured(t *testing.T) {
	c := New("")
	assert.False(t, c.Configured())
	_, err := c.Query(context.Background(), "Burgas")
	require.Error(t, err)
}
