package nominatim

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
	c := New("geocode-cli-test", WithBaseURL(srv.URL))
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestFreeform_BuildingMatch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "bg", r.URL.Query().Get("countrycodes"))
		assert.Equal(t, "geocode-cli-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{
			"lat": "42.446", "lon": "27.487",
			"display_name": "15, Христо Арнаудов, Крайморие, Бургас, България",
			"class": "building", "type": "yes", "importance": 0.31,
			"address": {"house_number": "15", "road": "Христо Арнаудов", "city": "Бургас"}
		}]`)
	}))
	defer srv.Close()

	r, err := testClient(srv).Freeform(context.Background(), "Христо Арнаудов 15, Бургас")
	require.NoError(t, err)
	assert.Equal(t, "Христо Арнаудов 15, Бургас", gotQuery)
	assert.True(t, r.Success)
	assert.Equal(t, model.KindBuilding, r.Kind)
	assert.InDelta(t, 42.446, r.Coord.Lat, 1e-9)
	assert.InDelta(t, 27.487, r.Coord.Lon, 1e-9)
	assert.Equal(t, "15", r.HouseNumber)
	assert.Equal(t, "Бургас", r.Locality)
	assert.Equal(t, model.QueryFreeform, r.QueryKind)
	assert.NotEmpty(t, r.Raw)
}

func TestStructured_ParamsAndQueryEncoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Извор", r.URL.Query().Get("city"))
		assert.Equal(t, "Бургас", r.URL.Query().Get("county"))
		assert.Equal(t, "България", r.URL.Query().Get("country"))
		assert.Empty(t, r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{
			"lat": "42.35", "lon": "27.25",
			"display_name": "Извор, Бургас, България",
			"class": "place", "type": "village", "importance": 0.4,
			"address": {"village": "Извор", "municipality": "Бургас"}
		}]`)
	}))
	defer srv.Close()

	r, err := testClient(srv).Structured(context.Background(), "Извор", "Бургас", "България")
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, model.KindPlace, r.Kind)
	assert.Equal(t, model.QueryStructured, r.QueryKind)
	assert.Equal(t, "structured:Извор,Бургас,България", r.Query)
	assert.Equal(t, "Извор", r.Locality)
}

func TestSearch_EmptyResultIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	r, err := testClient(srv).Freeform(context.Background(), "к-с Меден рудник бл. 25")
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Nil(t, r.Coord)
	assert.Equal(t, "к-с Меден рудник бл. 25", r.Query)
	assert.JSONEq(t, `[]`, string(r.Raw), "raw payload retained on empty result")
}

func TestSearch_RawKeepsUndecodedFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{
			"osm_id": 123456, "place_rank": 30,
			"boundingbox": ["42.44", "42.45", "27.48", "27.49"],
			"lat": "42.446", "lon": "27.487",
			"display_name": "15, Христо Арнаудов, Крайморие, Бургас, България",
			"class": "building", "type": "yes", "importance": 0.31,
			"address": {"house_number": "15", "road": "Христо Арнаудов", "city": "Бургас"}
		}]`)
	}))
	defer srv.Close()

	r, err := testClient(srv).Freeform(context.Background(), "Христо Арнаудов 15, Бургас")
	require.NoError(t, err)
	require.True(t, r.Success)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(r.Raw, &raw))
	assert.EqualValues(t, 123456, raw["osm_id"], "fields outside the decoded subset survive in the raw payload")
	assert.EqualValues(t, 30, raw["place_rank"])
	assert.Contains(t, raw, "boundingbox")
}

func TestSearch_AdminBoundaryClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{
			"lat": "42.5", "lon": "27.47",
			"display_name": "Бургас, България",
			"class": "boundary", "type": "administrative", "importance": 0.6,
			"address": {"city": "Бургас"}
		}]`)
	}))
	defer srv.Close()

	r, err := testClient(srv).Freeform(context.Background(), "Бургас")
	require.NoError(t, err)
	assert.Equal(t, model.KindAdmin, r.Kind)
}

func TestSearch_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv).Freeform(context.Background(), "Бургас")
	require.Error(t, err)
}

func TestSearch_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"not":"an array"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv).Freeform(context.Background(), "Бургас")
	require.Error(t, err)
}
