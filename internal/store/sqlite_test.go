package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geocode-cli/internal/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleRecord() model.AddressRecord {
	return model.AddressRecord{
		Name:         "ЧИТАЛИЩЕ ПРОБУДА",
		RawAddress:   "УЛ. ХРИСТО БОТЕВ 12",
		Query:        "УЛ. ХРИСТО БОТЕВ 12, БУРГАС",
		Locality:     "БУРГАС",
		Municipality: "БУРГАС",
		Source:       &model.Coordinate{Lat: 42.4936, Lon: 27.4721},
	}
}

func sampleResult(conf int) *model.ProviderResult {
	return &model.ProviderResult{
		Success:     true,
		Coord:       &model.Coordinate{Lat: 42.4940, Lon: 27.4725},
		Kind:        model.KindBuilding,
		DisplayName: "12, Hristo Botev, Burgas, Bulgaria",
		Confidence:  conf,
		Query:       "УЛ. ХРИСТО БОТЕВ 12, БУРГАС",
		QueryKind:   model.QueryFreeform,
		QueriedAt:   time.Now().UTC(),
	}
}

func TestUpsertRecord_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id1, err := s.UpsertRecord(ctx, sampleRecord())
	require.NoError(t, err)

	// Re-importing the same row must not create a duplicate.
	id2, err := s.UpsertRecord(ctx, sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	recs, err := s.ListRecords(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestGetRecord_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetRecord(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSavePrimaryResult_WriteOnce(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.UpsertRecord(ctx, sampleRecord())
	require.NoError(t, err)

	require.NoError(t, s.SavePrimaryResult(ctx, id, sampleResult(85)))
	// Second write is silently ignored; the first result stands.
	require.NoError(t, s.SavePrimaryResult(ctx, id, sampleResult(10)))

	rec, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec.Primary)
	assert.Equal(t, 85, rec.Primary.Confidence)
	assert.True(t, rec.Resolved())
}

func TestSavePrimaryResult_MissingRecord(t *testing.T) {
	s := testStore(t)
	err := s.SavePrimaryResult(context.Background(), 42, sampleResult(70))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUnresolved_ExcludesResolved(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id1, err := s.UpsertRecord(ctx, sampleRecord())
	require.NoError(t, err)

	other := sampleRecord()
	other.Name = "ЧИТАЛИЩЕ СВЕТЛИНА"
	other.Locality = "АЙТОС"
	_, err = s.UpsertRecord(ctx, other)
	require.NoError(t, err)

	require.NoError(t, s.SavePrimaryResult(ctx, id1, sampleResult(80)))

	pending, err := s.ListUnresolved(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "АЙТОС", pending[0].Locality)
	require.NotNil(t, pending[0].Source)
	assert.InDelta(t, 42.4936, pending[0].Source.Lat, 1e-9)
}

func TestSaveDecision_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.UpsertRecord(ctx, sampleRecord())
	require.NoError(t, err)
	require.NoError(t, s.SavePrimaryResult(ctx, id, sampleResult(85)))

	dist := 44.2
	set := model.DistanceSet{SourcePrimaryM: &dist}
	dec := model.Decision{
		Provider: model.ProviderPrimary,
		Coord:    &model.Coordinate{Lat: 42.4940, Lon: 27.4725},
		Status:   model.StatusOK,
		Notes:    "confirmed within 1 km",
	}
	require.NoError(t, s.SaveDecision(ctx, id, set, dec))

	rec, err := s.GetRecord(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec.Decision)
	assert.Equal(t, model.StatusOK, rec.Decision.Status)
	assert.Equal(t, model.ProviderPrimary, rec.Decision.Provider)
	require.NotNil(t, rec.Distances.SourcePrimaryM)
	assert.InDelta(t, 44.2, *rec.Distances.SourcePrimaryM, 1e-9)

	// Decisions may be recomputed.
	dec.Status = model.StatusNeedsReview
	require.NoError(t, s.SaveDecision(ctx, id, set, dec))
	rec, err = s.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNeedsReview, rec.Decision.Status)
}

func TestListRecords_Filters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.UpsertRecord(ctx, sampleRecord())
	require.NoError(t, err)

	other := sampleRecord()
	other.Name = "ЧИТАЛИЩЕ ЗОРА"
	other.Municipality = "КАРНОБАТ"
	_, err = s.UpsertRecord(ctx, other)
	require.NoError(t, err)

	require.NoError(t, s.SaveDecision(ctx, id, model.DistanceSet{}, model.Decision{
		Provider: model.ProviderPrimary,
		Status:   model.StatusOK,
	}))

	byMun, err := s.ListRecords(ctx, Filter{Municipality: "КАРНОБАТ"})
	require.NoError(t, err)
	require.Len(t, byMun, 1)
	assert.Equal(t, "ЧИТАЛИЩЕ ЗОРА", byMun[0].Name)

	byStatus, err := s.ListRecords(ctx, Filter{Status: model.StatusOK})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, id, byStatus[0].ID)
}

func TestSummarize(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.UpsertRecord(ctx, sampleRecord())
	require.NoError(t, err)

	other := sampleRecord()
	other.Name = "ЧИТАЛИЩЕ ИЗГРЕВ"
	_, err = s.UpsertRecord(ctx, other)
	require.NoError(t, err)

	require.NoError(t, s.SavePrimaryResult(ctx, id, sampleResult(80)))
	dist := 120.0
	require.NoError(t, s.SaveDecision(ctx, id, model.DistanceSet{SourcePrimaryM: &dist}, model.Decision{
		Provider: model.ProviderPrimary,
		Status:   model.StatusOK,
	}))

	sum, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Decided)
	assert.Equal(t, 1, sum.ByStatus[model.StatusOK])
	assert.Equal(t, 1, sum.ByProvider[model.ProviderPrimary])
	assert.InDelta(t, 80, sum.AvgConfidence, 1e-9)
	assert.InDelta(t, 120, sum.AvgDistanceM, 1e-9)
}

func TestQueryCache_RoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.GetCachedResult(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, s.PutCachedResult(ctx, "k1", sampleResult(75)))
	got, err := s.GetCachedResult(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 75, got.Confidence)
	assert.True(t, got.Success)

	// Failed results are cached too.
	failed := model.Failed(nil, []string{"УЛ. НЕСЪЩЕСТВУВАЩА 1, БУРГАС"})
	require.NoError(t, s.PutCachedResult(ctx, "k2", failed))
	got, err = s.GetCachedResult(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, got.Success)
	assert.Equal(t, []string{"УЛ. НЕСЪЩЕСТВУВАЩА 1, БУРГАС"}, got.Attempted)
}
