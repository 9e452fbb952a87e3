package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geocode-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_UpsertRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO records`).
		WithArgs("ЧИТАЛИЩЕ ПРОБУДА", "УЛ. ХРИСТО БОТЕВ 12", pgxmock.AnyArg(),
			"БУРГАС", "БУРГАС", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := s.UpsertRecord(context.Background(), model.AddressRecord{
		Name:         "ЧИТАЛИЩЕ ПРОБУДА",
		RawAddress:   "УЛ. ХРИСТО БОТЕВ 12",
		Query:        "УЛ. ХРИСТО БОТЕВ 12, БУРГАС",
		Locality:     "БУРГАС",
		Municipality: "БУРГАС",
		Source:       &model.Coordinate{Lat: 42.49, Lon: 27.47},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecord_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM records WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRecord(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePrimaryResult_WriteOnce(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	r := &model.ProviderResult{
		Success:    true,
		Coord:      &model.Coordinate{Lat: 42.49, Lon: 27.47},
		Kind:       model.KindBuilding,
		Confidence: 85,
		QueriedAt:  time.Now().UTC(),
	}

	// Result already present: zero rows updated, record exists, no error.
	mock.ExpectExec(`UPDATE records`).
		WithArgs(pgxmock.AnyArg(), 85, pgxmock.AnyArg(), int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM records WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	require.NoError(t, s.SavePrimaryResult(context.Background(), 3, r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDecision_MissingRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE records`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"nominatim", pgxmock.AnyArg(), pgxmock.AnyArg(),
			"ok", "", int64(404)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SaveDecision(context.Background(), 404, model.DistanceSet{}, model.Decision{
		Provider: model.ProviderPrimary,
		Coord:    &model.Coordinate{Lat: 42.5, Lon: 27.46},
		Status:   model.StatusOK,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CachedResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT result FROM query_cache`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetCachedResult(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	payload, err := json.Marshal(&model.ProviderResult{Success: false, Kind: model.KindUnknown})
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT result FROM query_cache`).
		WithArgs("k1").
		WillReturnRows(pgxmock.NewRows([]string{"result"}).AddRow(string(payload)))

	got, err := s.GetCachedResult(context.Background(), "k1")
	require.NoError(t, err)
	assert.False(t, got.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}
