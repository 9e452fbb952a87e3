package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geocode-cli/internal/db"
	"github.com/sells-group/geocode-cli/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an existing pool. The caller owns the pool's lifetime
// only until Close is called on the store.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	address_raw    TEXT NOT NULL DEFAULT '',
	address_query  TEXT NOT NULL DEFAULT '',
	settlement     TEXT NOT NULL DEFAULT '',
	municipality   TEXT NOT NULL DEFAULT '',
	lat_src        DOUBLE PRECISION,
	lon_src        DOUBLE PRECISION,
	nom_result     JSONB,
	nom_confidence INTEGER,
	nom_queried_at TIMESTAMPTZ,
	g_result       JSONB,
	g_confidence   INTEGER,
	g_queried_at   TIMESTAMPTZ,
	dist_src_nom_m DOUBLE PRECISION,
	dist_src_g_m   DOUBLE PRECISION,
	dist_nom_g_m   DOUBLE PRECISION,
	best_provider  TEXT,
	best_lat       DOUBLE PRECISION,
	best_lon       DOUBLE PRECISION,
	status         TEXT,
	notes          TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(settlement, address_raw, name)
);

CREATE TABLE IF NOT EXISTS query_cache (
	cache_key TEXT PRIMARY KEY,
	result    JSONB NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_records_municipality ON records(municipality);
CREATE INDEX IF NOT EXISTS idx_records_nom_queried_at ON records(nom_queried_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertRecord(ctx context.Context, rec model.AddressRecord) (int64, error) {
	var latSrc, lonSrc any
	if rec.Source != nil {
		latSrc, lonSrc = rec.Source.Lat, rec.Source.Lon
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO records (name, address_raw, address_query, settlement, municipality, lat_src, lon_src)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (settlement, address_raw, name) DO UPDATE SET
			address_query = excluded.address_query,
			municipality  = excluded.municipality,
			lat_src       = excluded.lat_src,
			lon_src       = excluded.lon_src,
			updated_at    = now()
		RETURNING id`,
		rec.Name, rec.RawAddress, rec.Query, rec.Locality, rec.Municipality, latSrc, lonSrc,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert record")
	}
	return id, nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id int64) (*model.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %d", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, f Filter) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE 1=1`
	var args []any
	if f.Municipality != "" {
		args = append(args, "%"+f.Municipality+"%")
		query += ` AND municipality LIKE $1`
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var recs []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: iterate records")
}

func (s *PostgresStore) ListUnresolved(ctx context.Context, f Filter) ([]model.AddressRecord, error) {
	query := `SELECT id, name, address_raw, address_query, settlement, municipality, lat_src, lon_src
		FROM records WHERE nom_queried_at IS NULL`
	var args []any
	if f.Municipality != "" {
		args = append(args, "%"+f.Municipality+"%")
		query += ` AND municipality LIKE $1`
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unresolved")
	}
	defer rows.Close()

	var recs []model.AddressRecord
	for rows.Next() {
		var rec model.AddressRecord
		var lat, lon *float64
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.RawAddress, &rec.Query,
			&rec.Locality, &rec.Municipality, &lat, &lon); err != nil {
			return nil, eris.Wrap(err, "postgres: scan unresolved")
		}
		if lat != nil && lon != nil {
			rec.Source = &model.Coordinate{Lat: *lat, Lon: *lon}
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: iterate unresolved")
}

func (s *PostgresStore) SavePrimaryResult(ctx context.Context, id int64, r *model.ProviderResult) error {
	return s.saveResult(ctx, id, r, "nom")
}

func (s *PostgresStore) SaveSecondaryResult(ctx context.Context, id int64, r *model.ProviderResult) error {
	return s.saveResult(ctx, id, r, "g")
}

func (s *PostgresStore) saveResult(ctx context.Context, id int64, r *model.ProviderResult, prefix string) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE records
		SET `+prefix+`_result = $1, `+prefix+`_confidence = $2, `+prefix+`_queried_at = $3, updated_at = now()
		WHERE id = $4 AND `+prefix+`_queried_at IS NULL`,
		string(payload), r.Confidence, r.QueriedAt.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save %s result %d", prefix, id)
	}
	if tag.RowsAffected() == 0 {
		var exists int
		if err := s.pool.QueryRow(ctx, `SELECT 1 FROM records WHERE id = $1`, id).Scan(&exists); err != nil {
			if err == pgx.ErrNoRows {
				return ErrNotFound
			}
			return eris.Wrap(err, "postgres: check record")
		}
	}
	return nil
}

func (s *PostgresStore) SaveDecision(ctx context.Context, id int64, d model.DistanceSet, dec model.Decision) error {
	var bestLat, bestLon any
	if dec.Coord != nil {
		bestLat, bestLon = dec.Coord.Lat, dec.Coord.Lon
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE records
		SET dist_src_nom_m = $1, dist_src_g_m = $2, dist_nom_g_m = $3,
			best_provider = $4, best_lat = $5, best_lon = $6,
			status = $7, notes = $8, updated_at = now()
		WHERE id = $9`,
		nullable(d.SourcePrimaryM), nullable(d.SourceSecondaryM), nullable(d.PrimarySecondaryM),
		string(dec.Provider), bestLat, bestLon,
		string(dec.Status), dec.Notes, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save decision %d", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Summarize(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		ByStatus:   make(map[model.Status]int),
		ByProvider: make(map[model.ProviderName]int),
	}

	var avgConf, avgDist *float64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(status), AVG(nom_confidence), AVG(dist_src_nom_m) FROM records`,
	).Scan(&sum.Total, &sum.Decided, &avgConf, &avgDist)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize totals")
	}
	if avgConf != nil {
		sum.AvgConfidence = *avgConf
	}
	if avgDist != nil {
		sum.AvgDistanceM = *avgDist
	}

	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM records WHERE status IS NOT NULL GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize status")
	}
	defer rows.Close()
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		sum.ByStatus[model.Status(st)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate status counts")
	}

	provRows, err := s.pool.Query(ctx, `
		SELECT best_provider, COUNT(*) FROM records WHERE best_provider IS NOT NULL GROUP BY best_provider`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize providers")
	}
	defer provRows.Close()
	for provRows.Next() {
		var p string
		var n int
		if err := provRows.Scan(&p, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider count")
		}
		sum.ByProvider[model.ProviderName(p)] = n
	}
	return sum, eris.Wrap(provRows.Err(), "postgres: iterate provider counts")
}

func (s *PostgresStore) GetCachedResult(ctx context.Context, key string) (*model.ProviderResult, error) {
	var payload string
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM query_cache WHERE cache_key = $1`, key,
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached result")
	}

	var r model.ProviderResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached result")
	}
	return &r, nil
}

func (s *PostgresStore) PutCachedResult(ctx context.Context, key string, r *model.ProviderResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cached result")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO query_cache (cache_key, result, cached_at) VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE SET result = excluded.result, cached_at = excluded.cached_at`,
		key, string(payload), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: put cached result")
}
