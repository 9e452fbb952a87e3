package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/geocode-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL DEFAULT '',
	address_raw    TEXT NOT NULL DEFAULT '',
	address_query  TEXT NOT NULL DEFAULT '',
	settlement     TEXT NOT NULL DEFAULT '',
	municipality   TEXT NOT NULL DEFAULT '',
	lat_src        REAL,
	lon_src        REAL,
	nom_result     TEXT,
	nom_confidence INTEGER,
	nom_queried_at DATETIME,
	g_result       TEXT,
	g_confidence   INTEGER,
	g_queried_at   DATETIME,
	dist_src_nom_m REAL,
	dist_src_g_m   REAL,
	dist_nom_g_m   REAL,
	best_provider  TEXT,
	best_lat       REAL,
	best_lon       REAL,
	status         TEXT,
	notes          TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(settlement, address_raw, name)
);

CREATE TABLE IF NOT EXISTS query_cache (
	cache_key TEXT PRIMARY KEY,
	result    TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_records_municipality ON records(municipality);
CREATE INDEX IF NOT EXISTS idx_records_nom_queried_at ON records(nom_queried_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertRecord(ctx context.Context, rec model.AddressRecord) (int64, error) {
	var latSrc, lonSrc any
	if rec.Source != nil {
		latSrc, lonSrc = rec.Source.Lat, rec.Source.Lon
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO records (name, address_raw, address_query, settlement, municipality, lat_src, lon_src)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(settlement, address_raw, name) DO UPDATE SET
			address_query = excluded.address_query,
			municipality  = excluded.municipality,
			lat_src       = excluded.lat_src,
			lon_src       = excluded.lon_src,
			updated_at    = datetime('now')
		RETURNING id`,
		rec.Name, rec.RawAddress, rec.Query, rec.Locality, rec.Municipality, latSrc, lonSrc,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert record")
	}
	return id, nil
}

const recordColumns = `id, name, address_raw, address_query, settlement, municipality,
	lat_src, lon_src, nom_result, g_result,
	dist_src_nom_m, dist_src_g_m, dist_nom_g_m,
	best_provider, best_lat, best_lon, status, notes`

func (s *SQLiteStore) GetRecord(ctx context.Context, id int64) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %d", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, f Filter) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE 1=1`
	var args []any
	if f.Municipality != "" {
		query += ` AND municipality LIKE ?`
		args = append(args, "%"+f.Municipality+"%")
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close() //nolint:errcheck

	var recs []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func (s *SQLiteStore) ListUnresolved(ctx context.Context, f Filter) ([]model.AddressRecord, error) {
	query := `SELECT id, name, address_raw, address_query, settlement, municipality, lat_src, lon_src
		FROM records WHERE nom_queried_at IS NULL`
	var args []any
	if f.Municipality != "" {
		query += ` AND municipality LIKE ?`
		args = append(args, "%"+f.Municipality+"%")
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unresolved")
	}
	defer rows.Close() //nolint:errcheck

	var recs []model.AddressRecord
	for rows.Next() {
		var rec model.AddressRecord
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.RawAddress, &rec.Query,
			&rec.Locality, &rec.Municipality, &lat, &lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unresolved")
		}
		if lat.Valid && lon.Valid {
			rec.Source = &model.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate unresolved")
}

func (s *SQLiteStore) SavePrimaryResult(ctx context.Context, id int64, r *model.ProviderResult) error {
	return s.saveResult(ctx, id, r, "nom")
}

func (s *SQLiteStore) SaveSecondaryResult(ctx context.Context, id int64, r *model.ProviderResult) error {
	return s.saveResult(ctx, id, r, "g")
}

// saveResult writes a provider result exactly once: an existing result for
// the same provider is never overwritten.
func (s *SQLiteStore) saveResult(ctx context.Context, id int64, r *model.ProviderResult, prefix string) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET `+prefix+`_result = ?, `+prefix+`_confidence = ?, `+prefix+`_queried_at = ?, updated_at = datetime('now')
		WHERE id = ? AND `+prefix+`_queried_at IS NULL`,
		string(payload), r.Confidence, r.QueriedAt.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save %s result %d", prefix, id)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Either the record is missing or the result already exists.
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM records WHERE id = ?`, id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return eris.Wrap(err, "sqlite: check record")
		}
	}
	return nil
}

func (s *SQLiteStore) SaveDecision(ctx context.Context, id int64, d model.DistanceSet, dec model.Decision) error {
	var bestLat, bestLon any
	if dec.Coord != nil {
		bestLat, bestLon = dec.Coord.Lat, dec.Coord.Lon
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET dist_src_nom_m = ?, dist_src_g_m = ?, dist_nom_g_m = ?,
			best_provider = ?, best_lat = ?, best_lon = ?,
			status = ?, notes = ?, updated_at = datetime('now')
		WHERE id = ?`,
		nullable(d.SourcePrimaryM), nullable(d.SourceSecondaryM), nullable(d.PrimarySecondaryM),
		string(dec.Provider), bestLat, bestLon,
		string(dec.Status), dec.Notes, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save decision %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Summarize(ctx context.Context) (*Summary, error) {
	sum := &Summary{
		ByStatus:   make(map[model.Status]int),
		ByProvider: make(map[model.ProviderName]int),
	}

	var avgConf, avgDist sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(status), AVG(nom_confidence), AVG(dist_src_nom_m) FROM records`,
	).Scan(&sum.Total, &sum.Decided, &avgConf, &avgDist)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize totals")
	}
	sum.AvgConfidence = avgConf.Float64
	sum.AvgDistanceM = avgDist.Float64

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM records WHERE status IS NOT NULL GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize status")
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		sum.ByStatus[model.Status(st)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate status counts")
	}

	provRows, err := s.db.QueryContext(ctx, `
		SELECT best_provider, COUNT(*) FROM records WHERE best_provider IS NOT NULL GROUP BY best_provider`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize providers")
	}
	defer provRows.Close() //nolint:errcheck
	for provRows.Next() {
		var p string
		var n int
		if err := provRows.Scan(&p, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider count")
		}
		sum.ByProvider[model.ProviderName(p)] = n
	}
	return sum, eris.Wrap(provRows.Err(), "sqlite: iterate provider counts")
}

func (s *SQLiteStore) GetCachedResult(ctx context.Context, key string) (*model.ProviderResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM query_cache WHERE cache_key = ?`, key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached result")
	}

	var r model.ProviderResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached result")
	}
	return &r, nil
}

func (s *SQLiteStore) PutCachedResult(ctx context.Context, key string, r *model.ProviderResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cached result")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_cache (cache_key, result, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET result = excluded.result, cached_at = excluded.cached_at`,
		key, string(payload), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put cached result")
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.Record, error) {
	var rec model.Record
	var latSrc, lonSrc, distNom, distG, distNomG, bestLat, bestLon sql.NullFloat64
	var nomResult, gResult, bestProvider, status, notes sql.NullString

	err := row.Scan(&rec.ID, &rec.Name, &rec.RawAddress, &rec.Query, &rec.Locality, &rec.Municipality,
		&latSrc, &lonSrc, &nomResult, &gResult,
		&distNom, &distG, &distNomG,
		&bestProvider, &bestLat, &bestLon, &status, &notes)
	if err != nil {
		return nil, err
	}

	if latSrc.Valid && lonSrc.Valid {
		rec.Source = &model.Coordinate{Lat: latSrc.Float64, Lon: lonSrc.Float64}
	}
	if rec.Primary, err = unmarshalResult(nomResult.String); err != nil {
		return nil, err
	}
	if rec.Secondary, err = unmarshalResult(gResult.String); err != nil {
		return nil, err
	}
	rec.Distances = model.DistanceSet{
		SourcePrimaryM:    floatPtr(distNom),
		SourceSecondaryM:  floatPtr(distG),
		PrimarySecondaryM: floatPtr(distNomG),
	}
	if status.Valid {
		rec.Decision = &model.Decision{
			Provider: model.ProviderName(bestProvider.String),
			Status:   model.Status(status.String),
			Notes:    notes.String,
		}
		if bestLat.Valid && bestLon.Valid {
			rec.Decision.Coord = &model.Coordinate{Lat: bestLat.Float64, Lon: bestLon.Float64}
		}
	}
	return &rec, nil
}

func unmarshalResult(payload string) (*model.ProviderResult, error) {
	if payload == "" {
		return nil, nil
	}
	var r model.ProviderResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal provider result")
	}
	return &r, nil
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullable(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
