// Package store persists address records, per-provider results, decisions,
// and the provider query cache. SQLite is the default backend; Postgres is
// available for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geocode-cli/internal/model"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = eris.New("store: record not found")

// ErrCacheMiss is returned when no cached result exists for a key.
var ErrCacheMiss = eris.New("store: cache miss")

// Filter narrows record listings.
type Filter struct {
	Municipality string       // substring match on the trusted parent area
	Status       model.Status // exact decision status match
	Limit        int
	Offset       int
}

// Summary aggregates decision outcomes for reporting.
type Summary struct {
	Total         int
	Decided       int
	ByStatus      map[model.Status]int
	ByProvider    map[model.ProviderName]int
	AvgConfidence float64 // mean primary confidence over attempted records
	AvgDistanceM  float64 // mean source↔primary distance where both exist
}

// Store is the persistence interface for the resolution engine.
type Store interface {
	// Records
	UpsertRecord(ctx context.Context, rec model.AddressRecord) (int64, error)
	GetRecord(ctx context.Context, id int64) (*model.Record, error)
	ListRecords(ctx context.Context, f Filter) ([]model.Record, error)
	ListUnresolved(ctx context.Context, f Filter) ([]model.AddressRecord, error)

	// Provider results are write-once per provider per record.
	SavePrimaryResult(ctx context.Context, id int64, r *model.ProviderResult) error
	SaveSecondaryResult(ctx context.Context, id int64, r *model.ProviderResult) error

	// Decisions are idempotent and may be recomputed.
	SaveDecision(ctx context.Context, id int64, d model.DistanceSet, dec model.Decision) error
	Summarize(ctx context.Context) (*Summary, error)

	// Query cache, keyed by the resolver's cache key. Failed results are
	// cached too, so queries with no answer are not retried every run.
	GetCachedResult(ctx context.Context, key string) (*model.ProviderResult, error)
	PutCachedResult(ctx context.Context, key string, r *model.ProviderResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
