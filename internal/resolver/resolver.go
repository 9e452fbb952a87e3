// Package resolver orchestrates per-record address resolution: it walks the
// planned query attempts against the primary provider, validates and scores
// answers, falls back to the secondary provider when the primary is
// exhausted or weak, and persists write-once results.
package resolver

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/geocode-cli/internal/model"
	"github.com/sells-group/geocode-cli/internal/resilience"
	"github.com/sells-group/geocode-cli/internal/score"
	"github.com/sells-group/geocode-cli/internal/store"
	"github.com/sells-group/geocode-cli/internal/strategy"
	"github.com/sells-group/geocode-cli/internal/validate"
)

// PrimaryClient is the structured/free-form provider capability.
type PrimaryClient interface {
	Freeform(ctx context.Context, query string) (*model.ProviderResult, error)
	Structured(ctx context.Context, locality, county, country string) (*model.ProviderResult, error)
}

// SecondaryClient is the single-query provider capability.
type SecondaryClient interface {
	Configured() bool
	Query(ctx context.Context, text string) (*model.ProviderResult, error)
}

// Config tunes the orchestrator.
type Config struct {
	// MinConfidence is the global minimum: an accepted primary result below
	// it still triggers the secondary provider.
	MinConfidence int

	// Workers bounds the batch worker pool. Provider calls stay serialized
	// by each client's own rate limiter regardless.
	Workers int

	Validation validate.Config
	Retry      resilience.RetryConfig
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 60,
		Workers:       4,
		Validation:    validate.DefaultConfig(),
		Retry:         resilience.DefaultRetryConfig(),
	}
}

// Resolver runs the resolution state machine for records.
type Resolver struct {
	store     store.Store
	primary   PrimaryClient
	secondary SecondaryClient
	strategy  *strategy.Selector
	cfg       Config
	retry     resilience.RetryConfig

	inflight singleflight.Group
}

// New builds a Resolver. secondary may be an unconfigured client; it is
// then skipped, not an error.
func New(st store.Store, primary PrimaryClient, secondary SecondaryClient, sel *strategy.Selector, cfg Config) *Resolver {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 60
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Resolver{
		store:     st,
		primary:   primary,
		secondary: secondary,
		strategy:  sel,
		cfg:       cfg,
		retry:     cfg.Retry,
	}
}

// Outcome is the result of resolving one record.
type Outcome struct {
	Primary   *model.ProviderResult
	Secondary *model.ProviderResult
	Skipped   bool // record was already resolved; nothing was queried
}

// ResolveRecord runs the full attempt sequence for one record and persists
// the results. Already-resolved records are returned unchanged with zero
// provider calls.
func (r *Resolver) ResolveRecord(ctx context.Context, rec model.AddressRecord) (*Outcome, error) {
	current, err := r.store.GetRecord(ctx, rec.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: load record %d", rec.ID)
	}
	if current.Resolved() {
		return &Outcome{Primary: current.Primary, Secondary: current.Secondary, Skipped: true}, nil
	}

	log := zap.L().With(zap.Int64("record", rec.ID), zap.String("locality", rec.Locality))

	primary, err := r.resolvePrimary(ctx, rec, log)
	if err != nil {
		return nil, err
	}
	if err := r.store.SavePrimaryResult(ctx, rec.ID, primary); err != nil {
		return nil, eris.Wrapf(err, "resolver: persist primary result %d", rec.ID)
	}

	out := &Outcome{Primary: primary}

	// The secondary provider is an independent single-query fallback: used
	// when the primary is exhausted or its accepted confidence is weak.
	if (!primary.Success || primary.Confidence < r.cfg.MinConfidence) && r.secondary.Configured() && rec.Query != "" {
		secondary, err := r.resolveSecondary(ctx, rec, log)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// A hard failure past the retry ceiling is still an answer:
			// record it so the record does not stay half-resolved forever.
			log.Warn("secondary provider failed", zap.Error(err))
			secondary = model.Failed(nil, []string{rec.Query})
		}
		if err := r.store.SaveSecondaryResult(ctx, rec.ID, secondary); err != nil {
			return nil, eris.Wrapf(err, "resolver: persist secondary result %d", rec.ID)
		}
		out.Secondary = secondary
	}
	return out, nil
}

// resolvePrimary walks the planned attempts until one is accepted or the
// plan is exhausted. Exhaustion yields a failed result carrying every query
// tried, for diagnosis.
func (r *Resolver) resolvePrimary(ctx context.Context, rec model.AddressRecord, log *zap.Logger) (*model.ProviderResult, error) {
	attempts := r.strategy.Plan(rec)
	attempted := make([]string, 0, len(attempts))

	for i, at := range attempts {
		attempted = append(attempted, at.Query)

		key := CacheKey(model.ProviderPrimary, at.Kind, at.Query, rec.Municipality)
		res, err := r.fetch(ctx, key, func(ctx context.Context) (*model.ProviderResult, error) {
			if at.Kind == model.QueryStructured {
				return r.primary.Structured(ctx, at.Locality, at.Parent, at.Country)
			}
			return r.primary.Freeform(ctx, at.Query)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(err, "resolver: primary query")
			}
			// A hard failure after retries counts as a completed attempt.
			log.Warn("primary attempt failed",
				zap.String("query", at.Query),
				zap.Error(err))
			continue
		}
		if !res.Success {
			continue
		}

		accepted := *res
		accepted.Confidence = score.Result(&accepted)

		if at.Validate {
			if ok, reason := validate.Accept(&accepted, rec.Locality, r.cfg.Validation); !ok {
				log.Debug("result rejected",
					zap.String("query", at.Query),
					zap.String("reason", reason))
				continue
			}
		}

		if i > 0 {
			// Fallback shapes are coarser than the first-choice query.
			accepted.Confidence = score.FallbackPenalty(accepted.Confidence)
		}
		accepted.Attempted = attempted
		log.Debug("primary result accepted",
			zap.String("query", at.Query),
			zap.Int("confidence", accepted.Confidence))
		return &accepted, nil
	}

	log.Info("primary attempts exhausted", zap.Strings("attempted", attempted))
	return model.Failed(nil, attempted), nil
}

func (r *Resolver) resolveSecondary(ctx context.Context, rec model.AddressRecord, log *zap.Logger) (*model.ProviderResult, error) {
	key := CacheKey(model.ProviderSecondary, model.QueryFreeform, rec.Query, rec.Municipality)
	res, err := r.fetch(ctx, key, func(ctx context.Context) (*model.ProviderResult, error) {
		return r.secondary.Query(ctx, rec.Query)
	})
	if err != nil {
		return nil, eris.Wrap(err, "resolver: secondary query")
	}
	log.Debug("secondary result",
		zap.Bool("success", res.Success),
		zap.Int("confidence", res.Confidence))
	return res, nil
}

// BatchStats summarizes one resolution run.
type BatchStats struct {
	Processed       int64
	Skipped         int64
	PrimaryOK       int64
	PrimaryFailed   int64
	SecondaryCalled int64
	SecondaryOK     int64
	Errors          int64
}

// ResolveBatch resolves every unresolved record matching the filter with a
// bounded worker pool. Per-record failures are counted, never fatal: the
// worst outcome for a record is a persisted failed result.
func (r *Resolver) ResolveBatch(ctx context.Context, f store.Filter) (*BatchStats, error) {
	recs, err := r.store.ListUnresolved(ctx, f)
	if err != nil {
		return nil, eris.Wrap(err, "resolver: list unresolved")
	}

	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("resolution run started", zap.Int("records", len(recs)))

	var stats BatchStats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for _, rec := range recs {
		g.Go(func() error {
			out, err := r.ResolveRecord(gctx, rec)
			if err != nil {
				if gctx.Err() != nil {
					return err
				}
				atomic.AddInt64(&stats.Errors, 1)
				log.Error("record resolution failed",
					zap.Int64("record", rec.ID),
					zap.Error(err))
				return nil
			}

			atomic.AddInt64(&stats.Processed, 1)
			if out.Skipped {
				atomic.AddInt64(&stats.Skipped, 1)
				return nil
			}
			if out.Primary != nil && out.Primary.Success {
				atomic.AddInt64(&stats.PrimaryOK, 1)
			} else {
				atomic.AddInt64(&stats.PrimaryFailed, 1)
			}
			if out.Secondary != nil {
				atomic.AddInt64(&stats.SecondaryCalled, 1)
				if out.Secondary.Success {
					atomic.AddInt64(&stats.SecondaryOK, 1)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &stats, eris.Wrap(err, "resolver: batch aborted")
	}

	log.Info("resolution run finished",
		zap.Int64("processed", stats.Processed),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("primary_ok", stats.PrimaryOK),
		zap.Int64("primary_failed", stats.PrimaryFailed),
		zap.Int64("secondary_called", stats.SecondaryCalled),
		zap.Int64("secondary_ok", stats.SecondaryOK),
		zap.Int64("errors", stats.Errors),
	)
	return &stats, nil
}
