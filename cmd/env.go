package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geocode-cli/internal/resilience"
	"github.com/sells-group/geocode-cli/internal/resolver"
	"github.com/sells-group/geocode-cli/internal/store"
	"github.com/sells-group/geocode-cli/internal/strategy"
	"github.com/sells-group/geocode-cli/internal/validate"
	"github.com/sells-group/geocode-cli/pkg/googlegeo"
	"github.com/sells-group/geocode-cli/pkg/nominatim"
)

// openStore opens the configured store backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite", "":
		s, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "connect postgres")
		}
		st = store.NewPostgres(pool)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newSelector builds the query strategy selector from configuration.
func newSelector() (*strategy.Selector, error) {
	localities, err := cfg.Strategy.Localities()
	if err != nil {
		return nil, err
	}
	return strategy.New(localities, cfg.Strategy.Country), nil
}

// newResolver wires the orchestrator with both provider clients.
func newResolver(st store.Store) (*resolver.Resolver, error) {
	sel, err := newSelector()
	if err != nil {
		return nil, err
	}

	primary := nominatim.New(cfg.Nominatim.UserAgent,
		nominatim.WithBaseURL(cfg.Nominatim.BaseURL),
		nominatim.WithCountryCodes(cfg.Nominatim.CountryCodes),
		nominatim.WithRateLimit(cfg.Nominatim.RateRPS),
	)
	secondary := googlegeo.New(cfg.Google.Key,
		googlegeo.WithRegion(cfg.Google.Region),
		googlegeo.WithRateLimit(cfg.Google.RateRPS),
	)

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Resolver.RetryAttempts
	retry.OnRetry = resilience.RetryLogger("nominatim")

	return resolver.New(st, primary, secondary, sel, resolver.Config{
		MinConfidence: cfg.Resolver.MinConfidence,
		Workers:       cfg.Resolver.Workers,
		Validation: validate.Config{
			RejectAdminOnly: cfg.Validator.RejectAdminOnly,
			MinConfidence:   cfg.Validator.MinConfidence,
		},
		Retry: retry,
	}), nil
}
