package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/sells-group/geocode-cli/internal/model"
	"github.com/sells-group/geocode-cli/internal/resilience"
	"github.com/sells-group/geocode-cli/internal/store"
	"github.com/sells-group/geocode-cli/internal/translit"
)

// CacheKey derives the persistent cache key for one provider query. The
// parent-area name is part of the key: the same locality name can exist
// under different parents, and omitting it would cross-contaminate them.
func CacheKey(provider model.ProviderName, kind model.QueryKind, query, parent string) string {
	h := sha256.New()
	h.Write([]byte(string(provider)))
	h.Write([]byte{0})
	h.Write([]byte(string(kind)))
	h.Write([]byte{0})
	h.Write([]byte(translit.Normalize(query)))
	h.Write([]byte{0})
	h.Write([]byte(translit.Normalize(parent)))
	return hex.EncodeToString(h.Sum(nil))
}

// fetch returns the cached result for key, or executes call (with retry)
// and caches whatever it returns. Failed and empty results are cached too,
// so a query with no answer is not retried on every run. Concurrent fetches
// of the same key collapse into one check-then-act via singleflight, so two
// workers never issue duplicate network calls for the same key.
func (r *Resolver) fetch(ctx context.Context, key string, call func(context.Context) (*model.ProviderResult, error)) (*model.ProviderResult, error) {
	v, err, _ := r.inflight.Do(key, func() (any, error) {
		cached, err := r.store.GetCachedResult(ctx, key)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, store.ErrCacheMiss) {
			return nil, err
		}

		res, err := resilience.Do(ctx, r.retry, call)
		if err != nil {
			return nil, err
		}
		if err := r.store.PutCachedResult(ctx, key, res); err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ProviderResult), nil
}
