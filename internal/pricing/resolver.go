// Package pricing resolves procedure codes to reference price ranges from an
// ordered list of fee sources.
package pricing

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/normalize"
)

// ErrNotFound is returned by a Source that has no usable price for a code.
var ErrNotFound = errors.New("pricing: code not found")

// Source is one tier of reference price data. Lookup receives a normalized
// code and returns ErrNotFound when the tier has nothing for it.
type Source interface {
	Name() string
	Lookup(ctx context.Context, code string) (*model.PriceReference, error)
}

// Cache memoizes resolved references. Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, code string) (*model.PriceReference, error)
	Set(ctx context.Context, code string, ref model.PriceReference) error
}

// Resolver consults its sources in priority order; the first hit wins.
// Source and cache failures are logged and treated as misses, so Resolve
// never fails.
type Resolver struct {
	sources []Source
	cache   Cache
	log     zerolog.Logger
}

// NewResolver builds a resolver over sources, highest priority first. Nil
// interface values are skipped.
func NewResolver(log zerolog.Logger, sources ...Source) *Resolver {
	r := &Resolver{log: log}
	for _, s := range sources {
		if s != nil {
			r.sources = append(r.sources, s)
		}
	}
	return r
}

// WithCache sets a read-through cache in front of the sources.
func (r *Resolver) WithCache(c Cache) *Resolver {
	r.cache = c
	return r
}

// Sources returns the configured source names in priority order.
func (r *Resolver) Sources() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// Resolve returns the reference price for a billed code. The code is
// normalized with normalize.LookupCode first; ok is false when no source
// has a valid price.
func (r *Resolver) Resolve(ctx context.Context, rawCode string) (model.PriceReference, bool) {
	code := normalize.LookupCode(rawCode)
	if code == "" {
		return model.PriceReference{}, false
	}

	if r.cache != nil {
		ref, err := r.cache.Get(ctx, code)
		if err != nil {
			r.log.Warn().Err(err).Str("code", code).Msg("price cache read failed")
		} else if ref != nil && ref.Valid() {
			return *ref, true
		}
	}

	for _, src := range r.sources {
		ref, err := src.Lookup(ctx, code)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			r.log.Warn().Err(err).Str("source", src.Name()).Str("code", code).Msg("price source lookup failed")
			continue
		}
		if ref == nil {
			continue
		}

		out := model.PriceReference{
			Description: ref.Description,
			AvgPrice:    normalize.Money(ref.AvgPrice),
			HighPrice:   normalize.Money(ref.HighPrice),
		}
		if !out.Valid() {
			r.log.Debug().Str("source", src.Name()).Str("code", code).Msg("discarding non-positive reference price")
			continue
		}

		if r.cache != nil {
			if err := r.cache.Set(ctx, code, out); err != nil {
				r.log.Warn().Err(err).Str("code", code).Msg("price cache write failed")
			}
		}
		r.log.Debug().Str("source", src.Name()).Str("code", code).Msg("reference price resolved")
		return out, true
	}

	r.log.Debug().Str("code", code).Msg("no reference price")
	return model.PriceReference{}, false
}
