package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/db"
	"github.com/gyeh/medbill/internal/pricing"
)

// lookupTimeout bounds each fee aggregate query issued by the resolver.
const lookupTimeout = 5 * time.Second

// priceStack is the resolver plus the connections it holds open.
type priceStack struct {
	resolver *pricing.Resolver
	cached   bool
	closers  []func()
}

func (s *priceStack) Close() {
	for _, c := range s.closers {
		c()
	}
}

// buildResolver assembles the price sources in priority order: the
// Postgres fee schedule when DATABASE_URL is set, then the static table.
// A missing or unreachable database or cache degrades the resolver; only a
// bad static table is fatal.
func buildResolver(ctx context.Context, log zerolog.Logger) (*priceStack, error) {
	stack := &priceStack{}
	var sources []pricing.Source

	if cfg.DSN != "" {
		pool, err := db.NewPool(ctx, cfg.DSN, lookupTimeout)
		if err != nil {
			log.Warn().Err(err).Msg("fee schedule database unavailable, using static fee table only")
		} else {
			stack.closers = append(stack.closers, pool.Close)
			sources = append(sources, pricing.NewPGStore(pool))
		}
	}

	var (
		table *pricing.StaticTable
		err   error
	)
	if cfg.FeeTableFile != "" {
		table, err = pricing.LoadStaticTable(cfg.FeeTableFile)
	} else {
		table, err = pricing.DefaultStaticTable()
	}
	if err != nil {
		stack.Close()
		return nil, err
	}
	sources = append(sources, table)
	log.Info().Int("codes", table.Len()).Msg("static fee table loaded")

	stack.resolver = pricing.NewResolver(log, sources...)

	if cfg.RedisAddr != "" {
		client, err := pricing.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("price cache unavailable, continuing without it")
		} else {
			stack.closers = append(stack.closers, func() { _ = client.Close() })
			stack.resolver.WithCache(pricing.NewRedisCache(client, cfg.PriceCacheTTL))
			stack.cached = true
		}
	}
	return stack, nil
}

func (s *priceStack) capabilities() collab.Capabilities {
	return collab.Capabilities{
		PriceCache:   s.cached,
		PriceSources: s.resolver.Sources(),
	}
}
