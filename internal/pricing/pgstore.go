package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gyeh/medbill/internal/model"
	embedsql "github.com/gyeh/medbill/internal/sql"
)

// Querier is the subset of pgxpool.Pool used by PGStore.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the primary source: aggregates over the active fee schedule
// loaded by feeload.
type PGStore struct {
	db Querier
}

func NewPGStore(db Querier) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Name() string { return "postgres" }

// Lookup aggregates every active fee row for code.
func (s *PGStore) Lookup(ctx context.Context, code string) (*model.PriceReference, error) {
	var agg FeeAggregate
	err := s.db.QueryRow(ctx, embedsql.FeeAggregate, code).Scan(
		&agg.MinNonFac,
		&agg.MaxNonFac,
		&agg.AvgNonFac,
		&agg.MinFac,
		&agg.MaxFac,
		&agg.AvgFac,
		&agg.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("fee aggregate %s: %w", code, err)
	}

	ref, ok := FromAggregate(agg)
	if !ok {
		return nil, ErrNotFound
	}
	return &ref, nil
}
