package pipeline

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/normalize"
)

// Enrich attaches reference prices to every line item that has a code and
// returns how many were priced. Items without a reference keep null
// enrichment fields. Lookups run concurrently; each goroutine writes only
// its own line item.
func (p *Pipeline) Enrich(ctx context.Context, bill *model.BillRecord) int {
	var priced atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range bill.LineItems {
		item := &bill.LineItems[i]
		item.ClearEnrichment()
		if p.prices == nil || strings.TrimSpace(item.CodeValue()) == "" {
			continue
		}
		g.Go(func() error {
			ref, ok := p.prices.Resolve(gctx, item.CodeValue())
			if !ok {
				return nil
			}
			qty := decimal.NewFromInt(int64(item.Qty()))
			item.ExpectedCharge = decimal.NewNullDecimal(normalize.Money(ref.AvgPrice.Mul(qty)))
			item.ExpectedChargePerUnit = decimal.NewNullDecimal(ref.AvgPrice)
			item.HighPricePerUnit = decimal.NewNullDecimal(ref.HighPrice)
			priced.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(priced.Load())
	p.log.Info().Msgf("enriched %d/%d line items", n, len(bill.LineItems))
	return n
}
