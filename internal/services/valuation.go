package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"stockfolio/internal/marketdata"
	"stockfolio/internal/models"
)

// EnrichHoldings joins each holding with its quote and computes the
// derived valuation fields. It is a pure function: a holding whose
// symbol has no quote is still emitted, with zero price and zero
// derived fields, so callers always see every position.
func EnrichHoldings(holdings []models.Holding, quotes map[string]marketdata.Quote) []EnrichedHolding {
	enriched := make([]EnrichedHolding, 0, len(holdings))

	for _, h := range holdings {
		e := EnrichedHolding{
			Holding:     h,
			Name:        h.Stock.Name,
			Sector:      h.Stock.Sector,
			QuoteSource: marketdata.QuoteSourceSynthetic,
		}
		if e.Sector == "" {
			e.Sector = models.SectorUnknown
		}

		qty := decimal.NewFromInt(h.Quantity)
		e.CostBasis = h.AverageCost.Mul(qty)

		q, ok := quotes[h.Symbol]
		if !ok || q.Current <= 0 {
			// No quote at all: zeroed financials, holding still visible.
			e.CurrentPrice = decimal.Zero
			e.MarketValue = decimal.Zero
			e.UnrealizedProfit = decimal.Zero
			e.UnrealizedProfitPct = 0
			e.DailyChange = decimal.Zero
			enriched = append(enriched, e)
			continue
		}

		price := decimal.NewFromFloat(q.Current)
		e.CurrentPrice = price
		e.MarketValue = price.Mul(qty)
		e.UnrealizedProfit = e.MarketValue.Sub(e.CostBasis)
		e.DailyChange = decimal.NewFromFloat(q.Change).Mul(qty)
		e.QuoteSource = q.Source

		if e.CostBasis.IsPositive() {
			pct, _ := e.UnrealizedProfit.Div(e.CostBasis).Mul(decimal.NewFromInt(100)).Float64()
			e.UnrealizedProfitPct = pct
		}

		enriched = append(enriched, e)
	}

	return enriched
}

// Summarize aggregates enriched holdings into a portfolio summary.
// Empty input or a zero cost basis yields zeros, never NaN or Inf.
func Summarize(enriched []EnrichedHolding) PortfolioSummary {
	summary := PortfolioSummary{
		TotalValue:  decimal.Zero,
		TotalCost:   decimal.Zero,
		TotalProfit: decimal.Zero,
		DailyChange: decimal.Zero,
		StockCount:  len(enriched),
	}

	for _, e := range enriched {
		summary.TotalValue = summary.TotalValue.Add(e.MarketValue)
		summary.TotalCost = summary.TotalCost.Add(e.CostBasis)
		summary.DailyChange = summary.DailyChange.Add(e.DailyChange)
	}
	summary.TotalProfit = summary.TotalValue.Sub(summary.TotalCost)

	if summary.TotalCost.IsPositive() {
		pct, _ := summary.TotalProfit.Div(summary.TotalCost).Mul(decimal.NewFromInt(100)).Float64()
		summary.TotalProfitPct = pct
	}

	// Daily change percent is relative to the value at previous close.
	prevValue := summary.TotalValue.Sub(summary.DailyChange)
	if prevValue.IsPositive() {
		pct, _ := summary.DailyChange.Div(prevValue).Mul(decimal.NewFromInt(100)).Float64()
		summary.DailyChangePct = pct
	}

	return summary
}

// SectorBreakdown groups enriched holdings by sector and sums market
// value per bucket, sorted by value descending.
func SectorBreakdown(enriched []EnrichedHolding) []SectorValue {
	buckets := make(map[string]*SectorValue)
	total := decimal.Zero

	for _, e := range enriched {
		sector := e.Sector
		if sector == "" {
			sector = models.SectorUnknown
		}
		b, ok := buckets[sector]
		if !ok {
			b = &SectorValue{Sector: sector, Value: decimal.Zero}
			buckets[sector] = b
		}
		b.Value = b.Value.Add(e.MarketValue)
		b.Holdings++
		total = total.Add(e.MarketValue)
	}

	result := make([]SectorValue, 0, len(buckets))
	for _, b := range buckets {
		if total.IsPositive() {
			pct, _ := b.Value.Div(total).Mul(decimal.NewFromInt(100)).Float64()
			b.Percentage = pct
		}
		result = append(result, *b)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Value.Equal(result[j].Value) {
			return result[i].Value.GreaterThan(result[j].Value)
		}
		return result[i].Sector < result[j].Sector
	})

	return result
}
