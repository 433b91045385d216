package services

import (
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "stockfolio/internal/errors"
	"stockfolio/internal/models"
)

// profitLossService reconstructs realized profit and loss by replaying
// the transaction ledger per instrument.
type profitLossService struct {
	db *gorm.DB
}

// NewProfitLossService creates a new ProfitLossServicer.
func NewProfitLossService(db *gorm.DB) ProfitLossServicer {
	return &profitLossService{db: db}
}

// ComputeProfitLoss loads the user's full ledger and replays it.
func (s *profitLossService) ComputeProfitLoss(userID string) (*ProfitLossReport, error) {
	var transactions []models.Transaction
	if err := s.db.Where("user_id = ?", userID).
		Order("executed_at ASC, created_at ASC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	report := ReplayLedger(transactions)
	return &report, nil
}

// sectorAccumulator carries running realized totals for one sector.
type sectorAccumulator struct {
	profit     decimal.Decimal
	loss       decimal.Decimal
	investment decimal.Decimal
	count      int
}

// ReplayLedger reconstructs realized profit/loss from a transaction
// history. Each instrument is replayed independently in time order with
// a running share count and cost basis:
//
//   - a buy adds qty shares and price*qty to the basis (and to the
//     instrument's sector investment),
//   - a sell realizes pnl = sellQty*(price - avgCost) against the
//     average cost at that moment, then reduces the basis
//     proportionally; a full liquidation consumes the basis exactly.
//
// The sector bucket is fixed by the first transaction seen for the
// instrument. Sells with no shares held cannot be attributed; they are
// skipped for P&L and reported as anomalies. Percentages use a
// max(1, investment) floor; absolute amounts never do.
func ReplayLedger(transactions []models.Transaction) ProfitLossReport {
	report := ProfitLossReport{
		TotalProfit:     decimal.Zero,
		TotalLoss:       decimal.Zero,
		Net:             decimal.Zero,
		TotalInvestment: decimal.Zero,
		Sectors:         []SectorProfitLoss{},
		Anomalies:       []AnomalousTransaction{},
	}
	if len(transactions) == 0 {
		return report
	}

	groups := make(map[string][]models.Transaction)
	var stockOrder []string
	for _, t := range transactions {
		if _, seen := groups[t.StockID]; !seen {
			stockOrder = append(stockOrder, t.StockID)
		}
		groups[t.StockID] = append(groups[t.StockID], t)
	}

	sectors := make(map[string]*sectorAccumulator)
	sectorOf := func(name string) *sectorAccumulator {
		if name == "" {
			name = models.SectorUnknown
		}
		acc, ok := sectors[name]
		if !ok {
			acc = &sectorAccumulator{
				profit:     decimal.Zero,
				loss:       decimal.Zero,
				investment: decimal.Zero,
			}
			sectors[name] = acc
		}
		return acc
	}

	for _, stockID := range stockOrder {
		group := groups[stockID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].ExecutedAt.Before(group[j].ExecutedAt)
		})

		// Sector attribution is fixed by the first transaction for the
		// instrument, even if later rows carry a different label.
		sectorName := group[0].Sector
		if sectorName == "" {
			sectorName = models.SectorUnknown
		}
		sector := sectorOf(sectorName)

		sharesHeld := int64(0)
		costBasis := decimal.Zero

		for _, t := range group {
			sector.count++
			qty := decimal.NewFromInt(t.Quantity)

			switch t.Type {
			case models.TransactionTypeBuy:
				sharesHeld += t.Quantity
				cost := t.Price.Mul(qty)
				costBasis = costBasis.Add(cost)
				sector.investment = sector.investment.Add(cost)
				report.TotalInvestment = report.TotalInvestment.Add(cost)

			case models.TransactionTypeSell:
				if sharesHeld == 0 {
					report.Anomalies = append(report.Anomalies, AnomalousTransaction{
						TransactionID: t.ID,
						Symbol:        t.Symbol,
						Reason:        "sell with no shares held",
						ExecutedAt:    t.ExecutedAt,
					})
					continue
				}

				sellQty := t.Quantity
				if sellQty > sharesHeld {
					report.Anomalies = append(report.Anomalies, AnomalousTransaction{
						TransactionID: t.ID,
						Symbol:        t.Symbol,
						Reason:        "sell exceeds shares held",
						ExecutedAt:    t.ExecutedAt,
					})
					sellQty = sharesHeld
				}

				var costOfSale decimal.Decimal
				if sellQty == sharesHeld {
					// Full liquidation consumes the remaining basis
					// exactly, avoiding division residue.
					costOfSale = costBasis
				} else {
					costOfSale = costBasis.
						Mul(decimal.NewFromInt(sellQty)).
						Div(decimal.NewFromInt(sharesHeld))
				}

				pnl := t.Price.Mul(decimal.NewFromInt(sellQty)).Sub(costOfSale)
				if pnl.Sign() >= 0 {
					report.TotalProfit = report.TotalProfit.Add(pnl)
					sector.profit = sector.profit.Add(pnl)
				} else {
					report.TotalLoss = report.TotalLoss.Add(pnl.Neg())
					sector.loss = sector.loss.Add(pnl.Neg())
				}

				sharesHeld -= sellQty
				costBasis = costBasis.Sub(costOfSale)
				if sharesHeld == 0 {
					costBasis = decimal.Zero
				}
			}
		}
	}

	report.Net = report.TotalProfit.Sub(report.TotalLoss)
	report.NetPct = flooredPct(report.Net, report.TotalInvestment)

	for name, acc := range sectors {
		net := acc.profit.Sub(acc.loss)
		report.Sectors = append(report.Sectors, SectorProfitLoss{
			Sector:           name,
			Profit:           acc.profit,
			Loss:             acc.loss,
			Net:              net,
			Investment:       acc.investment,
			ReturnPct:        flooredPct(net, acc.investment),
			TransactionCount: acc.count,
		})
	}

	sort.Slice(report.Sectors, func(i, j int) bool {
		if !report.Sectors[i].Net.Equal(report.Sectors[j].Net) {
			return report.Sectors[i].Net.GreaterThan(report.Sectors[j].Net)
		}
		return report.Sectors[i].Sector < report.Sectors[j].Sector
	})

	return report
}

// flooredPct computes net/max(1, investment)*100 so that a zero
// investment yields a finite percentage.
func flooredPct(net, investment decimal.Decimal) float64 {
	denom := investment
	if denom.LessThan(decimal.NewFromInt(1)) {
		denom = decimal.NewFromInt(1)
	}
	pct, _ := net.Div(denom).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
