package services

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "stockfolio/internal/errors"
	"stockfolio/internal/marketdata"
	"stockfolio/internal/models"
)

const (
	dailyPoints   = 7
	weeklyWindow  = 8 * 7 // days
	monthlyPoints = 9
	monthlyWindow = 180 // days

	dailyJitterPct  = 0.02
	weeklyJitterPct = 0.01

	// Monthly curve starts at this fraction of the current value and
	// grows to exactly the current value at the final point.
	monthlyCurveStart = 0.70
	// Weight of the generated curve when blending with a reconstructed
	// value that falls within one week of the point.
	monthlyCurveWeight = 0.70
)

// historyService synthesizes daily/weekly/monthly portfolio-value series
// for charting. Per-day share counts are reconstructed by undoing
// transactions backward from now; values use current quotes throughout,
// so past points are an approximation, not historical truth.
type historyService struct {
	db     *gorm.DB
	quotes QuoteProvider
}

// NewHistoryService creates a new HistoryServicer.
func NewHistoryService(db *gorm.DB, quotes QuoteProvider) HistoryServicer {
	return &historyService{db: db, quotes: quotes}
}

// GetPortfolioHistory builds all three series for a user. Zero
// transactions or zero holdings yield empty series, not an error.
func (s *historyService) GetPortfolioHistory(ctx context.Context, userID string) (*PortfolioHistory, error) {
	var transactions []models.Transaction
	if err := s.db.Where("user_id = ?", userID).
		Order("executed_at ASC, created_at ASC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var holdings []models.Holding
	if err := s.db.Where("user_id = ?", userID).Find(&holdings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	history := &PortfolioHistory{
		Daily:   []HistoryPoint{},
		Weekly:  []HistoryPoint{},
		Monthly: []HistoryPoint{},
	}
	if len(transactions) == 0 || len(holdings) == 0 {
		return history, nil
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	quotes := s.quotes.GetQuotesBatch(ctx, symbols)

	synth := newSynthesizer(userID, transactions, holdings, quotes)
	history.Daily = synth.dailySeries()
	history.Weekly = synth.weeklySeries()
	history.Monthly = synth.monthlySeries()

	history.DailyStats = seriesStats(history.Daily)
	history.WeeklyStats = seriesStats(history.Weekly)
	history.MonthlyStats = seriesStats(history.Monthly)

	return history, nil
}

// synthesizer holds the inputs of one history computation.
type synthesizer struct {
	userID       string
	transactions []models.Transaction // ascending by ExecutedAt
	current      map[string]int64     // symbol -> shares held now
	prices       map[string]decimal.Decimal
	now          time.Time
	currentValue decimal.Decimal
	firstTxDay   time.Time
}

func newSynthesizer(userID string, transactions []models.Transaction, holdings []models.Holding, quotes map[string]marketdata.Quote) *synthesizer {
	current := make(map[string]int64, len(holdings))
	prices := make(map[string]decimal.Decimal, len(quotes))
	value := decimal.Zero

	for symbol, q := range quotes {
		prices[symbol] = decimal.NewFromFloat(q.Current)
	}
	for _, h := range holdings {
		current[h.Symbol] += h.Quantity
		if price, ok := prices[h.Symbol]; ok {
			value = value.Add(price.Mul(decimal.NewFromInt(h.Quantity)))
		}
	}

	return &synthesizer{
		userID:       userID,
		transactions: transactions,
		current:      current,
		prices:       prices,
		now:          time.Now().UTC().Truncate(24 * time.Hour),
		currentValue: value,
		firstTxDay:   transactions[0].ExecutedAt.UTC().Truncate(24 * time.Hour),
	}
}

// valueAsOf reconstructs the portfolio value at end of the given day by
// undoing every transaction executed after it: an undone buy removes its
// shares, an undone sell restores them. Share counts are valued at
// current prices.
func (s *synthesizer) valueAsOf(day time.Time) decimal.Decimal {
	counts := make(map[string]int64, len(s.current))
	for symbol, qty := range s.current {
		counts[symbol] = qty
	}

	cutoff := day.Add(24 * time.Hour)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		t := s.transactions[i]
		if t.ExecutedAt.Before(cutoff) {
			break
		}
		switch t.Type {
		case models.TransactionTypeBuy:
			counts[t.Symbol] -= t.Quantity
		case models.TransactionTypeSell:
			counts[t.Symbol] += t.Quantity
		}
	}

	value := decimal.Zero
	for symbol, qty := range counts {
		if qty <= 0 {
			continue
		}
		if price, ok := s.prices[symbol]; ok {
			value = value.Add(price.Mul(decimal.NewFromInt(qty)))
		}
	}
	return value
}

// jitterFor returns a deterministic multiplicative jitter in
// [1-maxPct, 1+maxPct] seeded by user and day, so the same request
// always draws the same chart.
func (s *synthesizer) jitterFor(day time.Time, maxPct float64) decimal.Decimal {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s.userID))
	_, _ = h.Write([]byte(day.Format("2006-01-02")))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	factor := 1 + (rng.Float64()*2-1)*maxPct
	return decimal.NewFromFloat(factor)
}

// dailySeries returns the last 7 days, jittered except for the final
// point, which is exactly the current portfolio value.
func (s *synthesizer) dailySeries() []HistoryPoint {
	points := make([]HistoryPoint, 0, dailyPoints)
	for i := dailyPoints - 1; i >= 1; i-- {
		day := s.now.AddDate(0, 0, -i)
		value := s.valueAsOf(day).Mul(s.jitterFor(day, dailyJitterPct))
		points = append(points, HistoryPoint{
			Date:   day,
			Value:  value,
			Source: marketdata.QuoteSourceSynthetic,
		})
	}
	points = append(points, HistoryPoint{
		Date:   s.now,
		Value:  s.currentValue,
		Source: marketdata.QuoteSourceReal,
	})
	return points
}

// weeklySeries returns one point per ISO week over the trailing window,
// anchored to the last day observed in each week. The final point is
// exactly the current value.
func (s *synthesizer) weeklySeries() []HistoryPoint {
	type weekKey struct {
		year int
		week int
	}

	lastDay := make(map[weekKey]time.Time)
	var order []weekKey
	for i := weeklyWindow - 1; i >= 0; i-- {
		day := s.now.AddDate(0, 0, -i)
		year, week := day.ISOWeek()
		key := weekKey{year, week}
		if _, seen := lastDay[key]; !seen {
			order = append(order, key)
		}
		lastDay[key] = day
	}

	points := make([]HistoryPoint, 0, len(order))
	for idx, key := range order {
		day := lastDay[key]
		if idx == len(order)-1 {
			points = append(points, HistoryPoint{
				Date:   s.now,
				Value:  s.currentValue,
				Source: marketdata.QuoteSourceReal,
			})
			continue
		}
		value := s.valueAsOf(day).Mul(s.jitterFor(day, weeklyJitterPct))
		points = append(points, HistoryPoint{
			Date:   day,
			Value:  value,
			Source: marketdata.QuoteSourceSynthetic,
		})
	}
	return points
}

// monthlySeries spreads a fixed number of points across a six-month
// window on a growth curve from 70% of the current value up to exactly
// the current value, blending each generated point 70/30 with the
// reconstructed value when the portfolio already existed within a week
// of that date.
func (s *synthesizer) monthlySeries() []HistoryPoint {
	step := monthlyWindow / (monthlyPoints - 1)

	points := make([]HistoryPoint, 0, monthlyPoints)
	for i := 0; i < monthlyPoints; i++ {
		day := s.now.AddDate(0, 0, -(monthlyPoints-1-i)*step)
		if i == monthlyPoints-1 {
			points = append(points, HistoryPoint{
				Date:   s.now,
				Value:  s.currentValue,
				Source: marketdata.QuoteSourceReal,
			})
			continue
		}

		progress := float64(i) / float64(monthlyPoints-1)
		fraction := monthlyCurveStart + (1-monthlyCurveStart)*progress
		value := s.currentValue.Mul(decimal.NewFromFloat(fraction))

		// Blend with the reconstruction when the ledger reaches back
		// to within a week of this point.
		if !day.AddDate(0, 0, 7).Before(s.firstTxDay) {
			reconstructed := s.valueAsOf(day)
			value = value.Mul(decimal.NewFromFloat(monthlyCurveWeight)).
				Add(reconstructed.Mul(decimal.NewFromFloat(1 - monthlyCurveWeight)))
		}

		points = append(points, HistoryPoint{
			Date:   day,
			Value:  value,
			Source: marketdata.QuoteSourceSynthetic,
		})
	}
	return points
}

// seriesStats summarizes a series with montanaflynn/stats. An empty
// series yields zeroed stats.
func seriesStats(points []HistoryPoint) SeriesStats {
	if len(points) == 0 {
		return SeriesStats{}
	}

	values := make([]float64, 0, len(points))
	for _, p := range points {
		v, _ := p.Value.Float64()
		values = append(values, v)
	}

	high, _ := stats.Max(values)
	low, _ := stats.Min(values)
	mean, _ := stats.Mean(values)
	stdDev, _ := stats.StandardDeviation(values)

	return SeriesStats{High: high, Low: low, Mean: mean, StdDev: stdDev}
}
