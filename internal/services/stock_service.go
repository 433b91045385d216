package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "stockfolio/internal/errors"
	"stockfolio/internal/logger"
	"stockfolio/internal/marketdata"
	"stockfolio/internal/models"
)

// stockService resolves symbols into Stock rows and passes market-data
// queries through to the gateway.
type stockService struct {
	db     *gorm.DB
	quotes QuoteProvider
}

// NewStockService creates a new StockServicer.
func NewStockService(db *gorm.DB, quotes QuoteProvider) StockServicer {
	return &stockService{db: db, quotes: quotes}
}

// Resolve returns the Stock row for a symbol, creating it from the
// provider's company profile on first sight. A symbol the provider does
// not know is a referential failure: nothing is created and
// STOCK_NOT_FOUND is returned.
func (s *stockService) Resolve(ctx context.Context, symbol string) (*models.Stock, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Symbol is required")
	}

	var stock models.Stock
	err := s.db.Where("symbol = ?", symbol).First(&stock).Error
	if err == nil {
		return &stock, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	profile, err := s.quotes.Profile(ctx, symbol)
	if err != nil {
		logger.Get().Infow("symbol resolution failed", "symbol", symbol, "error", err.Error())
		return nil, apperrors.Wrap(apperrors.ErrStockNotFound, err)
	}

	stock = models.Stock{
		Symbol:   symbol,
		Name:     profile.Name,
		Sector:   profile.Sector,
		Exchange: profile.Exchange,
		Currency: profile.Currency,
	}
	if stock.Name == "" {
		stock.Name = symbol
	}
	if stock.Sector == "" {
		stock.Sector = models.SectorUnknown
	}
	if stock.Currency == "" {
		stock.Currency = "USD"
	}

	if err := s.db.Create(&stock).Error; err != nil {
		// A concurrent resolve may have won the unique-index race.
		var existing models.Stock
		if findErr := s.db.Where("symbol = ?", symbol).First(&existing).Error; findErr == nil {
			return &existing, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &stock, nil
}

// Search passes a symbol search through the gateway. Failures surface
// as an empty result, never an error.
func (s *stockService) Search(ctx context.Context, query string) []marketdata.SymbolMatch {
	return s.quotes.SearchSymbols(ctx, query)
}

// Quote returns the current quote for a symbol; the gateway guarantees
// a well-formed result for any input.
func (s *stockService) Quote(ctx context.Context, symbol string) marketdata.Quote {
	return s.quotes.GetQuote(ctx, symbol)
}

// Candles returns historical bars, or NOT_FOUND when the provider has
// no data for the requested range.
func (s *stockService) Candles(ctx context.Context, symbol, resolution string, from, to int64) (*marketdata.Bars, error) {
	bars, ok := s.quotes.GetCandles(ctx, symbol, resolution, from, to)
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrNotFound, "No historical data for this symbol and range")
	}
	return bars, nil
}
