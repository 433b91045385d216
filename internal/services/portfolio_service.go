package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "stockfolio/internal/errors"
	"stockfolio/internal/logger"
	"stockfolio/internal/models"
)

// portfolioService owns buy/sell mutations, holdings valuation, and the
// ledger-vs-holdings reconciliation pass.
type portfolioService struct {
	db           *gorm.DB
	quotes       QuoteProvider
	stockService StockServicer
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB, quotes QuoteProvider, stockService StockServicer) PortfolioServicer {
	return &portfolioService{db: db, quotes: quotes, stockService: stockService}
}

// Buy records a purchase: resolves the stock, then atomically upserts the
// holding with the weighted-average-cost formula and appends a BUY row to
// the ledger. The external resolve step runs before the transaction; if it
// fails, nothing is written.
func (s *portfolioService) Buy(ctx context.Context, userID, symbol string, quantity int64, price decimal.Decimal, executedAt *time.Time, notes string) (*models.Transaction, error) {
	if quantity <= 0 || !price.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Quantity and price must be positive")
	}

	stock, err := s.stockService.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	when := time.Now().UTC()
	if executedAt != nil {
		when = *executedAt
	}

	txn := &models.Transaction{
		UserID:     userID,
		StockID:    stock.ID,
		Symbol:     stock.Symbol,
		Sector:     stock.Sector,
		Type:       models.TransactionTypeBuy,
		Price:      price,
		Quantity:   quantity,
		ExecutedAt: when,
		Notes:      notes,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var holding models.Holding
		findErr := tx.Where("user_id = ? AND stock_id = ?", userID, stock.ID).First(&holding).Error

		switch {
		case findErr == nil:
			// newAvg = (oldAvg*oldQty + price*addedQty) / (oldQty+addedQty)
			oldQty := decimal.NewFromInt(holding.Quantity)
			addedQty := decimal.NewFromInt(quantity)
			newAvg := holding.AverageCost.Mul(oldQty).
				Add(price.Mul(addedQty)).
				Div(oldQty.Add(addedQty))

			holding.Quantity += quantity
			holding.AverageCost = newAvg
			if txErr := tx.Save(&holding).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			holding = models.Holding{
				UserID:      userID,
				StockID:     stock.ID,
				Symbol:      stock.Symbol,
				Quantity:    quantity,
				AverageCost: price,
			}
			if txErr := tx.Create(&holding).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		default:
			return apperrors.Wrap(apperrors.ErrInternalServer, findErr)
		}

		if txErr := tx.Create(txn).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	txn.Stock = *stock
	return txn, nil
}

// Sell records a sale against an existing holding. Quantity is validated
// against the holding's current quantity. The ledger append and the
// holding decrement (or hard delete at zero) are one transaction; average
// cost is never touched by a sell.
func (s *portfolioService) Sell(ctx context.Context, userID, holdingID string, quantity int64, price decimal.Decimal, executedAt *time.Time, notes string) (*models.Transaction, error) {
	if quantity <= 0 || !price.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Quantity and price must be positive")
	}

	var holding models.Holding
	if err := s.db.Preload("Stock").
		Where("id = ? AND user_id = ?", holdingID, userID).
		First(&holding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrHoldingNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if quantity > holding.Quantity {
		return nil, apperrors.ErrInsufficientShares
	}

	when := time.Now().UTC()
	if executedAt != nil {
		when = *executedAt
	}

	txn := &models.Transaction{
		UserID:     userID,
		StockID:    holding.StockID,
		Symbol:     holding.Symbol,
		Sector:     holding.Stock.Sector,
		Type:       models.TransactionTypeSell,
		Price:      price,
		Quantity:   quantity,
		ExecutedAt: when,
		Notes:      notes,
	}
	if txn.Sector == "" {
		txn.Sector = models.SectorUnknown
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(txn).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}

		if quantity == holding.Quantity {
			if txErr := tx.Delete(&models.Holding{}, "id = ?", holding.ID).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
			return nil
		}

		if txErr := tx.Model(&models.Holding{}).
			Where("id = ?", holding.ID).
			Update("quantity", holding.Quantity-quantity).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	txn.Stock = holding.Stock
	return txn, nil
}

// GetHoldings returns the user's holdings enriched with current quotes.
func (s *portfolioService) GetHoldings(ctx context.Context, userID string) ([]EnrichedHolding, error) {
	holdings, err := s.loadHoldings(userID)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return []EnrichedHolding{}, nil
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	quotes := s.quotes.GetQuotesBatch(ctx, symbols)

	return EnrichHoldings(holdings, quotes), nil
}

// GetSummary returns the aggregated portfolio summary for a user.
func (s *portfolioService) GetSummary(ctx context.Context, userID string) (*PortfolioSummary, error) {
	enriched, err := s.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := Summarize(enriched)
	return &summary, nil
}

// GetSectorBreakdown returns market value grouped by sector.
func (s *portfolioService) GetSectorBreakdown(ctx context.Context, userID string) ([]SectorValue, error) {
	enriched, err := s.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return SectorBreakdown(enriched), nil
}

// ReconcileHoldings replays the user's ledger and compares the derived
// per-stock quantities against the stored holdings. Mismatches are
// reported, never auto-corrected.
func (s *portfolioService) ReconcileHoldings(userID string) ([]HoldingMismatch, error) {
	var transactions []models.Transaction
	if err := s.db.Where("user_id = ?", userID).
		Order("executed_at ASC, created_at ASC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	holdings, err := s.loadHoldings(userID)
	if err != nil {
		return nil, err
	}

	derived := make(map[string]int64)
	symbols := make(map[string]string)
	for _, t := range transactions {
		symbols[t.StockID] = t.Symbol
		switch t.Type {
		case models.TransactionTypeBuy:
			derived[t.StockID] += t.Quantity
		case models.TransactionTypeSell:
			derived[t.StockID] -= t.Quantity
		}
	}

	stored := make(map[string]int64)
	for _, h := range holdings {
		stored[h.StockID] = h.Quantity
		symbols[h.StockID] = h.Symbol
	}

	mismatches := []HoldingMismatch{}
	for stockID, symbol := range symbols {
		ledgerQty := derived[stockID]
		if ledgerQty < 0 {
			ledgerQty = 0
		}
		if stored[stockID] != ledgerQty {
			mismatches = append(mismatches, HoldingMismatch{
				Symbol:         symbol,
				StockID:        stockID,
				StoredQuantity: stored[stockID],
				LedgerQuantity: ledgerQty,
			})
		}
	}

	return mismatches, nil
}

// ReconcileAllUsers runs the reconciliation pass for every user with at
// least one transaction. Used by the scheduled sweep and the ops endpoint.
func (s *portfolioService) ReconcileAllUsers() (map[string][]HoldingMismatch, error) {
	var userIDs []string
	if err := s.db.Model(&models.Transaction{}).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	report := make(map[string][]HoldingMismatch)
	for _, userID := range userIDs {
		mismatches, err := s.ReconcileHoldings(userID)
		if err != nil {
			logger.Get().Errorw("reconciliation failed for user", "user_id", userID, "error", err)
			continue
		}
		if len(mismatches) > 0 {
			report[userID] = mismatches
			logger.Get().Warnw("holdings diverge from ledger",
				"user_id", userID, "mismatches", len(mismatches))
		}
	}

	return report, nil
}

func (s *portfolioService) loadHoldings(userID string) ([]models.Holding, error) {
	var holdings []models.Holding
	if err := s.db.Preload("Stock").
		Where("user_id = ?", userID).
		Order("symbol ASC").
		Find(&holdings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return holdings, nil
}
