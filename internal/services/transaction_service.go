package services

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "stockfolio/internal/errors"
	"stockfolio/internal/models"
	"stockfolio/internal/pagination"
)

// transactionService answers read-only queries over the ledger.
type transactionService struct {
	db *gorm.DB
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(db *gorm.DB) TransactionServicer {
	return &transactionService{db: db}
}

// GetUserTransactions returns the user's ledger, newest first, with
// optional type/symbol/date-range filters.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	query := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.FromDate != nil {
		query = query.Where("executed_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("executed_at <= ?", *filter.ToDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := query.Preload("Stock").
		Order("executed_at DESC, created_at DESC").
		Scopes(pagination.Paginate(page)).
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(transactions, page.Page, page.PageSize, total)
	return &resp, nil
}

// GetTransactionStats aggregates the user's full ledger: counts, money
// in and out, distinct symbols, and the activity span. Sums run in Go
// with decimals rather than in SQL so the arithmetic matches the rest
// of the money paths.
func (s *transactionService) GetTransactionStats(userID string) (*TransactionStats, error) {
	var transactions []models.Transaction
	if err := s.db.Where("user_id = ?", userID).
		Order("executed_at ASC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stats := &TransactionStats{
		TotalTransactions: len(transactions),
		TotalInvested:     decimal.Zero,
		TotalProceeds:     decimal.Zero,
	}
	if len(transactions) == 0 {
		return stats, nil
	}

	symbols := make(map[string]bool)
	for _, t := range transactions {
		symbols[t.Symbol] = true
		amount := t.Price.Mul(decimal.NewFromInt(t.Quantity))
		switch t.Type {
		case models.TransactionTypeBuy:
			stats.BuyCount++
			stats.TotalInvested = stats.TotalInvested.Add(amount)
		case models.TransactionTypeSell:
			stats.SellCount++
			stats.TotalProceeds = stats.TotalProceeds.Add(amount)
		}
	}
	stats.DistinctSymbols = len(symbols)

	first := transactions[0].ExecutedAt
	last := transactions[len(transactions)-1].ExecutedAt
	stats.FirstActivity = &first
	stats.LastActivity = &last

	return stats, nil
}
