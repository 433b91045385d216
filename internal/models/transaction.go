package models

import (
	"time"

	"stockfolio/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "buy"
	TransactionTypeSell TransactionType = "sell"
)

// Transaction is an immutable record of a single buy or sell. It is the
// ground-truth ledger from which holdings and realized profit/loss are
// derived, so rows are never updated or deleted — no Base embed, no soft
// deletes.
type Transaction struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string          `gorm:"type:uuid;not null;index" json:"user_id"`
	StockID    string          `gorm:"type:uuid;not null;index" json:"stock_id"`
	Symbol     string          `gorm:"not null" json:"symbol"`
	Sector     string          `gorm:"not null;default:'Unknown'" json:"sector"`
	Type       TransactionType `gorm:"not null" json:"type"`
	Price      decimal.Decimal `gorm:"type:numeric;not null" json:"price"`
	Quantity   int64           `gorm:"not null" json:"quantity"`
	ExecutedAt time.Time       `gorm:"not null" json:"executed_at"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`

	Stock Stock `gorm:"foreignKey:StockID" json:"stock,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New()
	}
	return nil
}
