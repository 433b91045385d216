package models

import (
	"time"

	"stockfolio/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Holding is a user's current aggregated position in one instrument.
// AverageCost is the weighted average price paid per unit currently
// held; it is recomputed on every buy and left untouched by sells.
// A holding is hard-deleted when its quantity reaches zero — no Base
// embed, no soft deletes — so the user+stock unique index stays usable
// when the same symbol is bought again later.
type Holding struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string          `gorm:"type:uuid;not null;index;uniqueIndex:uq_holdings_user_stock" json:"user_id"`
	StockID     string          `gorm:"type:uuid;not null;uniqueIndex:uq_holdings_user_stock" json:"stock_id"`
	Symbol      string          `gorm:"not null" json:"symbol"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	AverageCost decimal.Decimal `gorm:"type:numeric;not null" json:"average_cost"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Stock Stock `gorm:"foreignKey:StockID" json:"stock,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New()
	}
	return nil
}
