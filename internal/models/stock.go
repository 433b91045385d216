package models

// SectorUnknown is the bucket used when the market-data profile
// carries no industry classification for a symbol.
const SectorUnknown = "Unknown"

// Stock represents a resolved financial instrument. One row exists per
// symbol; it is created on the first buy of that symbol from the
// market-data profile endpoint and shared across users.
type Stock struct {
	Base
	Symbol   string `gorm:"not null;uniqueIndex" json:"symbol"`
	Name     string `gorm:"not null" json:"name"`
	Sector   string `gorm:"not null;default:'Unknown'" json:"sector"`
	Exchange string `json:"exchange,omitempty"`
	Currency string `gorm:"not null;default:'USD'" json:"currency"`
}
