package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stockfolio/internal/marketdata"
	"stockfolio/internal/models"
	"stockfolio/internal/pagination"
)

// QuoteProvider is the market-data surface the services depend on.
// *marketdata.Gateway satisfies it; tests substitute stubs.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) marketdata.Quote
	GetQuotesBatch(ctx context.Context, symbols []string) map[string]marketdata.Quote
	SearchSymbols(ctx context.Context, query string) []marketdata.SymbolMatch
	GetCandles(ctx context.Context, symbol, resolution string, from, to int64) (*marketdata.Bars, bool)
	Profile(ctx context.Context, symbol string) (*marketdata.Profile, error)
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// StockServicer defines the contract for instrument resolution and
// market-data passthroughs.
type StockServicer interface {
	Resolve(ctx context.Context, symbol string) (*models.Stock, error)
	Search(ctx context.Context, query string) []marketdata.SymbolMatch
	Quote(ctx context.Context, symbol string) marketdata.Quote
	Candles(ctx context.Context, symbol, resolution string, from, to int64) (*marketdata.Bars, error)
}

// EnrichedHolding is a holding joined with its current quote and the
// derived valuation fields. Never persisted.
type EnrichedHolding struct {
	models.Holding
	Name                string                 `json:"name"`
	Sector              string                 `json:"sector"`
	CurrentPrice        decimal.Decimal        `json:"current_price"`
	MarketValue         decimal.Decimal        `json:"market_value"`
	CostBasis           decimal.Decimal        `json:"cost_basis"`
	UnrealizedProfit    decimal.Decimal        `json:"unrealized_profit"`
	UnrealizedProfitPct float64                `json:"unrealized_profit_pct"`
	DailyChange         decimal.Decimal        `json:"daily_change"`
	QuoteSource         marketdata.QuoteSource `json:"quote_source"`
}

// PortfolioSummary aggregates all of a user's holdings at a point in time.
type PortfolioSummary struct {
	TotalValue     decimal.Decimal `json:"total_value"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	TotalProfit    decimal.Decimal `json:"total_profit"`
	TotalProfitPct float64         `json:"total_profit_pct"`
	StockCount     int             `json:"stock_count"`
	DailyChange    decimal.Decimal `json:"daily_change"`
	DailyChangePct float64         `json:"daily_change_pct"`
}

// SectorValue is one bucket of the sector allocation breakdown.
type SectorValue struct {
	Sector     string          `json:"sector"`
	Value      decimal.Decimal `json:"value"`
	Percentage float64         `json:"percentage"`
	Holdings   int             `json:"holdings"`
}

// HoldingMismatch reports a divergence between a stored holding quantity
// and the quantity derived by replaying the transaction ledger.
type HoldingMismatch struct {
	Symbol         string `json:"symbol"`
	StockID        string `json:"stock_id"`
	StoredQuantity int64  `json:"stored_quantity"`
	LedgerQuantity int64  `json:"ledger_quantity"`
}

// PortfolioServicer defines the contract for the valuation engine and the
// buy/sell mutations that feed it.
type PortfolioServicer interface {
	Buy(ctx context.Context, userID, symbol string, quantity int64, price decimal.Decimal, executedAt *time.Time, notes string) (*models.Transaction, error)
	Sell(ctx context.Context, userID, holdingID string, quantity int64, price decimal.Decimal, executedAt *time.Time, notes string) (*models.Transaction, error)
	GetHoldings(ctx context.Context, userID string) ([]EnrichedHolding, error)
	GetSummary(ctx context.Context, userID string) (*PortfolioSummary, error)
	GetSectorBreakdown(ctx context.Context, userID string) ([]SectorValue, error)
	ReconcileHoldings(userID string) ([]HoldingMismatch, error)
	ReconcileAllUsers() (map[string][]HoldingMismatch, error)
}

// SectorProfitLoss aggregates realized profit and loss for one sector.
type SectorProfitLoss struct {
	Sector           string          `json:"sector"`
	Profit           decimal.Decimal `json:"profit"`
	Loss             decimal.Decimal `json:"loss"`
	Net              decimal.Decimal `json:"net"`
	Investment       decimal.Decimal `json:"investment"`
	ReturnPct        float64         `json:"return_pct"`
	TransactionCount int             `json:"transaction_count"`
}

// AnomalousTransaction flags a ledger entry the reconstructor could not
// attribute, such as a sell with no recorded shares held.
type AnomalousTransaction struct {
	TransactionID string    `json:"transaction_id"`
	Symbol        string    `json:"symbol"`
	Reason        string    `json:"reason"`
	ExecutedAt    time.Time `json:"executed_at"`
}

// ProfitLossReport is the result of replaying a user's full ledger.
type ProfitLossReport struct {
	TotalProfit     decimal.Decimal        `json:"total_profit"`
	TotalLoss       decimal.Decimal        `json:"total_loss"`
	Net             decimal.Decimal        `json:"net"`
	TotalInvestment decimal.Decimal        `json:"total_investment"`
	NetPct          float64                `json:"net_pct"`
	Sectors         []SectorProfitLoss     `json:"sectors"`
	Anomalies       []AnomalousTransaction `json:"anomalies"`
}

// ProfitLossServicer defines the contract for realized P&L reconstruction.
type ProfitLossServicer interface {
	ComputeProfitLoss(userID string) (*ProfitLossReport, error)
}

// HistoryPoint is one portfolio-value observation.
type HistoryPoint struct {
	Date   time.Time              `json:"date"`
	Value  decimal.Decimal        `json:"value"`
	Source marketdata.QuoteSource `json:"source"`
}

// SeriesStats summarizes one history series.
type SeriesStats struct {
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// PortfolioHistory carries the three chart series plus per-series stats.
type PortfolioHistory struct {
	Daily        []HistoryPoint `json:"daily"`
	Weekly       []HistoryPoint `json:"weekly"`
	Monthly      []HistoryPoint `json:"monthly"`
	DailyStats   SeriesStats    `json:"daily_stats"`
	WeeklyStats  SeriesStats    `json:"weekly_stats"`
	MonthlyStats SeriesStats    `json:"monthly_stats"`
}

// HistoryServicer defines the contract for the history synthesizer.
type HistoryServicer interface {
	GetPortfolioHistory(ctx context.Context, userID string) (*PortfolioHistory, error)
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	Type     *models.TransactionType
	Symbol   string
	FromDate *time.Time
	ToDate   *time.Time
}

// TransactionStats aggregates a user's full ledger.
type TransactionStats struct {
	TotalTransactions int             `json:"total_transactions"`
	BuyCount          int             `json:"buy_count"`
	SellCount         int             `json:"sell_count"`
	TotalInvested     decimal.Decimal `json:"total_invested"`
	TotalProceeds     decimal.Decimal `json:"total_proceeds"`
	DistinctSymbols   int             `json:"distinct_symbols"`
	FirstActivity     *time.Time      `json:"first_activity,omitempty"`
	LastActivity      *time.Time      `json:"last_activity,omitempty"`
}

// TransactionServicer defines the contract for ledger queries.
type TransactionServicer interface {
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionStats(userID string) (*TransactionStats, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
