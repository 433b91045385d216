package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "stockfolio/internal/errors"
	"stockfolio/internal/services"
)

// PortfolioHandler handles portfolio valuation and mutation requests.
type PortfolioHandler struct {
	portfolioService  services.PortfolioServicer
	profitLossService services.ProfitLossServicer
	historyService    services.HistoryServicer
	auditService      services.AuditServicer
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(
	portfolioService services.PortfolioServicer,
	profitLossService services.ProfitLossServicer,
	historyService services.HistoryServicer,
	auditService services.AuditServicer,
) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService:  portfolioService,
		profitLossService: profitLossService,
		historyService:    historyService,
		auditService:      auditService,
	}
}

// BuyRequest represents a buy order payload
type BuyRequest struct {
	Symbol     string          `json:"symbol" binding:"required,max=15"`
	Quantity   int64           `json:"quantity" binding:"required,min=1"`
	Price      decimal.Decimal `json:"price" binding:"required"`
	ExecutedAt string          `json:"executed_at"`
	Notes      string          `json:"notes" binding:"max=500"`
}

// SellRequest represents a sell order payload
type SellRequest struct {
	HoldingID  string          `json:"holding_id" binding:"required,uuid"`
	Quantity   int64           `json:"quantity" binding:"required,min=1"`
	Price      decimal.Decimal `json:"price" binding:"required"`
	ExecutedAt string          `json:"executed_at"`
	Notes      string          `json:"notes" binding:"max=500"`
}

// Buy records a stock purchase
// @Summary     Buy shares
// @Description Record a purchase: resolves the symbol, updates the holding's weighted average cost, and appends to the ledger
// @Tags        portfolio
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body BuyRequest true "Buy order"
// @Success     201 {object} models.Transaction "Recorded transaction"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Symbol could not be resolved"
// @Router      /portfolio/buy [post]
func (h *PortfolioHandler) Buy(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	executedAt, err := parseFlexibleTime(req.ExecutedAt)
	if err != nil {
		respondWithError(c, err)
		return
	}

	txn, err := h.portfolioService.Buy(c.Request.Context(), userID, req.Symbol, req.Quantity, req.Price, executedAt, req.Notes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "buy", "transaction", txn.ID, c.ClientIP(), map[string]interface{}{
		"symbol":   txn.Symbol,
		"quantity": txn.Quantity,
		"price":    txn.Price.String(),
	})
	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

// Sell records a stock sale
// @Summary     Sell shares
// @Description Record a sale against a holding: appends to the ledger and decrements or removes the holding
// @Tags        portfolio
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body SellRequest true "Sell order"
// @Success     201 {object} models.Transaction "Recorded transaction"
// @Failure     400 {object} ErrorResponse "Invalid input or insufficient shares"
// @Failure     404 {object} ErrorResponse "Holding not found"
// @Router      /portfolio/sell [post]
func (h *PortfolioHandler) Sell(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	executedAt, err := parseFlexibleTime(req.ExecutedAt)
	if err != nil {
		respondWithError(c, err)
		return
	}

	txn, err := h.portfolioService.Sell(c.Request.Context(), userID, req.HoldingID, req.Quantity, req.Price, executedAt, req.Notes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "sell", "transaction", txn.ID, c.ClientIP(), map[string]interface{}{
		"symbol":   txn.Symbol,
		"quantity": txn.Quantity,
		"price":    txn.Price.String(),
	})
	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

// GetHoldings lists the user's holdings with live valuation
// @Summary     List holdings
// @Description Get all holdings enriched with current prices and unrealized profit/loss
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} services.EnrichedHolding "Enriched holdings"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/holdings [get]
func (h *PortfolioHandler) GetHoldings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	holdings, err := h.portfolioService.GetHoldings(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"holdings": holdings})
}

// GetSummary returns portfolio-level aggregates
// @Summary     Portfolio summary
// @Description Get total value, cost, profit, and daily change across all holdings
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.PortfolioSummary "Portfolio summary"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/summary [get]
func (h *PortfolioHandler) GetSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.portfolioService.GetSummary(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetSectors returns the sector allocation breakdown
// @Summary     Sector breakdown
// @Description Get market value grouped by sector
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} services.SectorValue "Sector allocation"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/sectors [get]
func (h *PortfolioHandler) GetSectors(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	sectors, err := h.portfolioService.GetSectorBreakdown(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sectors": sectors})
}

// GetProfitLoss returns the realized profit/loss report
// @Summary     Realized profit/loss
// @Description Replay the full ledger to compute realized gains and losses, overall and by sector
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.ProfitLossReport "Profit/loss report"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/profit-loss [get]
func (h *PortfolioHandler) GetProfitLoss(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.profitLossService.ComputeProfitLoss(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profit_loss": report})
}

// GetHistory returns daily/weekly/monthly value series
// @Summary     Portfolio history
// @Description Get synthesized daily, weekly, and monthly portfolio-value series for charting
// @Tags        portfolio
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.PortfolioHistory "History series"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /portfolio/history [get]
func (h *PortfolioHandler) GetHistory(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	history, err := h.historyService.GetPortfolioHistory(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}
