package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "stockfolio/internal/errors"
	"stockfolio/internal/services"
)

// StockHandler handles symbol search and market-data requests.
type StockHandler struct {
	stockService services.StockServicer
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService services.StockServicer) *StockHandler {
	return &StockHandler{stockService: stockService}
}

// CandlesQuery represents the candle query parameters
type CandlesQuery struct {
	Resolution string `form:"resolution" binding:"omitempty,candle_resolution"`
	From       int64  `form:"from" binding:"omitempty,min=0"`
	To         int64  `form:"to" binding:"omitempty,min=0"`
}

// Search searches for stock symbols
// @Summary     Search symbols
// @Description Case-insensitive symbol search, common stock only, prefix matches first, capped at 10 results
// @Tags        stocks
// @Produce     json
// @Security    BearerAuth
// @Param       q query string true "Search query"
// @Success     200 {array} marketdata.SymbolMatch "Matches"
// @Failure     400 {object} ErrorResponse "Missing query"
// @Router      /stocks/search [get]
func (h *StockHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Query parameter q is required"))
		return
	}

	matches := h.stockService.Search(c.Request.Context(), query)
	c.JSON(http.StatusOK, gin.H{"results": matches})
}

// GetQuote returns the current quote for a symbol
// @Summary     Get quote
// @Description Get the current quote for a symbol; degraded data is tagged with synthetic provenance
// @Tags        stocks
// @Produce     json
// @Security    BearerAuth
// @Param       symbol path string true "Ticker symbol"
// @Success     200 {object} marketdata.Quote "Quote"
// @Router      /stocks/{symbol}/quote [get]
func (h *StockHandler) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	quote := h.stockService.Quote(c.Request.Context(), symbol)
	c.JSON(http.StatusOK, gin.H{"quote": quote})
}

// GetCandles returns historical bars for a symbol
// @Summary     Get candles
// @Description Get historical OHLCV bars for a symbol over a time range
// @Tags        stocks
// @Produce     json
// @Security    BearerAuth
// @Param       symbol     path  string true  "Ticker symbol"
// @Param       resolution query string false "Bar resolution (1, 5, 15, 30, 60, D, W, M)"
// @Param       from       query int    false "Range start (unix seconds)"
// @Param       to         query int    false "Range end (unix seconds)"
// @Success     200 {object} marketdata.Bars "Bars"
// @Failure     404 {object} ErrorResponse "No data for range"
// @Router      /stocks/{symbol}/candles [get]
func (h *StockHandler) GetCandles(c *gin.Context) {
	symbol := c.Param("symbol")

	var query CandlesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if query.Resolution == "" {
		query.Resolution = "D"
	}
	if query.To == 0 {
		query.To = time.Now().Unix()
	}
	if query.From == 0 {
		query.From = time.Now().AddDate(0, -6, 0).Unix()
	}

	bars, err := h.stockService.Candles(c.Request.Context(), symbol, query.Resolution, query.From, query.To)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"candles": bars})
}
