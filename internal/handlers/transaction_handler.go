package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "stockfolio/internal/errors"
	"stockfolio/internal/models"
	"stockfolio/internal/pagination"
	"stockfolio/internal/services"
)

// TransactionHandler handles ledger query requests.
type TransactionHandler struct {
	transactionService services.TransactionServicer
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService services.TransactionServicer) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// ListQuery represents the transaction list query parameters
type ListQuery struct {
	pagination.PageRequest
	Type   string `form:"type" binding:"omitempty,transaction_type"`
	Symbol string `form:"symbol" binding:"omitempty,max=15"`
	From   string `form:"from"`
	To     string `form:"to"`
}

// List returns the user's transaction ledger
// @Summary     List transactions
// @Description Get the user's transactions, newest first, with optional type/symbol/date filters
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size"
// @Param       type      query string false "Filter by type (buy or sell)"
// @Param       symbol    query string false "Filter by symbol"
// @Param       from      query string false "Executed-at lower bound (RFC 3339 or YYYY-MM-DD)"
// @Param       to        query string false "Executed-at upper bound (RFC 3339 or YYYY-MM-DD)"
// @Success     200 {object} pagination.PageResponse[models.Transaction] "Transactions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter := services.TransactionFilter{
		Symbol: strings.ToUpper(strings.TrimSpace(query.Symbol)),
	}
	if query.Type != "" {
		txType := models.TransactionType(query.Type)
		filter.Type = &txType
	}
	if filter.FromDate, err = parseFlexibleTime(query.From); err != nil {
		respondWithError(c, err)
		return
	}
	if filter.ToDate, err = parseFlexibleTime(query.To); err != nil {
		respondWithError(c, err)
		return
	}

	resp, err := h.transactionService.GetUserTransactions(userID, query.PageRequest, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Stats returns aggregates over the user's full ledger
// @Summary     Transaction statistics
// @Description Get counts, money flow, distinct symbols, and the activity span of the user's ledger
// @Tags        transactions
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.TransactionStats "Statistics"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /transactions/stats [get]
func (h *TransactionHandler) Stats(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	stats, err := h.transactionService.GetTransactionStats(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
