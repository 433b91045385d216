package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockfolio/internal/services"
)

// OpsHandler handles operational endpoints behind the ops API key.
type OpsHandler struct {
	portfolioService services.PortfolioServicer
}

// NewOpsHandler creates a new OpsHandler
func NewOpsHandler(portfolioService services.PortfolioServicer) *OpsHandler {
	return &OpsHandler{portfolioService: portfolioService}
}

// Reconcile runs the holdings-vs-ledger consistency pass on demand
// @Summary     Reconcile holdings
// @Description Replay every user's ledger and report holdings that diverge from it; nothing is modified
// @Tags        ops
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} map[string][]services.HoldingMismatch "Mismatches keyed by user ID"
// @Failure     401 {object} ErrorResponse "Missing or invalid API key"
// @Router      /ops/reconcile [post]
func (h *OpsHandler) Reconcile(c *gin.Context) {
	report, err := h.portfolioService.ReconcileAllUsers()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users_with_mismatches": len(report),
		"mismatches":            report,
	})
}
