package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumen-backend/internal/models"
	"lumen-backend/internal/responses"
	"lumen-backend/internal/services"
)

type WalletHandler struct {
	wallet *services.WalletService
}

func NewWalletHandler(wallet *services.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// Wallet handles GET /api/v1/wallet
func (h *WalletHandler) Wallet(c *gin.Context) {
	w, err := h.wallet.Wallet(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, err, "Failed to retrieve wallet")
		return
	}
	responses.Success(c, http.StatusOK, w, "Wallet retrieved")
}

// Deposit handles POST /api/v1/wallet/deposits
func (h *WalletHandler) Deposit(c *gin.Context) {
	var req services.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	t, err := h.wallet.Deposit(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, err, "Could not record deposit")
		return
	}
	responses.Success(c, http.StatusCreated, t, "Deposit recorded")
}

// Admin finance

// Transactions handles GET /api/admin/finance/transactions
func (h *WalletHandler) Transactions(c *gin.Context) {
	f := models.TransactionFilter{Type: models.TransactionType(c.Query("type")), Page: pageQuery(c)}
	var err error
	if f.UserID, err = optionalUUID(c, "user_id"); err != nil {
		badRequest(c, err, "Invalid filter")
		return
	}
	if f.From, err = optionalTime(c, "from"); err != nil {
		badRequest(c, err, "Invalid filter")
		return
	}
	if f.To, err = optionalTime(c, "to"); err != nil {
		badRequest(c, err, "Invalid filter")
		return
	}
	list, err := h.wallet.Transactions(c.Request.Context(), f)
	if err != nil {
		fail(c, err, "Failed to list transactions")
		return
	}
	responses.Success(c, http.StatusOK, list, "Transactions retrieved")
}

func (h *WalletHandler) Transaction(c *gin.Context) {
	t, err := h.wallet.Transaction(c.Request.Context(), c.Param("reference"))
	if err != nil {
		fail(c, err, "Failed to retrieve transaction")
		return
	}
	responses.Success(c, http.StatusOK, t, "Transaction retrieved")
}

func (h *WalletHandler) Summary(c *gin.Context) {
	from, to, ok := rangeQuery(c)
	if !ok {
		return
	}
	out, err := h.wallet.Summary(c.Request.Context(), from, to)
	if err != nil {
		fail(c, err, "Failed to summarize transactions")
		return
	}
	responses.Success(c, http.StatusOK, out, "Summary retrieved")
}

func (h *WalletHandler) Payout(c *gin.Context) {
	var req services.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	t, err := h.wallet.Payout(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, err, "Could not record payout")
		return
	}
	responses.Success(c, http.StatusCreated, t, "Payout recorded")
}

func (h *WalletHandler) Adjust(c *gin.Context) {
	var req services.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err, "Invalid request body")
		return
	}
	t, err := h.wallet.Adjust(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		fail(c, err, "Could not apply adjustment")
		return
	}
	responses.Success(c, http.StatusCreated, t, "Adjustment applied")
}
