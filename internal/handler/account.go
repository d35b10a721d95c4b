package handler

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/GoPolymarket/tradegate/internal/middleware"
	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	svc    *service.ExchangeService
	trades *service.TradeService
}

func NewAccountHandler(svc *service.ExchangeService, trades *service.TradeService) *AccountHandler {
	return &AccountHandler{svc: svc, trades: trades}
}

func mustAccount(c *gin.Context) (common.Address, bool) {
	account, ok := middleware.AccountFrom(c)
	if !ok {
		c.Error(apperrors.Newf(apperrors.ErrAuthFailed, "account authentication required"))
	}
	return account, ok
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, "invalid request body", err))
		return false
	}
	return true
}

func parseAddress(c *gin.Context, raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		c.Error(apperrors.Newf(apperrors.ErrInvalidRequest, "invalid address %q", raw))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (h *AccountHandler) CancelNonces(c *gin.Context) {
	account, ok := mustAccount(c)
	if !ok {
		return
	}
	var req model.CancelNoncesRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.CancelNonces(c.Request.Context(), account, req.Nonces); err != nil {
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "cancelled", len(req.Nonces))
	c.JSON(http.StatusOK, gin.H{"account": account, "cancelled": req.Nonces})
}

func (h *AccountHandler) CancelBefore(c *gin.Context) {
	account, ok := mustAccount(c)
	if !ok {
		return
	}
	var req model.CancelBeforeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.CancelBefore(c.Request.Context(), account, req.Timestamp); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "watermark": req.Timestamp})
}

func (h *AccountHandler) SetApproval(c *gin.Context) {
	account, ok := mustAccount(c)
	if !ok {
		return
	}
	var req model.ApprovalRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.SetApproval(c.Request.Context(), account, req.ContentHash, req.Approved); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "contentHash": req.ContentHash, "approved": req.Approved})
}

func (h *AccountHandler) NonceStatus(c *gin.Context) {
	account, ok := parseAddress(c, c.Param("address"))
	if !ok {
		return
	}
	nonce, ok := new(big.Int).SetString(c.Param("nonce"), 0)
	if !ok || nonce.Sign() < 0 {
		c.Error(apperrors.Newf(apperrors.ErrInvalidRequest, "invalid nonce %q", c.Param("nonce")))
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "nonce": nonce, "used": h.svc.NonceUsed(account, nonce)})
}

func (h *AccountHandler) Watermark(c *gin.Context) {
	account, ok := parseAddress(c, c.Param("address"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "watermark": h.svc.Watermark(account)})
}

func (h *AccountHandler) State(c *gin.Context) {
	account, ok := parseAddress(c, c.Param("address"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.AccountState(account))
}

func (h *AccountHandler) Tokens(c *gin.Context) {
	account, ok := parseAddress(c, c.Param("address"))
	if !ok {
		return
	}
	collection, ok := parseAddress(c, c.Param("collection"))
	if !ok {
		return
	}
	tokens, err := h.svc.TokensOf(collection, account)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "collection": collection, "tokens": tokens})
}

// Trades lists recent trades, optionally for one account.
func (h *AccountHandler) Trades(c *gin.Context) {
	var account *common.Address
	if raw := c.Query("account"); raw != "" {
		addr, ok := parseAddress(c, raw)
		if !ok {
			return
		}
		account = &addr
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.Error(apperrors.Newf(apperrors.ErrInvalidRequest, "invalid limit %q", raw))
			return
		}
		limit = n
	}
	trades, err := h.trades.List(c.Request.Context(), account, limit)
	if err != nil {
		c.Error(err)
		return
	}
	views := make([]*model.TradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, model.NewTradeView(t, h.svc.Decimals()))
	}
	c.JSON(http.StatusOK, gin.H{"trades": views})
}

func (h *AccountHandler) Wrap(c *gin.Context) {
	account, ok := mustAccount(c)
	if !ok {
		return
	}
	var req model.WrapRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.Wrap(c.Request.Context(), account, req.Amount, req.Unwrap); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.AccountState(account))
}

func (h *AccountHandler) Allowance(c *gin.Context) {
	account, ok := mustAccount(c)
	if !ok {
		return
	}
	var req model.AllowanceRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.Approve(c.Request.Context(), account, req.Spender, req.Amount); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.AccountState(account))
}

func (h *AccountHandler) Operator(c *gin.Context) {
	account, ok := mustAccount(c)
	if !ok {
		return
	}
	var req model.OperatorRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.SetOperator(c.Request.Context(), account, req.Collection, req.Operator, req.Approved); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "collection": req.Collection, "approved": req.Approved})
}
