package handler

import (
	"net/http"

	"github.com/GoPolymarket/tradegate/internal/middleware"
	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/service"
	"github.com/gin-gonic/gin"
)

type FillHandler struct {
	svc *service.ExchangeService
}

func NewFillHandler(svc *service.ExchangeService) *FillHandler {
	return &FillHandler{svc: svc}
}

// Fill settles a signed bid/ask pair paid in wrapped currency. Anyone may
// submit it.
func (h *FillHandler) Fill(c *gin.Context) {
	var req model.FillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, "invalid fill request", err))
		return
	}

	trade, err := h.svc.Fill(c.Request.Context(), &req)
	if err != nil {
		middleware.AddAuditContext(c, "reject", apperrors.TypeOf(err))
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "trade_id", trade.TradeID.Hex())
	c.JSON(http.StatusOK, model.NewTradeView(trade, h.svc.Decimals()))
}

// FillEth settles a pair funded with the authenticated bidder's native
// currency.
func (h *FillHandler) FillEth(c *gin.Context) {
	account, ok := middleware.AccountFrom(c)
	if !ok {
		c.Error(apperrors.Newf(apperrors.ErrAuthFailed, "account authentication required"))
		return
	}
	var req model.FillEthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, "invalid fill request", err))
		return
	}

	trade, err := h.svc.FillEth(c.Request.Context(), account, &req)
	if err != nil {
		middleware.AddAuditContext(c, "reject", apperrors.TypeOf(err))
		c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "trade_id", trade.TradeID.Hex())
	c.JSON(http.StatusOK, model.NewTradeView(trade, h.svc.Decimals()))
}

// Hash returns content hashes and EIP-712 typed data for wallets to sign.
func (h *FillHandler) Hash(c *gin.Context) {
	var req model.HashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, "invalid hash request", err))
		return
	}
	resp, err := h.svc.Hash(&req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
