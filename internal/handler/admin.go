package handler

import (
	"net/http"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/service"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	svc *service.ExchangeService
}

func NewAdminHandler(svc *service.ExchangeService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

func (h *AdminHandler) Emergency(c *gin.Context) {
	var req model.EmergencyRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.SetEmergencyShutdown(c.Request.Context(), req.Enabled); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Status())
}

func (h *AdminHandler) Treasury(c *gin.Context) {
	var req model.TreasuryRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.SetTreasury(c.Request.Context(), req.Treasury); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Status())
}

func (h *AdminHandler) Royalty(c *gin.Context) {
	var req model.RoyaltyConfigRequest
	if !bindJSON(c, &req) {
		return
	}
	pr, err := h.svc.SetProtocolRoyalty(c.Request.Context(), req.CapMicros, req.Micros)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pr)
}

func (h *AdminHandler) OracleSigner(c *gin.Context) {
	var req model.OracleSignerRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.SetOracleSigner(req.Signer); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Status())
}

func (h *AdminHandler) Faucet(c *gin.Context) {
	var req model.FaucetRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.Faucet(c.Request.Context(), req.Account, req.Amount, req.Wrapped); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.AccountState(req.Account))
}

func (h *AdminHandler) Mint(c *gin.Context) {
	var req model.MintRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.Mint(c.Request.Context(), req.Collection, req.To, req.TokenID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": req.Collection, "to": req.To, "tokenId": req.TokenID})
}

func (h *AdminHandler) Traits(c *gin.Context) {
	var req model.TraitRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.SetTrait(&req); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": req.Collection, "tokenId": req.TokenID, "trait": req.Trait, "present": req.Present})
}
