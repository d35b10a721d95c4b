package handler

import (
	"net/http"
	"time"

	"github.com/GoPolymarket/tradegate/internal/config"
	"github.com/GoPolymarket/tradegate/internal/middleware"
	"github.com/GoPolymarket/tradegate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Config   *config.Config
	Exchange *service.ExchangeService
	Trades   *service.TradeService
	// Stream serves GET /v1/stream when set.
	Stream http.Handler
	// Clock is used for request signature freshness; defaults to time.Now.
	Clock func() time.Time
	// Replay rejects reused request signatures; defaults to process memory.
	Replay middleware.ReplayGuard
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.RateLimitMiddleware(middleware.NewIPLimiter(cfg.Rate.RPS, cfg.Rate.Burst)))
	r.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tradegate"})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	fills := NewFillHandler(deps.Exchange)
	accounts := NewAccountHandler(deps.Exchange, deps.Trades)
	admin := NewAdminHandler(deps.Exchange)
	signed := middleware.AccountAuthMiddleware(time.Duration(cfg.Auth.MaxAgeSeconds)*time.Second, deps.Clock, deps.Replay)

	v1 := r.Group("/v1")
	{
		if deps.Stream != nil {
			v1.GET("/stream", gin.WrapH(deps.Stream))
		}
		v1.GET("/market", admin.Status)
		v1.POST("/fills", fills.Fill)
		v1.POST("/orders/hash", fills.Hash)
		v1.GET("/trades", accounts.Trades)
		v1.GET("/accounts/:address", accounts.State)
		v1.GET("/accounts/:address/nonces/:nonce", accounts.NonceStatus)
		v1.GET("/accounts/:address/watermark", accounts.Watermark)
		v1.GET("/accounts/:address/tokens/:collection", accounts.Tokens)
	}

	auth := v1.Group("")
	auth.Use(signed)
	{
		auth.POST("/fills/eth", fills.FillEth)
		auth.POST("/nonces/cancel", accounts.CancelNonces)
		auth.POST("/cancel-before", accounts.CancelBefore)
		auth.POST("/approvals", accounts.SetApproval)
		auth.POST("/wallet/wrap", accounts.Wrap)
		auth.POST("/wallet/allowance", accounts.Allowance)
		auth.POST("/wallet/operator", accounts.Operator)
	}

	adm := v1.Group("/admin")
	adm.Use(middleware.AdminMiddleware(cfg))
	{
		adm.POST("/emergency", admin.Emergency)
		adm.PUT("/treasury", admin.Treasury)
		adm.PUT("/royalty", admin.Royalty)
		adm.PUT("/oracle-signer", admin.OracleSigner)
		adm.POST("/faucet", admin.Faucet)
		adm.POST("/mint", admin.Mint)
		adm.POST("/traits", admin.Traits)
	}
	return r
}
