package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/tradegate/internal/config"
	"github.com/GoPolymarket/tradegate/internal/engine"
	"github.com/GoPolymarket/tradegate/internal/handler"
	"github.com/GoPolymarket/tradegate/internal/ledger"
	"github.com/GoPolymarket/tradegate/internal/middleware"
	"github.com/GoPolymarket/tradegate/internal/oracle"
	"github.com/GoPolymarket/tradegate/internal/pkg/logger"
	"github.com/GoPolymarket/tradegate/internal/repository"
	"github.com/GoPolymarket/tradegate/internal/service"
	"github.com/GoPolymarket/tradegate/internal/stream"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitWithFormat(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ledger persistence (Redis > Memory)
	var (
		backend ledger.Backend = ledger.NewMemoryBackend()
		replay  middleware.ReplayGuard
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		backend = repository.NewRedisLedgerBackend(redisClient.Client, cfg.Redis.KeyPrefix)
		replay = repository.NewRedisReplayGuard(redisClient.Client, cfg.Redis.KeyPrefix)
		defer redisClient.Client.Close()
	} else {
		logger.Warn("no redis configured, cancellations are kept in memory only")
	}

	// Trade history (Postgres > Memory)
	var tradeRepo service.TradeRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			tradeRepo, err = repository.NewPostgresTradeRepo(db)
		}
		if err != nil {
			logger.Error("failed to set up trade repository, history will be memory-only", "error", err)
			tradeRepo = nil
		} else {
			logger.Info("connected to postgres")
		}
	}
	trades := service.NewTradeService(tradeRepo, cfg.Database.TradeBufferSize)
	defer trades.Close()

	var (
		hub       *stream.Hub
		eventSink engine.EventSink
	)
	if cfg.Stream.Enabled {
		hub = stream.NewHub(cfg.Stream.QueueSize)
		eventSink = hub
	}

	var chain *oracle.ChainCaller
	if cfg.Chain.RPCURL != "" {
		chain = oracle.NewChainCaller(
			cfg.Chain.RPCURL,
			time.Duration(cfg.Chain.OracleTimeoutMs)*time.Millisecond,
			cfg.Chain.OracleRetries,
		)
	}

	collections := make([]common.Address, 0, len(cfg.Market.Collections))
	for _, c := range cfg.Market.Collections {
		collections = append(collections, common.HexToAddress(c))
	}

	exchange, err := service.NewExchangeService(ctx, service.ExchangeOptions{
		ChainID:                  cfg.Chain.ChainID,
		Market:                   config.Address(cfg.Chain.Market),
		Currency:                 config.Address(cfg.Market.Currency),
		Decimals:                 cfg.Market.Decimals,
		Collections:              collections,
		Treasury:                 config.Address(cfg.Market.Treasury),
		ProtocolRoyaltyCapMicros: cfg.Market.RoyaltyCapMicros,
		ProtocolRoyaltyMicros:    cfg.Market.RoyaltyMicros,
		TraitOracle:              config.Address(cfg.Market.TraitOracle),
		SignedTraitOracle:        config.Address(cfg.Market.SignedTraitOracle),
		OracleSigner:             config.Address(cfg.Market.OracleSigner),
		Backend:                  backend,
		Chain:                    chain,
		EventSink:                eventSink,
		TradeSink:                trades,
	})
	if err != nil {
		log.Fatalf("Failed to initialize exchange: %v", err)
	}

	deps := handler.RouterDeps{Config: cfg, Exchange: exchange, Trades: trades, Replay: replay}
	if hub != nil {
		deps.Stream = hub
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if hub != nil {
		g.Go(func() error {
			if err := hub.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("tradegate started", "port", cfg.Server.Port, "market", exchange.Market().Hex())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("server exiting")
}
