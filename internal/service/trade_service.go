package service

import (
	"context"
	"sync"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// TradeService keeps trade history. Trades are buffered in memory for
// immediate reads and written to the repository asynchronously so that
// settlement never waits on the database.
type TradeService struct {
	tradeChan chan *model.Trade
	buffer    *tradeBuffer
	repo      TradeRepo
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

// MaxTradeListLimit bounds one history query.
const MaxTradeListLimit = 500

type TradeRepo interface {
	Insert(ctx context.Context, trade *model.Trade) error
	List(ctx context.Context, account *common.Address, limit int) ([]*model.Trade, error)
}

func NewTradeService(repo TradeRepo, bufferSize int) *TradeService {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	svc := &TradeService{
		tradeChan: make(chan *model.Trade, bufferSize),
		buffer:    newTradeBuffer(bufferSize),
		repo:      repo,
		done:      make(chan struct{}),
	}
	go svc.processTrades()
	return svc
}

// RecordTrade implements engine.TradeSink.
func (s *TradeService) RecordTrade(trade *model.Trade) {
	s.buffer.Add(trade)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.repo == nil {
		return
	}
	select {
	case s.tradeChan <- trade:
	default:
		logger.Warn("trade queue full, record kept in memory only", "trade_id", trade.TradeID.Hex())
	}
}

// List returns the most recent trades first. account filters to trades
// where it is buyer or seller. limit is clamped to MaxTradeListLimit.
func (s *TradeService) List(ctx context.Context, account *common.Address, limit int) ([]*model.Trade, error) {
	if limit <= 0 || limit > MaxTradeListLimit {
		limit = MaxTradeListLimit
	}
	if s.repo != nil {
		records, err := s.repo.List(ctx, account, limit)
		if err == nil {
			return records, nil
		}
		logger.LogError(ctx, err, "trade repository list failed, serving from memory")
	}
	return s.buffer.List(account, limit), nil
}

func (s *TradeService) processTrades() {
	defer close(s.done)
	for trade := range s.tradeChan {
		if err := s.repo.Insert(context.Background(), trade); err != nil {
			logger.Error("failed to persist trade", "trade_id", trade.TradeID.Hex(), "error", err.Error())
		}
	}
}

// Close stops accepting trades and waits for queued ones to be written.
func (s *TradeService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.tradeChan)
	s.mu.Unlock()
	<-s.done
}

type tradeBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.Trade
	nextIndex int
}

func newTradeBuffer(maxSize int) *tradeBuffer {
	return &tradeBuffer{
		maxSize: maxSize,
		records: make([]*model.Trade, 0, maxSize),
	}
}

func (b *tradeBuffer) Add(trade *model.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, trade)
		return
	}
	b.records[b.nextIndex] = trade
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *tradeBuffer) List(account *common.Address, limit int) []*model.Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.Trade, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		trade := b.records[idx]
		if account != nil && !trade.Involves(*account) {
			continue
		}
		results = append(results, trade)
		if len(results) >= limit {
			break
		}
	}
	return results
}
