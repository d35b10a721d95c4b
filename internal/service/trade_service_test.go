package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryTradeRepo struct {
	mu      sync.Mutex
	trades    []*model.Trade
	listErr   error
	lastLimit int
}

func (r *memoryTradeRepo) Insert(ctx context.Context, trade *model.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, trade)
	return nil
}

func (r *memoryTradeRepo) List(ctx context.Context, account *common.Address, limit int) ([]*model.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]*model.Trade(nil), r.trades...), nil
}

func testTrade(n int64, buyer, seller common.Address) *model.Trade {
	return &model.Trade{
		TradeID: common.BigToHash(big.NewInt(n)),
		Buyer:   buyer,
		Seller:  seller,
		Price:   big.NewInt(n),
	}
}

func TestTradeServicePersistsOnClose(t *testing.T) {
	repo := &memoryTradeRepo{}
	svc := NewTradeService(repo, 10)
	a, b := common.HexToAddress("0xa"), common.HexToAddress("0xb")
	svc.RecordTrade(testTrade(1, a, b))
	svc.RecordTrade(testTrade(2, b, a))
	svc.Close()

	repo.mu.Lock()
	assert.Len(t, repo.trades, 2)
	repo.mu.Unlock()

	// Recording after close keeps the trade in memory only.
	svc.RecordTrade(testTrade(3, a, b))
	svc.Close()
}

func TestTradeServiceFallsBackToBuffer(t *testing.T) {
	repo := &memoryTradeRepo{listErr: errors.New("db down")}
	svc := NewTradeService(repo, 2)
	defer svc.Close()

	a, b, c := common.HexToAddress("0xa"), common.HexToAddress("0xb"), common.HexToAddress("0xc")
	svc.RecordTrade(testTrade(1, a, b))
	svc.RecordTrade(testTrade(2, b, c))
	svc.RecordTrade(testTrade(3, c, a))

	all, err := svc.List(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(3), all[0].Price.Int64())
	assert.Equal(t, int64(2), all[1].Price.Int64())

	mine, err := svc.List(context.Background(), &a, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(3), mine[0].Price.Int64())
}

func TestTradeServiceClampsLimit(t *testing.T) {
	repo := &memoryTradeRepo{}
	svc := NewTradeService(repo, 10)
	defer svc.Close()

	for _, tc := range []struct{ in, want int }{
		{1_000_000_000, MaxTradeListLimit},
		{0, MaxTradeListLimit},
		{25, 25},
	} {
		_, err := svc.List(context.Background(), nil, tc.in)
		require.NoError(t, err)
		repo.mu.Lock()
		assert.Equal(t, tc.want, repo.lastLimit, "limit %d", tc.in)
		repo.mu.Unlock()
	}
}
