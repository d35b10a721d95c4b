package engine_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/GoPolymarket/tradegate/internal/engine"
	"github.com/GoPolymarket/tradegate/internal/ledger"
	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/signer"
	"github.com/GoPolymarket/tradegate/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	j := state.NewJournal()
	l := ledger.New(ledger.NewMemoryBackend(), j)
	domain := signer.NewDomain(1, marketAddr)

	_, err := engine.New(engine.Config{Domain: domain, ProtocolRoyaltyCapMicros: 50_001}, j, l, nil, nil, nil)
	assert.Error(t, err)
	_, err = engine.New(engine.Config{Domain: domain, ProtocolRoyaltyCapMicros: 10, ProtocolRoyaltyMicros: 11}, j, l, nil, nil, nil)
	assert.Error(t, err)
	_, err = engine.New(engine.Config{}, j, l, nil, nil, nil)
	assert.Error(t, err)
}

func TestFillOrderEthWithUnwrap(t *testing.T) {
	f := newFixture(t)
	buyer, seller := f.buyer.Address(), f.seller.Address()
	require.NoError(t, f.chain.Fund(buyer, ether(3)))
	f.journal.Reset()

	a := f.agreement(ether(2), model.StaticRoyalty(royaltyRecipient, 100_000))
	ask := f.ask(a, 1, 1)
	ask.UnwrapWeth = true
	bid := f.signBid(f.buyer, f.bid(a, 1, 1))

	_, err := f.eng.FillOrderEth(f.ctx, seller, ether(2), a, bid, f.signAsk(f.seller, ask))
	assertKind(t, apperrors.ErrAuthFailed, err)
	assertAmount(t, "3000000000000000000", f.chain.NativeBalance(buyer))

	trade, err := f.eng.FillOrderEth(f.ctx, buyer, ether(2), a, bid, f.signAsk(f.seller, ask))
	require.NoError(t, err)
	assert.True(t, trade.Unwrapped)

	assertAmount(t, "1000000000000000000", f.chain.NativeBalance(buyer))
	assertAmount(t, "10000000000000000000", f.weth.BalanceOf(buyer), "attached value covered the whole cost")
	assertAmount(t, "1800000000000000000", f.chain.NativeBalance(seller))
	assertAmount(t, "0", f.weth.BalanceOf(seller))
	assertAmount(t, "200000000000000000", f.weth.BalanceOf(royaltyRecipient))
	assertAmount(t, "0", f.weth.BalanceOf(marketAddr))
	assertAmount(t, "0", f.chain.NativeBalance(marketAddr))
}

func TestFillOrderEthInsufficientValue(t *testing.T) {
	f := newFixture(t)
	a := f.agreement(ether(1))
	_, err := f.eng.FillOrderEth(f.ctx, f.buyer.Address(), ether(1), a, f.signBid(f.buyer, f.bid(a, 1, 1)), f.signAsk(f.seller, f.ask(a, 1, 1)))
	assertKind(t, apperrors.ErrTransfer, err)

	_, err = f.eng.FillOrderEth(f.ctx, f.buyer.Address(), big.NewInt(-1), a, f.signBid(f.buyer, f.bid(a, 1, 1)), f.signAsk(f.seller, f.ask(a, 1, 1)))
	assertKind(t, apperrors.ErrInvalidRequest, err)
}

func TestReentrantReplayFromNativeHook(t *testing.T) {
	f := newFixture(t)
	a := f.agreement(ether(1), model.StaticRoyalty(royaltyRecipient, 10_000))
	askOrder := f.ask(a, 1, 1)
	askOrder.UnwrapWeth = true
	bid := f.signBid(f.buyer, f.bid(a, 1, 1))
	ask := f.signAsk(f.seller, askOrder)

	var reentryErr error
	var royaltyAtHook string
	f.chain.SetNativeHook(f.seller.Address(), func(ctx context.Context, from common.Address, amount *big.Int) error {
		royaltyAtHook = f.weth.BalanceOf(royaltyRecipient).String()
		_, reentryErr = f.eng.FillOrder(ctx, a, bid, ask)
		return nil
	})

	_, err := f.eng.FillOrder(f.ctx, a, bid, ask)
	require.NoError(t, err)
	assertKind(t, apperrors.ErrStale, reentryErr)
	assert.Equal(t, "10000000000000000", royaltyAtHook, "royalties paid before external code runs")
	assertAmount(t, "10000000000000000", f.weth.BalanceOf(royaltyRecipient))
	assert.Equal(t, 1, f.sink.count("trade"))
}

func TestReentrantReplayFromTokenHook(t *testing.T) {
	f := newFixture(t)
	a := f.agreement(ether(1))
	bid := f.signBid(f.buyer, f.bid(a, 1, 1))
	ask := f.signAsk(f.seller, f.ask(a, 1, 1))

	var nonceUsedAtHook bool
	var reentryErr error
	f.chain.SetTokenHook(f.buyer.Address(), func(ctx context.Context, operator, from common.Address, tokenID *big.Int) error {
		nonceUsedAtHook = f.eng.NonceUsed(f.seller.Address(), big.NewInt(1))
		_, reentryErr = f.eng.FillOrder(ctx, a, bid, ask)
		return nil
	})

	_, err := f.eng.FillOrder(f.ctx, a, bid, ask)
	require.NoError(t, err)
	assert.True(t, nonceUsedAtHook)
	assertKind(t, apperrors.ErrStale, reentryErr)
}

func TestNestedFillRevertsWithOuter(t *testing.T) {
	f := newFixture(t)
	a := f.agreement(ether(1))
	outerBid := f.signBid(f.buyer, f.bid(a, 1, 1))
	outerAsk := f.signAsk(f.seller, f.ask(a, 1, 1))
	innerBid := f.signBid(f.buyer, f.bid(a, 2, 2))
	innerAsk := f.signAsk(f.seller, f.ask(a, 2, 2))

	var innerErr error
	ran := false
	f.chain.SetTokenHook(f.buyer.Address(), func(ctx context.Context, operator, from common.Address, tokenID *big.Int) error {
		if ran {
			return nil
		}
		ran = true
		_, innerErr = f.eng.FillOrder(ctx, a, innerBid, innerAsk)
		return errors.New("receiver refuses")
	})

	_, err := f.eng.FillOrder(f.ctx, a, outerBid, outerAsk)
	assertKind(t, apperrors.ErrTransfer, err)
	require.NoError(t, innerErr)

	assert.Equal(t, f.seller.Address(), f.owner(1))
	assert.Equal(t, f.seller.Address(), f.owner(2))
	assert.False(t, f.eng.NonceUsed(f.buyer.Address(), big.NewInt(2)))
	assert.False(t, f.eng.NonceUsed(f.seller.Address(), big.NewInt(2)))
	assertAmount(t, "10000000000000000000", f.weth.BalanceOf(f.buyer.Address()))
	assert.Empty(t, f.sink.events)
	assert.Empty(t, f.sink.trades)
}

func TestNestedFillCommitsWithOuter(t *testing.T) {
	f := newFixture(t)
	a := f.agreement(ether(1))
	innerBid := f.signBid(f.buyer, f.bid(a, 2, 2))
	innerAsk := f.signAsk(f.seller, f.ask(a, 2, 2))

	ran := false
	f.chain.SetTokenHook(f.buyer.Address(), func(ctx context.Context, operator, from common.Address, tokenID *big.Int) error {
		if ran {
			return nil
		}
		ran = true
		_, err := f.eng.FillOrder(ctx, a, innerBid, innerAsk)
		return err
	})

	_, err := f.eng.FillOrder(f.ctx, a, f.signBid(f.buyer, f.bid(a, 1, 1)), f.signAsk(f.seller, f.ask(a, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, f.buyer.Address(), f.owner(1))
	assert.Equal(t, f.buyer.Address(), f.owner(2))
	assert.Len(t, f.sink.trades, 2)
}

func TestCancelNonces(t *testing.T) {
	f := newFixture(t)
	seller := f.seller.Address()
	a := f.agreement(ether(1))

	require.NoError(t, f.eng.CancelNonces(f.ctx, seller, []*big.Int{big.NewInt(1), big.NewInt(2)}))
	// Idempotent, and each nonce still gets an event.
	require.NoError(t, f.eng.CancelNonces(f.ctx, seller, []*big.Int{big.NewInt(2), big.NewInt(3)}))
	assert.Equal(t, 4, f.sink.count("nonce_cancellation"))
	assert.True(t, f.eng.NonceUsed(seller, big.NewInt(3)))

	_, err := f.eng.FillOrder(f.ctx, a, f.signBid(f.buyer, f.bid(a, 1, 1)), f.signAsk(f.seller, f.ask(a, 2, 1)))
	assertKind(t, apperrors.ErrStale, err)

	assertKind(t, apperrors.ErrInvalidRequest, f.eng.CancelNonces(f.ctx, seller, nil))
	assertKind(t, apperrors.ErrInvalidRequest, f.eng.CancelNonces(f.ctx, seller, []*big.Int{big.NewInt(-1)}))
}

func TestCancelBeforeValidation(t *testing.T) {
	f := newFixture(t)
	seller := f.seller.Address()
	now := model.Unix(testNow)

	assertKind(t, apperrors.ErrInvalidRequest, f.eng.CancelBefore(f.ctx, seller, now+1))
	assertKind(t, apperrors.ErrInvalidRequest, f.eng.CancelBefore(f.ctx, seller, 0))

	require.NoError(t, f.eng.CancelBefore(f.ctx, seller, now-10))
	assertKind(t, apperrors.ErrInvalidRequest, f.eng.CancelBefore(f.ctx, seller, now-10))
	assertKind(t, apperrors.ErrInvalidRequest, f.eng.CancelBefore(f.ctx, seller, now-20))
	require.NoError(t, f.eng.CancelBefore(f.ctx, seller, now))
	assert.Equal(t, now, f.eng.Watermark(seller))
	assert.Equal(t, 2, f.sink.count("cancel_before"))
}

type brokenBackend struct{ ledger.MemoryBackend }

func (b *brokenBackend) Apply(context.Context, *ledger.Changeset) error {
	return errors.New("redis unavailable")
}

func TestCommitFailureDiscardsFill(t *testing.T) {
	f := newFixture(t, withBackend(&brokenBackend{}))
	a := f.agreement(ether(1))

	_, err := f.eng.FillOrder(f.ctx, a, f.signBid(f.buyer, f.bid(a, 1, 1)), f.signAsk(f.seller, f.ask(a, 1, 1)))
	assertKind(t, apperrors.ErrInternal, err)

	assert.False(t, f.eng.NonceUsed(f.buyer.Address(), big.NewInt(1)))
	assert.Equal(t, f.seller.Address(), f.owner(1))
	assertAmount(t, "10000000000000000000", f.weth.BalanceOf(f.buyer.Address()))
	assert.Empty(t, f.sink.events)
	assert.Zero(t, f.journal.Length())
}

func TestCommitPersistsLedger(t *testing.T) {
	backend := ledger.NewMemoryBackend()
	f := newFixture(t, withBackend(backend))
	a := f.agreement(ether(1))

	_, err := f.eng.FillOrder(f.ctx, a, f.signBid(f.buyer, f.bid(a, 1, 1)), f.signAsk(f.seller, f.ask(a, 1, 1)))
	require.NoError(t, err)

	restored := ledger.New(backend, state.NewJournal())
	require.NoError(t, restored.Restore(f.ctx))
	assert.True(t, restored.NonceUsed(f.buyer.Address(), big.NewInt(1)))
	assert.True(t, restored.NonceUsed(f.seller.Address(), big.NewInt(1)))
}
