package asset

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/GoPolymarket/tradegate/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	weth   = common.HexToAddress("0xe7e7")
	punks  = common.HexToAddress("0x721")
	alice  = common.HexToAddress("0xa11ce")
	bob    = common.HexToAddress("0xb0b")
	market = common.HexToAddress("0x3a3")
)

func setup(t *testing.T) (*Chain, *WrappedCurrency, *Collection, *state.Journal) {
	t.Helper()
	j := state.NewJournal()
	c := NewChain(j)
	return c, c.DeployCurrency(weth), c.DeployCollection(punks), j
}

func TestDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	c, w, _, _ := setup(t)
	require.NoError(t, c.Fund(alice, big.NewInt(100)))

	require.NoError(t, w.Deposit(ctx, alice, big.NewInt(60)))
	assert.Equal(t, big.NewInt(40), c.NativeBalance(alice))
	assert.Equal(t, big.NewInt(60), w.BalanceOf(alice))

	require.NoError(t, w.Withdraw(ctx, alice, big.NewInt(10)))
	assert.Equal(t, big.NewInt(50), c.NativeBalance(alice))
	assert.Equal(t, big.NewInt(50), w.BalanceOf(alice))

	assert.ErrorIs(t, w.Deposit(ctx, alice, big.NewInt(51)), ErrInsufficientBalance)
	assert.ErrorIs(t, w.Withdraw(ctx, alice, big.NewInt(51)), ErrInsufficientBalance)
	assert.ErrorIs(t, w.Deposit(ctx, alice, big.NewInt(-1)), ErrInvalidAmount)
}

func TestTransferFromAllowance(t *testing.T) {
	ctx := context.Background()
	_, w, _, _ := setup(t)
	require.NoError(t, w.Mint(alice, big.NewInt(100)))

	err := w.TransferFrom(ctx, market, alice, bob, big.NewInt(10))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, w.Approve(alice, market, big.NewInt(30)))
	require.NoError(t, w.TransferFrom(ctx, market, alice, bob, big.NewInt(10)))
	assert.Equal(t, big.NewInt(20), w.Allowance(alice, market))
	assert.Equal(t, big.NewInt(10), w.BalanceOf(bob))

	require.NoError(t, w.Approve(alice, market, math.MaxBig256))
	require.NoError(t, w.TransferFrom(ctx, market, alice, bob, big.NewInt(10)))
	assert.Equal(t, math.MaxBig256, w.Allowance(alice, market))

	// Self-transfer needs no allowance.
	require.NoError(t, w.TransferFrom(ctx, bob, bob, alice, big.NewInt(5)))
	assert.Equal(t, big.NewInt(15), w.BalanceOf(bob))

	err = w.TransferFrom(ctx, market, alice, bob, big.NewInt(1000))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestJournalRevertsBalances(t *testing.T) {
	ctx := context.Background()
	c, w, col, j := setup(t)
	require.NoError(t, w.Mint(alice, big.NewInt(100)))
	require.NoError(t, col.Mint(alice, big.NewInt(1)))
	j.Reset()

	snap := j.Snapshot()
	require.NoError(t, w.Transfer(ctx, alice, bob, big.NewInt(40)))
	require.NoError(t, col.SafeTransferFrom(ctx, alice, alice, bob, big.NewInt(1)))
	require.NoError(t, c.Fund(bob, big.NewInt(5)))
	j.RevertToSnapshot(snap)

	assert.Equal(t, big.NewInt(100), w.BalanceOf(alice))
	assert.Zero(t, w.BalanceOf(bob).Sign())
	assert.Zero(t, c.NativeBalance(bob).Sign())
	owner, err := col.OwnerOf(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, alice, owner)
}

func TestSafeTransferAuthorization(t *testing.T) {
	ctx := context.Background()
	_, _, col, _ := setup(t)
	id := big.NewInt(7)
	require.NoError(t, col.Mint(alice, id))
	assert.ErrorIs(t, col.Mint(bob, id), ErrTokenExists)

	assert.ErrorIs(t, col.SafeTransferFrom(ctx, market, alice, bob, id), ErrNotAuthorized)
	assert.ErrorIs(t, col.SafeTransferFrom(ctx, alice, bob, market, id), ErrNotOwner)

	require.NoError(t, col.Approve(alice, market, id))
	approved, err := col.GetApproved(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, market, approved)

	require.NoError(t, col.SafeTransferFrom(ctx, market, alice, bob, id))
	approved, err = col.GetApproved(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, approved, "approval cleared on transfer")

	col.SetApprovalForAll(bob, market, true)
	ok, err := col.IsApprovedForAll(ctx, bob, market)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, col.SafeTransferFrom(ctx, market, bob, alice, id))
	assert.Equal(t, []*big.Int{id}, col.TokensOf(alice))

	_, err = col.OwnerOf(ctx, big.NewInt(99))
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestReceiveHooks(t *testing.T) {
	ctx := context.Background()
	c, w, col, _ := setup(t)
	require.NoError(t, col.Mint(alice, big.NewInt(1)))
	require.NoError(t, c.Fund(market, big.NewInt(20)))

	var gotToken *big.Int
	c.SetTokenHook(bob, func(ctx context.Context, operator, from common.Address, tokenID *big.Int) error {
		gotToken = tokenID
		return nil
	})
	require.NoError(t, col.SafeTransferFrom(ctx, alice, alice, bob, big.NewInt(1)))
	assert.Equal(t, big.NewInt(1), gotToken)

	c.SetNativeHook(bob, func(ctx context.Context, from common.Address, amount *big.Int) error {
		return errors.New("no thanks")
	})
	err := w.SendNative(ctx, market, bob, big.NewInt(10))
	assert.ErrorIs(t, err, ErrReceiverRejected)

	c.SetNativeHook(bob, nil)
	require.NoError(t, w.SendNative(ctx, market, alice, big.NewInt(1)))
	assert.Equal(t, big.NewInt(1), c.NativeBalance(alice))
}

func TestUnknownAssets(t *testing.T) {
	c, _, _, _ := setup(t)
	_, err := c.Currency(common.HexToAddress("0xdead"))
	assert.ErrorIs(t, err, ErrUnknownAsset)
	_, err = c.Collection(common.HexToAddress("0xdead"))
	assert.ErrorIs(t, err, ErrUnknownAsset)

	cur, err := c.Currency(weth)
	require.NoError(t, err)
	assert.NotNil(t, cur)
}
