// Package asset is an in-memory stand-in for the token contracts a fill
// touches: native balances, a wrapped currency and ERC-721 style
// collections. Every mutation is journaled so it is rolled back together
// with the rest of a failed settlement.
package asset

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/GoPolymarket/tradegate/internal/engine"
	"github.com/GoPolymarket/tradegate/internal/state"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrUnknownAsset          = errors.New("unknown asset")
	ErrUnknownToken          = errors.New("nonexistent token")
	ErrTokenExists           = errors.New("token already minted")
	ErrNotOwner              = errors.New("transfer from incorrect owner")
	ErrNotAuthorized         = errors.New("caller is not token owner or approved")
	ErrZeroAddress           = errors.New("transfer to the zero address")
	ErrReceiverRejected      = errors.New("receiver rejected transfer")
)

// NativeHook runs when an address receives native currency.
type NativeHook func(ctx context.Context, from common.Address, amount *big.Int) error

// TokenHook runs when an address receives a token via safe transfer.
type TokenHook func(ctx context.Context, operator, from common.Address, tokenID *big.Int) error

// Chain owns native balances, receive hooks and the deployed asset
// contracts. It is not safe for concurrent use.
type Chain struct {
	journal *state.Journal

	native      map[common.Address]*big.Int
	nativeHooks map[common.Address]NativeHook
	tokenHooks  map[common.Address]TokenHook

	currencies  map[common.Address]*WrappedCurrency
	collections map[common.Address]*Collection
}

func NewChain(journal *state.Journal) *Chain {
	return &Chain{
		journal:     journal,
		native:      make(map[common.Address]*big.Int),
		nativeHooks: make(map[common.Address]NativeHook),
		tokenHooks:  make(map[common.Address]TokenHook),
		currencies:  make(map[common.Address]*WrappedCurrency),
		collections: make(map[common.Address]*Collection),
	}
}

// DeployCurrency registers a wrapped currency at address.
func (c *Chain) DeployCurrency(address common.Address) *WrappedCurrency {
	w := &WrappedCurrency{
		chain:      c,
		address:    address,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
	c.currencies[address] = w
	return w
}

// DeployCollection registers an empty collection at address.
func (c *Chain) DeployCollection(address common.Address) *Collection {
	col := &Collection{
		chain:     c,
		address:   address,
		owners:    make(map[string]common.Address),
		approvals: make(map[string]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
	}
	c.collections[address] = col
	return col
}

func (c *Chain) Currency(address common.Address) (engine.Currency, error) {
	w, err := c.WrappedCurrency(address)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (c *Chain) Collection(address common.Address) (engine.Collection, error) {
	col, err := c.ERC721(address)
	if err != nil {
		return nil, err
	}
	return col, nil
}

func (c *Chain) WrappedCurrency(address common.Address) (*WrappedCurrency, error) {
	w, ok := c.currencies[address]
	if !ok {
		return nil, fmt.Errorf("%w: currency %s", ErrUnknownAsset, address.Hex())
	}
	return w, nil
}

func (c *Chain) ERC721(address common.Address) (*Collection, error) {
	col, ok := c.collections[address]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", ErrUnknownAsset, address.Hex())
	}
	return col, nil
}

func (c *Chain) NativeBalance(account common.Address) *big.Int {
	return balanceOf(c.native, account)
}

// Fund credits native currency out of thin air.
func (c *Chain) Fund(account common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	c.setBalance(c.native, account, new(big.Int).Add(c.NativeBalance(account), amount))
	return nil
}

// DebitNative removes native currency from account without crediting
// anyone, the way a transaction's value leaves the sender.
func (c *Chain) DebitNative(account common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal := c.NativeBalance(account)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: native balance %s < %s", ErrInsufficientBalance, bal, amount)
	}
	c.setBalance(c.native, account, new(big.Int).Sub(bal, amount))
	return nil
}

func (c *Chain) creditNative(account common.Address, amount *big.Int) {
	c.setBalance(c.native, account, new(big.Int).Add(c.NativeBalance(account), amount))
}

// TransferNative moves native currency and then runs the recipient's hook.
// A hook error fails the transfer; the caller's journal snapshot undoes
// the balance change.
func (c *Chain) TransferNative(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := c.DebitNative(from, amount); err != nil {
		return err
	}
	c.creditNative(to, amount)
	if hook, ok := c.nativeHooks[to]; ok {
		if err := hook(ctx, from, amount); err != nil {
			return fmt.Errorf("%w: %v", ErrReceiverRejected, err)
		}
	}
	return nil
}

// SetNativeHook installs or, with nil, removes the hook for account.
func (c *Chain) SetNativeHook(account common.Address, hook NativeHook) {
	if hook == nil {
		delete(c.nativeHooks, account)
		return
	}
	c.nativeHooks[account] = hook
}

func (c *Chain) SetTokenHook(account common.Address, hook TokenHook) {
	if hook == nil {
		delete(c.tokenHooks, account)
		return
	}
	c.tokenHooks[account] = hook
}

// setBalance writes a journaled balance entry.
func (c *Chain) setBalance(m map[common.Address]*big.Int, account common.Address, v *big.Int) {
	prev, had := m[account]
	m[account] = v
	c.journal.Append(func() {
		if had {
			m[account] = prev
		} else {
			delete(m, account)
		}
	})
}

func balanceOf(m map[common.Address]*big.Int, account common.Address) *big.Int {
	if v, ok := m[account]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}
