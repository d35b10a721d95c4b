package asset

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// WrappedCurrency is a WETH-like token backed one-to-one by native currency.
type WrappedCurrency struct {
	chain      *Chain
	address    common.Address
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func (w *WrappedCurrency) Address() common.Address {
	return w.address
}

func (w *WrappedCurrency) BalanceOf(account common.Address) *big.Int {
	return balanceOf(w.balances, account)
}

func (w *WrappedCurrency) Allowance(owner, spender common.Address) *big.Int {
	return balanceOf(w.allowances[owner], spender)
}

func (w *WrappedCurrency) Approve(owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	set, ok := w.allowances[owner]
	if !ok {
		set = make(map[common.Address]*big.Int)
		w.allowances[owner] = set
	}
	w.chain.setBalance(set, spender, new(big.Int).Set(amount))
	return nil
}

// Mint credits wrapped currency without native backing.
func (w *WrappedCurrency) Mint(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	w.chain.setBalance(w.balances, to, new(big.Int).Add(w.BalanceOf(to), amount))
	return nil
}

func (w *WrappedCurrency) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal := w.BalanceOf(from)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), bal, amount)
	}
	if from == to {
		return nil
	}
	w.chain.setBalance(w.balances, from, bal.Sub(bal, amount))
	w.chain.setBalance(w.balances, to, new(big.Int).Add(w.BalanceOf(to), amount))
	return nil
}

// TransferFrom spends operator's allowance on from unless operator is from.
// An allowance of 2^256-1 is never decremented.
func (w *WrappedCurrency) TransferFrom(ctx context.Context, operator, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if operator != from {
		allowed := w.Allowance(from, operator)
		if allowed.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s allows %s %s, needs %s", ErrInsufficientAllowance, from.Hex(), operator.Hex(), allowed, amount)
		}
		if bal := w.BalanceOf(from); bal.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), bal, amount)
		}
		if amount.Sign() > 0 && allowed.Cmp(math.MaxBig256) != 0 {
			w.chain.setBalance(w.allowances[from], operator, allowed.Sub(allowed, amount))
		}
	}
	return w.Transfer(ctx, from, to, amount)
}

func (w *WrappedCurrency) Deposit(ctx context.Context, account common.Address, amount *big.Int) error {
	if err := w.chain.DebitNative(account, amount); err != nil {
		return err
	}
	w.chain.setBalance(w.balances, account, new(big.Int).Add(w.BalanceOf(account), amount))
	return nil
}

func (w *WrappedCurrency) Withdraw(ctx context.Context, account common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal := w.BalanceOf(account)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, account.Hex(), bal, amount)
	}
	w.chain.setBalance(w.balances, account, bal.Sub(bal, amount))
	w.chain.creditNative(account, amount)
	return nil
}

func (w *WrappedCurrency) SendNative(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return w.chain.TransferNative(ctx, from, to, amount)
}
