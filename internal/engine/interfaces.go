package engine

import (
	"context"
	"math/big"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/ethereum/go-ethereum/common"
)

// Currency is the wrapped settlement currency. Any error aborts the fill.
type Currency interface {
	TransferFrom(ctx context.Context, operator, from, to common.Address, amount *big.Int) error
	// Deposit converts amount of account's native balance into wrapped
	// currency held by account.
	Deposit(ctx context.Context, account common.Address, amount *big.Int) error
	// Withdraw converts amount of account's wrapped balance back to native.
	Withdraw(ctx context.Context, account common.Address, amount *big.Int) error
	// SendNative moves native currency and may run code owned by to.
	SendNative(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Collection is a non-fungible asset contract.
type Collection interface {
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	GetApproved(ctx context.Context, tokenID *big.Int) (common.Address, error)
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	// SafeTransferFrom moves the token and runs the receive hook of to.
	SafeTransferFrom(ctx context.Context, operator, from, to common.Address, tokenID *big.Int) error
}

// Assets resolves currency and collection contracts by address.
type Assets interface {
	Currency(address common.Address) (Currency, error)
	Collection(address common.Address) (Collection, error)
}

// TraitOracle answers trait membership queries. The trait payload is
// opaque to the engine.
type TraitOracle interface {
	HasTrait(ctx context.Context, collection common.Address, tokenID *big.Int, trait []byte) (bool, error)
}

// RoyaltyOracle splits a capped royalty budget among recipients it picks.
type RoyaltyOracle interface {
	Royalties(ctx context.Context, collection common.Address, tokenID *big.Int, microsCap uint32, data uint64) ([]model.RoyaltyLeg, error)
}

type TraitOracles interface {
	TraitOracle(address common.Address) (TraitOracle, error)
}

type RoyaltyOracles interface {
	RoyaltyOracle(address common.Address) (RoyaltyOracle, error)
}

// EventSink receives events after the state transition that produced them
// has been committed.
type EventSink interface {
	Publish(events []model.Event)
}

// TradeSink receives every committed trade.
type TradeSink interface {
	RecordTrade(trade *model.Trade)
}
