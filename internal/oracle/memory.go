// Package oracle provides trait and royalty oracle implementations and the
// registry the engine resolves them through.
package oracle

import (
	"context"
	"math/big"
	"sync"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TraitOracleFunc adapts a function to engine.TraitOracle.
type TraitOracleFunc func(ctx context.Context, collection common.Address, tokenID *big.Int, trait []byte) (bool, error)

func (f TraitOracleFunc) HasTrait(ctx context.Context, collection common.Address, tokenID *big.Int, trait []byte) (bool, error) {
	return f(ctx, collection, tokenID, trait)
}

// RoyaltyOracleFunc adapts a function to engine.RoyaltyOracle.
type RoyaltyOracleFunc func(ctx context.Context, collection common.Address, tokenID *big.Int, microsCap uint32, data uint64) ([]model.RoyaltyLeg, error)

func (f RoyaltyOracleFunc) Royalties(ctx context.Context, collection common.Address, tokenID *big.Int, microsCap uint32, data uint64) ([]model.RoyaltyLeg, error) {
	return f(ctx, collection, tokenID, microsCap, data)
}

type traitKey struct {
	collection common.Address
	tokenID    string
	trait      string
}

func newTraitKey(collection common.Address, tokenID *big.Int, trait []byte) traitKey {
	return traitKey{collection: collection, tokenID: tokenID.String(), trait: hexutil.Encode(trait)}
}

// MemoryTraitOracle answers from an operator-maintained table.
type MemoryTraitOracle struct {
	mu     sync.RWMutex
	traits map[traitKey]bool
}

func NewMemoryTraitOracle() *MemoryTraitOracle {
	return &MemoryTraitOracle{traits: make(map[traitKey]bool)}
}

func (o *MemoryTraitOracle) SetTrait(collection common.Address, tokenID *big.Int, trait []byte, present bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := newTraitKey(collection, tokenID, trait)
	if present {
		o.traits[key] = true
	} else {
		delete(o.traits, key)
	}
}

func (o *MemoryTraitOracle) HasTrait(ctx context.Context, collection common.Address, tokenID *big.Int, trait []byte) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.traits[newTraitKey(collection, tokenID, trait)], nil
}
