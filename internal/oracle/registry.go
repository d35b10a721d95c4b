package oracle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GoPolymarket/tradegate/internal/engine"
	"github.com/ethereum/go-ethereum/common"
)

var ErrUnknownOracle = errors.New("unknown oracle")

// Registry maps oracle addresses to implementations. Addresses with no
// local registration resolve to chain-backed clients when a ChainCaller is
// configured.
type Registry struct {
	mu        sync.RWMutex
	traits    map[common.Address]engine.TraitOracle
	royalties map[common.Address]engine.RoyaltyOracle
	chain     *ChainCaller
}

func NewRegistry(chain *ChainCaller) *Registry {
	return &Registry{
		traits:    make(map[common.Address]engine.TraitOracle),
		royalties: make(map[common.Address]engine.RoyaltyOracle),
		chain:     chain,
	}
}

func (r *Registry) RegisterTraitOracle(address common.Address, o engine.TraitOracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traits[address] = o
}

func (r *Registry) RegisterRoyaltyOracle(address common.Address, o engine.RoyaltyOracle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.royalties[address] = o
}

func (r *Registry) TraitOracle(address common.Address) (engine.TraitOracle, error) {
	r.mu.RLock()
	o, ok := r.traits[address]
	r.mu.RUnlock()
	if ok {
		return o, nil
	}
	if r.chain == nil {
		return nil, fmt.Errorf("%w: trait oracle %s", ErrUnknownOracle, address.Hex())
	}
	chainOracle := NewChainTraitOracle(address, r.chain)
	r.RegisterTraitOracle(address, chainOracle)
	return chainOracle, nil
}

func (r *Registry) RoyaltyOracle(address common.Address) (engine.RoyaltyOracle, error) {
	r.mu.RLock()
	o, ok := r.royalties[address]
	r.mu.RUnlock()
	if ok {
		return o, nil
	}
	if r.chain == nil {
		return nil, fmt.Errorf("%w: royalty oracle %s", ErrUnknownOracle, address.Hex())
	}
	chainOracle := NewChainRoyaltyOracle(address, r.chain)
	r.RegisterRoyaltyOracle(address, chainOracle)
	return chainOracle, nil
}
