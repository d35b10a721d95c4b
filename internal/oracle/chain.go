package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
)

const traitOracleABI = `[{"inputs":[{"name":"tokenAddress","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"trait","type":"bytes"}],"name":"hasTrait","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"}]`

const royaltyOracleABI = `[{"inputs":[{"name":"tokenAddress","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"micros","type":"uint32"},{"name":"data","type":"uint64"}],"name":"royalties","outputs":[{"components":[{"name":"recipient","type":"address"},{"name":"micros","type":"uint32"}],"name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"}]`

var (
	traitABI   = mustParseABI(traitOracleABI)
	royaltyABI = mustParseABI(royaltyOracleABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ChainCaller performs read-only eth_call requests against oracle contracts
// with per-attempt timeout and retries.
type ChainCaller struct {
	rpcURL  string
	mu      sync.Mutex
	client  *ethclient.Client
	timeout time.Duration
	retries int
}

func NewChainCaller(rpcURL string, timeout time.Duration, retries int) *ChainCaller {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &ChainCaller{
		rpcURL:  strings.TrimSpace(rpcURL),
		timeout: timeout,
		retries: retries,
	}
}

type callScopeKey struct{}

// callScope memoizes eth_call results for the lifetime of one context.
type callScope struct {
	mu      sync.Mutex
	outputs map[string][]byte
}

// WithCallScope returns a context under which cacheable oracle answers are
// fetched once. Answers never outlive the returned context, so a later
// settlement always sees the oracle's current state.
func WithCallScope(ctx context.Context) context.Context {
	if _, ok := ctx.Value(callScopeKey{}).(*callScope); ok {
		return ctx
	}
	return context.WithValue(ctx, callScopeKey{}, &callScope{outputs: make(map[string][]byte)})
}

func scopeFrom(ctx context.Context) *callScope {
	scope, _ := ctx.Value(callScopeKey{}).(*callScope)
	return scope
}

func (s *callScope) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	output, ok := s.outputs[key]
	return output, ok
}

func (s *callScope) set(key string, output []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[key] = output
}

// Call executes data against contract. When cached is set and ctx carries a
// call scope, the answer is reused for the rest of that scope.
func (c *ChainCaller) Call(ctx context.Context, contract common.Address, data []byte, cached bool) ([]byte, error) {
	if c.rpcURL == "" {
		return nil, fmt.Errorf("rpc url not configured")
	}
	var scope *callScope
	if cached {
		scope = scopeFrom(ctx)
	}
	key := strings.ToLower(contract.Hex()) + ":" + hexutil.Encode(data)
	if scope != nil {
		if hit, ok := scope.get(key); ok {
			return hit, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		client, err := c.getClient(attemptCtx)
		if err != nil {
			cancel()
			lastErr = err
			if !shouldRetry(ctx, attempt, c.retries) {
				break
			}
			continue
		}

		msg := ethereum.CallMsg{
			To:   &contract,
			Data: data,
		}
		output, err := client.CallContract(attemptCtx, msg, nil)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("rpc call failed: %w", err)
			if !shouldRetry(ctx, attempt, c.retries) {
				break
			}
			continue
		}
		if scope != nil {
			scope.set(key, output)
		}
		return output, nil
	}
	return nil, lastErr
}

func (c *ChainCaller) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rpc: %w", err)
	}
	c.client = client
	return c.client, nil
}

// shouldRetry waits out the backoff for attempt and reports whether another
// attempt may run. It returns false as soon as ctx is done.
func shouldRetry(ctx context.Context, attempt, max int) bool {
	if attempt >= max {
		return false
	}
	timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// ChainTraitOracle queries a hasTrait(address,uint256,bytes) contract.
// Answers are reused only within a call scope.
type ChainTraitOracle struct {
	address common.Address
	caller  *ChainCaller
}

func NewChainTraitOracle(address common.Address, caller *ChainCaller) *ChainTraitOracle {
	return &ChainTraitOracle{address: address, caller: caller}
}

func (o *ChainTraitOracle) HasTrait(ctx context.Context, collection common.Address, tokenID *big.Int, trait []byte) (bool, error) {
	data, err := traitABI.Pack("hasTrait", collection, tokenID, trait)
	if err != nil {
		return false, fmt.Errorf("failed to pack call data: %w", err)
	}
	output, err := o.caller.Call(ctx, o.address, data, true)
	if err != nil {
		return false, err
	}
	values, err := traitABI.Unpack("hasTrait", output)
	if err != nil || len(values) != 1 {
		return false, fmt.Errorf("malformed hasTrait result from %s", o.address.Hex())
	}
	ok, _ := values[0].(bool)
	return ok, nil
}

// ChainRoyaltyOracle queries a royalties(address,uint256,uint32,uint64)
// contract. Results are never reused.
type ChainRoyaltyOracle struct {
	address common.Address
	caller  *ChainCaller
}

func NewChainRoyaltyOracle(address common.Address, caller *ChainCaller) *ChainRoyaltyOracle {
	return &ChainRoyaltyOracle{address: address, caller: caller}
}

type royaltyResult struct {
	Recipient common.Address
	Micros    uint32
}

func (o *ChainRoyaltyOracle) Royalties(ctx context.Context, collection common.Address, tokenID *big.Int, microsCap uint32, data uint64) ([]model.RoyaltyLeg, error) {
	input, err := royaltyABI.Pack("royalties", collection, tokenID, microsCap, data)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call data: %w", err)
	}
	output, err := o.caller.Call(ctx, o.address, input, false)
	if err != nil {
		return nil, err
	}
	values, err := royaltyABI.Unpack("royalties", output)
	if err != nil || len(values) != 1 {
		return nil, fmt.Errorf("malformed royalties result from %s", o.address.Hex())
	}
	results := *abi.ConvertType(values[0], new([]royaltyResult)).(*[]royaltyResult)

	legs := make([]model.RoyaltyLeg, 0, len(results))
	for _, r := range results {
		legs = append(legs, model.RoyaltyLeg{Recipient: r.Recipient, Micros: r.Micros})
	}
	return legs, nil
}
