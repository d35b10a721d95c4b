package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/GoPolymarket/tradegate/internal/asset"
	"github.com/GoPolymarket/tradegate/internal/engine"
	"github.com/GoPolymarket/tradegate/internal/ledger"
	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/oracle"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/pkg/logger"
	"github.com/GoPolymarket/tradegate/internal/pkg/metrics"
	"github.com/GoPolymarket/tradegate/internal/signer"
	"github.com/GoPolymarket/tradegate/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ExchangeOptions describes one market deployment.
type ExchangeOptions struct {
	ChainID     int64
	Market      common.Address
	Currency    common.Address
	Decimals    int32
	Collections []common.Address

	Treasury                 common.Address
	ProtocolRoyaltyCapMicros uint32
	ProtocolRoyaltyMicros    uint32

	// TraitOracle and SignedTraitOracle are the addresses the built-in
	// oracles answer at. Zero addresses disable them.
	TraitOracle       common.Address
	SignedTraitOracle common.Address
	OracleSigner      common.Address
	RoyaltyOracles    map[common.Address]engine.RoyaltyOracle

	Backend   ledger.Backend
	Chain     *oracle.ChainCaller
	EventSink engine.EventSink
	TradeSink engine.TradeSink
	Clock     func() time.Time
}

// ExchangeService serializes access to one settlement engine and the
// simulated chain behind it.
type ExchangeService struct {
	mu           sync.Mutex
	engine       *engine.Engine
	ledger       *ledger.Ledger
	chain        *asset.Chain
	currency     *asset.WrappedCurrency
	traits       *oracle.MemoryTraitOracle
	signedTraits *oracle.SignedTraitOracle
	registry     *oracle.Registry
	decimals     int32
}

func NewExchangeService(ctx context.Context, opts ExchangeOptions) (*ExchangeService, error) {
	if opts.Market == (common.Address{}) {
		return nil, fmt.Errorf("market address is required")
	}
	if opts.Currency == (common.Address{}) {
		return nil, fmt.Errorf("currency address is required")
	}
	if opts.Backend == nil {
		opts.Backend = ledger.NewMemoryBackend()
	}

	journal := state.NewJournal()
	l := ledger.New(opts.Backend, journal)
	if err := l.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore ledger: %w", err)
	}

	chain := asset.NewChain(journal)
	currency := chain.DeployCurrency(opts.Currency)
	for _, addr := range opts.Collections {
		chain.DeployCollection(addr)
	}

	registry := oracle.NewRegistry(opts.Chain)
	svc := &ExchangeService{
		ledger:   l,
		chain:    chain,
		currency: currency,
		registry: registry,
		decimals: opts.Decimals,
	}
	if opts.TraitOracle != (common.Address{}) {
		svc.traits = oracle.NewMemoryTraitOracle()
		registry.RegisterTraitOracle(opts.TraitOracle, svc.traits)
	}
	if opts.SignedTraitOracle != (common.Address{}) {
		svc.signedTraits = oracle.NewSignedTraitOracle(opts.OracleSigner)
		registry.RegisterTraitOracle(opts.SignedTraitOracle, svc.signedTraits)
	}
	for addr, o := range opts.RoyaltyOracles {
		registry.RegisterRoyaltyOracle(addr, o)
	}

	engineOpts := []engine.Option{}
	if opts.EventSink != nil {
		engineOpts = append(engineOpts, engine.WithEventSink(opts.EventSink))
	}
	if opts.TradeSink != nil {
		engineOpts = append(engineOpts, engine.WithTradeSink(opts.TradeSink))
	}
	if opts.Clock != nil {
		engineOpts = append(engineOpts, engine.WithClock(opts.Clock))
	}
	eng, err := engine.New(engine.Config{
		Domain:                   signer.NewDomain(opts.ChainID, opts.Market),
		Treasury:                 opts.Treasury,
		ProtocolRoyaltyCapMicros: opts.ProtocolRoyaltyCapMicros,
		ProtocolRoyaltyMicros:    opts.ProtocolRoyaltyMicros,
	}, journal, l, chain, registry, registry, engineOpts...)
	if err != nil {
		return nil, err
	}
	svc.engine = eng
	return svc, nil
}

func (s *ExchangeService) Market() common.Address {
	return s.engine.Address()
}

func (s *ExchangeService) Domain() signer.Domain {
	return s.engine.Domain()
}

func (s *ExchangeService) Decimals() int32 {
	return s.decimals
}

// Fill settles a wrapped-currency fill.
func (s *ExchangeService) Fill(ctx context.Context, req *model.FillRequest) (*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, err := s.engine.FillOrder(oracle.WithCallScope(ctx), &req.Agreement, &req.Bid, &req.Ask)
	observeFill(trade, err, "wrapped")
	return trade, err
}

// FillEth settles a fill funded with sender's native balance.
func (s *ExchangeService) FillEth(ctx context.Context, sender common.Address, req *model.FillEthRequest) (*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, err := s.engine.FillOrderEth(oracle.WithCallScope(ctx), sender, req.Value, &req.Agreement, &req.Bid, &req.Ask)
	observeFill(trade, err, "native")
	return trade, err
}

func observeFill(trade *model.Trade, err error, funding string) {
	if err != nil {
		metrics.FillsTotal.WithLabelValues("rejected", funding).Inc()
		metrics.FillRejects.WithLabelValues(string(apperrors.TypeOf(err))).Inc()
		return
	}
	metrics.FillsTotal.WithLabelValues("settled", funding).Inc()
	for _, r := range trade.Royalties {
		metrics.RoyaltyPayments.WithLabelValues(string(r.Payer)).Inc()
	}
}

func (s *ExchangeService) CancelNonces(ctx context.Context, account common.Address, nonces []*big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.CancelNonces(ctx, account, nonces); err != nil {
		return err
	}
	metrics.NonceCancellations.Add(float64(len(nonces)))
	return nil
}

func (s *ExchangeService) CancelBefore(ctx context.Context, account common.Address, ts uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CancelBefore(ctx, account, ts)
}

func (s *ExchangeService) SetApproval(ctx context.Context, account common.Address, contentHash common.Hash, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SetOnChainApproval(ctx, account, contentHash, approved)
}

func (s *ExchangeService) NonceUsed(account common.Address, nonce *big.Int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.NonceUsed(account, nonce)
}

func (s *ExchangeService) Watermark(account common.Address) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Watermark(account)
}

func (s *ExchangeService) IsApproved(account common.Address, contentHash common.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.IsApproved(account, contentHash)
}

// AccountState reports the account's balances in the default currency and
// its cancellation watermark.
func (s *ExchangeService) AccountState(account common.Address) *model.AccountState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &model.AccountState{
		Account:   account,
		Watermark: s.engine.Watermark(account),
		Native:    s.chain.NativeBalance(account),
		Wrapped:   s.currency.BalanceOf(account),
		Allowance: s.currency.Allowance(account, s.engine.Address()),
		UpdatedAt: time.Now().UTC(),
	}
}

func (s *ExchangeService) TokensOf(collection, account common.Address) ([]*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.chain.ERC721(collection)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "unknown collection", err)
	}
	return c.TokensOf(account), nil
}

// HashResponse carries content hashes and typed data for wallets to sign.
type HashResponse struct {
	DomainSeparator common.Hash                   `json:"domainSeparator"`
	AgreementHash   *common.Hash                  `json:"agreementHash,omitempty"`
	BidHash         *common.Hash                  `json:"bidHash,omitempty"`
	AskHash         *common.Hash                  `json:"askHash,omitempty"`
	TypedData       map[string]apitypes.TypedData `json:"typedData"`
}

func (s *ExchangeService) Hash(req *model.HashRequest) (*HashResponse, error) {
	if req.Agreement == nil && req.Bid == nil && req.Ask == nil {
		return nil, apperrors.NewInvalidRequest("one of agreement, bid or ask is required")
	}
	domain := s.engine.Domain()
	resp := &HashResponse{
		DomainSeparator: s.engine.DomainSeparator(),
		TypedData:       make(map[string]apitypes.TypedData),
	}
	if a := req.Agreement; a != nil {
		if a.Price == nil {
			return nil, apperrors.NewInvalidRequest("agreement price is required")
		}
		h := signer.HashAgreement(a)
		resp.AgreementHash = &h
		resp.TypedData["agreement"] = signer.AgreementTypedData(domain, a)
	}
	if b := req.Bid; b != nil {
		if b.Nonce == nil {
			return nil, apperrors.NewInvalidRequest("bid nonce is required")
		}
		if b.TokenID == nil {
			b.TokenID = new(big.Int)
		}
		h := signer.HashBid(b)
		resp.BidHash = &h
		resp.TypedData["bid"] = signer.BidTypedData(domain, b)
	}
	if a := req.Ask; a != nil {
		if a.Nonce == nil || a.TokenID == nil {
			return nil, apperrors.NewInvalidRequest("ask nonce and tokenId are required")
		}
		h := signer.HashAsk(a)
		resp.AskHash = &h
		resp.TypedData["ask"] = signer.AskTypedData(domain, a)
	}
	return resp, nil
}

// Wrap converts between account's native and wrapped balances.
func (s *ExchangeService) Wrap(ctx context.Context, account common.Address, amount *big.Int, unwrap bool) error {
	return s.atomic(ctx, func(ctx context.Context) error {
		if unwrap {
			return s.currency.Withdraw(ctx, account, amount)
		}
		return s.currency.Deposit(ctx, account, amount)
	})
}

// Approve sets spender's allowance over owner's default currency. A zero
// spender means the market.
func (s *ExchangeService) Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error {
	if spender == (common.Address{}) {
		spender = s.engine.Address()
	}
	return s.atomic(ctx, func(ctx context.Context) error {
		return s.currency.Approve(owner, spender, amount)
	})
}

// SetOperator toggles operator (the market when zero) over all of owner's
// tokens in collection.
func (s *ExchangeService) SetOperator(ctx context.Context, owner, collection, operator common.Address, approved bool) error {
	if operator == (common.Address{}) {
		operator = s.engine.Address()
	}
	return s.atomic(ctx, func(ctx context.Context) error {
		c, err := s.chain.ERC721(collection)
		if err != nil {
			return err
		}
		c.SetApprovalForAll(owner, operator, approved)
		return nil
	})
}

func (s *ExchangeService) Faucet(ctx context.Context, account common.Address, amount *big.Int, wrapped bool) error {
	return s.atomic(ctx, func(ctx context.Context) error {
		if wrapped {
			return s.currency.Mint(account, amount)
		}
		return s.chain.Fund(account, amount)
	})
}

func (s *ExchangeService) Mint(ctx context.Context, collection, to common.Address, tokenID *big.Int) error {
	return s.atomic(ctx, func(ctx context.Context) error {
		c, err := s.chain.ERC721(collection)
		if err != nil {
			return err
		}
		return c.Mint(to, tokenID)
	})
}

// SetTrait updates trait membership. With a signature the change is
// published to the signed oracle, otherwise it goes to the memory oracle.
func (s *ExchangeService) SetTrait(req *model.TraitRequest) error {
	if len(req.Signature) > 0 {
		if s.signedTraits == nil {
			return apperrors.Newf(apperrors.ErrNotFound, "signed trait oracle is not enabled")
		}
		att := &oracle.TraitAttestation{
			Collection: req.Collection,
			TokenID:    req.TokenID,
			Trait:      req.Trait,
			Present:    req.Present,
		}
		if err := s.signedTraits.Publish(att, req.Signature); err != nil {
			return apperrors.New(apperrors.ErrAuthFailed, "attestation rejected", err)
		}
		return nil
	}
	if s.traits == nil {
		return apperrors.Newf(apperrors.ErrNotFound, "trait oracle is not enabled")
	}
	s.traits.SetTrait(req.Collection, req.TokenID, req.Trait, req.Present)
	return nil
}

func (s *ExchangeService) SetOracleSigner(addr common.Address) error {
	if s.signedTraits == nil {
		return apperrors.Newf(apperrors.ErrNotFound, "signed trait oracle is not enabled")
	}
	s.signedTraits.SetOracleSigner(addr)
	logger.Info("oracle signer rotated", "signer", addr.Hex())
	return nil
}

func (s *ExchangeService) SetEmergencyShutdown(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SetEmergencyShutdown(ctx, enabled)
}

func (s *ExchangeService) SetTreasury(ctx context.Context, treasury common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.SetTreasury(ctx, treasury)
}

// SetProtocolRoyalty applies the cap first so a lower cap and a lower
// rate can be set in one request.
func (s *ExchangeService) SetProtocolRoyalty(ctx context.Context, capMicros, micros *uint32) (engine.ProtocolRoyalty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if capMicros == nil && micros == nil {
		return engine.ProtocolRoyalty{}, apperrors.NewInvalidRequest("capMicros or micros is required")
	}
	err := s.engine.Atomic(ctx, func(ctx context.Context) error {
		if capMicros != nil {
			if err := s.engine.SetProtocolRoyaltyCap(ctx, *capMicros); err != nil {
				return err
			}
		}
		if micros != nil {
			return s.engine.SetProtocolRoyaltyRate(ctx, *micros)
		}
		return nil
	})
	if err != nil {
		return engine.ProtocolRoyalty{}, err
	}
	return s.engine.ProtocolRoyalty(), nil
}

type MarketStatus struct {
	Market            common.Address         `json:"market"`
	ChainID           int64                  `json:"chainId"`
	DomainSeparator   common.Hash            `json:"domainSeparator"`
	Currency          common.Address         `json:"currency"`
	EmergencyShutdown bool                   `json:"emergencyShutdown"`
	ProtocolRoyalty   engine.ProtocolRoyalty `json:"protocolRoyalty"`
	OracleSigner      *common.Address        `json:"oracleSigner,omitempty"`
}

func (s *ExchangeService) Status() *MarketStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &MarketStatus{
		Market:            s.engine.Address(),
		ChainID:           s.engine.Domain().ChainID.Int64(),
		DomainSeparator:   s.engine.DomainSeparator(),
		Currency:          s.currency.Address(),
		EmergencyShutdown: s.engine.EmergencyShutdown(),
		ProtocolRoyalty:   s.engine.ProtocolRoyalty(),
	}
	if s.signedTraits != nil {
		addr := s.signedTraits.OracleSigner()
		st.OracleSigner = &addr
	}
	return st
}

// atomic runs a simulated-chain mutation under the engine's journal so it
// is reverted as a unit and the journal is released on success.
func (s *ExchangeService) atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Atomic(ctx, fn); err != nil {
		return walletError(err)
	}
	return nil
}

func walletError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, asset.ErrUnknownAsset):
		return apperrors.New(apperrors.ErrNotFound, "unknown asset", err)
	case errors.Is(err, asset.ErrInvalidAmount), errors.Is(err, asset.ErrZeroAddress),
		errors.Is(err, asset.ErrTokenExists), errors.Is(err, asset.ErrNotOwner):
		return apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err)
	default:
		return apperrors.New(apperrors.ErrTransfer, err.Error(), err)
	}
}
