package engine_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/GoPolymarket/tradegate/internal/asset"
	"github.com/GoPolymarket/tradegate/internal/engine"
	"github.com/GoPolymarket/tradegate/internal/ledger"
	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/oracle"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/signer"
	"github.com/GoPolymarket/tradegate/internal/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	marketAddr        = common.HexToAddress("0x000000000000000000000000000000000000e0e0")
	wethAddr          = common.HexToAddress("0x00000000000000000000000000000000000000e7")
	collectionAddr    = common.HexToAddress("0x0000000000000000000000000000000000000721")
	traitOracleAddr   = common.HexToAddress("0x00000000000000000000000000000000000007a1")
	royaltyOracleAddr = common.HexToAddress("0x0000000000000000000000000000000000000401")
	royaltyRecipient  = common.HexToAddress("0x000000000000000000000000000000000000a71f")
	broker            = common.HexToAddress("0x000000000000000000000000000000000000b40c")
	treasuryAddr      = common.HexToAddress("0x0000000000000000000000000000000000007ea5")
)

var testNow = time.Unix(1_750_000_000, 0)

type recordingSink struct {
	events []model.Event
	trades []*model.Trade
}

func (s *recordingSink) Publish(events []model.Event) {
	s.events = append(s.events, events...)
}

func (s *recordingSink) RecordTrade(t *model.Trade) {
	s.trades = append(s.trades, t)
}

func (s *recordingSink) count(name string) int {
	n := 0
	for _, ev := range s.events {
		if ev.EventName() == name {
			n++
		}
	}
	return n
}

type fixture struct {
	t   *testing.T
	ctx context.Context

	journal *state.Journal
	ledger  *ledger.Ledger
	chain   *asset.Chain
	weth    *asset.WrappedCurrency
	punks   *asset.Collection
	traits  *oracle.MemoryTraitOracle
	oracles *oracle.Registry
	sink    *recordingSink
	eng     *engine.Engine

	buyer  *signer.Signer
	seller *signer.Signer
}

type fixtureOption func(*engine.Config, *ledger.Backend)

func withBackend(b ledger.Backend) fixtureOption {
	return func(_ *engine.Config, backend *ledger.Backend) { *backend = b }
}

func withProtocolRoyalty(capMicros, micros uint32) fixtureOption {
	return func(cfg *engine.Config, _ *ledger.Backend) {
		cfg.Treasury = treasuryAddr
		cfg.ProtocolRoyaltyCapMicros = capMicros
		cfg.ProtocolRoyaltyMicros = micros
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := engine.Config{Domain: signer.NewDomain(1337, marketAddr)}
	var backend ledger.Backend = ledger.NewMemoryBackend()
	for _, opt := range opts {
		opt(&cfg, &backend)
	}

	journal := state.NewJournal()
	l := ledger.New(backend, journal)
	chain := asset.NewChain(journal)
	traits := oracle.NewMemoryTraitOracle()
	registry := oracle.NewRegistry(nil)
	registry.RegisterTraitOracle(traitOracleAddr, traits)
	sink := &recordingSink{}

	eng, err := engine.New(cfg, journal, l, chain, registry, registry,
		engine.WithClock(func() time.Time { return testNow }),
		engine.WithEventSink(sink),
		engine.WithTradeSink(sink),
	)
	require.NoError(t, err)

	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		journal: journal,
		ledger:  l,
		chain:   chain,
		weth:    chain.DeployCurrency(wethAddr),
		punks:   chain.DeployCollection(collectionAddr),
		traits:  traits,
		oracles: registry,
		sink:    sink,
		eng:     eng,
		buyer:   newSigner(t, cfg.Domain),
		seller:  newSigner(t, cfg.Domain),
	}

	require.NoError(t, f.weth.Mint(f.buyer.Address(), ether(10)))
	require.NoError(t, f.weth.Approve(f.buyer.Address(), marketAddr, math.MaxBig256))
	require.NoError(t, f.punks.Mint(f.seller.Address(), big.NewInt(1)))
	require.NoError(t, f.punks.Mint(f.seller.Address(), big.NewInt(2)))
	f.punks.SetApprovalForAll(f.seller.Address(), marketAddr, true)
	journal.Reset()
	return f
}

func newSigner(t *testing.T, domain signer.Domain) *signer.Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return signer.NewSignerFromKey(key, domain)
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func (f *fixture) agreement(price *big.Int, required ...model.Royalty) *model.OrderAgreement {
	words, err := model.PackRoyalties(required...)
	require.NoError(f.t, err)
	return &model.OrderAgreement{
		CurrencyAddress:   wethAddr,
		Price:             price,
		TokenAddress:      collectionAddr,
		RequiredRoyalties: words,
	}
}

func (f *fixture) bid(a *model.OrderAgreement, nonce, tokenID int64, extra ...model.Royalty) *model.Bid {
	words, err := model.PackRoyalties(extra...)
	require.NoError(f.t, err)
	return &model.Bid{
		AgreementHash:  signer.HashAgreement(a),
		Nonce:          big.NewInt(nonce),
		Created:        model.Unix(testNow) - 100,
		Deadline:       model.Unix(testNow) + 3600,
		ExtraRoyalties: words,
		TokenID:        big.NewInt(tokenID),
	}
}

func (f *fixture) traitBid(a *model.OrderAgreement, nonce int64, traits ...string) *model.Bid {
	b := f.bid(a, nonce, 0)
	b.TraitOracle = traitOracleAddr
	for _, tr := range traits {
		b.Traits = append(b.Traits, hexutil.Bytes(tr))
	}
	return b
}

func (f *fixture) ask(a *model.OrderAgreement, nonce, tokenID int64, extra ...model.Royalty) *model.Ask {
	words, err := model.PackRoyalties(extra...)
	require.NoError(f.t, err)
	return &model.Ask{
		AgreementHash:  signer.HashAgreement(a),
		Nonce:          big.NewInt(nonce),
		Created:        model.Unix(testNow) - 100,
		Deadline:       model.Unix(testNow) + 3600,
		ExtraRoyalties: words,
		TokenID:        big.NewInt(tokenID),
	}
}

func (f *fixture) signBid(s *signer.Signer, b *model.Bid) *model.SignedBid {
	sb, err := s.SignBid(b, model.SignatureEIP712)
	require.NoError(f.t, err)
	return &sb
}

func (f *fixture) signAsk(s *signer.Signer, a *model.Ask) *model.SignedAsk {
	sa, err := s.SignAsk(a, model.SignatureEIP712)
	require.NoError(f.t, err)
	return &sa
}

func (f *fixture) owner(tokenID int64) common.Address {
	owner, err := f.punks.OwnerOf(f.ctx, big.NewInt(tokenID))
	require.NoError(f.t, err)
	return owner
}

func assertAmount(t *testing.T, want string, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want, got.String(), msgAndArgs...)
}

func assertKind(t *testing.T, want apperrors.ErrorType, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, apperrors.TypeOf(err), "error: %v", err)
}
