// Package engine settles signed bid/ask pairs: it authorizes both parties,
// consumes their nonces, matches terms, pays royalties, moves the token and
// the proceeds, and emits an auditable trade record.
//
// An Engine is a single logical thread and is not safe for concurrent use.
// Calls made from inside a transfer hook re-enter the engine directly and
// run as nested, independently reverting steps of the outer call.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/GoPolymarket/tradegate/internal/ledger"
	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/pkg/logger"
	"github.com/GoPolymarket/tradegate/internal/signer"
	"github.com/GoPolymarket/tradegate/internal/state"
	"github.com/ethereum/go-ethereum/common"
)

// MaxProtocolRoyaltyMicros is the immutable ceiling on the protocol
// royalty cap (5%).
const MaxProtocolRoyaltyMicros = 50_000

// maxTimestamp is the largest uint40.
const maxTimestamp = uint64(1)<<40 - 1

type Config struct {
	Domain                   signer.Domain
	Treasury                 common.Address
	ProtocolRoyaltyCapMicros uint32
	ProtocolRoyaltyMicros    uint32
}

type Engine struct {
	domain          signer.Domain
	domainSeparator common.Hash
	address         common.Address

	journal   *state.Journal
	ledger    *ledger.Ledger
	assets    Assets
	traits    TraitOracles
	royalties RoyaltyOracles

	eventSink EventSink
	tradeSink TradeSink
	clock     func() time.Time

	shutdown    bool
	treasury    common.Address
	royaltyCap  uint32
	royaltyRate uint32

	depth  int
	events []model.Event
	trades []*model.Trade
}

type Option func(*Engine)

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.eventSink = sink }
}

func WithTradeSink(sink TradeSink) Option {
	return func(e *Engine) { e.tradeSink = sink }
}

// New creates an engine. journal must be the journal shared by l and by
// the asset contracts behind assets.
func New(cfg Config, journal *state.Journal, l *ledger.Ledger, assets Assets, traits TraitOracles, royalties RoyaltyOracles, opts ...Option) (*Engine, error) {
	if cfg.Domain.ChainID == nil {
		return nil, fmt.Errorf("engine: chain id is required")
	}
	if cfg.ProtocolRoyaltyCapMicros > MaxProtocolRoyaltyMicros {
		return nil, fmt.Errorf("engine: protocol royalty cap %d exceeds ceiling %d", cfg.ProtocolRoyaltyCapMicros, MaxProtocolRoyaltyMicros)
	}
	if cfg.ProtocolRoyaltyMicros > cfg.ProtocolRoyaltyCapMicros {
		return nil, fmt.Errorf("engine: protocol royalty %d exceeds cap %d", cfg.ProtocolRoyaltyMicros, cfg.ProtocolRoyaltyCapMicros)
	}
	e := &Engine{
		domain:          cfg.Domain,
		domainSeparator: cfg.Domain.Separator(),
		address:         cfg.Domain.VerifyingContract,
		journal:         journal,
		ledger:          l,
		assets:          assets,
		traits:          traits,
		royalties:       royalties,
		clock:           time.Now,
		treasury:        cfg.Treasury,
		royaltyCap:      cfg.ProtocolRoyaltyCapMicros,
		royaltyRate:     cfg.ProtocolRoyaltyMicros,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Address is the engine's own account: the operator of every transfer it
// makes and the temporary holder of proceeds being unwrapped.
func (e *Engine) Address() common.Address {
	return e.address
}

func (e *Engine) Domain() signer.Domain {
	return e.domain
}

func (e *Engine) DomainSeparator() common.Hash {
	return e.domainSeparator
}

func (e *Engine) now() uint64 {
	return model.Unix(e.clock())
}

// Atomic runs fn as one state transition: every journaled mutation made by
// fn is reverted if it fails, and committed (ledger flushed, events
// published) when it succeeds at the outermost level.
func (e *Engine) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := e.journal.Snapshot()
	e.depth++
	returned := false
	defer func() {
		// fn panicked
		if !returned {
			e.depth--
			e.journal.RevertToSnapshot(snap)
		}
	}()
	err := fn(ctx)
	returned = true
	e.depth--
	if err != nil {
		e.journal.RevertToSnapshot(snap)
		return err
	}
	if e.depth > 0 {
		return nil
	}
	return e.commit(ctx, snap)
}

func (e *Engine) commit(ctx context.Context, snap int) error {
	if err := e.ledger.Commit(ctx); err != nil {
		e.journal.RevertToSnapshot(snap)
		logger.LogError(ctx, err, "ledger commit failed, state transition discarded")
		return apperrors.New(apperrors.ErrInternal, "failed to persist ledger", err)
	}
	e.journal.Reset()

	events, trades := e.events, e.trades
	e.events, e.trades = nil, nil
	logAdminEvents(events)
	if e.eventSink != nil && len(events) > 0 {
		e.eventSink.Publish(events)
	}
	if e.tradeSink != nil {
		for _, t := range trades {
			e.tradeSink.RecordTrade(t)
		}
	}
	return nil
}

// emit buffers an event until the outermost call commits.
func (e *Engine) emit(ev model.Event) {
	n := len(e.events)
	e.events = append(e.events, ev)
	e.journal.Append(func() { e.events = e.events[:n] })
}

func (e *Engine) recordTrade(t *model.Trade) {
	n := len(e.trades)
	e.trades = append(e.trades, t)
	e.journal.Append(func() { e.trades = e.trades[:n] })
}

// setUint32 and setBool journal admin-state writes.
func (e *Engine) setUint32(p *uint32, v uint32) {
	prev := *p
	*p = v
	e.journal.Append(func() { *p = prev })
}

func (e *Engine) setBool(p *bool, v bool) {
	prev := *p
	*p = v
	e.journal.Append(func() { *p = prev })
}

func (e *Engine) setAddress(p *common.Address, v common.Address) {
	prev := *p
	*p = v
	e.journal.Append(func() { *p = prev })
}
