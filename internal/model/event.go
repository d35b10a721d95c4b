package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is anything the engine emits on a committed state transition.
type Event interface {
	EventName() string
}

type Payer string

const (
	PayerBuyer  Payer = "buyer"
	PayerSeller Payer = "seller"
)

// TradeEvent is the audit record of one settled fill.
type TradeEvent struct {
	TradeID  common.Hash    `json:"tradeId"`
	Buyer    common.Address `json:"buyer"`
	Seller   common.Address `json:"seller"`
	Currency common.Address `json:"currency"`
	Price    *big.Int       `json:"price"`
	Proceeds *big.Int       `json:"proceeds"`
	Cost     *big.Int       `json:"cost"`
}

func (TradeEvent) EventName() string { return "trade" }

type TokenTradedEvent struct {
	TradeID      common.Hash    `json:"tradeId"`
	TokenAddress common.Address `json:"tokenAddress"`
	TokenID      *big.Int       `json:"tokenId"`
}

func (TokenTradedEvent) EventName() string { return "token_traded" }

// RoyaltyPaymentEvent records one royalty leg. Payer is informational:
// funds always leave the buyer's balance.
type RoyaltyPaymentEvent struct {
	TradeID   common.Hash    `json:"tradeId"`
	Payer     Payer          `json:"payer"`
	Recipient common.Address `json:"recipient"`
	Micros    uint32         `json:"micros"`
	Amount    *big.Int       `json:"amount"`
}

func (RoyaltyPaymentEvent) EventName() string { return "royalty_payment" }

type NonceCancellationEvent struct {
	Account common.Address `json:"account"`
	Nonce   *big.Int       `json:"nonce"`
}

func (NonceCancellationEvent) EventName() string { return "nonce_cancellation" }

type CancelBeforeEvent struct {
	Account   common.Address `json:"account"`
	Timestamp uint64         `json:"timestamp"`
}

func (CancelBeforeEvent) EventName() string { return "cancel_before" }

type ApprovalEvent struct {
	Account     common.Address `json:"account"`
	ContentHash common.Hash    `json:"contentHash"`
	Approved    bool           `json:"approved"`
}

func (ApprovalEvent) EventName() string { return "approval" }

type EmergencyShutdownEvent struct {
	Enabled bool `json:"enabled"`
}

func (EmergencyShutdownEvent) EventName() string { return "emergency_shutdown" }

type ProtocolRoyaltyEvent struct {
	CapMicros uint32 `json:"capMicros"`
	Micros    uint32 `json:"micros"`
}

func (ProtocolRoyaltyEvent) EventName() string { return "protocol_royalty" }

type TreasuryEvent struct {
	Treasury common.Address `json:"treasury"`
}

func (TreasuryEvent) EventName() string { return "treasury" }
