package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// FillRequest is the body of POST /v1/fills.
type FillRequest struct {
	Agreement OrderAgreement `json:"agreement"`
	Bid       SignedBid      `json:"bid"`
	Ask       SignedAsk      `json:"ask"`
}

// FillEthRequest attaches Value in native currency, taken from the
// authenticated account.
type FillEthRequest struct {
	FillRequest
	Value *big.Int `json:"value" binding:"required"`
}

type CancelNoncesRequest struct {
	Nonces []*big.Int `json:"nonces" binding:"required,min=1"`
}

type CancelBeforeRequest struct {
	Timestamp uint64 `json:"timestamp" binding:"required"`
}

type ApprovalRequest struct {
	ContentHash common.Hash `json:"contentHash"`
	Approved    bool        `json:"approved"`
}

type WrapRequest struct {
	Amount *big.Int `json:"amount" binding:"required"`
	// Unwrap converts wrapped currency back to native instead.
	Unwrap bool `json:"unwrap"`
}

// AllowanceRequest approves Spender (the market when empty) to pull Amount
// of the default currency.
type AllowanceRequest struct {
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount" binding:"required"`
}

// OperatorRequest toggles Operator (the market when empty) as an operator
// over all of the caller's tokens in Collection.
type OperatorRequest struct {
	Collection common.Address `json:"collection"`
	Operator   common.Address `json:"operator"`
	Approved   bool           `json:"approved"`
}

type EmergencyRequest struct {
	Enabled bool `json:"enabled"`
}

type TreasuryRequest struct {
	Treasury common.Address `json:"treasury"`
}

// RoyaltyConfigRequest updates the protocol royalty. The cap is applied
// before the rate.
type RoyaltyConfigRequest struct {
	CapMicros *uint32 `json:"capMicros"`
	Micros    *uint32 `json:"micros"`
}

type OracleSignerRequest struct {
	Signer common.Address `json:"signer"`
}

// FaucetRequest credits native currency, or wrapped currency when Wrapped
// is set.
type FaucetRequest struct {
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount" binding:"required"`
	Wrapped bool           `json:"wrapped"`
}

type MintRequest struct {
	Collection common.Address `json:"collection"`
	To         common.Address `json:"to"`
	TokenID    *big.Int       `json:"tokenId" binding:"required"`
}

// TraitRequest sets trait membership directly, or publishes a signed
// attestation when Signature is present.
type TraitRequest struct {
	Collection common.Address `json:"collection"`
	TokenID    *big.Int       `json:"tokenId" binding:"required"`
	Trait      hexutil.Bytes  `json:"trait"`
	Present    bool           `json:"present"`
	Signature  hexutil.Bytes  `json:"signature,omitempty"`
}

// HashRequest asks for content hashes and typed data of any subset of an
// agreement, a bid and an ask.
type HashRequest struct {
	Agreement *OrderAgreement `json:"agreement,omitempty"`
	Bid       *Bid            `json:"bid,omitempty"`
	Ask       *Ask            `json:"ask,omitempty"`
}

// TradeView is a trade with amounts also rendered in whole currency units.
type TradeView struct {
	*Trade
	PriceDisplay    decimal.Decimal `json:"priceDisplay"`
	ProceedsDisplay decimal.Decimal `json:"proceedsDisplay"`
	CostDisplay     decimal.Decimal `json:"costDisplay"`
}

func NewTradeView(t *Trade, decimals int32) *TradeView {
	return &TradeView{
		Trade:           t,
		PriceDisplay:    ToDisplay(t.Price, decimals),
		ProceedsDisplay: ToDisplay(t.Proceeds, decimals),
		CostDisplay:     ToDisplay(t.Cost, decimals),
	}
}

// ToDisplay scales a base-unit amount down by decimals.
func ToDisplay(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

type AccountState struct {
	Account   common.Address `json:"account"`
	Watermark uint64         `json:"watermark"`
	Native    *big.Int       `json:"native"`
	Wrapped   *big.Int       `json:"wrapped"`
	Allowance *big.Int       `json:"allowance"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
