package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Trade is the full result of a successful fill, as returned to callers
// and persisted to trade history.
type Trade struct {
	TradeID      common.Hash           `json:"tradeId"`
	Buyer        common.Address        `json:"buyer"`
	Seller       common.Address        `json:"seller"`
	BidNonce     *big.Int              `json:"bidNonce"`
	AskNonce     *big.Int              `json:"askNonce"`
	Currency     common.Address        `json:"currency"`
	TokenAddress common.Address        `json:"tokenAddress"`
	TokenID      *big.Int              `json:"tokenId"`
	Price        *big.Int              `json:"price"`
	Proceeds     *big.Int              `json:"proceeds"`
	Cost         *big.Int              `json:"cost"`
	Unwrapped    bool                  `json:"unwrapped"`
	Royalties    []RoyaltyPaymentEvent `json:"royalties"`
	SettledAt    time.Time             `json:"settledAt"`
}

// Involves reports whether account is either side of the trade.
func (t *Trade) Involves(account common.Address) bool {
	return t.Buyer == account || t.Seller == account
}
