package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// OrderAgreement holds the terms a bid and an ask must share exactly.
type OrderAgreement struct {
	CurrencyAddress   common.Address `json:"currencyAddress"`
	Price             *big.Int       `json:"price"`
	TokenAddress      common.Address `json:"tokenAddress"`
	RequiredRoyalties []common.Hash  `json:"requiredRoyalties"`
}

// Bid is an offer to buy one token of the agreement's collection.
//
// With a zero TraitOracle the bid targets TokenID directly and Traits must
// be empty. Otherwise any token affirmed by TraitOracle for every trait
// in Traits is acceptable and TokenID is ignored.
type Bid struct {
	AgreementHash  common.Hash     `json:"agreementHash"`
	Nonce          *big.Int        `json:"nonce"`
	Created        uint64          `json:"created"`
	Deadline       uint64          `json:"deadline"`
	ExtraRoyalties []common.Hash   `json:"extraRoyalties"`
	TokenID        *big.Int        `json:"tokenId"`
	Traits         []hexutil.Bytes `json:"traits"`
	TraitOracle    common.Address  `json:"traitOracle"`
}

// IsDirect reports whether the bid names a single token.
func (b *Bid) IsDirect() bool {
	return b.TraitOracle == (common.Address{})
}

// Ask is an offer to sell a specific token.
type Ask struct {
	AgreementHash    common.Hash    `json:"agreementHash"`
	Nonce            *big.Int       `json:"nonce"`
	Created          uint64         `json:"created"`
	Deadline         uint64         `json:"deadline"`
	ExtraRoyalties   []common.Hash  `json:"extraRoyalties"`
	TokenID          *big.Int       `json:"tokenId"`
	UnwrapWeth       bool           `json:"unwrapWeth"`
	AuthorizedBidder common.Address `json:"authorizedBidder"`
}

// SignatureKind selects how an order's author is authenticated.
type SignatureKind uint8

const (
	// SignatureUnspecified is the zero value and is never accepted.
	SignatureUnspecified SignatureKind = iota
	// SignatureNone means the signature field carries the 20-byte author
	// address and the author must have approved the order on-chain.
	SignatureNone
	// SignatureEthereumSignedMessage is a personal_sign over domain || content.
	SignatureEthereumSignedMessage
	// SignatureEIP712 is a typed-data signature under the market domain.
	SignatureEIP712
)

func (k SignatureKind) String() string {
	switch k {
	case SignatureNone:
		return "none"
	case SignatureEthereumSignedMessage:
		return "eth_sign"
	case SignatureEIP712:
		return "eip712"
	default:
		return "unknown"
	}
}

type SignedBid struct {
	Bid           Bid           `json:"bid"`
	Signature     hexutil.Bytes `json:"signature"`
	SignatureKind SignatureKind `json:"signatureKind" binding:"required"`
}

type SignedAsk struct {
	Ask           Ask           `json:"ask"`
	Signature     hexutil.Bytes `json:"signature"`
	SignatureKind SignatureKind `json:"signatureKind" binding:"required"`
}

// Unix converts a time to the seconds representation orders use.
func Unix(t time.Time) uint64 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}
