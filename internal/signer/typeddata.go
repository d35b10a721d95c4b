package signer

import (
	"math/big"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var typesDef = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"OrderAgreement": {
		{Name: "currencyAddress", Type: "address"},
		{Name: "price", Type: "uint256"},
		{Name: "tokenAddress", Type: "address"},
		{Name: "requiredRoyalties", Type: "bytes32[]"},
	},
	"Bid": {
		{Name: "agreementHash", Type: "bytes32"},
		{Name: "nonce", Type: "uint256"},
		{Name: "created", Type: "uint40"},
		{Name: "deadline", Type: "uint40"},
		{Name: "extraRoyalties", Type: "bytes32[]"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "traits", Type: "bytes[]"},
		{Name: "traitOracle", Type: "address"},
	},
	"Ask": {
		{Name: "agreementHash", Type: "bytes32"},
		{Name: "nonce", Type: "uint256"},
		{Name: "created", Type: "uint40"},
		{Name: "deadline", Type: "uint40"},
		{Name: "extraRoyalties", Type: "bytes32[]"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "unwrapWeth", Type: "bool"},
		{Name: "authorizedBidder", Type: "address"},
	},
}

// The typed-data builders below produce the payload wallets are asked to
// sign with eth_signTypedData_v4. Only the primary type and EIP712Domain
// are included so that wallets render a single struct.

func (d Domain) typedDataDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(d.ChainID)),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

func newTypedData(d Domain, primary string, message apitypes.TypedDataMessage) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": typesDef["EIP712Domain"],
			primary:        typesDef[primary],
		},
		PrimaryType: primary,
		Domain:      d.typedDataDomain(),
		Message:     message,
	}
}

func AgreementTypedData(d Domain, a *model.OrderAgreement) apitypes.TypedData {
	return newTypedData(d, "OrderAgreement", apitypes.TypedDataMessage{
		"currencyAddress":   a.CurrencyAddress.Hex(),
		"price":             decimal256(a.Price),
		"tokenAddress":      a.TokenAddress.Hex(),
		"requiredRoyalties": wordList(a.RequiredRoyalties),
	})
}

func BidTypedData(d Domain, b *model.Bid) apitypes.TypedData {
	traits := make([]interface{}, 0, len(b.Traits))
	for _, t := range b.Traits {
		traits = append(traits, hexutil.Encode(t))
	}
	return newTypedData(d, "Bid", apitypes.TypedDataMessage{
		"agreementHash":  b.AgreementHash.Hex(),
		"nonce":          decimal256(b.Nonce),
		"created":        decimal256(new(big.Int).SetUint64(b.Created)),
		"deadline":       decimal256(new(big.Int).SetUint64(b.Deadline)),
		"extraRoyalties": wordList(b.ExtraRoyalties),
		"tokenId":        decimal256(b.TokenID),
		"traits":         traits,
		"traitOracle":    b.TraitOracle.Hex(),
	})
}

func AskTypedData(d Domain, a *model.Ask) apitypes.TypedData {
	return newTypedData(d, "Ask", apitypes.TypedDataMessage{
		"agreementHash":    a.AgreementHash.Hex(),
		"nonce":            decimal256(a.Nonce),
		"created":          decimal256(new(big.Int).SetUint64(a.Created)),
		"deadline":         decimal256(new(big.Int).SetUint64(a.Deadline)),
		"extraRoyalties":   wordList(a.ExtraRoyalties),
		"tokenId":          decimal256(a.TokenID),
		"unwrapWeth":       a.UnwrapWeth,
		"authorizedBidder": a.AuthorizedBidder.Hex(),
	})
}

func decimal256(n *big.Int) *math.HexOrDecimal256 {
	if n == nil {
		return (*math.HexOrDecimal256)(big.NewInt(0))
	}
	return (*math.HexOrDecimal256)(new(big.Int).Set(n))
}

func wordList(words []common.Hash) []interface{} {
	out := make([]interface{}, 0, len(words))
	for _, w := range words {
		out = append(out, w.Hex())
	}
	return out
}
