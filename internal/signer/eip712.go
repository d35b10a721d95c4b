package signer

import (
	"math/big"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Constants for EIP-712
const (
	EIP712DomainName    = "TradeGate Market"
	EIP712DomainVersion = "1"
)

const (
	domainTypeString    = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	agreementTypeString = "OrderAgreement(address currencyAddress,uint256 price,address tokenAddress,bytes32[] requiredRoyalties)"
	bidTypeString       = "Bid(bytes32 agreementHash,uint256 nonce,uint40 created,uint40 deadline,bytes32[] extraRoyalties,uint256 tokenId,bytes[] traits,address traitOracle)"
	askTypeString       = "Ask(bytes32 agreementHash,uint256 nonce,uint40 created,uint40 deadline,bytes32[] extraRoyalties,uint256 tokenId,bool unwrapWeth,address authorizedBidder)"
)

var (
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte(domainTypeString))
	AgreementTypeHash    = crypto.Keccak256Hash([]byte(agreementTypeString))
	BidTypeHash          = crypto.Keccak256Hash([]byte(bidTypeString))
	AskTypeHash          = crypto.Keccak256Hash([]byte(askTypeString))
)

// Domain binds signatures to one market deployment on one chain.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

func NewDomain(chainID int64, verifyingContract common.Address) Domain {
	return Domain{
		Name:              EIP712DomainName,
		Version:           EIP712DomainVersion,
		ChainID:           big.NewInt(chainID),
		VerifyingContract: verifyingContract,
	}
}

// Separator returns
// keccak256(abi.encode(EIP712DomainTypeHash, keccak256(name), keccak256(version), chainId, verifyingContract))
func (d Domain) Separator() common.Hash {
	return crypto.Keccak256Hash(
		EIP712DomainTypeHash.Bytes(),
		crypto.Keccak256([]byte(d.Name)),
		crypto.Keccak256([]byte(d.Version)),
		word(d.ChainID),
		addressWord(d.VerifyingContract),
	)
}

// HashAgreement returns the content hash both orders must carry.
func HashAgreement(a *model.OrderAgreement) common.Hash {
	return crypto.Keccak256Hash(
		AgreementTypeHash.Bytes(),
		addressWord(a.CurrencyAddress),
		word(a.Price),
		addressWord(a.TokenAddress),
		hashWords(a.RequiredRoyalties).Bytes(),
	)
}

func HashBid(b *model.Bid) common.Hash {
	return crypto.Keccak256Hash(
		BidTypeHash.Bytes(),
		b.AgreementHash.Bytes(),
		word(b.Nonce),
		word(new(big.Int).SetUint64(b.Created)),
		word(new(big.Int).SetUint64(b.Deadline)),
		hashWords(b.ExtraRoyalties).Bytes(),
		word(b.TokenID),
		hashBytesList(b.Traits).Bytes(),
		addressWord(b.TraitOracle),
	)
}

func HashAsk(a *model.Ask) common.Hash {
	unwrap := big.NewInt(0)
	if a.UnwrapWeth {
		unwrap.SetInt64(1)
	}
	return crypto.Keccak256Hash(
		AskTypeHash.Bytes(),
		a.AgreementHash.Bytes(),
		word(a.Nonce),
		word(new(big.Int).SetUint64(a.Created)),
		word(new(big.Int).SetUint64(a.Deadline)),
		hashWords(a.ExtraRoyalties).Bytes(),
		word(a.TokenID),
		word(unwrap),
		addressWord(a.AuthorizedBidder),
	)
}

// TypedDataDigest is keccak256("\x19\x01" || domainSeparator || contentHash).
func TypedDataDigest(domainSeparator, contentHash common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator.Bytes(), contentHash.Bytes())
}

// TradeID derives the deterministic identifier of a fill.
func TradeID(bidder common.Address, bidNonce *big.Int, asker common.Address, askNonce *big.Int) common.Hash {
	return crypto.Keccak256Hash(
		addressWord(bidder),
		word(bidNonce),
		addressWord(asker),
		word(askNonce),
	)
}

// hashWords encodes a bytes32[] member: keccak of the concatenated words.
func hashWords(words []common.Hash) common.Hash {
	buf := make([]byte, 0, 32*len(words))
	for _, w := range words {
		buf = append(buf, w.Bytes()...)
	}
	return crypto.Keccak256Hash(buf)
}

// hashBytesList encodes a bytes[] member: keccak of the concatenated element hashes.
func hashBytesList(items []hexutil.Bytes) common.Hash {
	buf := make([]byte, 0, 32*len(items))
	for _, item := range items {
		buf = append(buf, crypto.Keccak256(item)...)
	}
	return crypto.Keccak256Hash(buf)
}

func word(n *big.Int) []byte {
	if n == nil {
		return make([]byte, 32)
	}
	return math.U256Bytes(new(big.Int).Set(n))
}

func addressWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}
