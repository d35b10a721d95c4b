package signer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrNoSignatureScheme   = errors.New("no-signature orders must be authorized by on-chain approval")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrUnknownScheme       = errors.New("unknown signature kind")
	ErrInvalidClaimedOwner = errors.New("no-signature payload must carry a 20 byte address")
)

// EthSignDigest is the legacy digest: personal_sign over domainSeparator || contentHash.
func EthSignDigest(domainSeparator, contentHash common.Hash) common.Hash {
	msg := make([]byte, 0, 64)
	msg = append(msg, domainSeparator.Bytes()...)
	msg = append(msg, contentHash.Bytes()...)
	return common.BytesToHash(accounts.TextHash(msg))
}

// Digest returns the bytes a signer of the given kind actually signs.
func Digest(domainSeparator, contentHash common.Hash, kind model.SignatureKind) (common.Hash, error) {
	switch kind {
	case model.SignatureEIP712:
		return TypedDataDigest(domainSeparator, contentHash), nil
	case model.SignatureEthereumSignedMessage:
		return EthSignDigest(domainSeparator, contentHash), nil
	case model.SignatureNone:
		return common.Hash{}, ErrNoSignatureScheme
	default:
		return common.Hash{}, fmt.Errorf("%w: %d", ErrUnknownScheme, kind)
	}
}

// Recover returns the address that produced signature over contentHash
// under the given scheme.
func Recover(domainSeparator, contentHash common.Hash, signature []byte, kind model.SignatureKind) (common.Address, error) {
	digest, err := Digest(domainSeparator, contentHash, kind)
	if err != nil {
		return common.Address{}, err
	}
	return RecoverDigest(digest, signature)
}

// RecoverDigest recovers the signer of a 65-byte [R || S || V] signature.
// V may be 0/1 or 27/28; high-S signatures are rejected.
func RecoverDigest(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], r, s, true) {
		return common.Address{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// RecoverText recovers the author of a personal_sign signature over message.
func RecoverText(message, signature []byte) (common.Address, error) {
	return RecoverDigest(common.BytesToHash(accounts.TextHash(message)), signature)
}

// ClaimedAccount decodes the author of a no-signature order. Both the raw
// 20-byte form and the 32-byte ABI-padded form are accepted.
func ClaimedAccount(payload []byte) (common.Address, error) {
	switch len(payload) {
	case common.AddressLength:
		return common.BytesToAddress(payload), nil
	case 32:
		for _, b := range payload[:12] {
			if b != 0 {
				return common.Address{}, ErrInvalidClaimedOwner
			}
		}
		return common.BytesToAddress(payload[12:]), nil
	default:
		return common.Address{}, ErrInvalidClaimedOwner
	}
}
