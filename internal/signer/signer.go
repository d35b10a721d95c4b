package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces order signatures for one key under one market domain.
// The exchange itself never signs orders; this is used by tooling, the
// trait-publishing oracle and tests.
type Signer struct {
	key             *ecdsa.PrivateKey
	address         common.Address
	domainSeparator common.Hash
}

// NewSigner creates a new EIP-712 signer with pre-calculated domain separator
func NewSigner(privateKeyHex string, domain Domain) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return NewSignerFromKey(key, domain), nil
}

func NewSignerFromKey(key *ecdsa.PrivateKey, domain Domain) *Signer {
	return &Signer{
		key:             key,
		address:         crypto.PubkeyToAddress(key.PublicKey),
		domainSeparator: domain.Separator(),
	}
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) DomainSeparator() common.Hash {
	return s.domainSeparator
}

// Sign signs contentHash under the requested scheme. For SignatureNone the
// returned payload is the signer's address, to be paired with an on-chain
// approval.
func (s *Signer) Sign(contentHash common.Hash, kind model.SignatureKind) ([]byte, error) {
	if kind == model.SignatureNone {
		return s.address.Bytes(), nil
	}
	digest, err := Digest(s.domainSeparator, contentHash, kind)
	if err != nil {
		return nil, err
	}
	return s.signDigest(digest)
}

func (s *Signer) SignBid(bid *model.Bid, kind model.SignatureKind) (model.SignedBid, error) {
	sig, err := s.Sign(HashBid(bid), kind)
	if err != nil {
		return model.SignedBid{}, err
	}
	return model.SignedBid{Bid: *bid, Signature: sig, SignatureKind: kind}, nil
}

func (s *Signer) SignAsk(ask *model.Ask, kind model.SignatureKind) (model.SignedAsk, error) {
	sig, err := s.Sign(HashAsk(ask), kind)
	if err != nil {
		return model.SignedAsk{}, err
	}
	return model.SignedAsk{Ask: *ask, Signature: sig, SignatureKind: kind}, nil
}

// SignText produces a personal_sign signature over an arbitrary message.
func (s *Signer) SignText(message []byte) ([]byte, error) {
	return s.signDigest(common.BytesToHash(accounts.TextHash(message)))
}

func (s *Signer) signDigest(digest common.Hash) ([]byte, error) {
	signature, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, err
	}
	// go-ethereum returns V in {0,1}; wallets emit {27,28}.
	if signature[crypto.RecoveryIDOffset] < 27 {
		signature[crypto.RecoveryIDOffset] += 27
	}
	return signature, nil
}
