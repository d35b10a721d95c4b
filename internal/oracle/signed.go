package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/GoPolymarket/tradegate/internal/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrUntrustedAttestation = errors.New("attestation not signed by the oracle signer")

// TraitAttestation is a statement by the oracle signer that a token does
// (or no longer does) have a trait.
type TraitAttestation struct {
	Collection common.Address `json:"collection"`
	TokenID    *big.Int       `json:"tokenId"`
	Trait      hexutil.Bytes  `json:"trait"`
	Present    bool           `json:"present"`
}

// Hash is keccak256(abi.encode(collection, tokenId, keccak256(trait), present)).
func (a *TraitAttestation) Hash() common.Hash {
	present := make([]byte, 32)
	if a.Present {
		present[31] = 1
	}
	return crypto.Keccak256Hash(
		common.LeftPadBytes(a.Collection.Bytes(), 32),
		math.U256Bytes(new(big.Int).Set(a.TokenID)),
		crypto.Keccak256(a.Trait),
		present,
	)
}

type attestation struct {
	signer  common.Address
	present bool
}

// SignedTraitOracle accepts trait data published off-chain as personal_sign
// attestations. Only attestations from the current oracle signer count;
// rotating the signer retires everything the previous one published.
type SignedTraitOracle struct {
	mu           sync.RWMutex
	oracleSigner common.Address
	attestations map[traitKey]attestation
}

func NewSignedTraitOracle(oracleSigner common.Address) *SignedTraitOracle {
	return &SignedTraitOracle{
		oracleSigner: oracleSigner,
		attestations: make(map[traitKey]attestation),
	}
}

func (o *SignedTraitOracle) OracleSigner() common.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.oracleSigner
}

func (o *SignedTraitOracle) SetOracleSigner(addr common.Address) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.oracleSigner = addr
}

// Publish records a signed attestation.
func (o *SignedTraitOracle) Publish(a *TraitAttestation, signature []byte) error {
	if a.TokenID == nil || a.TokenID.Sign() < 0 {
		return fmt.Errorf("invalid token id")
	}
	author, err := signer.RecoverText(a.Hash().Bytes(), signature)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if author != o.oracleSigner || author == (common.Address{}) {
		return ErrUntrustedAttestation
	}
	o.attestations[newTraitKey(a.Collection, a.TokenID, a.Trait)] = attestation{signer: author, present: a.Present}
	return nil
}

func (o *SignedTraitOracle) HasTrait(ctx context.Context, collection common.Address, tokenID *big.Int, trait []byte) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	att, ok := o.attestations[newTraitKey(collection, tokenID, trait)]
	return ok && att.present && att.signer == o.oracleSigner, nil
}
