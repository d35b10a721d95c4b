package model

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// MicrosPerUnit is the denominator for every royalty rate: 1_000_000 micros = 100%.
const MicrosPerUnit = 1_000_000

// MaxRoyaltyData is the largest payload a dynamic royalty can carry; bit 63
// of the data word overlaps the kind flag in the packed encoding.
const MaxRoyaltyData = uint64(1)<<63 - 1

var (
	ErrRoyaltyDataTooLarge = errors.New("royalty data exceeds 63 bits")
	ErrMalformedRoyalty    = errors.New("malformed royalty")
)

type RoyaltyKind uint8

const (
	RoyaltyStatic RoyaltyKind = iota
	RoyaltyDynamic
)

func (k RoyaltyKind) String() string {
	if k == RoyaltyDynamic {
		return "dynamic"
	}
	return "static"
}

// Royalty is the decoded form of a packed royalty word.
//
// Static entries pay Micros of the price to Recipient. Dynamic entries ask
// Oracle to split at most Micros (the cap) among recipients it chooses, with
// Data passed through opaquely.
type Royalty struct {
	Kind      RoyaltyKind    `json:"kind"`
	Recipient common.Address `json:"recipient,omitempty"`
	Oracle    common.Address `json:"oracle,omitempty"`
	Micros    uint32         `json:"micros"`
	Data      uint64         `json:"data,omitempty"`
}

// RoyaltyLeg is one concrete (recipient, rate) pair after oracle resolution.
type RoyaltyLeg struct {
	Recipient common.Address `json:"recipient"`
	Micros    uint32         `json:"micros"`
}

func StaticRoyalty(recipient common.Address, micros uint32) Royalty {
	return Royalty{Kind: RoyaltyStatic, Recipient: recipient, Micros: micros}
}

func DynamicRoyalty(oracle common.Address, capMicros uint32, data uint64) Royalty {
	return Royalty{Kind: RoyaltyDynamic, Oracle: oracle, Micros: capMicros, Data: data}
}

// Pack encodes the royalty into its 32-byte wire form:
//
//	bit 255      kind (1 = dynamic)
//	bits 192-254 oracle data (dynamic only)
//	bits 160-191 micros / micros cap
//	bits 0-159   recipient / oracle address
func (r Royalty) Pack() (common.Hash, error) {
	var word common.Hash
	switch r.Kind {
	case RoyaltyStatic:
		copy(word[12:], r.Recipient.Bytes())
	case RoyaltyDynamic:
		if r.Data > MaxRoyaltyData {
			return common.Hash{}, ErrRoyaltyDataTooLarge
		}
		binary.BigEndian.PutUint64(word[0:8], r.Data|1<<63)
		copy(word[12:], r.Oracle.Bytes())
	default:
		return common.Hash{}, fmt.Errorf("%w: unknown kind %d", ErrMalformedRoyalty, r.Kind)
	}
	binary.BigEndian.PutUint32(word[8:12], r.Micros)
	return word, nil
}

// MustPack is Pack for literals known to be valid.
func (r Royalty) MustPack() common.Hash {
	word, err := r.Pack()
	if err != nil {
		panic(err)
	}
	return word
}

func UnpackRoyalty(word common.Hash) (Royalty, error) {
	head := binary.BigEndian.Uint64(word[0:8])
	micros := binary.BigEndian.Uint32(word[8:12])
	addr := common.BytesToAddress(word[12:])

	if head&(1<<63) != 0 {
		return DynamicRoyalty(addr, micros, head&MaxRoyaltyData), nil
	}
	if head != 0 {
		return Royalty{}, fmt.Errorf("%w: static royalty %s carries data bits", ErrMalformedRoyalty, word.Hex())
	}
	return StaticRoyalty(addr, micros), nil
}

func UnpackRoyalties(words []common.Hash) ([]Royalty, error) {
	out := make([]Royalty, 0, len(words))
	for _, w := range words {
		r, err := UnpackRoyalty(w)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func PackRoyalties(royalties ...Royalty) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(royalties))
	for _, r := range royalties {
		w, err := r.Pack()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
