package oracle

import (
	"context"
	"errors"
	"math/big"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/ethereum/go-ethereum/common"
)

// Share is one recipient's weight in a StaticRoyaltyOracle split.
type Share struct {
	Recipient common.Address `json:"recipient" mapstructure:"recipient"`
	Weight    uint32         `json:"weight" mapstructure:"weight"`
}

// StaticRoyaltyOracle splits the whole cap among fixed recipients in
// proportion to their weights, rounding each share down.
type StaticRoyaltyOracle struct {
	shares []Share
	total  uint64
}

func NewStaticRoyaltyOracle(shares ...Share) (*StaticRoyaltyOracle, error) {
	var total uint64
	for _, s := range shares {
		total += uint64(s.Weight)
	}
	if total == 0 {
		return nil, errors.New("royalty split needs a positive total weight")
	}
	return &StaticRoyaltyOracle{shares: shares, total: total}, nil
}

func (o *StaticRoyaltyOracle) Royalties(ctx context.Context, collection common.Address, tokenID *big.Int, microsCap uint32, data uint64) ([]model.RoyaltyLeg, error) {
	legs := make([]model.RoyaltyLeg, 0, len(o.shares))
	for _, s := range o.shares {
		micros := uint64(microsCap) * uint64(s.Weight) / o.total
		if micros == 0 {
			continue
		}
		legs = append(legs, model.RoyaltyLeg{Recipient: s.Recipient, Micros: uint32(micros)})
	}
	return legs, nil
}
