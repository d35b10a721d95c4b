package engine

import (
	"context"
	"math/big"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var microsPerUnit = uint256.NewInt(model.MicrosPerUnit)

type plannedLeg struct {
	payer     model.Payer
	recipient common.Address
	micros    uint32
	amount    *uint256.Int
}

// royaltyPlan is every royalty leg of a fill, resolved and priced before
// any currency moves.
type royaltyPlan struct {
	legs     []plannedLeg
	proceeds *uint256.Int
	cost     *uint256.Int
}

// planRoyalties resolves required, ask-extra, protocol and bid-extra
// royalties in that order. Seller legs are subtracted from proceeds and an
// underflow is an overcommitment; buyer legs are added to cost.
func (e *Engine) planRoyalties(ctx context.Context, agreement *model.OrderAgreement, bid *model.Bid, ask *model.Ask) (*royaltyPlan, error) {
	price, overflow := uint256.FromBig(agreement.Price)
	if overflow {
		return nil, apperrors.NewInvalidRequest("price overflows uint256")
	}
	plan := &royaltyPlan{
		proceeds: price.Clone(),
		cost:     price.Clone(),
	}
	collection, tokenID := agreement.TokenAddress, ask.TokenID

	seller := func(words []common.Hash) error {
		legs, err := e.resolveRoyalties(ctx, collection, tokenID, words)
		if err != nil {
			return err
		}
		for _, leg := range legs {
			if err := plan.deduct(price, leg); err != nil {
				return err
			}
		}
		return nil
	}
	if err := seller(agreement.RequiredRoyalties); err != nil {
		return nil, err
	}
	if err := seller(ask.ExtraRoyalties); err != nil {
		return nil, err
	}
	if e.royaltyRate > 0 && e.treasury != (common.Address{}) {
		if err := plan.deduct(price, model.RoyaltyLeg{Recipient: e.treasury, Micros: e.royaltyRate}); err != nil {
			return nil, err
		}
	}

	buyerLegs, err := e.resolveRoyalties(ctx, collection, tokenID, bid.ExtraRoyalties)
	if err != nil {
		return nil, err
	}
	for _, leg := range buyerLegs {
		if err := plan.add(price, leg); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func (p *royaltyPlan) deduct(price *uint256.Int, leg model.RoyaltyLeg) error {
	amount, err := legAmount(price, leg.Micros)
	if err != nil {
		return err
	}
	if _, underflow := p.proceeds.SubOverflow(p.proceeds, amount); underflow {
		return apperrors.Newf(apperrors.ErrRoyaltyOvercommit, "seller royalties exceed price %s", price.Dec())
	}
	p.legs = append(p.legs, plannedLeg{payer: model.PayerSeller, recipient: leg.Recipient, micros: leg.Micros, amount: amount})
	return nil
}

func (p *royaltyPlan) add(price *uint256.Int, leg model.RoyaltyLeg) error {
	amount, err := legAmount(price, leg.Micros)
	if err != nil {
		return err
	}
	if _, overflow := p.cost.AddOverflow(p.cost, amount); overflow {
		return apperrors.Newf(apperrors.ErrRoyaltyOvercommit, "buyer cost overflows")
	}
	p.legs = append(p.legs, plannedLeg{payer: model.PayerBuyer, recipient: leg.Recipient, micros: leg.Micros, amount: amount})
	return nil
}

// legAmount is micros * price / 1_000_000, truncated.
func legAmount(price *uint256.Int, micros uint32) (*uint256.Int, error) {
	amount, overflow := new(uint256.Int).MulDivOverflow(price, uint256.NewInt(uint64(micros)), microsPerUnit)
	if overflow {
		return nil, apperrors.Newf(apperrors.ErrRoyaltyOvercommit, "royalty of %d micros overflows", micros)
	}
	return amount, nil
}

// resolveRoyalties decodes packed entries and expands dynamic ones through
// their oracle. A dynamic entry whose legs sum past its cap is fatal.
func (e *Engine) resolveRoyalties(ctx context.Context, collection common.Address, tokenID *big.Int, words []common.Hash) ([]model.RoyaltyLeg, error) {
	royalties, err := model.UnpackRoyalties(words)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "malformed royalty entry", err)
	}
	var legs []model.RoyaltyLeg
	for _, r := range royalties {
		if r.Kind == model.RoyaltyStatic {
			legs = append(legs, model.RoyaltyLeg{Recipient: r.Recipient, Micros: r.Micros})
			continue
		}
		oracle, err := e.royalties.RoyaltyOracle(r.Oracle)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrUpstream, "royalty oracle unavailable", err)
		}
		resolved, err := oracle.Royalties(ctx, collection, new(big.Int).Set(tokenID), r.Micros, r.Data)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrUpstream, "royalty oracle query failed", err)
		}
		var total uint64
		for _, leg := range resolved {
			total += uint64(leg.Micros)
		}
		if total > uint64(r.Micros) {
			return nil, apperrors.Newf(apperrors.ErrRoyaltyOvercommit, "royalty oracle %s returned %d micros, cap is %d", r.Oracle.Hex(), total, r.Micros)
		}
		legs = append(legs, resolved...)
	}
	return legs, nil
}

// payRoyalties moves every planned leg from the buyer to its recipient.
func (e *Engine) payRoyalties(ctx context.Context, tradeID common.Hash, currency Currency, bidder common.Address, plan *royaltyPlan) ([]model.RoyaltyPaymentEvent, error) {
	payments := make([]model.RoyaltyPaymentEvent, 0, len(plan.legs))
	for _, leg := range plan.legs {
		amount := leg.amount.ToBig()
		if err := currency.TransferFrom(ctx, e.address, bidder, leg.recipient, amount); err != nil {
			return nil, apperrors.New(apperrors.ErrTransfer, "royalty payment failed", err)
		}
		ev := model.RoyaltyPaymentEvent{
			TradeID:   tradeID,
			Payer:     leg.payer,
			Recipient: leg.recipient,
			Micros:    leg.micros,
			Amount:    amount,
		}
		e.emit(ev)
		payments = append(payments, ev)
	}
	return payments, nil
}
