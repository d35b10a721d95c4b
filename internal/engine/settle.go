package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/pkg/logger"
	"github.com/GoPolymarket/tradegate/internal/signer"
	"github.com/ethereum/go-ethereum/common"
)

// nativeFunding is the value attached to an ETH-funded fill.
type nativeFunding struct {
	sender common.Address
	value  *big.Int
}

// FillOrder settles a bid against an ask, paying with the buyer's wrapped
// currency. Anyone may submit the pair.
func (e *Engine) FillOrder(ctx context.Context, agreement *model.OrderAgreement, bid *model.SignedBid, ask *model.SignedAsk) (*model.Trade, error) {
	return e.fill(ctx, agreement, bid, ask, nil)
}

// FillOrderEth is FillOrder where the bidder attaches value in native
// currency, which is wrapped and credited to them before settlement.
// sender must be the bidder.
func (e *Engine) FillOrderEth(ctx context.Context, sender common.Address, value *big.Int, agreement *model.OrderAgreement, bid *model.SignedBid, ask *model.SignedAsk) (*model.Trade, error) {
	if value == nil || value.Sign() < 0 {
		return nil, apperrors.NewInvalidRequest("value must be non-negative")
	}
	return e.fill(ctx, agreement, bid, ask, &nativeFunding{sender: sender, value: value})
}

func (e *Engine) fill(ctx context.Context, agreement *model.OrderAgreement, signedBid *model.SignedBid, signedAsk *model.SignedAsk, funding *nativeFunding) (*model.Trade, error) {
	if signedBid == nil || signedAsk == nil {
		return nil, apperrors.NewInvalidRequest("bid and ask are required")
	}
	var trade *model.Trade
	err := e.Atomic(ctx, func(ctx context.Context) error {
		var err error
		trade, err = e.settle(ctx, agreement, signedBid, signedAsk, funding)
		return err
	})
	if err != nil {
		logger.Warn("fill rejected",
			"reason", apperrors.TypeOf(err),
			"bid_nonce", signedBid.Bid.Nonce,
			"ask_nonce", signedAsk.Ask.Nonce,
			"depth", e.depth,
			"error", err.Error())
		return nil, err
	}
	logger.Info("fill settled",
		"trade_id", trade.TradeID.Hex(),
		"buyer", trade.Buyer.Hex(),
		"seller", trade.Seller.Hex(),
		"price", trade.Price.String(),
		"depth", e.depth)
	return trade, nil
}

func (e *Engine) settle(ctx context.Context, agreement *model.OrderAgreement, signedBid *model.SignedBid, signedAsk *model.SignedAsk, funding *nativeFunding) (*model.Trade, error) {
	if e.shutdown {
		return nil, apperrors.Newf(apperrors.ErrSystemPanic, "emergency shutdown is active")
	}
	bid, ask := &signedBid.Bid, &signedAsk.Ask
	if err := validateOrders(agreement, bid, ask); err != nil {
		return nil, err
	}

	bidder, err := e.authorize(signer.HashBid(bid), signedBid.Signature, signedBid.SignatureKind)
	if err != nil {
		return nil, err
	}
	asker, err := e.authorize(signer.HashAsk(ask), signedAsk.Signature, signedAsk.SignatureKind)
	if err != nil {
		return nil, err
	}

	currency, err := e.assets.Currency(agreement.CurrencyAddress)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "unsupported currency", err)
	}
	collection, err := e.assets.Collection(agreement.TokenAddress)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "unsupported collection", err)
	}

	if funding != nil {
		if funding.sender != bidder {
			return nil, apperrors.Newf(apperrors.ErrAuthFailed, "only the bidder %s may fund with native currency", bidder.Hex())
		}
		if err := currency.Deposit(ctx, bidder, funding.value); err != nil {
			return nil, apperrors.New(apperrors.ErrTransfer, "wrapping attached value failed", err)
		}
	}

	if err := e.match(ctx, agreement, bid, ask, bidder, asker); err != nil {
		return nil, err
	}

	// Both nonces are consumed before any code outside the engine runs.
	if !e.ledger.ConsumeNonce(bidder, bid.Nonce) {
		return nil, apperrors.Newf(apperrors.ErrStale, "bid nonce %s already used by %s", bid.Nonce, bidder.Hex())
	}
	if !e.ledger.ConsumeNonce(asker, ask.Nonce) {
		return nil, apperrors.Newf(apperrors.ErrStale, "ask nonce %s already used by %s", ask.Nonce, asker.Hex())
	}

	tradeID := signer.TradeID(bidder, bid.Nonce, asker, ask.Nonce)
	plan, err := e.planRoyalties(ctx, agreement, bid, ask)
	if err != nil {
		return nil, err
	}
	payments, err := e.payRoyalties(ctx, tradeID, currency, bidder, plan)
	if err != nil {
		return nil, err
	}

	owner, err := e.checkCustody(ctx, collection, asker, ask.TokenID)
	if err != nil {
		return nil, err
	}
	if err := collection.SafeTransferFrom(ctx, e.address, owner, bidder, ask.TokenID); err != nil {
		return nil, apperrors.New(apperrors.ErrTransfer, "token transfer failed", err)
	}

	proceeds := plan.proceeds.ToBig()
	if err := e.payProceeds(ctx, currency, bidder, asker, proceeds, ask.UnwrapWeth); err != nil {
		return nil, err
	}

	trade := &model.Trade{
		TradeID:      tradeID,
		Buyer:        bidder,
		Seller:       asker,
		BidNonce:     new(big.Int).Set(bid.Nonce),
		AskNonce:     new(big.Int).Set(ask.Nonce),
		Currency:     agreement.CurrencyAddress,
		TokenAddress: agreement.TokenAddress,
		TokenID:      new(big.Int).Set(ask.TokenID),
		Price:        new(big.Int).Set(agreement.Price),
		Proceeds:     proceeds,
		Cost:         plan.cost.ToBig(),
		Unwrapped:    ask.UnwrapWeth,
		Royalties:    payments,
		SettledAt:    time.Unix(int64(e.now()), 0).UTC(),
	}
	e.emit(model.TradeEvent{
		TradeID:  tradeID,
		Buyer:    bidder,
		Seller:   asker,
		Currency: agreement.CurrencyAddress,
		Price:    trade.Price,
		Proceeds: trade.Proceeds,
		Cost:     trade.Cost,
	})
	e.emit(model.TokenTradedEvent{
		TradeID:      tradeID,
		TokenAddress: agreement.TokenAddress,
		TokenID:      trade.TokenID,
	})
	e.recordTrade(trade)
	return trade, nil
}

// checkCustody returns the token's owner if asker is the owner, the token's
// approved address, or an operator of the owner, checked in that order.
func (e *Engine) checkCustody(ctx context.Context, collection Collection, asker common.Address, tokenID *big.Int) (common.Address, error) {
	owner, err := collection.OwnerOf(ctx, tokenID)
	if err != nil {
		return common.Address{}, apperrors.New(apperrors.ErrCustody, "token has no owner", err)
	}
	if owner == asker {
		return owner, nil
	}
	approved, err := collection.GetApproved(ctx, tokenID)
	if err != nil {
		return common.Address{}, apperrors.New(apperrors.ErrCustody, "approval lookup failed", err)
	}
	if approved == asker {
		return owner, nil
	}
	operator, err := collection.IsApprovedForAll(ctx, owner, asker)
	if err != nil {
		return common.Address{}, apperrors.New(apperrors.ErrCustody, "operator lookup failed", err)
	}
	if operator {
		return owner, nil
	}
	return common.Address{}, apperrors.Newf(apperrors.ErrCustody, "%s neither owns nor may transfer token %s", asker.Hex(), tokenID)
}

// payProceeds sends the seller's net proceeds, unwrapping through the
// engine's own account when requested.
func (e *Engine) payProceeds(ctx context.Context, currency Currency, bidder, asker common.Address, proceeds *big.Int, unwrap bool) error {
	if !unwrap {
		if err := currency.TransferFrom(ctx, e.address, bidder, asker, proceeds); err != nil {
			return apperrors.New(apperrors.ErrTransfer, "proceeds transfer failed", err)
		}
		return nil
	}
	if err := currency.TransferFrom(ctx, e.address, bidder, e.address, proceeds); err != nil {
		return apperrors.New(apperrors.ErrTransfer, "proceeds transfer failed", err)
	}
	if err := currency.Withdraw(ctx, e.address, proceeds); err != nil {
		return apperrors.New(apperrors.ErrTransfer, "unwrap failed", err)
	}
	if err := currency.SendNative(ctx, e.address, asker, proceeds); err != nil {
		return apperrors.New(apperrors.ErrTransfer, "native proceeds transfer failed", err)
	}
	return nil
}
