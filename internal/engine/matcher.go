package engine

import (
	"context"
	"math/big"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// authorize returns the author of an order: the recovered signer, or for
// SignatureNone the claimed account, provided it approved contentHash.
func (e *Engine) authorize(contentHash common.Hash, signature []byte, kind model.SignatureKind) (common.Address, error) {
	if kind == model.SignatureUnspecified {
		return common.Address{}, apperrors.NewInvalidRequest("signatureKind is required")
	}
	if kind == model.SignatureNone {
		account, err := signer.ClaimedAccount(signature)
		if err != nil {
			return common.Address{}, apperrors.New(apperrors.ErrAuthFailed, "invalid approval claim", err)
		}
		if !e.ledger.IsApproved(account, contentHash) {
			return common.Address{}, apperrors.Newf(apperrors.ErrAuthFailed, "%s has not approved order %s", account.Hex(), contentHash.Hex())
		}
		return account, nil
	}
	account, err := signer.Recover(e.domainSeparator, contentHash, signature, kind)
	if err != nil {
		return common.Address{}, apperrors.New(apperrors.ErrAuthFailed, "signature recovery failed", err)
	}
	return account, nil
}

func validateOrders(agreement *model.OrderAgreement, bid *model.Bid, ask *model.Ask) error {
	if agreement == nil || bid == nil || ask == nil {
		return apperrors.NewInvalidRequest("agreement, bid and ask are required")
	}
	if !isUint256(agreement.Price) {
		return apperrors.NewInvalidRequest("price must be a uint256")
	}
	if !isUint256(bid.Nonce) || !isUint256(ask.Nonce) {
		return apperrors.NewInvalidRequest("nonce must be a uint256")
	}
	if !isUint256(ask.TokenID) {
		return apperrors.NewInvalidRequest("ask token id must be a uint256")
	}
	if bid.TokenID != nil && !isUint256(bid.TokenID) {
		return apperrors.NewInvalidRequest("bid token id must be a uint256")
	}
	for _, ts := range []uint64{bid.Created, bid.Deadline, ask.Created, ask.Deadline} {
		if ts > maxTimestamp {
			return apperrors.NewInvalidRequest("timestamps must fit in uint40")
		}
	}
	return nil
}

func isUint256(n *big.Int) bool {
	return n != nil && n.Sign() >= 0 && n.Cmp(math.MaxBig256) <= 0
}

// checkFresh rejects expired orders and orders created at or before the
// author's cancel-before watermark.
func (e *Engine) checkFresh(side string, account common.Address, created, deadline uint64) error {
	if now := e.now(); now > deadline {
		return apperrors.Newf(apperrors.ErrStale, "%s expired at %d", side, deadline)
	}
	if wm := e.ledger.Watermark(account); created <= wm {
		return apperrors.Newf(apperrors.ErrStale, "%s created at %d was cancelled by watermark %d", side, created, wm)
	}
	return nil
}

// match checks that bid and ask describe the same trade.
func (e *Engine) match(ctx context.Context, agreement *model.OrderAgreement, bid *model.Bid, ask *model.Ask, bidder, asker common.Address) error {
	agreementHash := signer.HashAgreement(agreement)
	if bid.AgreementHash != agreementHash {
		return apperrors.Newf(apperrors.ErrAgreementMismatch, "bid references agreement %s, supplied agreement hashes to %s", bid.AgreementHash.Hex(), agreementHash.Hex())
	}
	if ask.AgreementHash != agreementHash {
		return apperrors.Newf(apperrors.ErrAgreementMismatch, "ask references agreement %s, supplied agreement hashes to %s", ask.AgreementHash.Hex(), agreementHash.Hex())
	}

	if err := e.checkFresh("bid", bidder, bid.Created, bid.Deadline); err != nil {
		return err
	}
	if err := e.checkFresh("ask", asker, ask.Created, ask.Deadline); err != nil {
		return err
	}

	if ask.AuthorizedBidder != (common.Address{}) && ask.AuthorizedBidder != bidder {
		return apperrors.Newf(apperrors.ErrTermMismatch, "ask is reserved for %s", ask.AuthorizedBidder.Hex())
	}

	if bid.IsDirect() {
		if len(bid.Traits) != 0 {
			return apperrors.NewInvalidRequest("direct bid must not carry traits")
		}
		if bid.TokenID == nil || bid.TokenID.Cmp(ask.TokenID) != 0 {
			return apperrors.Newf(apperrors.ErrTermMismatch, "bid is for token %v, ask offers %v", bid.TokenID, ask.TokenID)
		}
		return nil
	}
	return e.checkTraits(ctx, agreement.TokenAddress, ask.TokenID, bid)
}

func (e *Engine) checkTraits(ctx context.Context, collection common.Address, tokenID *big.Int, bid *model.Bid) error {
	oracle, err := e.traits.TraitOracle(bid.TraitOracle)
	if err != nil {
		return apperrors.New(apperrors.ErrTraitMismatch, "trait oracle unavailable", err)
	}
	for i, trait := range bid.Traits {
		ok, err := oracle.HasTrait(ctx, collection, tokenID, trait)
		if err != nil {
			return apperrors.New(apperrors.ErrUpstream, "trait oracle query failed", err)
		}
		if !ok {
			return apperrors.Newf(apperrors.ErrTraitMismatch, "token %s lacks trait %d (%x)", tokenID, i, []byte(trait))
		}
	}
	return nil
}
