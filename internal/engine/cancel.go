package engine

import (
	"context"
	"math/big"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// CancelNonces consumes each nonce for account. Already-consumed nonces
// are accepted; every nonce gets a cancellation event either way.
func (e *Engine) CancelNonces(ctx context.Context, account common.Address, nonces []*big.Int) error {
	if len(nonces) == 0 {
		return apperrors.NewInvalidRequest("no nonces to cancel")
	}
	for _, n := range nonces {
		if !isUint256(n) {
			return apperrors.NewInvalidRequest("nonce must be a uint256")
		}
	}
	err := e.Atomic(ctx, func(ctx context.Context) error {
		for _, n := range nonces {
			e.ledger.ConsumeNonce(account, n)
			e.emit(model.NonceCancellationEvent{Account: account, Nonce: new(big.Int).Set(n)})
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("nonces cancelled", "account", account.Hex(), "count", len(nonces))
	return nil
}

// CancelBefore invalidates every order account created at or before ts.
// ts must advance the current watermark and must not be in the future.
func (e *Engine) CancelBefore(ctx context.Context, account common.Address, ts uint64) error {
	current := e.ledger.Watermark(account)
	if ts <= current {
		return apperrors.Newf(apperrors.ErrInvalidRequest, "timestamp %d does not advance watermark %d", ts, current)
	}
	if now := e.now(); ts > now {
		return apperrors.Newf(apperrors.ErrInvalidRequest, "timestamp %d is in the future", ts)
	}
	err := e.Atomic(ctx, func(ctx context.Context) error {
		e.ledger.SetWatermark(account, ts)
		e.emit(model.CancelBeforeEvent{Account: account, Timestamp: ts})
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("orders cancelled before", "account", account.Hex(), "timestamp", ts)
	return nil
}

// SetOnChainApproval records (or withdraws) account's endorsement of an
// order content hash, the signature-free authorization path.
func (e *Engine) SetOnChainApproval(ctx context.Context, account common.Address, contentHash common.Hash, approved bool) error {
	return e.Atomic(ctx, func(ctx context.Context) error {
		e.ledger.SetApproved(account, contentHash, approved)
		e.emit(model.ApprovalEvent{Account: account, ContentHash: contentHash, Approved: approved})
		return nil
	})
}

func (e *Engine) NonceUsed(account common.Address, nonce *big.Int) bool {
	return e.ledger.NonceUsed(account, nonce)
}

func (e *Engine) Watermark(account common.Address) uint64 {
	return e.ledger.Watermark(account)
}

func (e *Engine) IsApproved(account common.Address, contentHash common.Hash) bool {
	return e.ledger.IsApproved(account, contentHash)
}
