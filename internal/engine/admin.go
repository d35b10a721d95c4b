package engine

import (
	"context"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// ProtocolRoyalty is the current protocol fee configuration.
type ProtocolRoyalty struct {
	Treasury  common.Address `json:"treasury"`
	Micros    uint32         `json:"micros"`
	CapMicros uint32         `json:"capMicros"`
	Ceiling   uint32         `json:"ceiling"`
}

func (e *Engine) EmergencyShutdown() bool {
	return e.shutdown
}

func (e *Engine) ProtocolRoyalty() ProtocolRoyalty {
	return ProtocolRoyalty{
		Treasury:  e.treasury,
		Micros:    e.royaltyRate,
		CapMicros: e.royaltyCap,
		Ceiling:   MaxProtocolRoyaltyMicros,
	}
}

// SetEmergencyShutdown toggles the lockout that rejects every fill.
// Cancellations keep working.
func (e *Engine) SetEmergencyShutdown(ctx context.Context, enabled bool) error {
	return e.Atomic(ctx, func(ctx context.Context) error {
		e.setBool(&e.shutdown, enabled)
		e.emit(model.EmergencyShutdownEvent{Enabled: enabled})
		return nil
	})
}

func (e *Engine) SetTreasury(ctx context.Context, treasury common.Address) error {
	return e.Atomic(ctx, func(ctx context.Context) error {
		e.setAddress(&e.treasury, treasury)
		e.emit(model.TreasuryEvent{Treasury: treasury})
		return nil
	})
}

// SetProtocolRoyaltyCap bounds the protocol rate. A rate above the new cap
// is lowered to it.
func (e *Engine) SetProtocolRoyaltyCap(ctx context.Context, capMicros uint32) error {
	if capMicros > MaxProtocolRoyaltyMicros {
		return apperrors.Newf(apperrors.ErrInvalidRequest, "cap %d exceeds ceiling %d", capMicros, MaxProtocolRoyaltyMicros)
	}
	return e.Atomic(ctx, func(ctx context.Context) error {
		e.setUint32(&e.royaltyCap, capMicros)
		if e.royaltyRate > capMicros {
			e.setUint32(&e.royaltyRate, capMicros)
		}
		e.emit(model.ProtocolRoyaltyEvent{CapMicros: e.royaltyCap, Micros: e.royaltyRate})
		return nil
	})
}

func (e *Engine) SetProtocolRoyaltyRate(ctx context.Context, micros uint32) error {
	if micros > e.royaltyCap {
		return apperrors.Newf(apperrors.ErrInvalidRequest, "rate %d exceeds cap %d", micros, e.royaltyCap)
	}
	return e.Atomic(ctx, func(ctx context.Context) error {
		e.setUint32(&e.royaltyRate, micros)
		e.emit(model.ProtocolRoyaltyEvent{CapMicros: e.royaltyCap, Micros: micros})
		return nil
	})
}

// logAdminEvents records committed configuration changes.
func logAdminEvents(events []model.Event) {
	for _, ev := range events {
		switch ev := ev.(type) {
		case model.EmergencyShutdownEvent:
			logger.Warn("emergency shutdown updated", "enabled", ev.Enabled)
		case model.TreasuryEvent:
			logger.Info("protocol treasury updated", "treasury", ev.Treasury.Hex())
		case model.ProtocolRoyaltyEvent:
			logger.Info("protocol royalty updated", "cap_micros", ev.CapMicros, "rate_micros", ev.Micros)
		}
	}
}
