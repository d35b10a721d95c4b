package repository

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TradeRecord is the trades table row. Amounts are stored as decimal
// strings in NUMERIC(78,0) columns so full uint256 values survive.
type TradeRecord struct {
	TradeID      string                      `gorm:"primaryKey;size:66"`
	Buyer        string                      `gorm:"size:42;index"`
	Seller       string                      `gorm:"size:42;index"`
	BidNonce     string                      `gorm:"type:numeric(78,0)"`
	AskNonce     string                      `gorm:"type:numeric(78,0)"`
	Currency     string                      `gorm:"size:42"`
	TokenAddress string                      `gorm:"size:42;index:idx_trades_token"`
	TokenID      string                      `gorm:"type:numeric(78,0);index:idx_trades_token"`
	Price        string                      `gorm:"type:numeric(78,0)"`
	Proceeds     string                      `gorm:"type:numeric(78,0)"`
	Cost         string                      `gorm:"type:numeric(78,0)"`
	Unwrapped    bool
	Royalties    []model.RoyaltyPaymentEvent `gorm:"serializer:json"`
	SettledAt    time.Time                   `gorm:"index"`
}

func (TradeRecord) TableName() string {
	return "trades"
}

type PostgresTradeRepo struct {
	db *gorm.DB
}

func NewPostgresTradeRepo(db *gorm.DB) (*PostgresTradeRepo, error) {
	if err := db.AutoMigrate(&TradeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate trades: %w", err)
	}
	return &PostgresTradeRepo{db: db}, nil
}

func (r *PostgresTradeRepo) Insert(ctx context.Context, trade *model.Trade) error {
	rec := toTradeRecord(trade)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec).Error
}

func (r *PostgresTradeRepo) List(ctx context.Context, account *common.Address, limit int) ([]*model.Trade, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("settled_at DESC").Limit(limit)
	if account != nil {
		addr := strings.ToLower(account.Hex())
		q = q.Where("buyer = ? OR seller = ?", addr, addr)
	}
	var recs []TradeRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Trade, 0, len(recs))
	for i := range recs {
		t, err := recs[i].toTrade()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func toTradeRecord(t *model.Trade) *TradeRecord {
	return &TradeRecord{
		TradeID:      t.TradeID.Hex(),
		Buyer:        strings.ToLower(t.Buyer.Hex()),
		Seller:       strings.ToLower(t.Seller.Hex()),
		BidNonce:     bigString(t.BidNonce),
		AskNonce:     bigString(t.AskNonce),
		Currency:     strings.ToLower(t.Currency.Hex()),
		TokenAddress: strings.ToLower(t.TokenAddress.Hex()),
		TokenID:      bigString(t.TokenID),
		Price:        bigString(t.Price),
		Proceeds:     bigString(t.Proceeds),
		Cost:         bigString(t.Cost),
		Unwrapped:    t.Unwrapped,
		Royalties:    t.Royalties,
		SettledAt:    t.SettledAt,
	}
}

func (r *TradeRecord) toTrade() (*model.Trade, error) {
	t := &model.Trade{
		TradeID:      common.HexToHash(r.TradeID),
		Buyer:        common.HexToAddress(r.Buyer),
		Seller:       common.HexToAddress(r.Seller),
		Currency:     common.HexToAddress(r.Currency),
		TokenAddress: common.HexToAddress(r.TokenAddress),
		Unwrapped:    r.Unwrapped,
		Royalties:    r.Royalties,
		SettledAt:    r.SettledAt.UTC(),
	}
	fields := []struct {
		dst **big.Int
		src string
	}{
		{&t.BidNonce, r.BidNonce},
		{&t.AskNonce, r.AskNonce},
		{&t.TokenID, r.TokenID},
		{&t.Price, r.Price},
		{&t.Proceeds, r.Proceeds},
		{&t.Cost, r.Cost},
	}
	for _, f := range fields {
		n, ok := new(big.Int).SetString(f.src, 10)
		if !ok {
			return nil, fmt.Errorf("trade %s: corrupt amount %q", r.TradeID, f.src)
		}
		*f.dst = n
	}
	return t, nil
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
