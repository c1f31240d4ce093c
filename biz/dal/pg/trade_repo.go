package pg

import (
	"context"
	"time"

	"cex-ledger/biz/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeRepo reads the trade stream the matching engine persists.
type TradeRepo struct{}

func NewTradeRepo() *TradeRepo {
	return &TradeRepo{}
}

// Recent returns the newest trades for a market, newest first.
func (r *TradeRepo) Recent(ctx context.Context, currency model.Currency, limit int) ([]model.Trade, error) {
	var trades []model.Trade
	err := GormDB.WithContext(ctx).
		Where("currency = ?", currency).
		Order("id desc").Limit(limit).
		Find(&trades).Error
	return trades, err
}

// Since returns trades with id greater than sinceID, ascending, capped.
func (r *TradeRepo) Since(ctx context.Context, currency model.Currency, sinceID int64, limit int) ([]model.Trade, error) {
	var trades []model.Trade
	err := GormDB.WithContext(ctx).
		Where("currency = ? AND id > ?", currency, sinceID).
		Order("id asc").Limit(limit).
		Find(&trades).Error
	return trades, err
}

// Last returns the most recent trade, or nil when the market has none.
func (r *TradeRepo) Last(ctx context.Context, currency model.Currency) (*model.Trade, error) {
	var trade model.Trade
	err := GormDB.WithContext(ctx).
		Where("currency = ?", currency).
		Order("id desc").First(&trade).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// H24 aggregates the trailing 24h: low/high price and summed volume.
func (r *TradeRepo) H24(ctx context.Context, currency model.Currency) (low, high, volume decimal.Decimal, err error) {
	since := time.Now().Add(-24 * time.Hour).Unix()
	query := `SELECT COALESCE(MIN(price), 0)::text, COALESCE(MAX(price), 0)::text, COALESCE(SUM(volume), 0)::text
		FROM trades WHERE currency = $1 AND created_at > $2`
	var lowS, highS, volS string
	if err = GetPool().QueryRow(ctx, query, string(currency), since).Scan(&lowS, &highS, &volS); err != nil {
		return
	}
	if low, err = decimal.NewFromString(lowS); err != nil {
		return
	}
	if high, err = decimal.NewFromString(highS); err != nil {
		return
	}
	volume, err = decimal.NewFromString(volS)
	return
}

// Window returns trades created in [start, end), ascending by id.
func (r *TradeRepo) Window(ctx context.Context, currency model.Currency, start, end time.Time) ([]model.Trade, error) {
	var trades []model.Trade
	err := GormDB.WithContext(ctx).
		Where("currency = ? AND created_at >= ? AND created_at < ?", currency, start.Unix(), end.Unix()).
		Order("id asc").
		Find(&trades).Error
	return trades, err
}

func CreateTrade(trade *model.Trade) error {
	return GormDB.Create(trade).Error
}
