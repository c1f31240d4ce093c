package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderSide string

const (
	SideAsk OrderSide = "ask"
	SideBid OrderSide = "bid"
)

type OrderState string

const (
	OrderWait   OrderState = "wait"
	OrderDone   OrderState = "done"
	OrderCancel OrderState = "cancel"
)

// Order is a resting order as the matching engine persists it. This core
// only reads orders; the engine owns their lifecycle.
type Order struct {
	ID           int64           `gorm:"primaryKey" json:"id"`
	MemberID     int64           `gorm:"column:member_id;index" json:"member_id"`
	Currency     Currency        `gorm:"column:currency;index" json:"currency"`
	Side         OrderSide       `gorm:"column:side" json:"side"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(32,16);not null" json:"price"`
	Volume       decimal.Decimal `gorm:"column:volume;type:numeric(32,16);not null" json:"volume"`
	OriginVolume decimal.Decimal `gorm:"column:origin_volume;type:numeric(32,16);not null" json:"origin_volume"`
	State        OrderState      `gorm:"column:state;index" json:"state"`
	CreatedAt    int64           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

// Trade is an executed match. Trend 1 means the taker hit the bid (price
// moved down), anything else means it lifted the ask.
type Trade struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	Currency    Currency        `gorm:"column:currency;index" json:"currency"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(32,16);not null" json:"price"`
	Volume      decimal.Decimal `gorm:"column:volume;type:numeric(32,16);not null" json:"volume"`
	Trend       int             `gorm:"column:trend" json:"trend"`
	AskMemberSN string          `gorm:"column:ask_member_sn" json:"ask_member_sn"`
	BidMemberSN string          `gorm:"column:bid_member_sn" json:"bid_member_sn"`
	CreatedAt   int64           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}

// Type maps the trend flag to the display side.
func (t *Trade) Type() string {
	if t.Trend == 1 {
		return "sell"
	}
	return "buy"
}
