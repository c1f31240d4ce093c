package service

import (
	"cex-ledger/biz/model"

	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// PriceLevel is one aggregated book level: [price, volume] as strings.
type PriceLevel [2]string

// BuildDepth folds active orders into price levels ordered by matching
// priority: asks cheapest first, bids highest first. Orders arrive already
// time-ordered within a price, so aggregation keeps price-time priority.
func BuildDepth(orders []model.Order, side model.OrderSide) []PriceLevel {
	var cmp skiplist.Comparable
	if side == model.SideBid {
		cmp = priceDescComparator{}
	} else {
		cmp = priceAscComparator{}
	}
	book := skiplist.New(cmp)
	for _, o := range orders {
		if elem := book.Get(o.Price); elem != nil {
			elem.Value = elem.Value.(decimal.Decimal).Add(o.Volume)
			continue
		}
		book.Set(o.Price, o.Volume)
	}

	levels := make([]PriceLevel, 0, book.Len())
	for elem := book.Front(); elem != nil; elem = elem.Next() {
		price := elem.Key().(decimal.Decimal)
		volume := elem.Value.(decimal.Decimal)
		levels = append(levels, PriceLevel{price.String(), volume.String()})
	}
	return levels
}

// skiplist price comparators, decimal-keyed

type priceAscComparator struct{}

func (priceAscComparator) Compare(l, r interface{}) int {
	return l.(decimal.Decimal).Cmp(r.(decimal.Decimal))
}

func (priceAscComparator) CalcScore(key interface{}) float64 {
	f, _ := key.(decimal.Decimal).Float64()
	return f
}

type priceDescComparator struct{}

func (priceDescComparator) Compare(l, r interface{}) int {
	return r.(decimal.Decimal).Cmp(l.(decimal.Decimal))
}

func (priceDescComparator) CalcScore(key interface{}) float64 {
	f, _ := key.(decimal.Decimal).Float64()
	return -f
}
