package pg

import (
	"context"

	"cex-ledger/biz/model"
)

// OrderRepo reads the resting order set the matching engine maintains.
type OrderRepo struct{}

func NewOrderRepo() *OrderRepo {
	return &OrderRepo{}
}

// ActiveOrders returns open orders for one side of a market in matching
// priority: asks cheapest first, bids highest first, ties by earlier id.
func (r *OrderRepo) ActiveOrders(ctx context.Context, currency model.Currency, side model.OrderSide) ([]model.Order, error) {
	order := "price asc, id asc"
	if side == model.SideBid {
		order = "price desc, id asc"
	}
	var orders []model.Order
	err := GormDB.WithContext(ctx).
		Where("currency = ? AND side = ? AND state = ?", currency, side, model.OrderWait).
		Order(order).
		Find(&orders).Error
	return orders, err
}

func CreateOrder(order *model.Order) error {
	return GormDB.Create(order).Error
}

func UpdateOrderState(orderID int64, state model.OrderState) error {
	return GormDB.Model(&model.Order{}).Where("id = ?", orderID).Update("state", state).Error
}
