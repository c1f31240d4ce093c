package service

import (
	"testing"

	"cex-ledger/biz/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDepthAggregatesAndOrdersAsks(t *testing.T) {
	orders := []model.Order{
		{ID: 1, Side: model.SideAsk, Price: d("101"), Volume: d("1")},
		{ID: 2, Side: model.SideAsk, Price: d("100"), Volume: d("2")},
		{ID: 3, Side: model.SideAsk, Price: d("100"), Volume: d("0.5")},
	}
	levels := BuildDepth(orders, model.SideAsk)
	require.Len(t, levels, 2)
	assert.Equal(t, PriceLevel{"100", "2.5"}, levels[0], "cheapest ask first, volume aggregated")
	assert.Equal(t, PriceLevel{"101", "1"}, levels[1])
}

func TestBuildDepthOrdersBidsDescending(t *testing.T) {
	orders := []model.Order{
		{ID: 1, Side: model.SideBid, Price: d("97"), Volume: d("1")},
		{ID: 2, Side: model.SideBid, Price: d("99"), Volume: d("1")},
		{ID: 3, Side: model.SideBid, Price: d("98"), Volume: d("4")},
	}
	levels := BuildDepth(orders, model.SideBid)
	require.Len(t, levels, 3)
	assert.Equal(t, "99", levels[0][0], "highest bid first")
	assert.Equal(t, "98", levels[1][0])
	assert.Equal(t, "97", levels[2][0])
}

func TestBuildDepthEmptyBook(t *testing.T) {
	assert.Empty(t, BuildDepth(nil, model.SideAsk))
}
