package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"cex-ledger/biz/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	out, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return out
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes map[string]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte), writes: make(map[string]int)}
}

func (c *fakeCache) Read(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) Write(ctx context.Context, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	c.writes[key]++
	return nil
}

type fakeOrders struct {
	calls  int
	orders map[model.OrderSide][]model.Order
}

func (f *fakeOrders) ActiveOrders(ctx context.Context, currency model.Currency, side model.OrderSide) ([]model.Order, error) {
	f.calls++
	return f.orders[side], nil
}

// fakeTrades serves an id-ascending trade slice the way the repo would.
type fakeTrades struct {
	recentCalls int
	trades      []model.Trade
}

func (f *fakeTrades) Recent(ctx context.Context, currency model.Currency, limit int) ([]model.Trade, error) {
	f.recentCalls++
	var out []model.Trade
	for i := len(f.trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.trades[i])
	}
	return out, nil
}

func (f *fakeTrades) Since(ctx context.Context, currency model.Currency, sinceID int64, limit int) ([]model.Trade, error) {
	var out []model.Trade
	for i := range f.trades {
		if f.trades[i].ID > sinceID {
			out = append(out, f.trades[i])
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTrades) Last(ctx context.Context, currency model.Currency) (*model.Trade, error) {
	if len(f.trades) == 0 {
		return nil, nil
	}
	t := f.trades[len(f.trades)-1]
	return &t, nil
}

func (f *fakeTrades) H24(ctx context.Context, currency model.Currency) (low, high, volume decimal.Decimal, err error) {
	low, high, volume = decimal.Zero, decimal.Zero, decimal.Zero
	cutoff := time.Now().Add(-24 * time.Hour).Unix()
	for i := range f.trades {
		t := &f.trades[i]
		if t.CreatedAt <= cutoff {
			continue
		}
		if low.IsZero() || t.Price.LessThan(low) {
			low = t.Price
		}
		if t.Price.GreaterThan(high) {
			high = t.Price
		}
		volume = volume.Add(t.Volume)
	}
	return
}

func (f *fakeTrades) Window(ctx context.Context, currency model.Currency, start, end time.Time) ([]model.Trade, error) {
	var out []model.Trade
	for i := range f.trades {
		if f.trades[i].CreatedAt >= start.Unix() && f.trades[i].CreatedAt < end.Unix() {
			out = append(out, f.trades[i])
		}
	}
	return out, nil
}

type pushedEvent struct {
	Channel string
	Event   string
	Payload interface{}
}

type fakePusher struct {
	mu     sync.Mutex
	events []pushedEvent
}

func (p *fakePusher) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushedEvent{Channel: channel, Event: event, Payload: payload})
	return nil
}

func newMarket(orders *fakeOrders, trades *fakeTrades) (*MarketService, *fakeCache, *fakePusher) {
	cache := newFakeCache()
	pusher := &fakePusher{}
	g := NewMarketService("btccny", cache, orders, trades, pusher)
	return g, cache, pusher
}

func someOrders() *fakeOrders {
	return &fakeOrders{orders: map[model.OrderSide][]model.Order{
		model.SideAsk: {
			{ID: 1, Side: model.SideAsk, Price: d("101"), Volume: d("1"), State: model.OrderWait},
			{ID: 2, Side: model.SideAsk, Price: d("100"), Volume: d("2"), State: model.OrderWait},
		},
		model.SideBid: {
			{ID: 3, Side: model.SideBid, Price: d("99"), Volume: d("3"), State: model.OrderWait},
			{ID: 4, Side: model.SideBid, Price: d("98"), Volume: d("1"), State: model.OrderWait},
		},
	}}
}

func someTrades(n int) *fakeTrades {
	now := time.Now().Unix()
	f := &fakeTrades{}
	for i := 1; i <= n; i++ {
		f.trades = append(f.trades, model.Trade{
			ID:          int64(i),
			Currency:    "btccny",
			Price:       decimal.NewFromInt(int64(100 + i%5)),
			Volume:      d("0.5"),
			Trend:       i % 2,
			AskMemberSN: "SN-A",
			BidMemberSN: "SN-B",
			CreatedAt:   now - int64(n-i),
		})
	}
	return f
}

func TestAsksPopulateOnMissThenServeFromCache(t *testing.T) {
	orders := someOrders()
	g, cache, _ := newMarket(orders, someTrades(0))
	ctx := context.Background()

	first, err := g.Asks(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, orders.calls, "miss must hit the source")
	require.Len(t, first, 2)
	assert.Equal(t, "100", first[0][0], "best ask first")

	second, err := g.Asks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, orders.calls, "hit must not recompute")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.writes["btccny-asks"])
}

func TestUpdateTickerOverwritesValidCache(t *testing.T) {
	trades := someTrades(3)
	g, cache, _ := newMarket(someOrders(), trades)
	ctx := context.Background()

	stale := &Ticker{At: 1, Last: "1", Low: "1", High: "1", Volume: "1", Buy: "1", Sell: "1"}
	require.NoError(t, g.writeFacet(ctx, "ticker", stale))
	require.Equal(t, 1, cache.writes["btccny-ticker"])

	fresh, err := g.UpdateTicker(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.writes["btccny-ticker"], "update must overwrite")
	assert.NotEqual(t, stale.Last, fresh.Last)

	got, err := g.Ticker(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh.Last, got.Last)
	assert.Equal(t, "99", got.Buy, "best bid")
	assert.Equal(t, "100", got.Sell, "best ask")
}

func TestSinceTradesBypassesCache(t *testing.T) {
	g, cache, _ := newMarket(someOrders(), someTrades(200))
	ctx := context.Background()

	got, err := g.SinceTrades(ctx, 100)
	require.NoError(t, err)
	require.Len(t, got, TradeLimit, "capped at the trade limit")
	assert.Equal(t, int64(101), got[0].TID)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].TID, got[i-1].TID, "ascending by id")
	}
	assert.Empty(t, cache.writes, "since query never touches the cache")
}

func TestTradesCappedAndNewestFirst(t *testing.T) {
	g, _, _ := newMarket(someOrders(), someTrades(200))
	ctx := context.Background()

	got, err := g.Trades(ctx)
	require.NoError(t, err)
	require.Len(t, got, TradeLimit)
	assert.Equal(t, int64(200), got[0].TID)
	assert.Equal(t, "SN-A", got[0].AskMemberSN)
	assert.Equal(t, "buy", got[0].Type, "trend 0 displays as buy")
}

func TestTriggerPublishesSnapshot(t *testing.T) {
	g, _, pusher := newMarket(someOrders(), someTrades(5))
	ctx := context.Background()

	g.Trigger(ctx)

	require.Len(t, pusher.events, 1)
	ev := pusher.events[0]
	assert.Equal(t, "market-btccny-global", ev.Channel)
	assert.Equal(t, "update", ev.Event)
	data, ok := ev.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "ticker")
	assert.Contains(t, data, "asks")
	assert.Contains(t, data, "bids")
}

func TestTriggerTradePublishesSingleTrade(t *testing.T) {
	g, _, pusher := newMarket(someOrders(), someTrades(0))
	ctx := context.Background()

	trade := &model.Trade{ID: 9, Currency: "btccny", Price: d("100"), Volume: d("1"), Trend: 1, CreatedAt: 1700000000}
	g.TriggerTrade(ctx, trade)

	require.Len(t, pusher.events, 1)
	ev := pusher.events[0]
	assert.Equal(t, "market-btccny-global", ev.Channel)
	assert.Equal(t, "trades", ev.Event)
	data := ev.Payload.(map[string]interface{})
	trades := data["trades"].([]TradeInfo)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(9), trades[0].TID)
	assert.Equal(t, "sell", trades[0].Type)
}

func TestMarketDataBucketsWindow(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := &fakeTrades{}
	// two trades inside one 15min bucket, one in the next
	f.trades = []model.Trade{
		{ID: 1, Price: d("100"), Volume: d("1"), CreatedAt: base.Add(-30 * time.Minute).Unix()},
		{ID: 2, Price: d("102"), Volume: d("2"), CreatedAt: base.Add(-29 * time.Minute).Unix()},
		{ID: 3, Price: d("101"), Volume: d("1"), CreatedAt: base.Add(-10 * time.Minute).Unix()},
	}
	g, _, _ := newMarket(someOrders(), f)
	g.now = func() time.Time { return base }
	ctx := context.Background()

	data, err := g.MarketData(ctx)
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, "102", data[0].Price, "bucket closes on its last trade")
	assert.Equal(t, "3", data[0].Amount, "bucket volume is summed")
	assert.Equal(t, "101", data[1].Price)
	assert.Less(t, data[0].Date, data[1].Date)
}
