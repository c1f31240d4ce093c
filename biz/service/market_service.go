package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cex-ledger/biz/model"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// TradeLimit caps the cached trade list and since-id pages.
const TradeLimit = 80

// CacheStore is the fast key-value store backing the snapshot facets.
// Read returns (nil, nil) on a miss.
type CacheStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, val []byte) error
}

// OrderSource supplies the active order set per market side.
type OrderSource interface {
	ActiveOrders(ctx context.Context, currency model.Currency, side model.OrderSide) ([]model.Order, error)
}

// TradeSource supplies trade reads; this core never mutates trades.
type TradeSource interface {
	Recent(ctx context.Context, currency model.Currency, limit int) ([]model.Trade, error)
	Since(ctx context.Context, currency model.Currency, sinceID int64, limit int) ([]model.Trade, error)
	Last(ctx context.Context, currency model.Currency) (*model.Trade, error)
	H24(ctx context.Context, currency model.Currency) (low, high, volume decimal.Decimal, err error)
	Window(ctx context.Context, currency model.Currency, start, end time.Time) ([]model.Trade, error)
}

// Ticker is the 24h market summary facet.
type Ticker struct {
	At     int64  `json:"at"`
	Low    string `json:"low"`
	High   string `json:"high"`
	Last   string `json:"last"`
	Volume string `json:"volume"`
	Buy    string `json:"buy"`
	Sell   string `json:"sell"`
}

// TradeInfo is the display form of one trade.
type TradeInfo struct {
	AskMemberSN string `json:"ask_member_sn"`
	BidMemberSN string `json:"bid_member_sn"`
	Date        int64  `json:"date"`
	Price       string `json:"price"`
	Amount      string `json:"amount"`
	TID         int64  `json:"tid"`
	Type        string `json:"type"`
}

// MarketService maintains the per-currency snapshot facets: lazy populate on
// read, explicit overwrite on the event path, push notification after a
// refresh. Facet reads may race a refresh and see either value.
type MarketService struct {
	currency model.Currency
	cache    CacheStore
	orders   OrderSource
	trades   TradeSource
	pusher   Pusher
	now      func() time.Time
}

func NewMarketService(currency model.Currency, cache CacheStore, orders OrderSource, trades TradeSource, pusher Pusher) *MarketService {
	return &MarketService{
		currency: currency,
		cache:    cache,
		orders:   orders,
		trades:   trades,
		pusher:   pusher,
		now:      time.Now,
	}
}

func (g *MarketService) Currency() model.Currency {
	return g.currency
}

// Channel names the market's push channel.
func (g *MarketService) Channel() string {
	return fmt.Sprintf("market-%s-global", g.currency)
}

func (g *MarketService) key(facet string) string {
	return fmt.Sprintf("%s-%s", g.currency, facet)
}

// Ticker reads the cached 24h summary, computing it on a miss.
func (g *MarketService) Ticker(ctx context.Context) (*Ticker, error) {
	raw, err := g.cache.Read(ctx, g.key("ticker"))
	if err != nil {
		return nil, err
	}
	if raw != nil {
		var t Ticker
		if err := json.Unmarshal(raw, &t); err == nil {
			return &t, nil
		}
	}
	return g.UpdateTicker(ctx)
}

// UpdateTicker recomputes the ticker and overwrites the cache entry.
func (g *MarketService) UpdateTicker(ctx context.Context) (*Ticker, error) {
	low, high, volume, err := g.trades.H24(ctx, g.currency)
	if err != nil {
		return nil, errors.Wrap(err, "ticker h24")
	}
	last, err := g.trades.Last(ctx, g.currency)
	if err != nil {
		return nil, errors.Wrap(err, "ticker last trade")
	}
	lastPrice := "0"
	if last != nil {
		lastPrice = last.Price.String()
	}
	bids, err := g.Bids(ctx)
	if err != nil {
		return nil, err
	}
	asks, err := g.Asks(ctx)
	if err != nil {
		return nil, err
	}
	buy, sell := "0", "0"
	if len(bids) > 0 {
		buy = bids[0][0]
	}
	if len(asks) > 0 {
		sell = asks[0][0]
	}

	t := &Ticker{
		At:     g.now().Unix(),
		Low:    low.String(),
		High:   high.String(),
		Last:   lastPrice,
		Volume: volume.String(),
		Buy:    buy,
		Sell:   sell,
	}
	if err := g.writeFacet(ctx, "ticker", t); err != nil {
		return nil, err
	}
	return t, nil
}

// Asks reads the cached ask levels, computing them on a miss.
func (g *MarketService) Asks(ctx context.Context) ([]PriceLevel, error) {
	return g.readDepth(ctx, "asks", model.SideAsk)
}

// Bids reads the cached bid levels, computing them on a miss.
func (g *MarketService) Bids(ctx context.Context) ([]PriceLevel, error) {
	return g.readDepth(ctx, "bids", model.SideBid)
}

func (g *MarketService) readDepth(ctx context.Context, facet string, side model.OrderSide) ([]PriceLevel, error) {
	raw, err := g.cache.Read(ctx, g.key(facet))
	if err != nil {
		return nil, err
	}
	if raw != nil {
		var levels []PriceLevel
		if err := json.Unmarshal(raw, &levels); err == nil {
			return levels, nil
		}
	}
	return g.updateDepth(ctx, facet, side)
}

// UpdateAsks recomputes the ask levels and overwrites the cache entry.
func (g *MarketService) UpdateAsks(ctx context.Context) ([]PriceLevel, error) {
	return g.updateDepth(ctx, "asks", model.SideAsk)
}

// UpdateBids recomputes the bid levels and overwrites the cache entry.
func (g *MarketService) UpdateBids(ctx context.Context) ([]PriceLevel, error) {
	return g.updateDepth(ctx, "bids", model.SideBid)
}

func (g *MarketService) updateDepth(ctx context.Context, facet string, side model.OrderSide) ([]PriceLevel, error) {
	orders, err := g.orders.ActiveOrders(ctx, g.currency, side)
	if err != nil {
		return nil, errors.Wrapf(err, "active %s", facet)
	}
	levels := BuildDepth(orders, side)
	if err := g.writeFacet(ctx, facet, levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// Trades reads the cached recent trade list, computing it on a miss.
func (g *MarketService) Trades(ctx context.Context) ([]TradeInfo, error) {
	raw, err := g.cache.Read(ctx, g.key("trades"))
	if err != nil {
		return nil, err
	}
	if raw != nil {
		var infos []TradeInfo
		if err := json.Unmarshal(raw, &infos); err == nil {
			return infos, nil
		}
	}
	return g.UpdateTrades(ctx)
}

// UpdateTrades recomputes the recent trade list and overwrites the cache.
func (g *MarketService) UpdateTrades(ctx context.Context) ([]TradeInfo, error) {
	trades, err := g.trades.Recent(ctx, g.currency, TradeLimit)
	if err != nil {
		return nil, errors.Wrap(err, "recent trades")
	}
	infos := make([]TradeInfo, 0, len(trades))
	for i := range trades {
		infos = append(infos, g.formatTrade(&trades[i]))
	}
	if err := g.writeFacet(ctx, "trades", infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// SinceTrades bypasses the cache: trades with id > sinceID, ascending,
// capped. Used for incremental polling.
func (g *MarketService) SinceTrades(ctx context.Context, sinceID int64) ([]TradeInfo, error) {
	trades, err := g.trades.Since(ctx, g.currency, sinceID, TradeLimit)
	if err != nil {
		return nil, errors.Wrap(err, "since trades")
	}
	infos := make([]TradeInfo, 0, len(trades))
	for i := range trades {
		infos = append(infos, g.formatTrade(&trades[i]))
	}
	return infos, nil
}

// MarketData buckets the trailing 12h of trades into 15-minute intervals:
// closing price, summed volume, latest timestamp per bucket. Cached under a
// per-minute key so repeated chart loads within a minute hit the cache.
func (g *MarketService) MarketData(ctx context.Context) ([]TradeInfo, error) {
	now := g.now()
	key := fmt.Sprintf("%s-market-data-%s", g.currency, now.Format("2006-01-02 15:04"))
	raw, err := g.cache.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		var infos []TradeInfo
		if err := json.Unmarshal(raw, &infos); err == nil {
			return infos, nil
		}
	}

	trades, err := g.trades.Window(ctx, g.currency, now.Add(-12*time.Hour), now)
	if err != nil {
		return nil, errors.Wrap(err, "market data window")
	}
	infos := bucketTrades(trades, 15*time.Minute)
	if err := g.writeCache(ctx, key, infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// bucketTrades folds id-ascending trades into fixed intervals, keeping the
// last price and id, summing volume and taking the latest timestamp.
func bucketTrades(trades []model.Trade, interval time.Duration) []TradeInfo {
	type bucket struct {
		last   *model.Trade
		volume decimal.Decimal
		date   int64
	}
	secs := int64(interval / time.Second)
	buckets := make(map[int64]*bucket)
	for i := range trades {
		t := &trades[i]
		slot := t.CreatedAt / secs
		b, ok := buckets[slot]
		if !ok {
			b = &bucket{}
			buckets[slot] = b
		}
		b.last = t
		b.volume = b.volume.Add(t.Volume)
		if t.CreatedAt > b.date {
			b.date = t.CreatedAt
		}
	}

	out := make([]TradeInfo, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, TradeInfo{
			AskMemberSN: b.last.AskMemberSN,
			BidMemberSN: b.last.BidMemberSN,
			Date:        b.date,
			Price:       b.last.Price.String(),
			Amount:      b.volume.String(),
			TID:         b.last.ID,
			Type:        b.last.Type(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (g *MarketService) formatTrade(t *model.Trade) TradeInfo {
	return TradeInfo{
		AskMemberSN: t.AskMemberSN,
		BidMemberSN: t.BidMemberSN,
		Date:        t.CreatedAt,
		Price:       t.Price.String(),
		Amount:      t.Volume.String(),
		TID:         t.ID,
		Type:        t.Type(),
	}
}

// Trigger pushes the full snapshot to the market channel. Best-effort; a
// failed push leaves the refreshed cache intact.
func (g *MarketService) Trigger(ctx context.Context) {
	ticker, err := g.Ticker(ctx)
	if err != nil {
		hlog.Warnf("market %s trigger: ticker: %v", g.currency, err)
		return
	}
	asks, err := g.Asks(ctx)
	if err != nil {
		hlog.Warnf("market %s trigger: asks: %v", g.currency, err)
		return
	}
	bids, err := g.Bids(ctx)
	if err != nil {
		hlog.Warnf("market %s trigger: bids: %v", g.currency, err)
		return
	}
	data := map[string]interface{}{"ticker": ticker, "asks": asks, "bids": bids}
	if err := g.pusher.Publish(ctx, g.Channel(), "update", data); err != nil {
		hlog.Warnf("market %s trigger: publish: %v", g.currency, err)
	}
}

// TriggerTrade pushes a single trade tick immediately, decoupled from the
// full snapshot refresh.
func (g *MarketService) TriggerTrade(ctx context.Context, t *model.Trade) {
	data := map[string]interface{}{"trades": []TradeInfo{g.formatTrade(t)}}
	if err := g.pusher.Publish(ctx, g.Channel(), "trades", data); err != nil {
		hlog.Warnf("market %s trigger trade %d: %v", g.currency, t.ID, err)
	}
}

func (g *MarketService) writeFacet(ctx context.Context, facet string, v interface{}) error {
	return g.writeCache(ctx, g.key(facet), v)
}

func (g *MarketService) writeCache(ctx context.Context, key string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}
	return g.cache.Write(ctx, key, body)
}
