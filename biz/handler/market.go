package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// GetTicker returns the market's 24h summary facet.
func GetTicker(ctx context.Context, c *app.RequestContext) {
	g, ok := marketFor(c.Query("market"))
	if !ok {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "unknown market"})
		return
	}
	ticker, err := g.Ticker(ctx)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"market": g.Currency(),
		"ticker": ticker,
	})
}

// GetDepth returns the aggregated ask and bid levels.
func GetDepth(ctx context.Context, c *app.RequestContext) {
	g, ok := marketFor(c.Query("market"))
	if !ok {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "unknown market"})
		return
	}
	asks, err := g.Asks(ctx)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	bids, err := g.Bids(ctx)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"market": g.Currency(),
		"asks":   asks,
		"bids":   bids,
	})
}

// GetTrades returns the recent trade list, or the trades after ?since for
// incremental polling.
func GetTrades(ctx context.Context, c *app.RequestContext) {
	g, ok := marketFor(c.Query("market"))
	if !ok {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "unknown market"})
		return
	}
	sinceStr := c.Query("since")
	if sinceStr != "" {
		since, err := strconv.ParseInt(sinceStr, 10, 64)
		if err != nil || since < 0 {
			c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "invalid since"})
			return
		}
		trades, err := g.SinceTrades(ctx, since)
		if err != nil {
			c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
			return
		}
		c.JSON(consts.StatusOK, map[string]interface{}{"market": g.Currency(), "trades": trades})
		return
	}
	trades, err := g.Trades(ctx)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"market": g.Currency(), "trades": trades})
}

// GetMarketData returns the 12h chart buckets.
func GetMarketData(ctx context.Context, c *app.RequestContext) {
	g, ok := marketFor(c.Query("market"))
	if !ok {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "unknown market"})
		return
	}
	data, err := g.MarketData(ctx)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"market": g.Currency(), "data": data})
}
