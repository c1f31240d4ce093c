package service

import (
	"context"
	"time"

	"cex-ledger/biz/model"
	"cex-ledger/conf"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// StartSnapshotRefreshTask periodically recomputes every configured market's
// snapshot facets and pushes the result. The consul lock keeps a single node
// doing the refresh when several ledger instances run.
func StartSnapshotRefreshTask(consulClient *api.Client, markets map[model.Currency]*MarketService) {
	interval := time.Duration(conf.GetConf().Market.RefreshSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			<-ticker.C
			lock, err := acquireConsulLock(consulClient, "market_snapshot_refresh_lock")
			if err != nil {
				hlog.Warnf("snapshot refresh: consul lock failed: %v", err)
				continue
			}
			if lock == nil {
				continue
			}
			RefreshSnapshots(context.Background(), markets)
			_ = lock.Unlock()
		}
	}()
}

// acquireConsulLock takes the distributed lock, or returns nil when another
// node holds it.
func acquireConsulLock(client *api.Client, key string) (*api.Lock, error) {
	lock, err := client.LockOpts(&api.LockOptions{
		Key:          key,
		LockTryOnce:  true,
		LockWaitTime: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	stopCh := make(chan struct{})
	leaderCh, err := lock.Lock(stopCh)
	if err != nil || leaderCh == nil {
		return nil, nil
	}
	return lock, nil
}

// RefreshSnapshots forces recomputation of all facets for every market and
// triggers the snapshot push. Also the entry point for event-driven refresh.
func RefreshSnapshots(ctx context.Context, markets map[model.Currency]*MarketService) {
	start := time.Now()
	for currency, g := range markets {
		if _, err := g.UpdateAsks(ctx); err != nil {
			hlog.Warnf("refresh %s asks: %v", currency, err)
			continue
		}
		if _, err := g.UpdateBids(ctx); err != nil {
			hlog.Warnf("refresh %s bids: %v", currency, err)
			continue
		}
		if _, err := g.UpdateTicker(ctx); err != nil {
			hlog.Warnf("refresh %s ticker: %v", currency, err)
			continue
		}
		if _, err := g.UpdateTrades(ctx); err != nil {
			hlog.Warnf("refresh %s trades: %v", currency, err)
			continue
		}
		g.Trigger(ctx)
	}
	zap.L().Info("market snapshots refreshed",
		zap.Int("markets", len(markets)),
		zap.Duration("took", time.Since(start)))
}
