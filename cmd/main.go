package main

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"cex-ledger/biz/dal"
	dalkafka "cex-ledger/biz/dal/kafka"
	dalredis "cex-ledger/biz/dal/redis"
	"cex-ledger/biz/dal/pg"
	"cex-ledger/biz/handler"
	"cex-ledger/biz/model"
	"cex-ledger/biz/service"
	"cex-ledger/conf"
	wsserver "cex-ledger/server"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/netpoll"
	"github.com/hertz-contrib/cors"
	"github.com/hertz-contrib/gzip"
	"github.com/hertz-contrib/logger/accesslog"
	"github.com/hertz-contrib/pprof"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	_ = godotenv.Load()
	cfg := conf.GetConf()
	initLogger(cfg.Hertz)

	if cfg.Hertz.NumLoops > 0 {
		if err := netpoll.SetNumLoops(cfg.Hertz.NumLoops); err != nil {
			hlog.Warnf("set netpoll loops: %v", err)
		}
	}

	model.SetCurrencies(cfg.Market.Currencies)
	dal.Init()

	cache := dalredis.NewCache(dalredis.Client)
	pusher := service.NewEventPusher(
		cache,
		dalkafka.GetWriter(cfg.Kafka.Topics["account_events"]),
		dalkafka.GetWriter(cfg.Kafka.Topics["market_events"]),
	)

	accounts := service.NewAccountService(pg.GormDB, pusher)
	orders := pg.NewOrderRepo()
	trades := pg.NewTradeRepo()
	markets := make(map[model.Currency]*service.MarketService)
	for _, currency := range model.Currencies() {
		markets[currency] = service.NewMarketService(currency, cache, orders, trades, pusher)
	}
	handler.Init(accounts, markets)

	if consulHelper, err := service.NewConsulHelperWithAddrs(cfg.Consul.Addresses); err != nil {
		hlog.Warnf("consul unavailable, snapshot refresh task disabled: %v", err)
	} else {
		if err := consulHelper.RegisterLedger(cfg.Consul.NodeID, cfg.Market.Currencies, servicePort(cfg.Hertz.Address)); err != nil {
			hlog.Warnf("consul register: %v", err)
		}
		service.StartSnapshotRefreshTask(consulHelper.Client(), markets)
	}

	h := server.Default(server.WithHostPorts(cfg.Hertz.Address))
	if cfg.Hertz.EnableAccessLog {
		h.Use(accesslog.New())
	}
	if cfg.Hertz.EnableGzip {
		h.Use(gzip.Gzip(gzip.DefaultCompression))
	}
	if cfg.Hertz.EnablePprof {
		pprof.Register(h)
	}
	h.Use(cors.Default())

	api := h.Group("/api/v1")
	api.GET("/accounts", handler.GetAccounts)
	api.GET("/accounts/audit", handler.AuditAccount)
	api.GET("/solvency", handler.GetSolvency)
	api.GET("/ticker", handler.GetTicker)
	api.GET("/depth", handler.GetDepth)
	api.GET("/trades", handler.GetTrades)
	api.GET("/market_data", handler.GetMarketData)

	wsserver.RegisterWS(h)
	wsserver.StartPushSubscriber(context.Background(), cache)

	h.Spin()
}

func servicePort(address string) int {
	if idx := strings.LastIndex(address, ":"); idx >= 0 {
		if p, err := strconv.Atoi(address[idx+1:]); err == nil {
			return p
		}
	}
	return 8080
}

func initLogger(hc conf.Hertz) {
	lj := &lumberjack.Logger{
		Filename:   hc.LogFileName,
		MaxSize:    hc.LogMaxSize,
		MaxBackups: hc.LogMaxBackups,
		MaxAge:     hc.LogMaxAge,
	}
	hlog.SetLevel(conf.LogLevel())
	hlog.SetOutput(io.MultiWriter(os.Stdout, lj))

	level, err := zapcore.ParseLevel(hc.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(lj),
		level,
	)
	zap.ReplaceGlobals(zap.New(core))
}
