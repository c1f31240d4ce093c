package handler

import (
	"cex-ledger/biz/model"
	"cex-ledger/biz/service"
)

var (
	accounts *service.AccountService
	markets  map[model.Currency]*service.MarketService
)

// Init wires the handler package to its services. Called once from main.
func Init(accountSvc *service.AccountService, marketSvcs map[model.Currency]*service.MarketService) {
	accounts = accountSvc
	markets = marketSvcs
}

func marketFor(code string) (*service.MarketService, bool) {
	currency, err := model.ParseCurrency(code)
	if err != nil {
		return nil, false
	}
	g, ok := markets[currency]
	return g, ok
}
