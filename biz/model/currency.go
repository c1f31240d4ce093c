package model

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Currency is a market currency code. The valid set is closed and comes from
// configuration; anything outside it is rejected at parse time.
type Currency string

var (
	currencyMu sync.RWMutex
	currencies map[Currency]struct{}
)

var ErrUnknownCurrency = errors.New("unknown currency")

// SetCurrencies installs the supported currency set. Called once at startup
// from the market config; tests may call it again to swap the set.
func SetCurrencies(codes []string) {
	set := make(map[Currency]struct{}, len(codes))
	for _, c := range codes {
		set[Currency(strings.ToLower(c))] = struct{}{}
	}
	currencyMu.Lock()
	currencies = set
	currencyMu.Unlock()
}

// ParseCurrency validates a currency code against the configured set.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToLower(code))
	currencyMu.RLock()
	_, ok := currencies[c]
	currencyMu.RUnlock()
	if !ok {
		return "", errors.Wrap(ErrUnknownCurrency, code)
	}
	return c, nil
}

// Currencies returns the configured currency codes.
func Currencies() []Currency {
	currencyMu.RLock()
	defer currencyMu.RUnlock()
	out := make([]Currency, 0, len(currencies))
	for c := range currencies {
		out = append(out, c)
	}
	return out
}

func (c Currency) String() string {
	return string(c)
}
