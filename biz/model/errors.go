package model

import "github.com/pkg/errors"

// Ledger invariant violations are one error family: ErrLocked and ErrBalance
// both satisfy errors.Is(err, ErrAccount). Infrastructure failures (pg, redis,
// kafka) are never part of this family, so callers can tell a broken business
// rule from a broken dependency.
var (
	ErrAccount = errors.New("account operation violates ledger invariant")
	ErrLocked  = errors.Wrap(ErrAccount, "locked funds")
	ErrBalance = errors.Wrap(ErrAccount, "balance")
)
