package model

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Fund operation kinds. These are the only kinds the version delta table
// understands; anything else is rejected.
type Fun string

const (
	FunUnlockFunds       Fun = "unlock_funds"
	FunLockFunds         Fun = "lock_funds"
	FunPlusFunds         Fun = "plus_funds"
	FunSubFunds          Fun = "sub_funds"
	FunUnlockAndSubFunds Fun = "unlock_and_sub_funds"
)

// Reason codes recorded on version entries.
type Reason string

const (
	ReasonFix            Reason = "fix"
	ReasonUnknown        Reason = "unknown"
	ReasonStrikeAdd      Reason = "strike_add"
	ReasonStrikeSub      Reason = "strike_sub"
	ReasonStrikeFee      Reason = "strike_fee"
	ReasonStrikeUnlock   Reason = "strike_unlock"
	ReasonOrderCancel    Reason = "order_cancel"
	ReasonOrderSubmit    Reason = "order_submit"
	ReasonWithdrawLock   Reason = "withdraw_lock"
	ReasonWithdrawUnlock Reason = "withdraw_unlock"
	ReasonDeposit        Reason = "deposit"
	ReasonWithdraw       Reason = "withdraw"
)

// RefKind names the business object a version entry originates from.
type RefKind string

const (
	RefOrder    RefKind = "order"
	RefTrade    RefKind = "trade"
	RefDeposit  RefKind = "deposit"
	RefWithdraw RefKind = "withdraw"
)

// Ref is a tagged reference to the originating business object.
type Ref struct {
	Kind RefKind
	ID   int64
}

// Account tracks one member's funds in one currency. Balance is spendable,
// Locked is held against open orders/withdrawals; both stay non-negative.
// Mutations go through the fund operation methods only.
type Account struct {
	ID       int64           `gorm:"primaryKey" json:"id"`
	MemberID int64           `gorm:"column:member_id;uniqueIndex:idx_member_currency" json:"member_id"`
	Currency Currency        `gorm:"column:currency;uniqueIndex:idx_member_currency" json:"currency"`
	Balance  decimal.Decimal `gorm:"column:balance;type:numeric(32,16);not null" json:"balance"`
	Locked   decimal.Decimal `gorm:"column:locked;type:numeric(32,16);not null" json:"locked"`
}

func (Account) TableName() string {
	return "accounts"
}

// Amount is the account's total funds, spendable plus locked.
func (a *Account) Amount() decimal.Decimal {
	return a.Balance.Add(a.Locked)
}

// PlusFunds credits spendable funds.
func (a *Account) PlusFunds(amount, fee decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) || fee.GreaterThan(amount) {
		return errors.Wrapf(ErrAccount, "plus_funds amount=%s fee=%s", amount, fee)
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// SubFunds debits spendable funds.
func (a *Account) SubFunds(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(a.Balance) {
		return errors.Wrapf(ErrAccount, "sub_funds amount=%s balance=%s", amount, a.Balance)
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// LockFunds moves spendable funds into the locked hold.
func (a *Account) LockFunds(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(a.Balance) {
		return errors.Wrapf(ErrAccount, "lock_funds amount=%s balance=%s", amount, a.Balance)
	}
	a.Balance = a.Balance.Sub(amount)
	a.Locked = a.Locked.Add(amount)
	return nil
}

// UnlockFunds releases held funds back to spendable.
func (a *Account) UnlockFunds(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(a.Locked) {
		return errors.Wrapf(ErrAccount, "unlock_funds amount=%s locked=%s", amount, a.Locked)
	}
	a.Balance = a.Balance.Add(amount)
	a.Locked = a.Locked.Sub(amount)
	return nil
}

// UnlockAndSubFunds settles an order in one step: release the held amount
// and charge the executed portion. amount is what gets spent out of the
// released hold, locked is the size of the hold being released.
func (a *Account) UnlockAndSubFunds(amount, locked decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(locked) {
		return errors.Wrapf(ErrAccount, "unlock_and_sub_funds amount=%s locked=%s", amount, locked)
	}
	if locked.LessThanOrEqual(decimal.Zero) || locked.GreaterThan(a.Locked) {
		return errors.Wrapf(ErrLocked, "unlock_and_sub_funds locked=%s held=%s", locked, a.Locked)
	}
	a.Balance = a.Balance.Add(locked.Sub(amount))
	a.Locked = a.Locked.Sub(locked)
	return nil
}

// ComputeLockedAndBalance is the version delta table: for a fund operation it
// returns the signed deltas applied to locked and balance. The locked
// argument only matters for unlock_and_sub_funds.
func ComputeLockedAndBalance(fun Fun, amount, locked decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	switch fun {
	case FunSubFunds:
		return decimal.Zero, decimal.Zero.Sub(amount), nil
	case FunPlusFunds:
		return decimal.Zero, amount, nil
	case FunLockFunds:
		return amount, decimal.Zero.Sub(amount), nil
	case FunUnlockFunds:
		return decimal.Zero.Sub(amount), amount, nil
	case FunUnlockAndSubFunds:
		return decimal.Zero.Sub(locked), locked.Sub(amount), nil
	default:
		return decimal.Zero, decimal.Zero, errors.Wrapf(ErrAccount, "unknown fund operation %q", fun)
	}
}
