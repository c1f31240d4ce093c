package service

import (
	"context"
	"fmt"

	"cex-ledger/biz/dal/pg"
	"cex-ledger/biz/model"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FundOptions carries the optional attributes recorded on a version entry.
type FundOptions struct {
	Fee    decimal.Decimal
	Reason model.Reason
	Ref    *model.Ref
}

// AccountService is the account ledger: every fund operation runs as one
// transaction of row-locked mutation plus version append, followed by a
// post-commit best-effort push of the new state.
type AccountService struct {
	db     *gorm.DB
	pusher Pusher
}

func NewAccountService(db *gorm.DB, pusher Pusher) *AccountService {
	return &AccountService{db: db, pusher: pusher}
}

func (s *AccountService) PlusFunds(ctx context.Context, memberID int64, currency model.Currency, amount decimal.Decimal, opts FundOptions) (*model.Account, error) {
	return s.apply(ctx, memberID, currency, model.FunPlusFunds, amount, decimal.Zero, opts, func(acc *model.Account) error {
		return acc.PlusFunds(amount, opts.Fee)
	})
}

func (s *AccountService) SubFunds(ctx context.Context, memberID int64, currency model.Currency, amount decimal.Decimal, opts FundOptions) (*model.Account, error) {
	return s.apply(ctx, memberID, currency, model.FunSubFunds, amount, decimal.Zero, opts, func(acc *model.Account) error {
		return acc.SubFunds(amount)
	})
}

func (s *AccountService) LockFunds(ctx context.Context, memberID int64, currency model.Currency, amount decimal.Decimal, opts FundOptions) (*model.Account, error) {
	return s.apply(ctx, memberID, currency, model.FunLockFunds, amount, decimal.Zero, opts, func(acc *model.Account) error {
		return acc.LockFunds(amount)
	})
}

func (s *AccountService) UnlockFunds(ctx context.Context, memberID int64, currency model.Currency, amount decimal.Decimal, opts FundOptions) (*model.Account, error) {
	return s.apply(ctx, memberID, currency, model.FunUnlockFunds, amount, decimal.Zero, opts, func(acc *model.Account) error {
		return acc.UnlockFunds(amount)
	})
}

// UnlockAndSubFunds releases a hold of size locked and spends amount out of
// it, crediting the difference back to the spendable balance.
func (s *AccountService) UnlockAndSubFunds(ctx context.Context, memberID int64, currency model.Currency, amount, locked decimal.Decimal, opts FundOptions) (*model.Account, error) {
	return s.apply(ctx, memberID, currency, model.FunUnlockAndSubFunds, amount, locked, opts, func(acc *model.Account) error {
		return acc.UnlockAndSubFunds(amount, locked)
	})
}

// apply is the explicit mutate -> log -> notify sequence every fund
// operation shares. The row lock serializes concurrent operations per
// account; the version append commits atomically with the mutation, so no
// committed state is ever missing its audit entry.
func (s *AccountService) apply(ctx context.Context, memberID int64, currency model.Currency, fun model.Fun, amount, locked decimal.Decimal, opts FundOptions, mutate func(*model.Account) error) (*model.Account, error) {
	dLocked, dBalance, err := model.ComputeLockedAndBalance(fun, amount, locked)
	if err != nil {
		return nil, err
	}

	var acc *model.Account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		acc, txErr = pg.GetAccountForUpdate(tx, memberID, currency)
		if txErr != nil {
			return errors.Wrap(txErr, "load account")
		}
		if txErr = mutate(acc); txErr != nil {
			return txErr
		}
		if txErr = pg.SaveAccount(tx, acc); txErr != nil {
			return errors.Wrap(txErr, "save account")
		}

		reason := opts.Reason
		if reason == "" {
			reason = model.ReasonUnknown
		}
		version := &model.AccountVersion{
			AccountID: acc.ID,
			MemberID:  acc.MemberID,
			Currency:  acc.Currency,
			Fun:       fun,
			Fee:       opts.Fee,
			Reason:    reason,
			Amount:    acc.Amount(),
			Locked:    dLocked,
			Balance:   dBalance,
		}
		if opts.Ref != nil {
			version.ModifiableType = opts.Ref.Kind
			version.ModifiableID = opts.Ref.ID
		}
		if txErr = pg.AppendVersion(tx, version); txErr != nil {
			return errors.Wrap(txErr, "append version")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, acc)
	return acc, nil
}

// notify pushes the account's new state to its owner. Fire-and-forget: a
// failed push never rolls back the committed mutation.
func (s *AccountService) notify(ctx context.Context, acc *model.Account) {
	payload := map[string]interface{}{
		"balance":  acc.Balance,
		"locked":   acc.Locked,
		"currency": acc.Currency,
	}
	if err := s.pusher.Publish(ctx, AccountChannel(acc.MemberID), "account", payload); err != nil {
		zap.L().Warn("account push failed",
			zap.Int64("member_id", acc.MemberID),
			zap.String("currency", acc.Currency.String()),
			zap.Error(err))
	}
}

// AccountChannel names the per-member push channel.
func AccountChannel(memberID int64) string {
	return fmt.Sprintf("account-%d", memberID)
}

// CreateAccount opens a zero account for a (member, currency) pair.
func (s *AccountService) CreateAccount(ctx context.Context, memberID int64, currency model.Currency) (*model.Account, error) {
	acc := &model.Account{
		MemberID: memberID,
		Currency: currency,
		Balance:  decimal.Zero,
		Locked:   decimal.Zero,
	}
	if err := pg.CreateAccount(s.db.WithContext(ctx), acc); err != nil {
		return nil, errors.Wrap(err, "create account")
	}
	return acc, nil
}

func (s *AccountService) GetAccount(ctx context.Context, memberID int64, currency model.Currency) (*model.Account, error) {
	return pg.GetAccount(s.db.WithContext(ctx), memberID, currency)
}

func (s *AccountService) ListAccounts(ctx context.Context, memberID int64) ([]model.Account, error) {
	return pg.ListAccounts(s.db.WithContext(ctx), memberID)
}

// Examine replays the account's version log and reports whether the live
// amount is fully explained by it. Diagnostic only, never mutates.
func (s *AccountService) Examine(ctx context.Context, memberID int64, currency model.Currency) (bool, error) {
	db := s.db.WithContext(ctx)
	acc, err := pg.GetAccount(db, memberID, currency)
	if err != nil {
		return false, errors.Wrap(err, "load account")
	}
	versions, err := pg.ListVersions(db, acc.ID)
	if err != nil {
		return false, errors.Wrap(err, "load versions")
	}
	return model.ExamineVersions(acc, versions), nil
}

// LockedSum totals locked funds across all accounts in a currency.
func (s *AccountService) LockedSum(ctx context.Context, currency model.Currency) (decimal.Decimal, error) {
	return pg.LockedSum(ctx, currency)
}

// BalanceSum totals spendable funds across all accounts in a currency.
func (s *AccountService) BalanceSum(ctx context.Context, currency model.Currency) (decimal.Decimal, error) {
	return pg.BalanceSum(ctx, currency)
}
