package pg

import (
	"context"

	"cex-ledger/biz/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetAccountForUpdate loads the account row under FOR UPDATE inside tx, so
// concurrent fund operations on the same account serialize at the row lock.
func GetAccountForUpdate(tx *gorm.DB, memberID int64, currency model.Currency) (*model.Account, error) {
	var acc model.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ? AND currency = ?", memberID, currency).
		First(&acc).Error
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func GetAccount(db *gorm.DB, memberID int64, currency model.Currency) (*model.Account, error) {
	var acc model.Account
	err := db.Where("member_id = ? AND currency = ?", memberID, currency).First(&acc).Error
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func ListAccounts(db *gorm.DB, memberID int64) ([]model.Account, error) {
	var accounts []model.Account
	err := db.Where("member_id = ?", memberID).Order("currency").Find(&accounts).Error
	return accounts, err
}

func CreateAccount(db *gorm.DB, acc *model.Account) error {
	return db.Create(acc).Error
}

func SaveAccount(tx *gorm.DB, acc *model.Account) error {
	return tx.Save(acc).Error
}

func AppendVersion(tx *gorm.DB, v *model.AccountVersion) error {
	return tx.Create(v).Error
}

// ListVersions returns the account's full version log in creation order.
func ListVersions(db *gorm.DB, accountID int64) ([]model.AccountVersion, error) {
	var versions []model.AccountVersion
	err := db.Where("account_id = ?", accountID).Order("id asc").Find(&versions).Error
	return versions, err
}

// LockedSum totals locked funds across all accounts in a currency, via the
// pgx pool since it is a single aggregate with no row mapping.
func LockedSum(ctx context.Context, currency model.Currency) (decimal.Decimal, error) {
	return sumColumn(ctx, "locked", currency)
}

// BalanceSum totals spendable funds across all accounts in a currency.
func BalanceSum(ctx context.Context, currency model.Currency) (decimal.Decimal, error) {
	return sumColumn(ctx, "balance", currency)
}

func sumColumn(ctx context.Context, column string, currency model.Currency) (decimal.Decimal, error) {
	query := "SELECT COALESCE(SUM(" + column + "), 0)::text FROM accounts WHERE currency = $1"
	var sum string
	if err := GetPool().QueryRow(ctx, query, string(currency)).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(sum)
}
