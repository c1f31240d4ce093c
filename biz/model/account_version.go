package model

import "github.com/shopspring/decimal"

// AccountVersion is one immutable audit-log entry. A row is appended in the
// same transaction as every successful fund operation and never updated or
// deleted; insertion order (the id sequence) is the causal order.
//
// Amount records the account's total funds right after the operation.
// Locked and Balance record the signed deltas the operation applied.
type AccountVersion struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	AccountID      int64           `gorm:"column:account_id;index" json:"account_id"`
	MemberID       int64           `gorm:"column:member_id;index" json:"member_id"`
	Currency       Currency        `gorm:"column:currency" json:"currency"`
	Fun            Fun             `gorm:"column:fun" json:"fun"`
	Fee            decimal.Decimal `gorm:"column:fee;type:numeric(32,16);not null" json:"fee"`
	Reason         Reason          `gorm:"column:reason" json:"reason"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(32,16);not null" json:"amount"`
	Locked         decimal.Decimal `gorm:"column:locked;type:numeric(32,16);not null" json:"locked"`
	Balance        decimal.Decimal `gorm:"column:balance;type:numeric(32,16);not null" json:"balance"`
	ModifiableType RefKind         `gorm:"column:modifiable_type" json:"modifiable_type"`
	ModifiableID   int64           `gorm:"column:modifiable_id" json:"modifiable_id"`
	CreatedAt      int64           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AccountVersion) TableName() string {
	return "account_versions"
}

// Merge is the entry's net delta to the account amount.
func (v *AccountVersion) Merge() decimal.Decimal {
	return v.Locked.Add(v.Balance)
}

// ExamineVersions replays an account's version log and reports whether the
// live amount is fully explained by it. Pure detection, no repair.
//
// Each entry's Amount is the running post-operation total, so the first
// entry's own delta must equal its recorded amount (the log starts from a
// zero account), and every later entry must extend the running total by
// exactly its delta.
func ExamineVersions(acc *Account, versions []AccountVersion) bool {
	if len(versions) == 0 {
		return acc.Amount().IsZero() && acc.Locked.IsZero()
	}

	first := versions[0]
	if !first.Merge().Equal(first.Amount) {
		return false
	}
	expect := first.Amount
	for _, v := range versions[1:] {
		expect = expect.Add(v.Merge())
		if !expect.Equal(v.Amount) {
			return false
		}
	}

	return expect.Equal(acc.Amount())
}
