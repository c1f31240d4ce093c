package model

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	out, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return out
}

func newAccount(balance, locked string) *Account {
	return &Account{
		MemberID: 1,
		Currency: "btccny",
		Balance:  d(balance),
		Locked:   d(locked),
	}
}

func TestPlusFunds(t *testing.T) {
	acc := newAccount("0", "0")
	require.NoError(t, acc.PlusFunds(d("100"), decimal.Zero))
	assert.True(t, acc.Balance.Equal(d("100")))
	assert.True(t, acc.Amount().Equal(d("100")))
}

func TestPlusFundsRejectsBadInput(t *testing.T) {
	acc := newAccount("10", "0")

	err := acc.PlusFunds(d("0"), decimal.Zero)
	assert.True(t, errors.Is(err, ErrAccount))

	err = acc.PlusFunds(d("-5"), decimal.Zero)
	assert.True(t, errors.Is(err, ErrAccount))

	// fee above amount
	err = acc.PlusFunds(d("5"), d("6"))
	assert.True(t, errors.Is(err, ErrAccount))

	// failure leaves state untouched
	assert.True(t, acc.Balance.Equal(d("10")))
	assert.True(t, acc.Locked.IsZero())
}

func TestSubFunds(t *testing.T) {
	acc := newAccount("100", "0")
	require.NoError(t, acc.SubFunds(d("30")))
	assert.True(t, acc.Balance.Equal(d("70")))

	err := acc.SubFunds(d("71"))
	assert.True(t, errors.Is(err, ErrAccount))
	assert.True(t, acc.Balance.Equal(d("70")))
}

func TestLockAndUnlockFunds(t *testing.T) {
	acc := newAccount("100", "0")
	require.NoError(t, acc.LockFunds(d("40")))
	assert.True(t, acc.Balance.Equal(d("60")))
	assert.True(t, acc.Locked.Equal(d("40")))

	err := acc.LockFunds(d("61"))
	assert.True(t, errors.Is(err, ErrAccount))

	require.NoError(t, acc.UnlockFunds(d("15")))
	assert.True(t, acc.Balance.Equal(d("75")))
	assert.True(t, acc.Locked.Equal(d("25")))

	err = acc.UnlockFunds(d("26"))
	assert.True(t, errors.Is(err, ErrAccount))
}

func TestUnlockAndSubFunds(t *testing.T) {
	acc := newAccount("100", "0")
	require.NoError(t, acc.LockFunds(d("40")))

	// release a 40 hold, spend 10 of it
	require.NoError(t, acc.UnlockAndSubFunds(d("10"), d("40")))
	assert.True(t, acc.Balance.Equal(d("90")))
	assert.True(t, acc.Locked.IsZero())
}

func TestUnlockAndSubFundsRejectsBadLocked(t *testing.T) {
	acc := newAccount("60", "40")

	// amount above the released hold
	err := acc.UnlockAndSubFunds(d("50"), d("40"))
	assert.True(t, errors.Is(err, ErrAccount))
	assert.False(t, errors.Is(err, ErrLocked))

	// hold larger than what the account actually holds
	err = acc.UnlockAndSubFunds(d("10"), d("41"))
	assert.True(t, errors.Is(err, ErrLocked))
	assert.True(t, errors.Is(err, ErrAccount))

	err = acc.UnlockAndSubFunds(d("0"), d("0"))
	assert.True(t, errors.Is(err, ErrAccount))

	assert.True(t, acc.Balance.Equal(d("60")))
	assert.True(t, acc.Locked.Equal(d("40")))
}

func TestFundOperationsKeepNonNegativeInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	acc := newAccount("0", "0")
	for i := 0; i < 500; i++ {
		amount := decimal.NewFromInt(rng.Int63n(100) + 1)
		switch rng.Intn(5) {
		case 0:
			_ = acc.PlusFunds(amount, decimal.Zero)
		case 1:
			_ = acc.SubFunds(amount)
		case 2:
			_ = acc.LockFunds(amount)
		case 3:
			_ = acc.UnlockFunds(amount)
		case 4:
			_ = acc.UnlockAndSubFunds(amount, amount.Add(decimal.NewFromInt(rng.Int63n(10))))
		}
		require.False(t, acc.Balance.IsNegative(), "balance went negative at step %d", i)
		require.False(t, acc.Locked.IsNegative(), "locked went negative at step %d", i)
	}
}

func TestComputeLockedAndBalance(t *testing.T) {
	cases := []struct {
		fun     Fun
		amount  string
		locked  string
		dLocked string
		dBal    string
	}{
		{FunSubFunds, "10", "0", "0", "-10"},
		{FunPlusFunds, "10", "0", "0", "10"},
		{FunLockFunds, "10", "0", "10", "-10"},
		{FunUnlockFunds, "10", "0", "-10", "10"},
		{FunUnlockAndSubFunds, "10", "40", "-40", "30"},
	}
	for _, tc := range cases {
		dLocked, dBal, err := ComputeLockedAndBalance(tc.fun, d(tc.amount), d(tc.locked))
		require.NoError(t, err, string(tc.fun))
		assert.True(t, dLocked.Equal(d(tc.dLocked)), "%s locked delta", tc.fun)
		assert.True(t, dBal.Equal(d(tc.dBal)), "%s balance delta", tc.fun)
	}
}

func TestComputeLockedAndBalanceUnknownFun(t *testing.T) {
	_, _, err := ComputeLockedAndBalance(Fun("gen_address"), d("1"), decimal.Zero)
	assert.True(t, errors.Is(err, ErrAccount))
}

func TestErrorFamily(t *testing.T) {
	assert.True(t, errors.Is(ErrLocked, ErrAccount))
	assert.True(t, errors.Is(ErrBalance, ErrAccount))
}
