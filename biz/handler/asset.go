package handler

import (
	"context"
	"strconv"

	"cex-ledger/biz/model"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

func parseMemberID(c *app.RequestContext) (int64, bool) {
	id, err := strconv.ParseInt(c.Query("member_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "invalid member_id"})
		return 0, false
	}
	return id, true
}

// GetAccounts lists a member's accounts with balance, locked and amount.
func GetAccounts(ctx context.Context, c *app.RequestContext) {
	memberID, ok := parseMemberID(c)
	if !ok {
		return
	}
	accs, err := accounts.ListAccounts(ctx, memberID)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	out := make([]map[string]interface{}, 0, len(accs))
	for i := range accs {
		out = append(out, map[string]interface{}{
			"currency": accs[i].Currency,
			"balance":  accs[i].Balance,
			"locked":   accs[i].Locked,
			"amount":   accs[i].Amount(),
		})
	}
	c.JSON(consts.StatusOK, map[string]interface{}{"accounts": out})
}

// AuditAccount replays an account's version log and reports consistency.
func AuditAccount(ctx context.Context, c *app.RequestContext) {
	memberID, ok := parseMemberID(c)
	if !ok {
		return
	}
	currency, err := model.ParseCurrency(c.Query("currency"))
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "invalid currency"})
		return
	}
	consistent, err := accounts.Examine(ctx, memberID, currency)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"member_id":  memberID,
		"currency":   currency,
		"consistent": consistent,
	})
}

// GetSolvency reports the per-currency locked and balance totals used for
// reserve reporting.
func GetSolvency(ctx context.Context, c *app.RequestContext) {
	currency, err := model.ParseCurrency(c.Query("currency"))
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]interface{}{"error": "invalid currency"})
		return
	}
	lockedSum, err := accounts.LockedSum(ctx, currency)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	balanceSum, err := accounts.BalanceSum(ctx, currency)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, map[string]interface{}{
		"currency":    currency,
		"locked_sum":  lockedSum,
		"balance_sum": balanceSum,
	})
}
