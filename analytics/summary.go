package analytics

import (
	"time"

	"moneytrack/models"
)

// Summary 汇总指标
type Summary struct {
	TotalIncome        float64 `json:"total_income"`
	TotalExpense       float64 `json:"total_expense"`
	NetBalance         float64 `json:"net_balance"`
	TransactionCount   int     `json:"transaction_count"`
	AverageTransaction float64 `json:"average_transaction"`
	TodayIncome        float64 `json:"today_income"`
	TodayExpense       float64 `json:"today_expense"`
	MonthIncome        float64 `json:"month_income"`
	MonthExpense       float64 `json:"month_expense"`
	MonthSavings       float64 `json:"month_savings"`
	SavingsRate        float64 `json:"savings_rate"` // 本月储蓄率
}

// Summarize 计算汇总指标，今天与本月以 now 的日历日期为准
func Summarize(txs []models.Transaction, now time.Time) Summary {
	isToday := func(tx models.Transaction) bool {
		y, m, d := tx.Date.Date()
		ny, nm, nd := now.Date()
		return y == ny && m == nm && d == nd
	}
	inMonth := func(tx models.Transaction) bool {
		return tx.Date.Year() == now.Year() && tx.Date.Month() == now.Month()
	}
	both := func(a, b func(models.Transaction) bool) func(models.Transaction) bool {
		return func(tx models.Transaction) bool { return a(tx) && b(tx) }
	}

	s := Summary{
		TotalIncome:        TotalIncome(txs),
		TotalExpense:       TotalExpense(txs),
		TransactionCount:   len(txs),
		AverageTransaction: Average(txs),
		TodayIncome:        sum(txs, both(isToday, ofType(models.TypeIncome))).InexactFloat64(),
		TodayExpense:       sum(txs, both(isToday, ofType(models.TypeExpense))).InexactFloat64(),
		MonthIncome:        sum(txs, both(inMonth, ofType(models.TypeIncome))).InexactFloat64(),
		MonthExpense:       sum(txs, both(inMonth, ofType(models.TypeExpense))).InexactFloat64(),
	}
	s.NetBalance = s.TotalIncome - s.TotalExpense
	s.MonthSavings = s.MonthIncome - s.MonthExpense
	s.SavingsRate = SavingsRate(s.MonthIncome, s.MonthExpense)
	return s
}

// Between 日期落在 [from, to] 内的记录（按天，包含两端），零值表示不限
func Between(txs []models.Transaction, from, to time.Time) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		d := models.DayOf(tx.Date)
		if !from.IsZero() && d.Before(models.DayOf(from)) {
			continue
		}
		if !to.IsZero() && d.After(models.DayOf(to)) {
			continue
		}
		out = append(out, tx)
	}
	return out
}
