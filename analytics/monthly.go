package analytics

import (
	"time"

	"moneytrack/models"

	"github.com/shopspring/decimal"
)

// MonthLabelLayout 月份标签格式，例如 Jan 2024
const MonthLabelLayout = "Jan 2006"

// MonthEntry 某个自然月的收支
type MonthEntry struct {
	Label   string  `json:"label"`
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

type monthKey struct {
	year  int
	month time.Month
}

// MonthlySeries 以 now 所在月份结尾、连续 months 个自然月的收支序列，按时间升序
// 没有记录的月份输出 0；months 小于 1 时按 1 处理
func MonthlySeries(txs []models.Transaction, now time.Time, months int) []MonthEntry {
	if months < 1 {
		months = 1
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)

	keys := make([]monthKey, months)
	income := make(map[monthKey]decimal.Decimal, months)
	expense := make(map[monthKey]decimal.Decimal, months)
	for i := 0; i < months; i++ {
		m := first.AddDate(0, i, 0)
		k := monthKey{m.Year(), m.Month()}
		keys[i] = k
		income[k] = decimal.Zero
		expense[k] = decimal.Zero
	}

	for _, tx := range txs {
		k := monthKey{tx.Date.Year(), tx.Date.Month()}
		switch tx.Type {
		case models.TypeIncome:
			if v, ok := income[k]; ok {
				income[k] = v.Add(decimal.NewFromFloat(tx.Amount))
			}
		case models.TypeExpense:
			if v, ok := expense[k]; ok {
				expense[k] = v.Add(decimal.NewFromFloat(tx.Amount))
			}
		}
	}

	out := make([]MonthEntry, 0, months)
	for _, k := range keys {
		in := income[k].InexactFloat64()
		ex := expense[k].InexactFloat64()
		out = append(out, MonthEntry{
			Label:   time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC).Format(MonthLabelLayout),
			Year:    k.year,
			Month:   int(k.month),
			Income:  in,
			Expense: ex,
			Net:     in - ex,
		})
	}
	return out
}
