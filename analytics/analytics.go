// Package analytics 收支记录的聚合计算
//
// 所有函数均为纯函数：只读输入列表，不做任何修改；当前时间通过参数传入。
// 金额累加使用 decimal，避免浮点误差随记录数累积。
package analytics

import (
	"moneytrack/models"

	"github.com/shopspring/decimal"
)

func sum(txs []models.Transaction, keep func(models.Transaction) bool) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if keep == nil || keep(tx) {
			total = total.Add(decimal.NewFromFloat(tx.Amount))
		}
	}
	return total
}

func ofType(t models.TransactionType) func(models.Transaction) bool {
	return func(tx models.Transaction) bool { return tx.Type == t }
}

// TotalIncome 收入总额
func TotalIncome(txs []models.Transaction) float64 {
	return sum(txs, ofType(models.TypeIncome)).InexactFloat64()
}

// TotalExpense 支出总额
func TotalExpense(txs []models.Transaction) float64 {
	return sum(txs, ofType(models.TypeExpense)).InexactFloat64()
}

// Average 全部金额（不分收支）的平均值，空列表为 0
func Average(txs []models.Transaction) float64 {
	if len(txs) == 0 {
		return 0
	}
	return sum(txs, nil).Div(decimal.NewFromInt(int64(len(txs)))).Round(2).InexactFloat64()
}

// SavingsRate 储蓄率 (收入-支出)/收入*100，收入为 0 时返回 0
func SavingsRate(income, expense float64) float64 {
	if income == 0 {
		return 0
	}
	in := decimal.NewFromFloat(income)
	return in.Sub(decimal.NewFromFloat(expense)).Div(in).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}
