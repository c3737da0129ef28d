package analytics

import "github.com/shopspring/decimal"

// BudgetLevel 预算使用程度
type BudgetLevel string

const (
	BudgetOK      BudgetLevel = "ok"
	BudgetWarning BudgetLevel = "warning"
	BudgetOver    BudgetLevel = "over"
)

// BudgetStatus 预算使用情况
type BudgetStatus struct {
	Budget     float64     `json:"budget"`
	Spent      float64     `json:"spent"`
	Remaining  float64     `json:"remaining"`  // 超支时为负数
	Percentage float64     `json:"percentage"` // 最高 100
	Level      BudgetLevel `json:"level"`
}

// Budget 计算预算使用情况，预算不大于 0 时百分比为 0
func Budget(budget, spent float64) BudgetStatus {
	st := BudgetStatus{
		Budget:    budget,
		Spent:     spent,
		Remaining: decimal.NewFromFloat(budget).Sub(decimal.NewFromFloat(spent)).InexactFloat64(),
	}
	if budget > 0 {
		st.Percentage = percentOf(decimal.NewFromFloat(spent), decimal.NewFromFloat(budget))
		if st.Percentage > 100 {
			st.Percentage = 100
		}
	}
	switch {
	case st.Percentage <= 50:
		st.Level = BudgetOK
	case st.Percentage <= 80:
		st.Level = BudgetWarning
	default:
		st.Level = BudgetOver
	}
	return st
}

// UsedPercent 未截断的预算使用百分比
func UsedPercent(budget, spent float64) float64 {
	if budget <= 0 {
		return 0
	}
	return percentOf(decimal.NewFromFloat(spent), decimal.NewFromFloat(budget))
}
