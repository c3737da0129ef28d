package analytics

import (
	"sort"

	"moneytrack/models"

	"github.com/shopspring/decimal"
)

// CategoryTotal 某类别的汇总
type CategoryTotal struct {
	Category   string  `json:"category"`
	Total      float64 `json:"total"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"` // 占该收支类型总额的百分比
	Color      string  `json:"color"`
}

// PieSlice 饼图数据
type PieSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// CategoryTotals 按类别汇总某收支类型的金额，t 为空时为支出
// 按类别首次出现的顺序输出（图例顺序），没有记录的类别不输出
func CategoryTotals(txs []models.Transaction, t models.TransactionType) []CategoryTotal {
	if t == "" {
		t = models.TypeExpense
	}

	index := make(map[string]int)
	var order []string
	sums := make([]decimal.Decimal, 0)
	counts := make([]int, 0)
	total := decimal.Zero

	for _, tx := range txs {
		if tx.Type != t {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(order)
			index[tx.Category] = i
			order = append(order, tx.Category)
			sums = append(sums, decimal.Zero)
			counts = append(counts, 0)
		}
		amount := decimal.NewFromFloat(tx.Amount)
		sums[i] = sums[i].Add(amount)
		counts[i]++
		total = total.Add(amount)
	}

	out := make([]CategoryTotal, 0, len(order))
	for i, name := range order {
		out = append(out, CategoryTotal{
			Category:   name,
			Total:      sums[i].InexactFloat64(),
			Count:      counts[i],
			Percentage: percentOf(sums[i], total),
			Color:      models.PaletteColor(i),
		})
	}
	return out
}

// RankCategories 按金额降序排列，金额相同保持首次出现顺序；返回新切片
func RankCategories(totals []CategoryTotal) []CategoryTotal {
	ranked := make([]CategoryTotal, len(totals))
	copy(ranked, totals)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total > ranked[j].Total
	})
	return ranked
}

// PieSlices 转换为饼图数据
func PieSlices(totals []CategoryTotal) []PieSlice {
	slices := make([]PieSlice, 0, len(totals))
	for _, ct := range totals {
		slices = append(slices, PieSlice{Name: ct.Category, Value: ct.Total, Color: ct.Color})
	}
	return slices
}

// DistinctCategories 列表中出现过的类别，按首次出现顺序
func DistinctCategories(txs []models.Transaction) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tx := range txs {
		if _, ok := seen[tx.Category]; ok {
			continue
		}
		seen[tx.Category] = struct{}{}
		out = append(out, tx.Category)
	}
	return out
}
