package analytics

import (
	"strings"

	"moneytrack/models"
)

// FilterAll 不过滤
const FilterAll = "all"

// Query 历史记录筛选条件，Category 与 Type 为空或 all 时不过滤
type Query struct {
	Text     string
	Category string
	Type     string
}

// Filter 返回同时满足全部条件的记录，保持原顺序
// Text 不区分大小写地匹配描述或类别的子串
func Filter(txs []models.Transaction, q Query) []models.Transaction {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if text != "" &&
			!strings.Contains(strings.ToLower(tx.Description), text) &&
			!strings.Contains(strings.ToLower(tx.Category), text) {
			continue
		}
		if !passThrough(q.Category) && tx.Category != q.Category {
			continue
		}
		if !passThrough(q.Type) && string(tx.Type) != q.Type {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func passThrough(v string) bool {
	return v == "" || v == FilterAll
}
