package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"moneytrack/models"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// Draft 新建或整体替换一条记录时的输入
type Draft struct {
	Type        models.TransactionType
	Category    string
	Description string
	Amount      float64
	Date        time.Time
}

// Input 表单原始输入，金额与日期尚未解析
type Input struct {
	Type        string `json:"type" example:"expense"`
	Category    string `json:"category" example:"Food"`
	Description string `json:"description" example:"Groceries"`
	Amount      any    `json:"amount" swaggertype:"number" example:"200"`
	Date        string `json:"date" example:"2024-01-10"`
}

// Parse 解析金额与日期；解析失败的字段保持零值并返回对应的字段错误
func (in Input) Parse() (Draft, FieldErrors) {
	d := Draft{
		Type:        models.TransactionType(strings.ToLower(strings.TrimSpace(in.Type))),
		Category:    in.Category,
		Description: in.Description,
	}
	var errs FieldErrors
	if amount, err := ParseAmount(in.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: err.Error()})
	} else {
		d.Amount = amount
	}
	if date, err := ParseDate(in.Date); err != nil {
		errs = append(errs, FieldError{Field: "date", Message: err.Error()})
	} else {
		d.Date = date
	}
	return d, errs
}

// CategorySource 提供每种收支类型允许的类别
type CategorySource interface {
	Names(ctx context.Context, t models.TransactionType) ([]string, error)
}

// StaticCategories 固定的类别集合
type StaticCategories map[models.TransactionType][]string

// Names 实现 CategorySource
func (s StaticCategories) Names(_ context.Context, t models.TransactionType) ([]string, error) {
	return s[t], nil
}

var (
	errInvalidAmount   = errors.New("amount must be a positive number")
	errAmountPrecision = errors.New("amount must have at most 2 decimal places")
	errAmountTooLarge  = errors.New("amount must not exceed 9999999999.99")
	errInvalidDate     = errors.New("date must be in YYYY-MM-DD format")
)

// maxAmount 与 decimal(12,2) 列的上限一致
var maxAmount = decimal.RequireFromString("9999999999.99")

// checkAmount 金额必须为正，最多两位小数且不超过列上限，保证入库后与内存一致
func checkAmount(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return errInvalidAmount
	}
	d := decimal.NewFromFloat(f)
	if !d.Equal(d.Round(2)) {
		return errAmountPrecision
	}
	if d.GreaterThan(maxAmount) {
		return errAmountTooLarge
	}
	return nil
}

// normalizeAmount 处理逗号：带小数点时逗号为千分位；否则逗号后恰好三位数字视为千分位，其余视为小数逗号
func normalizeAmount(s string) (string, bool) {
	if !strings.Contains(s, ",") {
		return s, true
	}
	if strings.Contains(s, ".") {
		// 1,234.50
		return strings.ReplaceAll(s, ",", ""), true
	}
	parts := strings.Split(s, ",")
	if len(parts) == 2 && len(parts[1]) != 3 {
		// 12,50
		return parts[0] + "." + parts[1], true
	}
	// 1,234 与 1,234,567
	for _, g := range parts[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return strings.Join(parts, ""), true
}

// ParseAmount 将表单中的金额转换为正数，支持数字、json.Number 与数字字符串
func ParseAmount(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, errInvalidAmount
		}
		f = parsed
	case string:
		s, ok := normalizeAmount(strings.TrimSpace(x))
		if !ok {
			return 0, errInvalidAmount
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errInvalidAmount
		}
		f = parsed
	default:
		return 0, errInvalidAmount
	}
	if err := checkAmount(f); err != nil {
		return 0, err
	}
	return f, nil
}

var dateLayouts = []string{models.DateLayout, "2006/01/02", time.RFC3339}

// ParseDate 解析交易日期，返回当天零点
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return models.DayOf(t), nil
		}
	}
	return time.Time{}, errInvalidDate
}

// Validate 校验并规范化输入：去除首尾空白、日期截断到天、类别大小写对齐到配置
// 校验失败返回 FieldErrors；类别来源不可用时返回包装后的错误
func Validate(ctx context.Context, d Draft, cats CategorySource) (Draft, error) {
	d.Category = strings.TrimSpace(d.Category)
	d.Description = strings.TrimSpace(d.Description)

	var errs FieldErrors
	if !d.Type.Valid() {
		errs = append(errs, FieldError{Field: "type", Message: "type must be income or expense"})
	}
	if err := checkAmount(d.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: err.Error()})
	}
	if d.Description == "" {
		errs = append(errs, FieldError{Field: "description", Message: "description is required"})
	}
	if d.Date.IsZero() {
		errs = append(errs, FieldError{Field: "date", Message: "date is required"})
	} else {
		d.Date = models.DayOf(d.Date)
	}

	switch {
	case d.Category == "":
		errs = append(errs, FieldError{Field: "category", Message: "category is required"})
	case d.Type.Valid():
		names, err := cats.Names(ctx, d.Type)
		if err != nil {
			return d, fmt.Errorf("load categories: %w", err)
		}
		canonical, ok := matchCategory(d.Category, names)
		if ok {
			d.Category = canonical
		} else {
			msg := fmt.Sprintf("unknown %s category %q", d.Type, d.Category)
			if s := suggestCategory(d.Category, names); s != "" {
				msg += fmt.Sprintf(", did you mean %q?", s)
			}
			errs = append(errs, FieldError{Field: "category", Message: msg})
		}
	}

	if len(errs) > 0 {
		return d, errs
	}
	return d, nil
}

func matchCategory(name string, names []string) (string, bool) {
	for _, n := range names {
		if n == name {
			return n, true
		}
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}

// suggestCategory 返回编辑距离最近且足够接近的类别
func suggestCategory(name string, names []string) string {
	best, bestDist := "", -1
	lower := strings.ToLower(name)
	for _, n := range names {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(n))
		if bestDist < 0 || d < bestDist {
			best, bestDist = n, d
		}
	}
	if bestDist < 0 {
		return ""
	}
	limit := len([]rune(best)) / 2
	if limit < 1 {
		limit = 1
	}
	if limit > 3 {
		limit = 3
	}
	if bestDist > limit {
		return ""
	}
	return best
}
