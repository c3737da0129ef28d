package models

import (
	"time"
)

// TransactionType 收支类型
type TransactionType string

const (
	// TypeIncome 收入
	TypeIncome TransactionType = "income"
	// TypeExpense 支出
	TypeExpense TransactionType = "expense"
)

// Valid 是否为合法的收支类型
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Transaction 收支记录模型
// 金额始终为正数，方向由 Type 决定；删除为物理删除，不做软删除
type Transaction struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	UserID      uint            `json:"user_id" gorm:"index;not null"`
	Type        TransactionType `json:"type" gorm:"size:16;not null;index"`
	Category    string          `json:"category" gorm:"size:50;not null"`
	Description string          `json:"description" gorm:"size:255;not null"`
	Amount      float64         `json:"amount" gorm:"type:decimal(12,2);not null"`
	Date        time.Time       `json:"date" gorm:"type:date;not null;index"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName 设置表名
func (Transaction) TableName() string {
	return "transactions"
}

// DateString 日期的 2006-01-02 表示
func (t Transaction) DateString() string {
	return t.Date.Format(DateLayout)
}

// DateLayout 交易日期格式（按天）
const DateLayout = "2006-01-02"

// DayOf 截断到当天零点（本地时区），保留原有的年月日
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
