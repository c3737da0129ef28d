package models

import (
	"time"
)

// Category 收支类别，收入与支出各自维护一套
type Category struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	Type      TransactionType `json:"type" gorm:"size:16;not null;uniqueIndex:idx_category_type_name"`
	Name      string          `json:"name" gorm:"size:50;not null;uniqueIndex:idx_category_type_name"`
	Sort      int             `json:"sort" gorm:"default:0;index"`
	Color     string          `json:"color" gorm:"size:20;default:#64748b"` // 颜色代码，如 #ef4444
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

// DefaultCategoryColor 默认灰色
const DefaultCategoryColor = "#64748b"

// CategoryPalette 类别配色，依次循环使用
var CategoryPalette = []string{
	"#3B82F6",
	"#8B5CF6",
	"#10B981",
	"#F59E0B",
	"#EF4444",
	"#EC4899",
	"#6366F1",
	"#14B8A6",
}

// PaletteColor 按序号取配色
func PaletteColor(index int) string {
	if index < 0 {
		return DefaultCategoryColor
	}
	return CategoryPalette[index%len(CategoryPalette)]
}
