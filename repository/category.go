package repository

import (
	"context"
	"fmt"

	"moneytrack/models"

	"gorm.io/gorm"
)

// CategoryRepository 收支类别查询
type CategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository 创建类别仓库
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List 按类型列出类别，t 为空时返回全部；按 sort、id 升序
func (r *CategoryRepository) List(ctx context.Context, t models.TransactionType) ([]models.Category, error) {
	q := r.db.WithContext(ctx).Model(&models.Category{})
	if t != "" {
		q = q.Where("type = ?", t)
	}
	var list []models.Category
	if err := q.Order("sort ASC, id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询类别失败: %w", err)
	}
	return list, nil
}

// Names 返回某类型下的类别名称
func (r *CategoryRepository) Names(ctx context.Context, t models.TransactionType) ([]string, error) {
	list, err := r.List(ctx, t)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Name)
	}
	return names, nil
}
