package repository

import (
	"context"
	"fmt"

	"moneytrack/models"

	"gorm.io/gorm"
)

// TransactionRepository 收支记录持久化（按用户隔离）
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建收支记录仓库
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByUser 查询用户全部收支记录，按创建时间升序（即插入顺序）
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var list []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询收支记录失败: %w", err)
	}
	return list, nil
}

// Create 写入一条收支记录
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("创建收支记录失败: %w", err)
	}
	return nil
}

// Update 按 ID 整体替换可编辑字段，记录不存在时返回 gorm.ErrRecordNotFound
func (r *TransactionRepository) Update(ctx context.Context, tx *models.Transaction) error {
	updates := map[string]interface{}{
		"type":        tx.Type,
		"category":    tx.Category,
		"description": tx.Description,
		"amount":      tx.Amount,
		"date":        tx.Date,
		"updated_at":  tx.UpdatedAt, // 内容未变时 MySQL 影响行数为 0
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND user_id = ?", tx.ID, tx.UserID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("更新收支记录失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除用户的一条收支记录，记录不存在时返回 gorm.ErrRecordNotFound
func (r *TransactionRepository) Delete(ctx context.Context, userID uint, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Transaction{})
	if res.Error != nil {
		return fmt.Errorf("删除收支记录失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
