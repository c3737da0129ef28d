package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"moneytrack/analytics"
	"moneytrack/config"
	"moneytrack/ledger"
	"moneytrack/logger"
	"moneytrack/models"

	"gorm.io/gorm"
)

// AlertSender 发送预算提醒
type AlertSender interface {
	SendBudgetAlertEmail(toEmail, name, month, currency string, status analytics.BudgetStatus, used float64) error
}

// UserLookup 按 id 查询用户
type UserLookup func(ctx context.Context, userID uint) (models.User, error)

// LookupUser 基于 gorm 的 UserLookup
func LookupUser(db *gorm.DB) UserLookup {
	return func(ctx context.Context, userID uint) (models.User, error) {
		var u models.User
		if err := db.WithContext(ctx).First(&u, userID).Error; err != nil {
			return models.User{}, fmt.Errorf("查询用户失败: %w", err)
		}
		return u, nil
	}
}

// BudgetAlert 本月支出达到预算阈值时给用户发邮件，每个用户每月最多一次
type BudgetAlert struct {
	threshold float64
	budget    float64
	currency  string
	sender    AlertSender
	users     UserLookup
	now       func() time.Time

	mu   sync.Mutex
	sent map[uint]string // userID -> 已提醒的月份
	wg   sync.WaitGroup
}

// NewBudgetAlert 创建预算提醒监听
func NewBudgetAlert(cfg config.BudgetAlertConfig, analyticsCfg config.AnalyticsConfig, sender AlertSender, users UserLookup) *BudgetAlert {
	return &BudgetAlert{
		threshold: cfg.Threshold,
		budget:    analyticsCfg.Budget,
		currency:  analyticsCfg.CurrencySymbol,
		sender:    sender,
		users:     users,
		now:       time.Now,
		sent:      make(map[uint]string),
	}
}

// OnChange 实现 ledger.Listener，邮件在后台发送
func (b *BudgetAlert) OnChange(ctx context.Context, change ledger.Change, snapshot []models.Transaction) {
	if b.budget <= 0 || change.Transaction.Type != models.TypeExpense {
		return
	}
	now := b.now()
	spent := analytics.Summarize(snapshot, now).MonthExpense
	used := analytics.UsedPercent(b.budget, spent)
	if used < b.threshold {
		return
	}

	month := now.Format(analytics.MonthLabelLayout)
	b.mu.Lock()
	if b.sent[change.UserID] == month {
		b.mu.Unlock()
		return
	}
	b.sent[change.UserID] = month
	b.mu.Unlock()

	status := analytics.Budget(b.budget, spent)
	ctx = context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.notify(ctx, change.UserID, month, status, used); err != nil {
			clog := logger.Component(logger.ComponentEmail)
			clog.Warn().Err(err).Uint("user_id", change.UserID).Msg("budget alert not sent")
			b.mu.Lock()
			if b.sent[change.UserID] == month {
				delete(b.sent, change.UserID)
			}
			b.mu.Unlock()
		}
	}()
}

func (b *BudgetAlert) notify(ctx context.Context, userID uint, month string, status analytics.BudgetStatus, used float64) error {
	u, err := b.users(ctx, userID)
	if err != nil {
		return err
	}
	return b.sender.SendBudgetAlertEmail(u.Email, u.Name, month, b.currency, status, used)
}

// Wait 等待后台发送完成
func (b *BudgetAlert) Wait() {
	b.wg.Wait()
}
