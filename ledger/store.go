package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moneytrack/logger"
	"moneytrack/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Repository 持久化协作方
type Repository interface {
	ListByUser(ctx context.Context, userID uint) ([]models.Transaction, error)
	Create(ctx context.Context, tx *models.Transaction) error
	Update(ctx context.Context, tx *models.Transaction) error
	Delete(ctx context.Context, userID uint, id string) error
}

// Op 变更类型
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Change 一次成功的变更
type Change struct {
	Op          Op                 `json:"op"`
	UserID      uint               `json:"user_id"`
	Transaction models.Transaction `json:"transaction"`
}

// Listener 在每次变更持久化成功后被调用，snapshot 为变更后的完整列表（只读）
type Listener interface {
	OnChange(ctx context.Context, change Change, snapshot []models.Transaction)
}

// ListenerFunc 函数形式的 Listener
type ListenerFunc func(ctx context.Context, change Change, snapshot []models.Transaction)

// OnChange 实现 Listener
func (f ListenerFunc) OnChange(ctx context.Context, change Change, snapshot []models.Transaction) {
	f(ctx, change, snapshot)
}

// Option Store 选项
type Option func(*Store)

// WithListener 注册变更监听
func WithListener(l Listener) Option {
	return func(s *Store) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store 单个用户会话内的收支记录列表
// 所有修改先写入持久化协作方，成功后才更新内存列表并通知订阅者
type Store struct {
	userID    uint
	repo      Repository
	cats      CategorySource
	now       func() time.Time
	listeners []Listener
	log       zerolog.Logger

	mu     sync.Mutex
	list   []models.Transaction
	subs   map[*Subscription]struct{}
	closed bool
}

// Open 从持久化协作方加载用户的记录并创建 Store
func Open(ctx context.Context, userID uint, repo Repository, cats CategorySource, opts ...Option) (*Store, error) {
	s := &Store{
		userID: userID,
		repo:   repo,
		cats:   cats,
		now:    time.Now,
		subs:   make(map[*Subscription]struct{}),
		log:    logger.Component(logger.ComponentLedger).With().Uint("user_id", userID).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	list, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	s.list = list
	s.log.Debug().Int("count", len(list)).Msg("ledger opened")
	return s, nil
}

// UserID 所属用户
func (s *Store) UserID() uint {
	return s.userID
}

// Add 新增一条记录，分配 id 与创建时间
func (s *Store) Add(ctx context.Context, d Draft) (models.Transaction, error) {
	d, err := Validate(ctx, d, s.cats)
	if err != nil {
		return models.Transaction{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Transaction{}, ErrClosed
	}
	now := s.now()
	tx := models.Transaction{
		ID:          uuid.NewString(),
		UserID:      s.userID,
		Type:        d.Type,
		Category:    d.Category,
		Description: d.Description,
		Amount:      d.Amount,
		Date:        d.Date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, &tx); err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("save transaction failed")
		return models.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.list = append(s.list, tx)
	snap := s.publishLocked()
	s.mu.Unlock()

	s.notify(ctx, Change{Op: OpAdd, UserID: s.userID, Transaction: tx}, snap)
	return tx, nil
}

// Update 按 id 整体替换一条记录，id、所属用户与创建时间保持不变
func (s *Store) Update(ctx context.Context, id string, d Draft) (models.Transaction, error) {
	d, err := Validate(ctx, d, s.cats)
	if err != nil {
		return models.Transaction{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Transaction{}, ErrClosed
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.Transaction{}, ErrNotFound
	}
	tx := s.list[idx]
	tx.Type = d.Type
	tx.Category = d.Category
	tx.Description = d.Description
	tx.Amount = d.Amount
	tx.Date = d.Date
	tx.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, &tx); err != nil {
		s.mu.Unlock()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Transaction{}, ErrNotFound
		}
		s.log.Error().Err(err).Str("id", id).Msg("update transaction failed")
		return models.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.list[idx] = tx
	snap := s.publishLocked()
	s.mu.Unlock()

	s.notify(ctx, Change{Op: OpUpdate, UserID: s.userID, Transaction: tx}, snap)
	return tx, nil
}

// Remove 按 id 删除记录，不存在时返回 ErrNotFound 且列表不变
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	tx := s.list[idx]

	// 持久化侧已不存在时同样从内存中移除
	if err := s.repo.Delete(ctx, s.userID, id); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.mu.Unlock()
		s.log.Error().Err(err).Str("id", id).Msg("delete transaction failed")
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.list = append(s.list[:idx:idx], s.list[idx+1:]...)
	snap := s.publishLocked()
	s.mu.Unlock()

	s.notify(ctx, Change{Op: OpRemove, UserID: s.userID, Transaction: tx}, snap)
	return nil
}

// Get 按 id 获取记录
func (s *Store) Get(id string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Transaction{}, ErrNotFound
	}
	return s.list[idx], nil
}

// List 按插入顺序返回当前列表的副本
func (s *Store) List() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Len 当前记录数
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// Reload 以持久化协作方为准重新加载列表，并推送给订阅者
func (s *Store) Reload(ctx context.Context) error {
	list, err := s.repo.ListByUser(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("reload transactions: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.list = list
	s.publishLocked()
	return nil
}

// Subscribe 订阅列表变化，立即收到当前快照，之后每次变更收到一次完整快照
// Store 已关闭时返回的订阅通道已关闭
func (s *Store) Subscribe() *Subscription {
	sub := &Subscription{store: s, ch: make(chan []models.Transaction, 1)}
	sub.C = sub.ch

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}
	s.subs[sub] = struct{}{}
	sub.offer(s.copyLocked())
	return sub
}

// Close 结束会话：释放全部订阅，之后的修改返回 ErrClosed；可重复调用
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		sub.closeLocked()
	}
	s.log.Debug().Msg("ledger closed")
}

// Closed 是否已关闭
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) indexLocked(id string) int {
	for i := range s.list {
		if s.list[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) copyLocked() []models.Transaction {
	out := make([]models.Transaction, len(s.list))
	copy(out, s.list)
	return out
}

// publishLocked 向所有订阅者推送快照并返回该快照
func (s *Store) publishLocked() []models.Transaction {
	snap := s.copyLocked()
	for sub := range s.subs {
		sub.offer(snap)
	}
	return snap
}

func (s *Store) notify(ctx context.Context, change Change, snap []models.Transaction) {
	for _, l := range s.listeners {
		l.OnChange(ctx, change, snap)
	}
}
