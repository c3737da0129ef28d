// Package session 管理每个已登录用户的账本会话
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"moneytrack/ledger"
	"moneytrack/logger"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrShutdown 管理器已关闭
var ErrShutdown = errors.New("session manager closed")

// Opener 为某个用户打开账本
type Opener func(ctx context.Context, userID uint) (*ledger.Store, error)

// NewOpener 基于持久化协作方与类别来源创建 Opener，opts 作用于每个新打开的账本
func NewOpener(repo ledger.Repository, cats ledger.CategorySource, opts ...ledger.Option) Opener {
	return func(ctx context.Context, userID uint) (*ledger.Store, error) {
		return ledger.Open(ctx, userID, repo, cats, opts...)
	}
}

// Manager 每个用户至多一个打开的账本；登出时释放，关闭服务时全部释放
type Manager struct {
	open  Opener
	group singleflight.Group
	log   zerolog.Logger

	mu     sync.Mutex
	stores map[uint]*ledger.Store
	closed bool
}

// NewManager 创建会话管理器
func NewManager(open Opener) *Manager {
	return &Manager{
		open:   open,
		stores: make(map[uint]*ledger.Store),
		log:    logger.Component(logger.ComponentSession),
	}
}

// Acquire 返回用户的账本，首次访问时打开；并发的首次访问只会打开一次
func (m *Manager) Acquire(ctx context.Context, userID uint) (*ledger.Store, error) {
	if s, ok, err := m.lookup(userID); ok || err != nil {
		return s, err
	}

	v, err, _ := m.group.Do(strconv.FormatUint(uint64(userID), 10), func() (any, error) {
		if s, ok, err := m.lookup(userID); ok || err != nil {
			return s, err
		}
		// 多个请求共享这次打开，不随首个请求取消
		s, err := m.open(context.WithoutCancel(ctx), userID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			s.Close()
			return nil, ErrShutdown
		}
		m.stores[userID] = s
		m.log.Info().Uint("user_id", userID).Msg("session opened")
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ledger.Store), nil
}

func (m *Manager) lookup(userID uint) (*ledger.Store, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrShutdown
	}
	s, ok := m.stores[userID]
	return s, ok, nil
}

// Active 当前是否有该用户的账本
func (m *Manager) Active(userID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stores[userID]
	return ok
}

// Count 打开的账本数量
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

// Release 结束用户会话：关闭账本并释放全部订阅，返回是否存在会话
func (m *Manager) Release(userID uint) bool {
	m.mu.Lock()
	s, ok := m.stores[userID]
	delete(m.stores, userID)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.log.Info().Uint("user_id", userID).Msg("session released")
	}
	return ok
}

// CloseAll 关闭全部会话，之后 Acquire 返回 ErrShutdown
func (m *Manager) CloseAll() {
	m.mu.Lock()
	stores := m.stores
	m.stores = make(map[uint]*ledger.Store)
	m.closed = true
	m.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
	m.log.Info().Int("count", len(stores)).Msg("all sessions closed")
}
