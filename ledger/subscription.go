package ledger

import "moneytrack/models"

// Subscription 列表的实时视图
// C 上只保留最新快照：消费慢时旧快照被替换，不会阻塞写入方
type Subscription struct {
	C <-chan []models.Transaction

	store  *Store
	ch     chan []models.Transaction
	closed bool // 受 store.mu 保护
}

// Close 释放订阅并关闭 C，可重复调用
func (s *Subscription) Close() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	delete(s.store.subs, s)
	close(s.ch)
}

// offer 在持有 store.mu 时调用
func (s *Subscription) offer(snap []models.Transaction) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}
