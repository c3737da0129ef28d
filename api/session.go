package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"moneytrack/ledger"
	"moneytrack/middleware"
	"moneytrack/models"
	"moneytrack/session"

	"github.com/gin-gonic/gin"
)

// StoreProvider 当前用户账本的获取与释放
type StoreProvider interface {
	Acquire(ctx context.Context, userID uint) (*ledger.Store, error)
	Release(userID uint) bool
}

// currentStore 获取当前登录用户的账本，失败时已写入响应
func currentStore(c *gin.Context, sessions StoreProvider) (*ledger.Store, bool) {
	userID := middleware.GetCurrentUserID(c)
	if userID == 0 {
		Unauthorized(c, "未登录")
		return nil, false
	}
	store, err := sessions.Acquire(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, session.ErrShutdown) {
			Error(c, http.StatusServiceUnavailable, "服务正在关闭")
			return nil, false
		}
		InternalError(c, SafeErrorMessage(err, "加载记录失败"))
		return nil, false
	}
	return store, true
}

// respondStoreError 统一处理账本操作错误
func respondStoreError(c *gin.Context, err error, fallback string) {
	if fe, ok := ledger.AsFieldErrors(err); ok {
		ValidationError(c, fe)
		return
	}
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		NotFound(c, "记录不存在")
	case errors.Is(err, ledger.ErrClosed):
		Error(c, http.StatusConflict, "会话已结束，请重新登录")
	default:
		InternalError(c, SafeErrorMessage(err, fallback))
	}
}

// parseDateRange 解析 start_date / end_date 查询参数，均可省略
func parseDateRange(c *gin.Context) (from, to time.Time, ok bool) {
	if s := c.Query("start_date"); s != "" {
		t, err := ledger.ParseDate(s)
		if err != nil {
			BadRequest(c, "开始日期格式错误，应为: 2006-01-02")
			return from, to, false
		}
		from = t
	}
	if s := c.Query("end_date"); s != "" {
		t, err := ledger.ParseDate(s)
		if err != nil {
			BadRequest(c, "结束日期格式错误，应为: 2006-01-02")
			return from, to, false
		}
		to = t
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		BadRequest(c, "开始日期不能晚于结束日期")
		return from, to, false
	}
	return from, to, true
}

// sortNewestFirst 按日期倒序，同一天按创建时间倒序；原地排序
func sortNewestFirst(txs []models.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
