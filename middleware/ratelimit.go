package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"moneytrack/config"

	"github.com/gin-gonic/gin"
)

// slidingWindow 按 key 记录窗口内的请求时间
type slidingWindow struct {
	max    int
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time
}

func newSlidingWindow(max int, window time.Duration) *slidingWindow {
	return &slidingWindow{max: max, window: window, hits: make(map[string][]time.Time)}
}

// allow 记录一次请求，超过上限时返回 false 以及需要等待的时间
func (w *slidingWindow) allow(key string, now time.Time) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := prune(w.hits[key], now.Add(-w.window))
	if len(ts) >= w.max {
		w.hits[key] = ts
		return false, ts[0].Add(w.window).Sub(now)
	}
	w.hits[key] = append(ts, now)
	return true, 0
}

// sweep 清理已无窗口内记录的 key
func (w *slidingWindow) sweep(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-w.window)
	for key, ts := range w.hits {
		ts = prune(ts, cutoff)
		if len(ts) == 0 {
			delete(w.hits, key)
		} else {
			w.hits[key] = ts
		}
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// LoginRateLimit 登录接口限流中间件
// 每个 IP 在 window 内最多 maxAttempts 次尝试，超过返回 429
func LoginRateLimit(maxAttempts int, window time.Duration) gin.HandlerFunc {
	limiter := newSlidingWindow(maxAttempts, window)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			limiter.sweep(now)
		}
	}()

	return func(c *gin.Context) {
		ok, wait := limiter.allow(c.ClientIP(), time.Now())
		if !ok {
			secs := int(wait.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "登录尝试过于频繁，请稍后再试",
			})
			return
		}
		c.Next()
	}
}

// LoginRateLimitFromConfig 按配置创建登录限流
func LoginRateLimitFromConfig(cfg config.RateLimitConfig) gin.HandlerFunc {
	return LoginRateLimit(cfg.LoginAttempts, cfg.Window())
}
