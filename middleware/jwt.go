package middleware

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"moneytrack/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// ContextUserID gin 上下文中的用户 ID
	ContextUserID = "userID"
	// ContextClaims gin 上下文中的 token claims
	ContextClaims = "claims"
)

var (
	jwtSecret []byte

	// ErrTokenRevoked token 已注销
	ErrTokenRevoked = errors.New("token has been revoked")

	revoked = &revocationList{entries: make(map[string]time.Time)}
)

// Claims JWT 载荷
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// InitJWT 初始化签名密钥
func InitJWT(cfg *config.Config) {
	jwtSecret = []byte(cfg.JWT.Secret)
}

// GenerateToken 生成 token，每个 token 带唯一 ID 以便登出时注销
func GenerateToken(userID uint, username string, expire time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expire)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "moneytrack",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken 解析并校验 token
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if revoked.has(claims.ID) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// RevokeToken 注销 token 直到其过期
func RevokeToken(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	exp := time.Now().Add(24 * time.Hour)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	revoked.add(claims.ID, exp)
}

// JWTAuth JWT 认证中间件
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			unauthorized(c, "未登录或 token 格式错误")
			return
		}

		claims, err := ParseToken(tokenString)
		if err != nil {
			unauthorized(c, "token 无效或已过期")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// bearerToken 从 Authorization 头读取，SSE 等无法设置请求头的场景可用 access_token 查询参数
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return strings.TrimSpace(c.Query("access_token"))
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"message": msg,
	})
}

// GetCurrentUserID 获取当前登录用户 ID，未登录返回 0
func GetCurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// GetCurrentClaims 获取当前 token 的 claims
func GetCurrentClaims(c *gin.Context) *Claims {
	if v, ok := c.Get(ContextClaims); ok {
		if claims, ok := v.(*Claims); ok {
			return claims
		}
	}
	return nil
}

type revocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func (r *revocationList) add(id string, exp time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for k, e := range r.entries {
		if e.Before(now) {
			delete(r.entries, k)
		}
	}
	r.entries[id] = exp
}

func (r *revocationList) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.entries[id]
	return ok && exp.After(time.Now())
}
