package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeErrorMessage(t *testing.T) {
	fallback := "操作失败"
	testErr := errors.New("internal database error")

	// nil err 返回 fallback
	assert.Equal(t, fallback, SafeErrorMessage(nil, fallback))

	// release 模式返回 fallback，不暴露错误详情
	GlobalConfig = &Config{Server: ServerConfig{Mode: "release"}}
	defer func() { GlobalConfig = nil }()
	assert.Equal(t, fallback, SafeErrorMessage(testErr, fallback))

	// debug 模式返回 err.Error()
	GlobalConfig = &Config{Server: ServerConfig{Mode: "debug"}}
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))

	// GlobalConfig 为 nil 时返回 err.Error()（视为开发环境）
	GlobalConfig = nil
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 4, cfg.Analytics.Months)
	assert.Equal(t, float64(5000), cfg.Analytics.Budget)
	assert.Contains(t, cfg.Categories.Expense, "Food")
	assert.Contains(t, cfg.Categories.Income, "Salary")
	assert.Equal(t, "/uploads", cfg.Media.URLPrefix)
	assert.Same(t, cfg, GlobalConfig)
}

func TestLoadConfig_ExternalFileOverrides(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := "server:\n  port: \":9090\"\nanalytics:\n  months: 6\n  budget: 1200\ndatabase:\n  driver: sqlite\n  path: /tmp/mt.db\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, 6, cfg.Analytics.Months)
	assert.Equal(t, float64(1200), cfg.Analytics.Budget)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/mt.db", cfg.Database.Path)
	// 未覆盖的配置保持默认
	assert.Equal(t, "utf8mb4", cfg.Database.Charset)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	t.Setenv("MONEYTRACK_JWT_EXPIRE_HOURS", "2")
	t.Setenv("MONEYTRACK_SERVER_MODE", "release")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, "release", cfg.Server.Mode)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 24, cfg.JWT.ExpireHours)
	assert.Equal(t, 10, cfg.Server.ShutdownTimeoutSeconds)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Analytics.Months)
	assert.Equal(t, int64(2<<20), cfg.Media.MaxBytes)
	assert.Equal(t, float64(80), cfg.BudgetAlert.Threshold)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
}
