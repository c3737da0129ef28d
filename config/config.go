package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Analytics   AnalyticsConfig   `mapstructure:"analytics"`
	Categories  CategoriesConfig  `mapstructure:"categories"`
	Media       MediaConfig       `mapstructure:"media"`
	Email       EmailConfig       `mapstructure:"email"`
	BudgetAlert BudgetAlertConfig `mapstructure:"budget_alert"`
	Events      EventsConfig      `mapstructure:"events"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port                   string `mapstructure:"port"`
	Mode                   string `mapstructure:"mode"`
	BaseURL                string `mapstructure:"base_url"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// DatabaseConfig 数据库配置
// Driver 为 mysql 时使用 Host/Port 等连接参数，为 sqlite 时使用 Path（本地单文件存储）
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
	Path     string `mapstructure:"path"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	ExpireHours int           `mapstructure:"expire_hours"`
	ExpireTime  time.Duration `mapstructure:"-"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

// AnalyticsConfig 统计配置
type AnalyticsConfig struct {
	Months         int     `mapstructure:"months"` // 月度趋势默认回溯月数
	Budget         float64 `mapstructure:"budget"` // 每月预算
	CurrencySymbol string  `mapstructure:"currency_symbol"`
}

// CategoriesConfig 收支类别配置（按类型分别维护）
type CategoriesConfig struct {
	Income  []string `mapstructure:"income"`
	Expense []string `mapstructure:"expense"`
}

// MediaConfig 头像等图片上传配置
type MediaConfig struct {
	Dir       string `mapstructure:"dir"`
	URLPrefix string `mapstructure:"url_prefix"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
}

// EmailConfig 邮件配置
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// BudgetAlertConfig 预算提醒配置
type BudgetAlertConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Threshold float64 `mapstructure:"threshold"` // 百分比，如 80 表示本月支出达到预算的 80% 时提醒
}

// EventsConfig 交易变更事件（RabbitMQ）配置
type EventsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

// RateLimitConfig 登录限流配置
type RateLimitConfig struct {
	LoginAttempts int `mapstructure:"login_attempts"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// Window 限流窗口
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
)

// LoadConfig 加载配置
// 优先级: 环境变量 > 外部配置文件 > 嵌入的默认配置
// configPath: 可选的外部配置文件路径
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 首先加载嵌入的默认配置
	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("读取内置配置失败: %w", err)
	}
	log.Debug().Msg("已加载内置默认配置")

	// 2. 尝试加载外部配置文件（可选，用于覆盖默认配置）
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			log.Warn().Err(err).Str("path", configPath).Msg("无法读取指定配置文件")
		} else {
			log.Info().Str("path", configPath).Msg("已合并外部配置文件")
		}
	} else {
		externalViper := viper.New()
		externalViper.SetConfigName("config")
		externalViper.SetConfigType("yaml")
		externalViper.AddConfigPath(".")
		externalViper.AddConfigPath("./config")
		externalViper.AddConfigPath("/etc/moneytrack")
		externalViper.AddConfigPath("$HOME/.moneytrack")

		if err := externalViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(externalViper.AllSettings()); err != nil {
				log.Warn().Err(err).Msg("合并外部配置失败")
			} else {
				log.Info().Str("path", externalViper.ConfigFileUsed()).Msg("已合并外部配置文件")
			}
		}
	}

	// 3. 支持环境变量覆盖
	v.SetEnvPrefix("MONEYTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults()

	GlobalConfig = &cfg

	return &cfg, nil
}

// applyDefaults 补全缺省或非法的配置项
func (c *Config) applyDefaults() {
	if c.JWT.ExpireHours <= 0 {
		c.JWT.ExpireHours = 24
	}
	c.JWT.ExpireTime = time.Duration(c.JWT.ExpireHours) * time.Hour

	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Analytics.Months <= 0 {
		c.Analytics.Months = 4
	}
	if c.Media.MaxBytes <= 0 {
		c.Media.MaxBytes = 2 << 20
	}
	if c.Media.URLPrefix == "" {
		c.Media.URLPrefix = "/uploads"
	}
	if c.BudgetAlert.Threshold <= 0 {
		c.BudgetAlert.Threshold = 80
	}
	if c.RateLimit.LoginAttempts <= 0 {
		c.RateLimit.LoginAttempts = 10
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = 60
	}
}

// PrintConfig 打印当前配置（隐藏敏感信息）
func PrintConfig() {
	if GlobalConfig == nil {
		return
	}
	cfg := GlobalConfig
	ev := log.Info().
		Str("port", cfg.Server.Port).
		Str("mode", cfg.Server.Mode).
		Str("db_driver", cfg.Database.Driver)
	if cfg.Database.Driver == "sqlite" {
		ev = ev.Str("db_path", cfg.Database.Path)
	} else {
		ev = ev.Str("db", fmt.Sprintf("%s@%s:%s/%s",
			cfg.Database.Username, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName))
	}
	ev.Int("analytics_months", cfg.Analytics.Months).
		Float64("budget", cfg.Analytics.Budget).
		Bool("email", cfg.Email.Enabled).
		Bool("budget_alert", cfg.BudgetAlert.Enabled).
		Bool("events", cfg.Events.Enabled).
		Msg("当前配置")
}
