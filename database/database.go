package database

import (
	"fmt"
	"os"
	"path/filepath"

	"moneytrack/config"
	"moneytrack/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Dialector 根据配置选择数据库驱动
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.Username,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
		)
		return mysql.Open(dsn), nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite 驱动需要配置 database.path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
		return sqlite.Open(cfg.Path + "?_foreign_keys=on&_busy_timeout=5000"), nil
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}
}

// Init 初始化数据库连接
func Init(cfg *config.Config) error {
	dialector, err := Dialector(cfg.Database)
	if err != nil {
		return err
	}

	logLevel := logger.Warn
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	}
	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite 单写
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}

	if err := DB.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.Category{},
	); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	if err := SeedCategories(DB, cfg.Categories); err != nil {
		return err
	}

	log.Info().Str("component", "database").Str("driver", cfg.Database.Driver).Msg("数据库初始化成功")
	return nil
}

// SeedCategories 初始化默认收支类别（仅当表为空时）
func SeedCategories(db *gorm.DB, cfg config.CategoriesConfig) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("统计类别失败: %w", err)
	}
	if count > 0 {
		return nil
	}

	cats := DefaultCategories(cfg)
	if len(cats) == 0 {
		return nil
	}
	if err := db.Create(&cats).Error; err != nil {
		return fmt.Errorf("初始化类别失败: %w", err)
	}
	return nil
}

// DefaultCategories 由配置生成类别记录，排序值按 10 递增，颜色按调色板循环
func DefaultCategories(cfg config.CategoriesConfig) []models.Category {
	var cats []models.Category
	add := func(t models.TransactionType, names []string) {
		for i, name := range names {
			cats = append(cats, models.Category{
				Type:  t,
				Name:  name,
				Sort:  (i + 1) * 10,
				Color: models.PaletteColor(i),
			})
		}
	}
	add(models.TypeIncome, cfg.Income)
	add(models.TypeExpense, cfg.Expense)
	return cats
}
