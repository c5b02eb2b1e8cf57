package database

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront_checkout/pkg/config"
)

// InitDB 初始化数据库连接
// models: 需要自动建表/迁移的结构体指针
func InitDB(cfg *config.Config, log *zap.Logger, models ...interface{}) (*gorm.DB, error) {
	// 开发环境打印所有 SQL，生产环境只打印慢查询与错误
	level := logger.Info
	if cfg.IsProduction() {
		level = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("数据库连接成功")

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, err
		}
		log.Info("数据表迁移完成", zap.Int("models", len(models)))
	}

	return db, nil
}
