package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storefront_checkout/pkg/config"
)

var log *zap.Logger

type ctxKey struct{}

// InitLogger 初始化全局日志
func InitLogger(cfg *config.Config) *zap.Logger {
	var logConfig zap.Config
	if cfg.IsProduction() {
		// 生产环境：结构化 JSON
		logConfig = zap.NewProductionConfig()
	} else {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	logConfig.Level.SetLevel(level)

	built, err := logConfig.Build()
	if err != nil {
		panic("初始化日志失败: " + err.Error())
	}
	log = built

	log.Info("日志初始化完成", zap.String("level", level.String()))
	return log
}

// L 获取全局日志实例
func L() *zap.Logger {
	if log == nil {
		fallback, err := zap.NewProduction()
		if err != nil {
			return zap.NewNop()
		}
		log = fallback
	}
	return log
}

// WithContext 将请求级日志放入 context
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext 取出请求级日志，不存在时返回全局日志
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return L()
}

// OrNop nil 时返回空日志
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
