package utils

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 全局日志，未初始化时为 no-op
var Logger = zap.NewNop()

// InitLogger 按运行模式构建日志。release 输出 JSON，其余为彩色控制台；
// level 为空时 release 取 info、其余取 debug。
func InitLogger(mode, level, version string) error {
	var cfg zap.Config
	if mode == "release" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build(zap.Fields(
		zap.String("service", "removerio"),
		zap.String("version", version),
	))
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

func Sync() {
	_ = Logger.Sync()
}
