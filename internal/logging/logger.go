// Package logging 负责进程级 logrus 初始化与通用日志字段。
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nostria-app/nostria-proxy/internal/config"
)

// InitLogger 按全局配置构建 JSON 结构化 logger。配置了 log_file_path 时
// 走 lumberjack 轮转文件；目录创建失败不阻塞启动，降级到 stdout 并留下
// 一条 logger_fallback 警告。
func InitLogger(cfg config.GlobalConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	logger.SetOutput(os.Stdout)

	var fallbackErr error
	if cfg.LogFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o755); err != nil {
			fallbackErr = fmt.Errorf("创建日志目录失败: %w", err)
			fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", fallbackErr)
		} else {
			logger.SetOutput(&lumberjack.Logger{
				Filename:   cfg.LogFilePath,
				MaxSize:    cfg.LogMaxSize,
				MaxBackups: cfg.LogMaxBackups,
				Compress:   cfg.LogCompress,
				LocalTime:  true,
			})
		}
	}

	// 第三方库直接调用 logrus 包级入口时也走同一份输出配置
	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())

	if fallbackErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFilePath,
		}).Warn(fallbackErr.Error())
	}

	return logger, nil
}
