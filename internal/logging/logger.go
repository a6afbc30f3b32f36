package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/soulconnect/soulconnect/internal/config"
)

// InitLogger 根据全局配置初始化 JSON 结构化日志，serve 与 agent 两个进程共用同一套格式。
// process 非空时每条日志都带上 process 字段，两个进程写同一个文件也能分开检索。
func InitLogger(cfg config.GlobalConfig, process string) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别: %w", err)
	}

	output, outErr := buildOutput(cfg)
	if outErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", outErr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	if process != "" {
		logger.AddHook(processHook(process))
	}

	if outErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFilePath,
		}).Warn(outErr.Error())
	}

	return logger, nil
}

// Discard returns a logger that drops every entry; used by tests and by
// components constructed without a logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// processHook 给每条日志补上进程名，已显式设置的 process 字段不覆盖。
type processHook string

func (h processHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h processHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["process"]; !ok {
		entry.Data["process"] = string(h)
	}
	return nil
}

// buildOutput 打开轮转日志文件；目录不可建时退回 stdout 并把原因交给调用方记录。
func buildOutput(cfg config.GlobalConfig) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return os.Stdout, nil
	}

	dir := filepath.Dir(cfg.LogFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}
