package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soulconnect/soulconnect/internal/config"
)

func TestConfigureDefaultsToStdout(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "info"}, "")
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("未指定文件时应输出到 stdout")
	}
}

func TestInitLoggerFallbackOnPermissionDenied(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	cfg := config.GlobalConfig{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocked, "sub", "soulconnect.log"),
	}
	logger, err := InitLogger(cfg, "serve")
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("fallback 时应退回 stdout")
	}
}

func TestConfigureCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "soulconnect.log")
	cfg := config.GlobalConfig{LogLevel: "debug", LogFilePath: path}
	logger, err := InitLogger(cfg, "serve")
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := InitLogger(config.GlobalConfig{LogLevel: "loud"}, "agent"); err == nil {
		t.Fatalf("未知日志级别应返回错误")
	}
}

func TestInitLoggerStampsProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soulconnect.log")
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "info", LogFilePath: path}, "agent")
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("hello")
	logger.WithField("process", "serve").Info("explicit")
	if closer, ok := logger.Out.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取日志失败: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("预期两行日志，实际 %d: %s", len(lines), data)
	}
	for i, want := range []string{"agent", "serve"} {
		var entry map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &entry); err != nil {
			t.Fatalf("日志不是 JSON: %v", err)
		}
		if entry["process"] != want {
			t.Fatalf("第 %d 行 process 应为 %s，实际 %v", i, want, entry["process"])
		}
	}
}

func TestRequestFieldsOmitsEmptyRequestID(t *testing.T) {
	fields := RequestFields("static", "GET", "/index.html", "")
	if _, ok := fields["request_id"]; ok {
		t.Fatalf("空请求 ID 不应写入字段")
	}
	fields = RequestFields("static", "GET", "/index.html", "abc")
	if fields["request_id"] != "abc" || fields["method"] != "GET" {
		t.Fatalf("字段不完整: %v", fields)
	}
}
