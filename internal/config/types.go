package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// Storage backends accepted by Agent.StorageBackend.
const (
	BackendMemory  = "memory"
	BackendFS      = "fs"
	BackendLevelDB = "leveldb"
	BackendSQLite  = "sqlite"
)

// GlobalConfig 描述静态文件服务与日志等进程级参数。
type GlobalConfig struct {
	ListenHost    string `mapstructure:"ListenHost"`
	ListenPort    int    `mapstructure:"ListenPort"`
	Root          string `mapstructure:"Root"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	MetricsPort   int    `mapstructure:"MetricsPort"`
}

// AgentConfig 决定离线缓存代理如何与页面/源站交互。
type AgentConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	MetricsPort     int      `mapstructure:"MetricsPort"`
	Origin          string   `mapstructure:"Origin"`
	CacheGeneration string   `mapstructure:"CacheGeneration"`
	Manifest        []string `mapstructure:"Manifest"`
	AppName         string   `mapstructure:"AppName"`
	SyncEndpoint    string   `mapstructure:"SyncEndpoint"`
	StorageBackend  string   `mapstructure:"StorageBackend"`
	StoragePath     string   `mapstructure:"StoragePath"`
	NetworkTimeout  Duration `mapstructure:"NetworkTimeout"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Agent  AgentConfig  `mapstructure:"Agent"`
}

// ListenAddr 返回静态文件服务的监听地址。
func (g GlobalConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", g.ListenHost, g.ListenPort)
}

// MetricsAddr returns the metrics listener address, or "" when disabled.
func (g GlobalConfig) MetricsAddr() string {
	if g.MetricsPort <= 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", g.ListenHost, g.MetricsPort)
}

// AgentListenAddr 返回离线缓存代理的监听地址，与静态服务共享 ListenHost。
func (c *Config) AgentListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Global.ListenHost, c.Agent.ListenPort)
}

// AgentMetricsAddr returns the agent metrics listener address, or "" when disabled.
func (c *Config) AgentMetricsAddr() string {
	if c.Agent.MetricsPort <= 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Global.ListenHost, c.Agent.MetricsPort)
}

// DefaultManifest is the app shell pre-cached at install time.
func DefaultManifest() []string {
	return []string{"/", "/index.html", "/manifest.json", "/sw.js"}
}
