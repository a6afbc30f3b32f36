package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultPath 是未显式指定配置文件时尝试读取的路径。
const DefaultPath = "config.toml"

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量与校验逻辑。
// 当 path 为 DefaultPath 且文件不存在时，直接使用默认值启动。
func Load(path string) (*Config, error) {
	explicit := path != "" && path != DefaultPath
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil || explicit {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyAgentDefaults(&cfg.Agent)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(cfg.Global.Root)
	if err != nil {
		return nil, fmt.Errorf("无法解析站点根目录: %w", err)
	}
	cfg.Global.Root = absRoot

	if cfg.Agent.StorageBackend != BackendMemory {
		absStorage, err := filepath.Abs(cfg.Agent.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Agent.StoragePath = absStorage
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenHost", "0.0.0.0")
	v.SetDefault("ListenPort", 8081)
	v.SetDefault("Root", ".")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("MetricsPort", 0)

	v.SetDefault("Agent.ListenPort", 8082)
	v.SetDefault("Agent.MetricsPort", 0)
	v.SetDefault("Agent.Origin", "http://localhost:8081")
	v.SetDefault("Agent.CacheGeneration", "soulconnect-mobile-v2")
	v.SetDefault("Agent.Manifest", DefaultManifest())
	v.SetDefault("Agent.AppName", "SoulConnect")
	v.SetDefault("Agent.SyncEndpoint", "/api/sync")
	v.SetDefault("Agent.StorageBackend", BackendMemory)
	v.SetDefault("Agent.StoragePath", "./storage")
	v.SetDefault("Agent.NetworkTimeout", "30s")
}

// bindEnv 绑定部署环境常用的端口变量，优先级高于配置文件。
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"ListenPort":        "PORT",
		"MetricsPort":       "METRICS_PORT",
		"Agent.ListenPort":  "AGENT_PORT",
		"Agent.MetricsPort": "AGENT_METRICS_PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}
	return nil
}

func applyGlobalDefaults(g *GlobalConfig) {
	g.ListenHost = strings.TrimSpace(g.ListenHost)
	if g.ListenHost == "" {
		g.ListenHost = "0.0.0.0"
	}
	if g.ListenPort == 0 {
		g.ListenPort = 8081
	}
	if strings.TrimSpace(g.Root) == "" {
		g.Root = "."
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
}

func applyAgentDefaults(a *AgentConfig) {
	if a.ListenPort == 0 {
		a.ListenPort = 8082
	}
	a.StorageBackend = strings.ToLower(strings.TrimSpace(a.StorageBackend))
	if a.StorageBackend == "" {
		a.StorageBackend = BackendMemory
	}
	if strings.TrimSpace(a.AppName) == "" {
		a.AppName = "SoulConnect"
	}
	if len(a.Manifest) == 0 {
		a.Manifest = DefaultManifest()
	}
	if a.NetworkTimeout.DurationValue() == 0 {
		a.NetworkTimeout = Duration(30 * time.Second)
	}
	a.Origin = strings.TrimRight(strings.TrimSpace(a.Origin), "/")
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
