package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadValidFixture(t *testing.T) {
	cfg, err := Load(fixturePath("valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.ListenHost != "0.0.0.0" {
		t.Fatalf("ListenHost 应当默认为 0.0.0.0，得到 %s", cfg.Global.ListenHost)
	}
	if cfg.Agent.CacheGeneration != "soulconnect-mobile-v3" {
		t.Fatalf("CacheGeneration 解析错误: %s", cfg.Agent.CacheGeneration)
	}
	if len(cfg.Agent.Manifest) != 4 {
		t.Fatalf("Manifest 应当包含 4 个条目，得到 %v", cfg.Agent.Manifest)
	}
	if cfg.Agent.NetworkTimeout.DurationValue() != 15*time.Second {
		t.Fatalf("NetworkTimeout 解析错误: %s", cfg.Agent.NetworkTimeout.DurationValue())
	}
	if cfg.Agent.StoragePath == "./storage" {
		t.Fatalf("StoragePath 应被转换为绝对路径")
	}
}

func TestValidateRejectsInvalidFixture(t *testing.T) {
	if _, err := Load(fixturePath("invalid.toml")); err == nil {
		t.Fatalf("不合法的配置应返回错误")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	err := cfg.Validate()
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "Global.ListenPort" {
		t.Fatalf("ListenPort 超出范围应当报错，得到 %v", err)
	}
}

func TestValidateRejectsPortCollision(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.ListenPort = cfg.Global.ListenPort
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Agent 端口与静态服务相同时应报错")
	}
}

func TestValidateStorageBackend(t *testing.T) {
	testCases := []struct {
		name      string
		backend   string
		path      string
		shouldErr bool
	}{
		{"memory ok", BackendMemory, "", false},
		{"fs ok", BackendFS, "/tmp/cache", false},
		{"leveldb ok", BackendLevelDB, "/tmp/cache", false},
		{"sqlite ok", BackendSQLite, "/tmp/cache.db", false},
		{"fs without path", BackendFS, "", true},
		{"unsupported", "redis", "/tmp/cache", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Agent.StorageBackend = tc.backend
			cfg.Agent.StoragePath = tc.path
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for backend %q", tc.backend)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for backend %q: %v", tc.backend, err)
			}
		})
	}
}

func TestValidateManifestEntries(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.Manifest = []string{"/", "index.html"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("相对清单地址应当报错")
	}

	cfg.Agent.Manifest = []string{"/", "https://cdn.example.com/app.css"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("绝对清单地址应当通过: %v", err)
	}
}

func TestValidateOriginRejectsPath(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.Origin = "http://localhost:8081/app"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("带路径的 Origin 应当报错")
	}
}

func TestListenAddrs(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Global.ListenAddr(); got != "0.0.0.0:8081" {
		t.Fatalf("unexpected listen addr %s", got)
	}
	if got := cfg.AgentListenAddr(); got != "0.0.0.0:8082" {
		t.Fatalf("unexpected agent addr %s", got)
	}
	if got := cfg.Global.MetricsAddr(); got != "" {
		t.Fatalf("metrics should be disabled, got %s", got)
	}
	cfg.Agent.MetricsPort = 9102
	if got := cfg.AgentMetricsAddr(); got != "0.0.0.0:9102" {
		t.Fatalf("unexpected agent metrics addr %s", got)
	}
}

func TestValidateAgentMetricsPort(t *testing.T) {
	cfg := validConfig()
	cfg.Global.MetricsPort = 9101
	cfg.Agent.MetricsPort = 9101
	if err := cfg.Validate(); err == nil {
		t.Fatalf("两个进程的指标端口相同时应报错")
	}
	cfg.Agent.MetricsPort = cfg.Agent.ListenPort
	if err := cfg.Validate(); err == nil {
		t.Fatalf("指标端口与代理端口相同时应报错")
	}
	cfg.Agent.MetricsPort = 9102
	if err := cfg.Validate(); err != nil {
		t.Fatalf("合法的指标端口不应报错: %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenHost: "0.0.0.0",
			ListenPort: 8081,
			Root:       ".",
			LogLevel:   "info",
		},
		Agent: AgentConfig{
			ListenPort:      8082,
			Origin:          "http://localhost:8081",
			CacheGeneration: "v3.0",
			Manifest:        DefaultManifest(),
			AppName:         "SoulConnect",
			SyncEndpoint:    "/api/sync",
			StorageBackend:  BackendMemory,
			NetworkTimeout:  Duration(30 * time.Second),
		},
	}
}
