package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

var supportedBackends = map[string]struct{}{
	BackendMemory:  {},
	BackendFS:      {},
	BackendLevelDB: {},
	BackendSQLite:  {},
}

const supportedBackendList = "memory|fs|leveldb|sqlite"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if err := validatePort("Global.ListenPort", g.ListenPort); err != nil {
		return err
	}
	if g.ListenHost == "" {
		return newFieldError("Global.ListenHost", "不能为空")
	}
	if g.Root == "" {
		return newFieldError("Global.Root", "不能为空")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}
	if g.MetricsPort != 0 {
		if err := validatePort("Global.MetricsPort", g.MetricsPort); err != nil {
			return err
		}
		if g.MetricsPort == g.ListenPort {
			return newFieldError("Global.MetricsPort", "不能与 ListenPort 相同")
		}
	}

	return c.Agent.validate(g)
}

func (a AgentConfig) validate(g GlobalConfig) error {
	if err := validatePort(agentField("ListenPort"), a.ListenPort); err != nil {
		return err
	}
	if a.ListenPort == g.ListenPort {
		return newFieldError(agentField("ListenPort"), "不能与 Global.ListenPort 相同")
	}
	if a.MetricsPort != 0 {
		if err := validatePort(agentField("MetricsPort"), a.MetricsPort); err != nil {
			return err
		}
		if a.MetricsPort == a.ListenPort || a.MetricsPort == g.ListenPort {
			return newFieldError(agentField("MetricsPort"), "不能与监听端口相同")
		}
		if a.MetricsPort == g.MetricsPort {
			return newFieldError(agentField("MetricsPort"), "不能与 Global.MetricsPort 相同")
		}
	}
	if err := validateOrigin(a.Origin); err != nil {
		return fmt.Errorf("%s: %w", agentField("Origin"), err)
	}
	if strings.TrimSpace(a.CacheGeneration) == "" {
		return newFieldError(agentField("CacheGeneration"), "不能为空")
	}
	if len(a.Manifest) == 0 {
		return newFieldError(agentField("Manifest"), "至少需要一个 URL")
	}
	for _, entry := range a.Manifest {
		if err := validateManifestURL(entry); err != nil {
			return fmt.Errorf("%s: %w", agentField("Manifest"), err)
		}
	}
	if a.SyncEndpoint == "" {
		return newFieldError(agentField("SyncEndpoint"), "不能为空")
	}
	if _, ok := supportedBackends[a.StorageBackend]; !ok {
		return newFieldError(agentField("StorageBackend"), "仅支持 "+supportedBackendList)
	}
	if a.StorageBackend != BackendMemory && strings.TrimSpace(a.StoragePath) == "" {
		return newFieldError(agentField("StoragePath"), "磁盘缓存需要指定目录")
	}
	if a.NetworkTimeout.DurationValue() <= 0 {
		return newFieldError(agentField("NetworkTimeout"), "必须大于 0")
	}
	return nil
}

func validatePort(field string, port int) error {
	if port <= 0 || port > 65535 {
		return newFieldError(field, "必须在 1-65535")
	}
	return nil
}

func validateOrigin(raw string) error {
	if raw == "" {
		return errors.New("缺少源站地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，源站: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("源站缺少 Host: %s", raw)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("源站不应包含路径: %s", raw)
	}
	return nil
}

func validateManifestURL(raw string) error {
	if strings.HasPrefix(raw, "/") {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("清单地址必须以 / 开头或为 http(s) URL: %s", raw)
	}
	return nil
}
