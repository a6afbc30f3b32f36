package main

import (
	"strings"
	"testing"
)

func TestResolveConfigPathPriority(t *testing.T) {
	t.Setenv(ConfigEnv, "/tmp/env.toml")

	if got := resolveConfigPath(""); got != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", got)
	}
	if got := resolveConfigPath("/tmp/flag.toml"); got != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", got)
	}

	t.Setenv(ConfigEnv, "")
	if got := resolveConfigPath(""); got != "" {
		t.Fatalf("未指定时应交给 config.Load 使用默认路径，得到 %s", got)
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run([]string{"check-config", "--config", configFixture(t, "valid.toml")})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigUsesEnvironment(t *testing.T) {
	useBufferWriters(t)
	t.Setenv(ConfigEnv, configFixture(t, "valid.toml"))
	if code := run([]string{"check-config"}); code != 0 {
		t.Fatalf("期望退出码 0，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run([]string{"check-config", "--config", configFixture(t, "missing.toml")})
	if code != 1 {
		t.Fatalf("缺失的配置文件应返回退出码 1，得到 %d", code)
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("stderr 应包含失败原因，得到 %s", stdErrBuffer().String())
	}
}

func TestRunCheckConfigInvalid(t *testing.T) {
	useBufferWriters(t)
	if code := run([]string{"check-config", "--config", configFixture(t, "invalid.toml")}); code != 1 {
		t.Fatalf("无效配置应返回退出码 1，得到 %d", code)
	}
}

func TestRunVersionOutput(t *testing.T) {
	for _, args := range [][]string{{"version"}, {"--version"}} {
		useBufferWriters(t)
		if code := run(args); code != 0 {
			t.Fatalf("%v 应成功退出，得到 %d", args, code)
		}
		if !strings.Contains(stdOutBuffer().String(), "soulconnect") {
			t.Fatalf("%v 输出应包含 soulconnect 标识，得到 %q", args, stdOutBuffer().String())
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	useBufferWriters(t)
	if code := run([]string{"bogus"}); code != 2 {
		t.Fatalf("未知子命令应返回退出码 2，得到 %d", code)
	}
	if code := run([]string{"serve", "--no-such-flag"}); code != 2 {
		t.Fatalf("未知参数应返回退出码 2，得到 %d", code)
	}
}
