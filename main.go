package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// ConfigEnv 可覆盖默认配置文件路径，优先级低于 --config。
const ConfigEnv = "SOULCONNECT_CONFIG"

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 执行 CLI 并返回退出码，方便测试：0 成功，1 运行失败，2 参数错误。
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdOut)
	cmd.SetErr(stdErr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(stdErr, exitErr.Error())
		return exitErr.code
	}
	fmt.Fprintf(stdErr, "解析参数失败: %v\n", err)
	return 2
}

// exitError 携带运行阶段失败的退出码与上下文描述。
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string {
	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *exitError) Unwrap() error {
	return e.err
}

func failure(msg string, err error) error {
	return &exitError{code: 1, msg: msg, err: err}
}

// resolveConfigPath 依次使用 --config、SOULCONNECT_CONFIG 与默认路径。
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(ConfigEnv); env != "" {
		return env
	}
	return ""
}
