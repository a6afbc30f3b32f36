package agent

import "errors"

var (
	// ErrInvalidState 表示生命周期操作在错误的状态下被调用。
	ErrInvalidState = errors.New("invalid agent state")
	// ErrInstallFailed 表示预缓存失败，该版本的代理不会进入 active。
	ErrInstallFailed = errors.New("agent install failed")
	// ErrNetwork 包装拦截请求时的网络失败，缓存未命中时原样传给页面。
	ErrNetwork = errors.New("agent network failure")
	// ErrUnknownEvent 表示分发表中没有对应事件的处理函数。
	ErrUnknownEvent = errors.New("unknown agent event")
)
