// Package host 在进程内模拟页面运行时提供给缓存代理的宿主能力：
// 客户端窗口注册表与通知中心。两者都可通过代理的 /-/ 诊断接口查看。
package host

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soulconnect/soulconnect/internal/agent"
	"github.com/soulconnect/soulconnect/internal/logging"
)

// ErrUnknownClient 表示窗口 ID 不存在。
var ErrUnknownClient = errors.New("unknown client")

// Window 是一个已知的页面窗口。
type Window struct {
	id     string
	origin *url.URL

	mu         sync.Mutex
	url        string
	focusedAt  time.Time
	controlled bool
	opened     bool
}

func (w *Window) ID() string {
	return w.id
}

func (w *Window) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

// Focus 记录窗口被聚焦的时间。
func (w *Window) Focus(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	w.focusedAt = time.Now()
	w.mu.Unlock()
	return nil
}

// Navigate 把窗口地址切换到 target，相对地址基于源站解析。
func (w *Window) Navigate(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resolved, err := resolve(w.origin, target)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.url = resolved
	w.mu.Unlock()
	return nil
}

// WindowInfo is the JSON view of a Window.
type WindowInfo struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	FocusedAt  *time.Time `json:"focused_at,omitempty"`
	Controlled bool       `json:"controlled"`
	Opened     bool       `json:"opened"`
}

func (w *Window) info() WindowInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	info := WindowInfo{ID: w.id, URL: w.url, Controlled: w.controlled, Opened: w.opened}
	if !w.focusedAt.IsZero() {
		at := w.focusedAt
		info.FocusedAt = &at
	}
	return info
}

// Clients 是窗口注册表，实现 agent.Clients。
type Clients struct {
	origin *url.URL
	logger *logrus.Logger

	mu      sync.RWMutex
	windows []*Window
	claimed bool
}

// NewClients builds an empty registry for windows on origin.
func NewClients(origin string, logger *logrus.Logger) (*Clients, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("origin must be absolute: %q", origin)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Clients{origin: base, logger: logger}, nil
}

// Register 记录一次页面导航。id 为空时复用相同 URL 的窗口，否则按 id 更新或新建。
// 注册表已被接管时，新窗口直接视为受控。
func (c *Clients) Register(id, rawURL string) (*Window, error) {
	resolved, err := resolve(c.origin, rawURL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.windows {
		if (id != "" && w.id == id) || (id == "" && w.URL() == resolved) {
			w.mu.Lock()
			w.url = resolved
			w.mu.Unlock()
			return w, nil
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	w := &Window{id: id, origin: c.origin, url: resolved, controlled: c.claimed}
	c.windows = append(c.windows, w)
	c.logger.WithFields(logrus.Fields{"action": "client_register", "client": id, "url": resolved}).Debug("client registered")
	return w, nil
}

// Remove 删除窗口，对应页面关闭。
func (c *Clients) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.windows {
		if w.id == id {
			c.windows = append(c.windows[:i], c.windows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownClient, id)
}

// MatchAll returns every registered window in registration order.
func (c *Clients) MatchAll(ctx context.Context) ([]agent.WindowClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]agent.WindowClient, 0, len(c.windows))
	for _, w := range c.windows {
		out = append(out, w)
	}
	return out, nil
}

// OpenWindow 新建一个窗口并打开 target。
func (c *Clients) OpenWindow(ctx context.Context, target string) (agent.WindowClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resolved, err := resolve(c.origin, target)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &Window{
		id:         uuid.NewString(),
		origin:     c.origin,
		url:        resolved,
		controlled: c.claimed,
		opened:     true,
		focusedAt:  time.Now(),
	}
	c.windows = append(c.windows, w)
	c.logger.WithFields(logrus.Fields{"action": "client_open", "client": w.id, "url": resolved}).Info("window opened")
	return w, nil
}

// Claim marks every current and future window as controlled.
func (c *Clients) Claim(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimed = true
	for _, w := range c.windows {
		w.mu.Lock()
		w.controlled = true
		w.mu.Unlock()
	}
	return nil
}

// Snapshot lists windows for diagnostics.
func (c *Clients) Snapshot() []WindowInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]WindowInfo, 0, len(c.windows))
	for _, w := range c.windows {
		out = append(out, w.info())
	}
	return out
}

func resolve(base *url.URL, raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	return base.ResolveReference(ref).String(), nil
}
