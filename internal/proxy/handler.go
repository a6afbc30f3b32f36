package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/soulconnect/soulconnect/internal/agent"
	"github.com/soulconnect/soulconnect/internal/cache"
	"github.com/soulconnect/soulconnect/internal/host"
	"github.com/soulconnect/soulconnect/internal/logging"
	"github.com/soulconnect/soulconnect/internal/network"
	"github.com/soulconnect/soulconnect/internal/server"
)

// HeaderCacheHit reports whether the response came from the agent cache.
const HeaderCacheHit = "X-Cache-Hit"

// HeaderClientID lets a page name its window; navigations without it are
// keyed by URL.
const HeaderClientID = "X-Client-ID"

// Agent is the part of *agent.Agent the HTTP surface drives.
type Agent interface {
	Dispatch(ctx context.Context, ev agent.Event) error
	Status(ctx context.Context) (agent.Status, error)
}

// WindowRegistry records page navigations as window clients.
type WindowRegistry interface {
	Register(id, rawURL string) (*host.Window, error)
}

// Handler 把普通请求转换为 fetch 事件并写回响应，代理侧的任何 panic 都会被转换为 500。
type Handler struct {
	agent   Agent
	windows WindowRegistry
	logger  *logrus.Logger
}

// NewHandler builds a fetch handler. windows may be nil to skip navigation tracking.
func NewHandler(a Agent, windows WindowRegistry, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{agent: a, windows: windows, logger: logger}
}

// Handle answers one intercepted request.
func (h *Handler) Handle(c fiber.Ctx) (err error) {
	started := time.Now()
	requestID := server.RequestID(c)
	defer func() {
		if r := recover(); r != nil {
			h.logResult(c, requestID, 0, false, started, fmt.Errorf("panic: %v", r))
			err = writeError(c, fiber.StatusInternalServerError, "agent_panic")
		}
	}()

	req := buildRequest(c)
	if isNavigation(c) && h.windows != nil {
		if _, regErr := h.windows.Register(c.Get(HeaderClientID), req.URL); regErr != nil {
			h.logger.WithFields(logging.RequestFields("client_register", req.Method, req.URL, requestID)).
				WithError(regErr).Warn("client register failed")
		}
	}

	ev := &agent.FetchEvent{Request: req}
	if err := h.agent.Dispatch(requestContext(c), ev); err != nil {
		h.logResult(c, requestID, 0, false, started, err)
		if errors.Is(err, agent.ErrNetwork) {
			return writeError(c, fiber.StatusBadGateway, "network_failed")
		}
		return writeError(c, fiber.StatusInternalServerError, "agent_failed")
	}

	resp := ev.Response
	header := http.Header{}
	network.CopyHeaders(header, resp.Header)
	header.Del("Content-Length")
	header.Set(HeaderCacheHit, strconv.FormatBool(ev.FromCache))

	if err := server.WriteResponse(c, resp.Status, header, resp.Body); err != nil {
		h.logResult(c, requestID, resp.Status, ev.FromCache, started, err)
		return err
	}
	h.logResult(c, requestID, resp.Status, ev.FromCache, started, nil)
	return nil
}

func (h *Handler) logResult(c fiber.Ctx, requestID string, status int, cacheHit bool, started time.Time, err error) {
	fields := logging.RequestFields("proxy", c.Method(), server.RequestTarget(c), requestID)
	fields["status"] = status
	fields["cache_hit"] = cacheHit
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	h.logger.WithFields(fields).Info("proxy_complete")
}

// buildRequest 只取 path + query，agent 再按 origin 解析；请求行里的主机名不参与缓存键。
func buildRequest(c fiber.Ctx) cache.Request {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if network.IsHopByHopHeader(k) || strings.EqualFold(k, HeaderClientID) {
			return
		}
		header.Add(k, string(value))
	})
	header.Del("Host")
	header.Del("Content-Length")

	var body []byte
	if raw := c.Body(); len(raw) > 0 {
		body = append([]byte(nil), raw...)
	}
	return cache.Request{
		Method: c.Method(),
		URL:    server.RequestTarget(c),
		Header: header,
		Body:   body,
	}
}

func isNavigation(c fiber.Ctx) bool {
	return strings.EqualFold(c.Get("Sec-Fetch-Mode"), "navigate")
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}
