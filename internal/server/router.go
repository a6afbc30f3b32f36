package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soulconnect/soulconnect/internal/logging"
	"github.com/soulconnect/soulconnect/internal/metrics"
	"github.com/soulconnect/soulconnect/internal/static"
)

// Responder answers a request by method and raw URL. *static.Responder
// satisfies it; tests may inject fakes.
type Responder interface {
	Serve(method, rawURL string) static.Response
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(method, rawURL string) static.Response

// Serve makes ResponderFunc satisfy Responder.
func (f ResponderFunc) Serve(method, rawURL string) static.Response {
	return f(method, rawURL)
}

// AppOptions controls the static file application.
type AppOptions struct {
	Logger    *logrus.Logger
	Responder Responder
	Metrics   *metrics.Metrics
}

const contextKeyRequestID = "_soulconnect_request_id"

// NewApp builds the fiber application serving every path through the responder.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Responder == nil {
		return nil, errors.New("responder is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(RequestContext(opts.Logger))

	app.All("/*", func(c fiber.Ctx) error {
		started := time.Now()
		resp := opts.Responder.Serve(c.Method(), RequestTarget(c))
		if err := WriteResponse(c, resp.Status, resp.Header, resp.Body); err != nil {
			return err
		}
		opts.Metrics.ObserveResponse(resp.Status)
		logResult(opts.Logger, c, resp.Status, started)
		return nil
	})

	return app, nil
}

// RequestContext 生成请求 ID，并在处理前记录 method + URL。
func RequestContext(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		target := RequestTarget(c)
		logger.WithFields(logging.RequestFields("request", c.Method(), target, reqID)).
			Info(c.Method() + " " + target)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by RequestContext.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// RequestTarget 返回 origin-form 的请求目标（path + query）。
// 绝对形式的请求行（GET http://host/path）会丢弃 scheme 与 host，
// 下游只按路径解析，不会被请求行里的主机名带偏。
func RequestTarget(c fiber.Ctx) string {
	if uri := c.Request().URI().RequestURI(); len(uri) > 0 {
		return string(uri)
	}
	return "/"
}

func logResult(logger *logrus.Logger, c fiber.Ctx, status int, started time.Time) {
	fields := logging.RequestFields("static_serve", c.Method(), RequestTarget(c), RequestID(c))
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()

	entry := logger.WithFields(fields)
	if status >= fiber.StatusInternalServerError {
		entry.Error("static_serve_failed")
		return
	}
	entry.Debug("static_serve_completed")
}
