package proxy

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/soulconnect/soulconnect/internal/host"
	"github.com/soulconnect/soulconnect/internal/server"
)

// AppOptions controls the agent listener.
type AppOptions struct {
	Logger        *logrus.Logger
	Agent         Agent
	Clients       *host.Clients
	Notifications *host.Notifications
}

// NewApp builds the agent fiber application: control routes under /-/ and a
// catch-all fetch handler for everything else.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if opts.Clients == nil {
		return nil, errors.New("clients are required")
	}
	if opts.Notifications == nil {
		return nil, errors.New("notifications are required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})
	app.Use(recover.New())
	app.Use(server.RequestContext(opts.Logger))

	ctl := &Control{
		agent:         opts.Agent,
		clients:       opts.Clients,
		notifications: opts.Notifications,
		logger:        opts.Logger,
	}
	ctl.Register(app)

	handler := NewHandler(opts.Agent, opts.Clients, opts.Logger)
	app.All("/*", handler.Handle)

	return app, nil
}
