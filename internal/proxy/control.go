package proxy

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/soulconnect/soulconnect/internal/agent"
	"github.com/soulconnect/soulconnect/internal/host"
	"github.com/soulconnect/soulconnect/internal/logging"
	"github.com/soulconnect/soulconnect/internal/server"
)

// Control 暴露 /-/ 下的宿主事件入口与诊断接口。
type Control struct {
	agent         Agent
	clients       *host.Clients
	notifications *host.Notifications
	logger        *logrus.Logger
}

type clickRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

type syncRequest struct {
	Tag string `json:"tag"`
}

// Register mounts the control routes on app.
func (ctl *Control) Register(app *fiber.App) {
	app.Post("/-/push", ctl.push)
	app.Post("/-/notificationclick", ctl.notificationClick)
	app.Post("/-/sync", ctl.sync)
	app.Get("/-/notifications", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"notifications": ctl.notifications.List()})
	})
	app.Get("/-/clients", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"clients": ctl.clients.Snapshot()})
	})
	app.Delete("/-/clients/:id", ctl.removeClient)
	app.Get("/-/status", ctl.status)
}

// push 以请求体作为推送负载，空请求体视为无负载。
func (ctl *Control) push(c fiber.Ctx) error {
	var payload []byte
	if raw := c.Body(); len(raw) > 0 {
		payload = append([]byte(nil), raw...)
	}
	if err := ctl.agent.Dispatch(requestContext(c), agent.PushEvent{Data: payload}); err != nil {
		ctl.logFailure(c, "push", err)
		return writeError(c, fiber.StatusInternalServerError, "push_failed")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"notifications": ctl.notifications.List()})
}

func (ctl *Control) notificationClick(c fiber.Ctx) error {
	var body clickRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_body")
	}

	var notification agent.Notification
	if id := strings.TrimSpace(body.ID); id != "" {
		notice, err := ctl.notifications.Get(id)
		if err != nil {
			return writeError(c, fiber.StatusNotFound, "notification_not_found")
		}
		notification = notice
	}

	ev := agent.NotificationClickEvent{
		Notification: notification,
		Action:       agent.NotificationAction(strings.TrimSpace(body.Action)),
	}
	if err := ctl.agent.Dispatch(requestContext(c), ev); err != nil {
		ctl.logFailure(c, "notificationclick", err)
		return writeError(c, fiber.StatusInternalServerError, "notificationclick_failed")
	}
	return c.JSON(fiber.Map{"clients": ctl.clients.Snapshot()})
}

func (ctl *Control) sync(c fiber.Ctx) error {
	var body syncRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_body")
	}
	tag := strings.TrimSpace(body.Tag)
	if tag == "" {
		return writeError(c, fiber.StatusBadRequest, "tag_required")
	}
	if err := ctl.agent.Dispatch(requestContext(c), agent.SyncEvent{Tag: tag}); err != nil {
		ctl.logFailure(c, "sync", err)
		return writeError(c, fiber.StatusInternalServerError, "sync_failed")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"tag": tag})
}

func (ctl *Control) removeClient(c fiber.Ctx) error {
	if err := ctl.clients.Remove(c.Params("id")); err != nil {
		if errors.Is(err, host.ErrUnknownClient) {
			return writeError(c, fiber.StatusNotFound, "client_not_found")
		}
		return writeError(c, fiber.StatusInternalServerError, "client_remove_failed")
	}
	c.Status(fiber.StatusNoContent)
	return nil
}

func (ctl *Control) status(c fiber.Ctx) error {
	st, err := ctl.agent.Status(requestContext(c))
	if err != nil {
		ctl.logFailure(c, "status", err)
		return writeError(c, fiber.StatusInternalServerError, "status_failed")
	}
	return c.JSON(st)
}

func (ctl *Control) logFailure(c fiber.Ctx, event string, err error) {
	fields := logging.RequestFields("control", c.Method(), server.RequestTarget(c), server.RequestID(c))
	fields["event"] = event
	ctl.logger.WithFields(fields).WithError(err).Error("control_event_failed")
}
