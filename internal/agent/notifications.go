package agent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// NotificationAction is the action button a user picked on a notification.
type NotificationAction string

const (
	ActionOpen   NotificationAction = "open"
	ActionAIChat NotificationAction = "ai-chat"
	ActionClose  NotificationAction = "close"
)

// Target returns the page a click with this action navigates to. Close has
// no target. An empty action is a click on the notification body and opens
// the app like ActionOpen; so does any action this agent does not know.
func (na NotificationAction) Target() (string, bool) {
	switch na {
	case ActionClose:
		return "", false
	case ActionAIChat:
		return "/?action=ai-chat", true
	default:
		return "/", true
	}
}

// NotificationButton is one action offered on a notification.
type NotificationButton struct {
	Action NotificationAction `json:"action"`
	Title  string             `json:"title"`
	Icon   string             `json:"icon,omitempty"`
}

// NotificationOptions mirrors the options a page runtime accepts when showing
// a notification.
type NotificationOptions struct {
	Body    string               `json:"body"`
	Icon    string               `json:"icon"`
	Badge   string               `json:"badge"`
	Vibrate []int                `json:"vibrate"`
	Data    map[string]string    `json:"data"`
	Actions []NotificationButton `json:"actions"`
}

// Notification is a displayed notification handle.
type Notification interface {
	Close()
}

// Notifier displays notifications.
type Notifier interface {
	ShowNotification(ctx context.Context, title string, opts NotificationOptions) error
}

const (
	iconURI    = `data:image/svg+xml,<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 192 192"><circle cx="96" cy="96" r="96" fill="%232563eb"/><text y="130" font-size="100" text-anchor="middle" x="96" fill="white">💬</text></svg>`
	badgeURI   = `data:image/svg+xml,<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 96 96"><circle cx="48" cy="48" r="48" fill="%232563eb"/></svg>`
	openIcon   = `data:image/svg+xml,<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 96 96"><circle cx="48" cy="48" r="48" fill="%239333ea"/><text y="65" font-size="50" text-anchor="middle" x="48" fill="white">💬</text></svg>`
	aiChatIcon = `data:image/svg+xml,<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 96 96"><circle cx="48" cy="48" r="48" fill="%2316a34a"/><text y="65" font-size="50" text-anchor="middle" x="48" fill="white">🤖</text></svg>`
)

// DefaultPushBody is the notification text used when a push has no payload.
func (a *Agent) DefaultPushBody() string {
	return fmt.Sprintf("New message in %s!", a.appName)
}

// Push shows a notification for one push message. A nil payload means the
// push carried no data.
func (a *Agent) Push(ctx context.Context, payload []byte) error {
	body := a.DefaultPushBody()
	if payload != nil {
		body = string(payload)
	}

	opts := NotificationOptions{
		Body:    body,
		Icon:    iconURI,
		Badge:   badgeURI,
		Vibrate: []int{200, 100, 200},
		Data:    map[string]string{"url": "/"},
		Actions: []NotificationButton{
			{Action: ActionOpen, Title: "Open Chat", Icon: openIcon},
			{Action: ActionAIChat, Title: "AI Chat", Icon: aiChatIcon},
			{Action: ActionClose, Title: "Dismiss"},
		},
	}
	if err := a.notifier.ShowNotification(ctx, a.appName, opts); err != nil {
		a.log("push").WithError(err).Warn("show notification failed")
		return err
	}
	a.metrics.ObserveNotification()
	a.log("push").WithField("has_payload", payload != nil).Info("notification shown")
	return nil
}

// NotificationClick closes the clicked notification and routes the user to
// the action's target: an existing window on this origin is focused (and
// navigated unless the target is the root), otherwise a new window opens.
func (a *Agent) NotificationClick(ctx context.Context, n Notification, action NotificationAction) error {
	if n != nil {
		n.Close()
	}

	target, ok := action.Target()
	entry := a.log("notificationclick").WithField("notification_action", string(action))
	if !ok {
		entry.Debug("notification dismissed")
		return nil
	}

	windows, err := a.clients.MatchAll(ctx)
	if err != nil {
		return fmt.Errorf("match clients: %w", err)
	}
	for _, w := range windows {
		if !a.sameOrigin(w.URL()) {
			continue
		}
		if err := w.Focus(ctx); err != nil {
			return fmt.Errorf("focus client %s: %w", w.ID(), err)
		}
		if target != "/" {
			if err := w.Navigate(ctx, target); err != nil {
				return fmt.Errorf("navigate client %s: %w", w.ID(), err)
			}
		}
		entry.WithFields(logrus.Fields{"client": w.ID(), "target": target}).Info("client focused")
		return nil
	}

	if _, err := a.clients.OpenWindow(ctx, target); err != nil {
		return fmt.Errorf("open window %s: %w", target, err)
	}
	entry.WithField("target", target).Info("window opened")
	return nil
}
