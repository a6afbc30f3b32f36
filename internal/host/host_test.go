package host

import (
	"context"
	"errors"
	"testing"

	"github.com/soulconnect/soulconnect/internal/agent"
)

const testOrigin = "http://localhost:8081"

func TestRegisterReusesWindows(t *testing.T) {
	c, err := NewClients(testOrigin, nil)
	if err != nil {
		t.Fatalf("new clients: %v", err)
	}
	first, err := c.Register("", "/chat")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	again, _ := c.Register("", testOrigin+"/chat")
	if first != again {
		t.Fatalf("same url without id should reuse the window")
	}
	named, _ := c.Register("tab-1", "/")
	moved, _ := c.Register("tab-1", "/settings")
	if named != moved || moved.URL() != testOrigin+"/settings" {
		t.Fatalf("registering a known id should update its url, got %s", moved.URL())
	}

	windows, err := c.MatchAll(context.Background())
	if err != nil {
		t.Fatalf("match all: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
}

func TestOpenNavigateAndClaim(t *testing.T) {
	c, _ := NewClients(testOrigin, nil)
	ctx := context.Background()
	c.Register("tab-1", "/")

	if err := c.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	w, err := c.OpenWindow(ctx, "/?action=ai-chat")
	if err != nil {
		t.Fatalf("open window: %v", err)
	}
	if w.URL() != testOrigin+"/?action=ai-chat" {
		t.Fatalf("unexpected url %s", w.URL())
	}
	if err := w.Navigate(ctx, "/profile"); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(snap))
	}
	for _, info := range snap {
		if !info.Controlled {
			t.Fatalf("window %s should be controlled after claim", info.ID)
		}
	}
	if !snap[1].Opened || snap[1].URL != testOrigin+"/profile" || snap[1].FocusedAt == nil {
		t.Fatalf("unexpected opened window %+v", snap[1])
	}
	if snap[0].Opened || snap[0].FocusedAt != nil {
		t.Fatalf("registered window should not be opened or focused: %+v", snap[0])
	}
}

func TestRemoveUnknownClient(t *testing.T) {
	c, _ := NewClients(testOrigin, nil)
	if err := c.Remove("missing"); !errors.Is(err, ErrUnknownClient) {
		t.Fatalf("expected ErrUnknownClient, got %v", err)
	}
	c.Register("tab", "/")
	if err := c.Remove("tab"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(c.Snapshot()) != 0 {
		t.Fatalf("window should be gone")
	}
}

func TestNotificationsHistoryAndClose(t *testing.T) {
	n := NewNotifications(2, nil)
	ctx := context.Background()
	for _, body := range []string{"one", "two", "three"} {
		if err := n.ShowNotification(ctx, "SoulConnect", agent.NotificationOptions{Body: body}); err != nil {
			t.Fatalf("show: %v", err)
		}
	}

	list := n.List()
	if len(list) != 2 || list[0].Options.Body != "two" || list[1].Options.Body != "three" {
		t.Fatalf("unexpected history %+v", list)
	}

	notice, err := n.Get(list[1].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	notice.Close()
	if !n.List()[1].Closed {
		t.Fatalf("notice should be closed")
	}
	if _, err := n.Get("nope"); !errors.Is(err, ErrUnknownNotification) {
		t.Fatalf("expected ErrUnknownNotification, got %v", err)
	}
}

func TestHostSatisfiesAgentInterfaces(t *testing.T) {
	var _ agent.Clients = (*Clients)(nil)
	var _ agent.Notifier = (*Notifications)(nil)
	var _ agent.Notification = (*Notice)(nil)
}
