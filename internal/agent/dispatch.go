package agent

import (
	"context"
	"fmt"

	"github.com/soulconnect/soulconnect/internal/cache"
)

// EventKind 标识运行时投递给代理的事件类型。
type EventKind string

const (
	EventInstall           EventKind = "install"
	EventActivate          EventKind = "activate"
	EventFetch             EventKind = "fetch"
	EventPush              EventKind = "push"
	EventNotificationClick EventKind = "notificationclick"
	EventSync              EventKind = "sync"
)

// Event is anything the host runtime delivers to the agent.
type Event interface {
	Kind() EventKind
}

type InstallEvent struct{}

func (InstallEvent) Kind() EventKind { return EventInstall }

type ActivateEvent struct{}

func (ActivateEvent) Kind() EventKind { return EventActivate }

// FetchEvent carries one intercepted request; Dispatch fills Response and
// FromCache.
type FetchEvent struct {
	Request   cache.Request
	Response  *cache.Response
	FromCache bool
}

func (*FetchEvent) Kind() EventKind { return EventFetch }

// PushEvent carries the push payload; nil Data means no payload.
type PushEvent struct {
	Data []byte
}

func (PushEvent) Kind() EventKind { return EventPush }

type NotificationClickEvent struct {
	Notification Notification
	Action       NotificationAction
}

func (NotificationClickEvent) Kind() EventKind { return EventNotificationClick }

type SyncEvent struct {
	Tag string
}

func (SyncEvent) Kind() EventKind { return EventSync }

type handlerFunc func(ctx context.Context, ev Event) error

// on adapts a typed handler to the dispatch table.
func on[E Event](fn func(ctx context.Context, ev E) error) handlerFunc {
	return func(ctx context.Context, ev Event) error {
		typed, ok := ev.(E)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
		}
		return fn(ctx, typed)
	}
}

func (a *Agent) dispatchTable() map[EventKind]handlerFunc {
	return map[EventKind]handlerFunc{
		EventInstall: on(func(ctx context.Context, _ InstallEvent) error {
			return a.Install(ctx)
		}),
		EventActivate: on(func(ctx context.Context, _ ActivateEvent) error {
			return a.Activate(ctx)
		}),
		EventFetch: on(func(ctx context.Context, ev *FetchEvent) error {
			resp, fromCache, err := a.Fetch(ctx, ev.Request)
			if err != nil {
				return err
			}
			ev.Response, ev.FromCache = resp, fromCache
			return nil
		}),
		EventPush: on(func(ctx context.Context, ev PushEvent) error {
			return a.Push(ctx, ev.Data)
		}),
		EventNotificationClick: on(func(ctx context.Context, ev NotificationClickEvent) error {
			return a.NotificationClick(ctx, ev.Notification, ev.Action)
		}),
		EventSync: on(func(ctx context.Context, ev SyncEvent) error {
			return a.Sync(ctx, ev.Tag)
		}),
	}
}

// Dispatch routes ev to its handler.
func (a *Agent) Dispatch(ctx context.Context, ev Event) error {
	if ev == nil {
		return fmt.Errorf("%w: nil event", ErrUnknownEvent)
	}
	handler, ok := a.handlers[ev.Kind()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Kind())
	}
	return handler(ctx, ev)
}
