package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/soulconnect/soulconnect/internal/cache"
)

const (
	// BackgroundSyncTag is the only sync tag this agent reacts to.
	BackgroundSyncTag = "background-sync"
	// DefaultSyncEndpoint is fetched on every background sync.
	DefaultSyncEndpoint = "/api/sync"
)

// Sync handles a background-sync event. Unknown tags are ignored. The sync
// outcome is only logged: a failed sync never fails the event, the host is
// responsible for re-invoking it once connectivity returns.
func (a *Agent) Sync(ctx context.Context, tag string) error {
	if tag != BackgroundSyncTag {
		a.log("sync").WithField("tag", tag).Debug("sync tag ignored")
		return nil
	}

	err := a.syncOnce(ctx)
	a.metrics.ObserveSync(err == nil)
	if err != nil {
		a.log("sync").WithError(err).Warn("background sync failed")
		return nil
	}
	a.log("sync").Info("background sync completed")
	return nil
}

func (a *Agent) syncOnce(ctx context.Context) error {
	target, err := a.resolve(a.syncEndpoint)
	if err != nil {
		return err
	}
	resp, err := a.network.Fetch(ctx, cache.Request{Method: http.MethodGet, URL: target})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", target, err)
	}
	var payload any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return fmt.Errorf("decode sync response: %w", err)
	}
	return nil
}
