package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/soulconnect/soulconnect/internal/cache"
	"github.com/soulconnect/soulconnect/internal/metrics"
)

// Fetch intercepts one outgoing request from a controlled page.
//
// A hit in the current generation is answered without touching the network.
// On a miss the request goes to the network; API responses are returned as-is,
// anything else on the agent's origin is cloned into the cache before the
// original is returned. A network failure on a miss is wrapped in ErrNetwork.
// Until the agent is active, requests pass straight through to the network.
func (a *Agent) Fetch(ctx context.Context, req cache.Request) (*cache.Response, bool, error) {
	target, err := a.resolve(req.URL)
	if err != nil {
		return nil, false, err
	}
	req.URL = target
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	entry := a.log("fetch").WithField("url", req.URL)

	if a.State() != StateActive {
		resp, err := a.network.Fetch(ctx, req)
		a.observe(metrics.SourcePassthrough, err)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return resp, false, nil
	}

	c, err := a.storage.Open(ctx, string(a.generation))
	if err != nil {
		entry.WithError(err).Warn("cache_open_failed")
	} else {
		cached, err := c.Match(ctx, req)
		switch {
		case err == nil:
			a.metrics.ObserveFetch(metrics.SourceCache)
			entry.Debug("cache_hit")
			return cached, true, nil
		case errors.Is(err, cache.ErrNotFound):
			// miss, continue
		default:
			entry.WithError(err).Warn("cache_match_failed")
		}
	}

	resp, err := a.network.Fetch(ctx, req)
	if err != nil {
		a.observe(metrics.SourceNetwork, err)
		entry.WithError(err).Warn("network_fetch_failed")
		return nil, false, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	a.metrics.ObserveFetch(metrics.SourceNetwork)

	if c == nil || !a.cacheable(req) {
		return resp, false, nil
	}
	if err := c.Put(ctx, req, resp.Clone()); err != nil {
		if errors.Is(err, cache.ErrUnsupportedMethod) {
			entry.WithField("method", req.Method).Debug("cache_put_skipped")
		} else {
			entry.WithError(err).Warn("cache_put_failed")
		}
	}
	return resp, false, nil
}

// cacheable reports whether a fetched response may be stored: API calls are
// always live and other origins are never stored.
func (a *Agent) cacheable(req cache.Request) bool {
	if strings.Contains(req.URL, APIMarker) {
		return false
	}
	return a.sameOrigin(req.URL)
}

func (a *Agent) observe(source string, err error) {
	if err != nil {
		a.metrics.ObserveFetch(metrics.SourceError)
		return
	}
	a.metrics.ObserveFetch(source)
}
