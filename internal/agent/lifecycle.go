package agent

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/soulconnect/soulconnect/internal/cache"
)

// Start installs the agent and, because a fresh install never waits for old
// clients to close, activates it right away.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.Install(ctx); err != nil {
		return err
	}
	return a.Activate(ctx)
}

// Install 打开当前版本的缓存并预缓存清单中的全部 URL。任一 URL 拉取失败或
// 返回非 2xx 都会使整个安装失败且不写入任何条目，代理随即进入 redundant。
func (a *Agent) Install(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if s := a.State(); s != StateUninstalled {
		return fmt.Errorf("%w: install from %s", ErrInvalidState, s)
	}
	a.setState(StateInstalling)
	a.log("install").Info("agent installing")

	if err := a.precache(ctx); err != nil {
		a.setState(StateRedundant)
		a.log("install").WithError(err).Error("agent install failed")
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	a.setState(StateInstalled)
	a.log("install").WithField("manifest", len(a.manifest)).Info("opened cache")
	return nil
}

func (a *Agent) precache(ctx context.Context) error {
	c, err := a.storage.Open(ctx, string(a.generation))
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	entries := make([]cache.Entry, len(a.manifest))
	g, gctx := errgroup.WithContext(ctx)
	for i, raw := range a.manifest {
		g.Go(func() error {
			target, err := a.resolve(raw)
			if err != nil {
				return err
			}
			req := cache.Request{Method: http.MethodGet, URL: target}
			resp, err := a.network.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", target, err)
			}
			if !resp.OK() {
				return fmt.Errorf("fetch %s: unexpected status %d", target, resp.Status)
			}
			entries[i] = cache.Entry{Request: req, Response: resp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return c.PutAll(ctx, entries)
}

// Activate 删除所有名称不等于当前版本的缓存，全部删除结束后再接管已打开的页面。
// 删除或接管失败只记录日志，不阻止进入 active。
func (a *Agent) Activate(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if s := a.State(); s != StateInstalled {
		return fmt.Errorf("%w: activate from %s", ErrInvalidState, s)
	}
	a.setState(StateActivating)
	a.log("activate").Info("agent activated")

	if err := a.evictStale(ctx); err != nil {
		a.log("activate").WithError(err).Warn("cache eviction failed")
	}
	if err := a.clients.Claim(ctx); err != nil {
		a.log("activate").WithError(err).Warn("clients claim failed")
	}

	a.setState(StateActive)
	return nil
}

func (a *Agent) evictStale(ctx context.Context) error {
	names, err := a.storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list caches: %w", err)
	}

	current := string(a.generation)
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		if name == current {
			continue
		}
		g.Go(func() error {
			a.log("activate").WithField("cache", name).Info("deleting old cache")
			deleted, err := a.storage.Delete(gctx, name)
			if err != nil {
				return fmt.Errorf("delete cache %s: %w", name, err)
			}
			if deleted {
				a.metrics.ObserveEviction()
			}
			return nil
		})
	}
	return g.Wait()
}
