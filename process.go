package main

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/soulconnect/soulconnect/internal/agent"
	"github.com/soulconnect/soulconnect/internal/cache"
	"github.com/soulconnect/soulconnect/internal/config"
	"github.com/soulconnect/soulconnect/internal/host"
	"github.com/soulconnect/soulconnect/internal/logging"
	"github.com/soulconnect/soulconnect/internal/metrics"
	"github.com/soulconnect/soulconnect/internal/network"
	"github.com/soulconnect/soulconnect/internal/proxy"
	"github.com/soulconnect/soulconnect/internal/server"
	"github.com/soulconnect/soulconnect/internal/static"
	"github.com/soulconnect/soulconnect/internal/version"
)

const shutdownTimeout = 5 * time.Second

type listener struct {
	name string
	addr string
	app  *fiber.App
}

// runServe 启动静态文件服务（以及可选的指标监听），直到 ctx 结束。
func runServe(ctx context.Context, cfg *config.Config, logger *logrus.Logger, configPath string, files fs.FS) error {
	m := metrics.New()
	app, err := server.NewApp(server.AppOptions{
		Logger:    logger,
		Responder: static.New(files, nil),
		Metrics:   m,
	})
	if err != nil {
		return failure("构建静态服务失败", err)
	}

	fields := logging.BaseFields("startup", configPath)
	fields["root"] = cfg.Global.Root
	fields["listen"] = cfg.Global.ListenAddr()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	listeners := []listener{{name: "static", addr: cfg.Global.ListenAddr(), app: app}}
	if addr := cfg.Global.MetricsAddr(); addr != "" {
		listeners = append(listeners, listener{name: "metrics", addr: addr, app: m.NewApp()})
	}
	if err := serveUntilDone(ctx, logger, listeners); err != nil {
		return failure("HTTP 服务启动失败", err)
	}
	return nil
}

// runAgent 按“存储 → 网络 → 宿主能力 → 代理安装激活 → Fiber 监听”的顺序启动缓存代理。
// 安装失败时代理保持 redundant，所有请求直接透传到源站。
func runAgent(ctx context.Context, cfg *config.Config, logger *logrus.Logger, configPath string) error {
	storage, err := cache.NewStorage(cfg.Agent.StorageBackend, cfg.Agent.StoragePath)
	if err != nil {
		return failure("初始化缓存存储失败", err)
	}
	defer storage.Close()

	fetcher, err := network.NewFetcher(network.NewClient(cfg.Agent.NetworkTimeout.DurationValue()), cfg.Agent.Origin, logger)
	if err != nil {
		return failure("初始化网络客户端失败", err)
	}
	clients, err := host.NewClients(cfg.Agent.Origin, logger)
	if err != nil {
		return failure("初始化客户端注册表失败", err)
	}
	notifications := host.NewNotifications(host.DefaultHistory, logger)
	m := metrics.New()

	a, err := agent.New(agent.Options{
		Generation:   agent.CacheGeneration(cfg.Agent.CacheGeneration),
		Manifest:     cfg.Agent.Manifest,
		Origin:       cfg.Agent.Origin,
		SyncEndpoint: cfg.Agent.SyncEndpoint,
		AppName:      cfg.Agent.AppName,
		Storage:      storage,
		Network:      fetcher,
		Clients:      clients,
		Notifier:     notifications,
		Logger:       logger,
		Metrics:      m,
	})
	if err != nil {
		return failure("构建缓存代理失败", err)
	}

	fields := logging.BaseFields("startup", configPath)
	fields["origin"] = cfg.Agent.Origin
	fields["generation"] = cfg.Agent.CacheGeneration
	fields["storage_backend"] = cfg.Agent.StorageBackend
	fields["listen"] = cfg.AgentListenAddr()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := a.Start(ctx); err != nil {
		logger.WithFields(logging.AgentFields("start", cfg.Agent.CacheGeneration)).
			WithError(err).Warn("agent not active, requests pass through to origin")
	}

	app, err := proxy.NewApp(proxy.AppOptions{
		Logger:        logger,
		Agent:         a,
		Clients:       clients,
		Notifications: notifications,
	})
	if err != nil {
		return failure("构建代理服务失败", err)
	}

	listeners := []listener{{name: "agent", addr: cfg.AgentListenAddr(), app: app}}
	if addr := cfg.AgentMetricsAddr(); addr != "" {
		listeners = append(listeners, listener{name: "metrics", addr: addr, app: m.NewApp()})
	}
	if err := serveUntilDone(ctx, logger, listeners); err != nil {
		return failure("HTTP 服务启动失败", err)
	}
	return nil
}

// serveUntilDone 并发启动全部监听；ctx 结束或任一监听失败时统一关闭。
func serveUntilDone(ctx context.Context, logger *logrus.Logger, listeners []listener) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		g.Go(func() error {
			logger.WithFields(logrus.Fields{
				"action":   "listen",
				"listener": l.name,
				"addr":     l.addr,
			}).Info("Fiber 服务启动")
			if err := l.app.Listen(l.addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
				return fmt.Errorf("%s listener %s: %w", l.name, l.addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, l := range listeners {
			if err := l.app.ShutdownWithContext(shutdownCtx); err != nil {
				logger.WithFields(logrus.Fields{"action": "shutdown", "listener": l.name}).
					WithError(err).Warn("shutdown failed")
			}
		}
		return nil
	})
	return g.Wait()
}
