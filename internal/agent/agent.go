// Package agent implements the offline cache agent: a lifecycle state machine
// (install → activate), fetch interception against one named cache
// generation, and the push / notification-click / background-sync handlers.
// Every host facility it touches (cache storage, network, client windows,
// notifications) is injected, so the same agent runs behind the local proxy
// in internal/proxy and inside unit tests.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/soulconnect/soulconnect/internal/cache"
	"github.com/soulconnect/soulconnect/internal/logging"
	"github.com/soulconnect/soulconnect/internal/metrics"
)

// CacheGeneration names one cache instance. Exactly one generation is current
// per agent; every cache with a different name is stale.
type CacheGeneration string

// State is a lifecycle phase of the agent.
type State string

const (
	StateUninstalled State = "uninstalled"
	StateInstalling  State = "installing"
	StateInstalled   State = "installed"
	StateActivating  State = "activating"
	StateActive      State = "active"
	// StateRedundant is terminal: install failed and this generation is discarded.
	StateRedundant State = "redundant"
)

// APIMarker marks URLs that are always fetched live and never cached.
const APIMarker = "/api/"

// DefaultAppName is used for notification titles when Options.AppName is empty.
const DefaultAppName = "SoulConnect"

// Fetcher performs network requests on behalf of the agent.
type Fetcher interface {
	Fetch(ctx context.Context, req cache.Request) (*cache.Response, error)
}

// WindowClient is one open page window.
type WindowClient interface {
	ID() string
	URL() string
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, target string) error
}

// Clients gives access to the page windows the agent may control.
type Clients interface {
	MatchAll(ctx context.Context) ([]WindowClient, error)
	OpenWindow(ctx context.Context, target string) (WindowClient, error)
	Claim(ctx context.Context) error
}

// Options configures an Agent. Storage, Network, Clients and Notifier are required.
type Options struct {
	Generation   CacheGeneration
	Manifest     []string
	Origin       string
	SyncEndpoint string
	AppName      string

	Storage  cache.Storage
	Network  Fetcher
	Clients  Clients
	Notifier Notifier

	Logger  *logrus.Logger
	Metrics *metrics.Metrics
}

// Agent 是离线缓存代理本体，生命周期操作串行执行，fetch 拦截可并发调用。
type Agent struct {
	generation   CacheGeneration
	manifest     []string
	origin       *url.URL
	syncEndpoint string
	appName      string

	storage  cache.Storage
	network  Fetcher
	clients  Clients
	notifier Notifier
	logger   *logrus.Logger
	metrics  *metrics.Metrics

	handlers map[EventKind]handlerFunc

	lifecycle sync.Mutex
	mu        sync.RWMutex
	state     State
}

// New validates opts and builds an agent in StateUninstalled.
func New(opts Options) (*Agent, error) {
	if strings.TrimSpace(string(opts.Generation)) == "" {
		return nil, errors.New("cache generation is required")
	}
	if len(opts.Manifest) == 0 {
		return nil, errors.New("manifest is required")
	}
	if opts.Storage == nil {
		return nil, errors.New("cache storage is required")
	}
	if opts.Network == nil {
		return nil, errors.New("network fetcher is required")
	}
	if opts.Clients == nil {
		return nil, errors.New("clients are required")
	}
	if opts.Notifier == nil {
		return nil, errors.New("notifier is required")
	}

	origin, err := url.Parse(opts.Origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", opts.Origin, err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin must be absolute: %q", opts.Origin)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	appName := opts.AppName
	if appName == "" {
		appName = DefaultAppName
	}
	syncEndpoint := opts.SyncEndpoint
	if syncEndpoint == "" {
		syncEndpoint = DefaultSyncEndpoint
	}

	a := &Agent{
		generation:   opts.Generation,
		manifest:     append([]string(nil), opts.Manifest...),
		origin:       origin,
		syncEndpoint: syncEndpoint,
		appName:      appName,
		storage:      opts.Storage,
		network:      opts.Network,
		clients:      opts.Clients,
		notifier:     opts.Notifier,
		logger:       logger,
		metrics:      opts.Metrics,
		state:        StateUninstalled,
	}
	a.handlers = a.dispatchTable()
	return a, nil
}

// Generation returns the current cache generation.
func (a *Agent) Generation() CacheGeneration {
	return a.generation
}

// Origin returns the origin this agent serves.
func (a *Agent) Origin() *url.URL {
	u := *a.origin
	return &u
}

// State returns the current lifecycle phase.
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Status is a snapshot for diagnostics.
type Status struct {
	Generation CacheGeneration `json:"generation"`
	State      State           `json:"state"`
	Caches     []string        `json:"caches"`
}

// Status reports the generation, state and the cache names currently stored.
func (a *Agent) Status(ctx context.Context) (Status, error) {
	names, err := a.storage.Keys(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Generation: a.generation, State: a.State(), Caches: names}, nil
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	prev := a.state
	a.state = s
	a.mu.Unlock()
	a.log("state").WithFields(logrus.Fields{"from": prev, "to": s}).Debug("agent_state_changed")
}

func (a *Agent) log(event string) *logrus.Entry {
	return a.logger.WithFields(logging.AgentFields(event, string(a.generation)))
}

// resolve turns a path such as "/index.html" into an absolute URL on the origin.
func (a *Agent) resolve(raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	return a.origin.ResolveReference(ref).String(), nil
}

// sameOrigin reports whether raw shares scheme and host with the agent origin.
func (a *Agent) sameOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, a.origin.Scheme) && strings.EqualFold(u.Host, a.origin.Host)
}
