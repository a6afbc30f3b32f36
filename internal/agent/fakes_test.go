package agent

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/soulconnect/soulconnect/internal/cache"
)

const testOrigin = "http://localhost:8081"

var errOffline = errors.New("network offline")

type fakeNetwork struct {
	mu      sync.Mutex
	routes  map[string]*cache.Response
	offline bool
	calls   map[string]int
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{routes: make(map[string]*cache.Response), calls: make(map[string]int)}
}

func (n *fakeNetwork) route(url string, status int, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes[url] = &cache.Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   []byte(body),
		URL:    url,
	}
}

func (n *fakeNetwork) setOffline(offline bool) {
	n.mu.Lock()
	n.offline = offline
	n.mu.Unlock()
}

func (n *fakeNetwork) Fetch(_ context.Context, req cache.Request) (*cache.Response, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[req.URL]++
	if n.offline {
		return nil, errOffline
	}
	resp, ok := n.routes[req.URL]
	if !ok {
		return &cache.Response{Status: http.StatusNotFound, Header: http.Header{}, URL: req.URL}, nil
	}
	return resp.Clone(), nil
}

func (n *fakeNetwork) callCount(url string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[url]
}

type fakeWindow struct {
	id        string
	url       string
	focused   int
	navigated []string
}

func (w *fakeWindow) ID() string  { return w.id }
func (w *fakeWindow) URL() string { return w.url }

func (w *fakeWindow) Focus(context.Context) error {
	w.focused++
	return nil
}

func (w *fakeWindow) Navigate(_ context.Context, target string) error {
	w.navigated = append(w.navigated, target)
	return nil
}

type fakeClients struct {
	windows []*fakeWindow
	opened  []string
	claims  int
}

func (c *fakeClients) MatchAll(context.Context) ([]WindowClient, error) {
	out := make([]WindowClient, 0, len(c.windows))
	for _, w := range c.windows {
		out = append(out, w)
	}
	return out, nil
}

func (c *fakeClients) OpenWindow(_ context.Context, target string) (WindowClient, error) {
	c.opened = append(c.opened, target)
	return &fakeWindow{id: "new", url: target}, nil
}

func (c *fakeClients) Claim(context.Context) error {
	c.claims++
	return nil
}

type shownNotification struct {
	title string
	opts  NotificationOptions
}

type fakeNotifier struct {
	shown []shownNotification
	err   error
}

func (n *fakeNotifier) ShowNotification(_ context.Context, title string, opts NotificationOptions) error {
	if n.err != nil {
		return n.err
	}
	n.shown = append(n.shown, shownNotification{title: title, opts: opts})
	return nil
}

type fakeNotification struct {
	closed int
}

func (n *fakeNotification) Close() { n.closed++ }

type harness struct {
	agent    *Agent
	storage  cache.Storage
	network  *fakeNetwork
	clients  *fakeClients
	notifier *fakeNotifier
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		storage:  cache.NewMemoryStorage(),
		network:  newFakeNetwork(),
		clients:  &fakeClients{},
		notifier: &fakeNotifier{},
	}
	for _, path := range []string{"/", "/index.html", "/manifest.json", "/sw.js"} {
		h.network.route(testOrigin+path, http.StatusOK, "shell "+path)
	}
	opts := Options{
		Generation: "soulconnect-mobile-v2",
		Manifest:   []string{"/", "/index.html", "/manifest.json", "/sw.js"},
		Origin:     testOrigin,
		Storage:    h.storage,
		Network:    h.network,
		Clients:    h.clients,
		Notifier:   h.notifier,
	}
	if mutate != nil {
		mutate(&opts)
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	h.agent = a
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.agent.Start(context.Background()); err != nil {
		t.Fatalf("start agent: %v", err)
	}
}

func (h *harness) cachedURLs(t *testing.T, name string) []string {
	t.Helper()
	c, err := h.storage.Open(context.Background(), name)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	reqs, err := c.Keys(context.Background())
	if err != nil {
		t.Fatalf("cache keys: %v", err)
	}
	urls := make([]string, len(reqs))
	for i, r := range reqs {
		urls[i] = r.URL
	}
	return urls
}
