package agent

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/soulconnect/soulconnect/internal/cache"
)

func TestNewRequiresCollaborators(t *testing.T) {
	base := Options{
		Generation: "v1",
		Manifest:   []string{"/"},
		Origin:     testOrigin,
		Storage:    cache.NewMemoryStorage(),
		Network:    newFakeNetwork(),
		Clients:    &fakeClients{},
		Notifier:   &fakeNotifier{},
	}
	cases := map[string]func(*Options){
		"generation": func(o *Options) { o.Generation = " " },
		"manifest":   func(o *Options) { o.Manifest = nil },
		"storage":    func(o *Options) { o.Storage = nil },
		"network":    func(o *Options) { o.Network = nil },
		"clients":    func(o *Options) { o.Clients = nil },
		"notifier":   func(o *Options) { o.Notifier = nil },
		"origin":     func(o *Options) { o.Origin = "/relative" },
	}
	for name, mutate := range cases {
		opts := base
		mutate(&opts)
		if _, err := New(opts); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	a, err := New(base)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	if a.State() != StateUninstalled {
		t.Fatalf("unexpected initial state %s", a.State())
	}
}

func TestInstallCachesExactlyTheManifest(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.agent.Install(context.Background()); err != nil {
		t.Fatalf("install: %v", err)
	}
	if h.agent.State() != StateInstalled {
		t.Fatalf("expected installed, got %s", h.agent.State())
	}

	want := []string{
		testOrigin + "/",
		testOrigin + "/index.html",
		testOrigin + "/manifest.json",
		testOrigin + "/sw.js",
	}
	if got := h.cachedURLs(t, "soulconnect-mobile-v2"); !reflect.DeepEqual(got, want) {
		t.Fatalf("cached urls mismatch:\n got %v\nwant %v", got, want)
	}
}

func TestInstallIsAllOrNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.network.route(testOrigin+"/sw.js", http.StatusNotFound, "missing")

	err := h.agent.Install(context.Background())
	if !errors.Is(err, ErrInstallFailed) {
		t.Fatalf("expected ErrInstallFailed, got %v", err)
	}
	if h.agent.State() != StateRedundant {
		t.Fatalf("expected redundant, got %s", h.agent.State())
	}
	if got := h.cachedURLs(t, "soulconnect-mobile-v2"); len(got) != 0 {
		t.Fatalf("failed install must not cache anything, got %v", got)
	}
	if err := h.agent.Activate(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("redundant agent must not activate, got %v", err)
	}
}

func TestInstallNetworkFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.network.setOffline(true)

	if err := h.agent.Start(context.Background()); !errors.Is(err, errOffline) {
		t.Fatalf("expected wrapped network error, got %v", err)
	}
	if h.agent.State() != StateRedundant {
		t.Fatalf("expected redundant, got %s", h.agent.State())
	}
}

func TestInstallTwiceRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	if err := h.agent.Install(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestActivateEvictsStaleGenerations(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	for _, name := range []string{"soulconnect-mobile-v1", "other-app"} {
		c, err := h.storage.Open(ctx, name)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		if err := c.Put(ctx, cache.Request{URL: testOrigin + "/old"}, &cache.Response{Status: 200}); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	h.start(t)
	if h.agent.State() != StateActive {
		t.Fatalf("expected active, got %s", h.agent.State())
	}
	names, err := h.storage.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"soulconnect-mobile-v2"}) {
		t.Fatalf("only the current generation should remain, got %v", names)
	}
	if h.clients.claims != 1 {
		t.Fatalf("expected one claim, got %d", h.clients.claims)
	}
}

func TestActivateRequiresInstall(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.agent.Activate(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestStatusReportsCaches(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	st, err := h.agent.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != StateActive || st.Generation != "soulconnect-mobile-v2" {
		t.Fatalf("unexpected status %+v", st)
	}
	if !reflect.DeepEqual(st.Caches, []string{"soulconnect-mobile-v2"}) {
		t.Fatalf("unexpected caches %v", st.Caches)
	}
}
