package reloadclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/zot/lua-reload/internal/config"
	"github.com/zot/lua-reload/internal/server"
)

func newTestClient(t *testing.T, files map[string]string) (*Client, *server.Server) {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Lua.Roots = []string{dir}
	cfg.Journal.Backend = "memory"

	srv, err := server.New(cfg, nil)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL), srv
}

// TestClientImportReload verifies the import and reload round trips
func TestClientImportReload(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"app.lua": `import("lib")`,
		"lib.lua": ``,
	})

	imp, err := client.Import("app")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imp.Module != "app" {
		t.Errorf("imported %s, want app", imp.Module)
	}

	result, err := client.Reload("app", false)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if want := []string{"lib", "app"}; !reflect.DeepEqual(result.Reloaded, want) {
		t.Errorf("reloaded = %v, want %v", result.Reloaded, want)
	}
}

// TestClientModulesAndDependencies verifies listing calls
func TestClientModulesAndDependencies(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"app.lua": `import("lib")`,
		"lib.lua": ``,
	})
	if _, err := client.Import("app"); err != nil {
		t.Fatalf("import: %v", err)
	}

	mods, err := client.Modules()
	if err != nil {
		t.Fatalf("modules: %v", err)
	}
	if len(mods) != 2 || mods[0].Name != "app" {
		t.Errorf("modules = %+v, want app first of 2", mods)
	}

	deps, err := client.Dependencies("app")
	if err != nil {
		t.Fatalf("dependencies: %v", err)
	}
	if !deps.Tracked || !reflect.DeepEqual(deps.Dependencies, []string{"lib"}) {
		t.Errorf("deps = %+v, want tracked [lib]", deps)
	}
}

// TestClientGraphAndJournal verifies graph exports and the journal
func TestClientGraphAndJournal(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{
		"app.lua": `import("lib")`,
		"lib.lua": ``,
	})
	if _, err := client.Import("app"); err != nil {
		t.Fatalf("import: %v", err)
	}

	dot, err := client.GraphDOT()
	if err != nil {
		t.Fatalf("dot: %v", err)
	}
	if dot == "" {
		t.Error("empty DOT graph")
	}

	edges, err := client.GraphEdges()
	if err != nil {
		t.Fatalf("edges: %v", err)
	}
	if want := []string{"lib"}; !reflect.DeepEqual(edges["app"], want) {
		t.Errorf("edges[app] = %v, want %v", edges["app"], want)
	}

	entries, err := client.Journal(10)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(entries) != 1 || entries[0].Op != "import" {
		t.Errorf("journal = %+v, want one import entry", entries)
	}
}

// TestClientErrors verifies server errors surface as APIError
func TestClientErrors(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{"app.lua": ``})

	_, err := client.Reload("ghost", false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.Code != "not-found" {
		t.Errorf("code = %s, want not-found", apiErr.Code)
	}
}

// TestClientTrackingLifecycle verifies enable and disable round trips
func TestClientTrackingLifecycle(t *testing.T) {
	client, _ := newTestClient(t, map[string]string{"app.lua": ``})

	blacklist, err := client.EnableTracking([]string{"vendor"})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !reflect.DeepEqual(blacklist, []string{"vendor"}) {
		t.Errorf("blacklist = %v, want [vendor]", blacklist)
	}

	// nil keeps the server's current blacklist
	blacklist, err = client.EnableTracking(nil)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !reflect.DeepEqual(blacklist, []string{"vendor"}) {
		t.Errorf("blacklist = %v after nil enable, want [vendor] kept", blacklist)
	}

	if err := client.DisableTracking(); err != nil {
		t.Fatalf("disable: %v", err)
	}
	status, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Tracking {
		t.Error("tracking should be disabled")
	}
}

// TestClientEvents verifies the WebSocket event stream
func TestClientEvents(t *testing.T) {
	client, srv := newTestClient(t, map[string]string{
		"app.lua": `import("lib")`,
		"lib.lua": ``,
	})
	if _, err := client.Import("app"); err != nil {
		t.Fatalf("import: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := client.Events(ctx)
	if err != nil {
		t.Fatalf("events: %v", err)
	}

	if _, err := srv.Service().Reload("app", false, ""); err != nil {
		t.Fatalf("reload: %v", err)
	}

	select {
	case e, ok := <-events:
		if !ok {
			t.Fatal("event stream closed early")
		}
		if e.Kind != "reload" || e.Module != "app" {
			t.Errorf("event = %+v, want reload of app", e)
		}
	case <-ctx.Done():
		t.Fatal("no event within deadline")
	}
}
