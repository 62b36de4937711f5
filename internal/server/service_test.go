package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/zot/lua-reload/internal/config"
	"github.com/zot/lua-reload/internal/journal"
	"github.com/zot/lua-reload/internal/lua"
	"github.com/zot/lua-reload/internal/protocol"
)

func newTestServer(t *testing.T, files map[string]string) *Server {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Lua.Roots = []string{dir}
	cfg.Journal.Backend = "memory"

	srv, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

// TestServiceImportAndModules verifies imports register modules in load order
func TestServiceImportAndModules(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"app.lua": `import("lib")`,
		"lib.lua": ``,
	})
	svc := srv.Service()

	imp, err := svc.Import("app")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imp.Module != "app" || imp.File == "" {
		t.Errorf("import response = %+v, want app with a file", imp)
	}

	mods, err := svc.Modules()
	if err != nil {
		t.Fatalf("modules: %v", err)
	}
	var names []string
	for _, m := range mods.Modules {
		names = append(names, m.Name)
	}
	if want := []string{"app", "lib"}; !reflect.DeepEqual(names, want) {
		t.Errorf("modules = %v, want %v", names, want)
	}
}

// TestServiceReloadReportsOrder verifies the response lists re-executed
// modules dependencies first
func TestServiceReloadReportsOrder(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"app.lua": `import("lib")`,
		"lib.lua": ``,
	})
	svc := srv.Service()
	if _, err := svc.Import("app"); err != nil {
		t.Fatalf("import: %v", err)
	}

	resp, err := svc.Reload("app", false, "")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if want := []string{"lib", "app"}; !reflect.DeepEqual(resp.Reloaded, want) {
		t.Errorf("reloaded = %v, want %v", resp.Reloaded, want)
	}
	if resp.DurationMS < 0 {
		t.Errorf("duration = %f, want non-negative", resp.DurationMS)
	}
}

// TestServiceReloadScope verifies the scope prefix gates dependencies only
func TestServiceReloadScope(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"app.lua":         `import("lib") import("util.helper")`,
		"lib.lua":         ``,
		"util/helper.lua": ``,
	})
	svc := srv.Service()
	if _, err := svc.Import("app"); err != nil {
		t.Fatalf("import: %v", err)
	}

	resp, err := svc.Reload("app", false, "util")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if want := []string{"util.helper", "app"}; !reflect.DeepEqual(resp.Reloaded, want) {
		t.Errorf("reloaded = %v, want %v (lib out of scope, app always reloads)", resp.Reloaded, want)
	}
}

// TestServiceReloadUnknownModule verifies unloaded names are rejected
func TestServiceReloadUnknownModule(t *testing.T) {
	srv := newTestServer(t, map[string]string{"app.lua": ``})
	_, err := srv.Service().Reload("ghost", false, "")
	var notLoaded *lua.NotLoadedError
	if !errors.As(err, &notLoaded) {
		t.Fatalf("error = %v, want NotLoadedError", err)
	}
	if notLoaded.Name != "ghost" {
		t.Errorf("error names %q, want ghost", notLoaded.Name)
	}
}

// TestServiceDependencies verifies tracked, untracked, and unloaded lookups
func TestServiceDependencies(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"app.lua": `import("lib")`,
		"lib.lua": ``,
	})
	svc := srv.Service()
	if _, err := svc.Import("app"); err != nil {
		t.Fatalf("import: %v", err)
	}

	deps, err := svc.Dependencies("app")
	if err != nil {
		t.Fatalf("dependencies: %v", err)
	}
	if !deps.Tracked || !reflect.DeepEqual(deps.Dependencies, []string{"lib"}) {
		t.Errorf("deps = %+v, want tracked [lib]", deps)
	}

	deps, err = svc.Dependencies("lib")
	if err != nil {
		t.Fatalf("dependencies: %v", err)
	}
	if deps.Tracked {
		t.Error("lib imported nothing, should be untracked")
	}

	if _, err := svc.Dependencies("ghost"); err == nil {
		t.Error("expected error for unloaded module")
	}
}

// TestServiceGraphFormats verifies the three export formats
func TestServiceGraphFormats(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"app.lua": `import("lib")`,
		"lib.lua": ``,
	})
	svc := srv.Service()
	if _, err := svc.Import("app"); err != nil {
		t.Fatalf("import: %v", err)
	}

	dot, err := svc.DependencyGraph("dot")
	if err != nil {
		t.Fatalf("dot: %v", err)
	}
	if dot.Text == "" || dot.Edges != nil {
		t.Errorf("dot response = %+v, want text only", dot)
	}

	mermaid, err := svc.DependencyGraph("mermaid")
	if err != nil {
		t.Fatalf("mermaid: %v", err)
	}
	if mermaid.Text == "" {
		t.Error("mermaid response should carry text")
	}

	js, err := svc.DependencyGraph("json")
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if want := []string{"lib"}; !reflect.DeepEqual(js.Edges["app"], want) {
		t.Errorf("edges[app] = %v, want %v", js.Edges["app"], want)
	}
}

// TestServiceEnableDisable verifies tracking lifecycle over the service
func TestServiceEnableDisable(t *testing.T) {
	srv := newTestServer(t, map[string]string{"app.lua": ``})
	svc := srv.Service()

	status, err := svc.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Tracking {
		t.Fatal("tracking should start enabled")
	}

	if _, err := svc.DisableTracking(); err != nil {
		t.Fatalf("disable: %v", err)
	}
	status, _ = svc.Status()
	if status.Tracking || status.Tracked != 0 {
		t.Errorf("status after disable = %+v, want tracking off and empty graph", status)
	}

	resp, err := svc.EnableTracking([]string{"vendor"})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !reflect.DeepEqual(resp.Blacklist, []string{"vendor"}) {
		t.Errorf("blacklist = %v, want [vendor]", resp.Blacklist)
	}

	// nil keeps the current blacklist
	resp, err = svc.EnableTracking(nil)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !reflect.DeepEqual(resp.Blacklist, []string{"vendor"}) {
		t.Errorf("blacklist = %v after nil enable, want [vendor] kept", resp.Blacklist)
	}
}

// TestServiceJournalRecords verifies operations land in the journal
func TestServiceJournalRecords(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"app.lua": `import("lib")`,
		"lib.lua": ``,
	})
	svc := srv.Service()
	if _, err := svc.Import("app"); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := svc.Reload("app", false, ""); err != nil {
		t.Fatalf("reload: %v", err)
	}

	resp, err := svc.Journal(10)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("got %d entries, want import and reload", len(resp.Entries))
	}
	newest := resp.Entries[0]
	if newest.Op != journal.OpReload || !reflect.DeepEqual(newest.Modules, []string{"lib", "app"}) {
		t.Errorf("newest entry = %+v, want reload of [lib app]", newest)
	}
	if resp.Entries[1].Op != journal.OpImport {
		t.Errorf("older entry op = %s, want import", resp.Entries[1].Op)
	}
}

// TestEventsPublishedOnReload verifies subscribers observe operations
func TestEventsPublishedOnReload(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"app.lua": `import("lib")`,
		"lib.lua": ``,
	})
	svc := srv.Service()
	if _, err := svc.Import("app"); err != nil {
		t.Fatalf("import: %v", err)
	}

	ch := svc.Events().Subscribe("test-sub")
	t.Cleanup(func() { svc.Events().Unsubscribe("test-sub") })

	if _, err := svc.Reload("app", false, ""); err != nil {
		t.Fatalf("reload: %v", err)
	}

	select {
	case msg := <-ch:
		var e protocol.Event
		if err := msg.DecodeData(&e); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if e.Kind != "reload" || e.Module != "app" {
			t.Errorf("event = %+v, want reload of app", e)
		}
		if want := []string{"lib", "app"}; !reflect.DeepEqual(e.Modules, want) {
			t.Errorf("event modules = %v, want %v", e.Modules, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event within deadline")
	}
}

// TestEventHubDropsWhenBackedUp verifies a stalled subscriber cannot block
func TestEventHubDropsWhenBackedUp(t *testing.T) {
	hub := NewEventHub()
	t.Cleanup(hub.Close)

	hub.Subscribe("stalled")
	for i := 0; i < eventBuffer+10; i++ {
		hub.Publish(protocol.Event{Kind: "reload"})
	}
	// reaching here without blocking is the assertion
	if hub.SubscriberCount() != 1 {
		t.Errorf("subscribers = %d, want 1", hub.SubscriberCount())
	}
}
