// Package server exposes the reload runtime over HTTP and WebSocket.
package server

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/zot/lua-reload/internal/journal"
	"github.com/zot/lua-reload/internal/lua"
	"github.com/zot/lua-reload/internal/modname"
	"github.com/zot/lua-reload/internal/protocol"
	"github.com/zot/lua-reload/internal/reloader"
)

// Service executes operations against the shared runtime. Calls may arrive
// from any goroutine; every runtime touch is queued on the service channel so
// the interpreter only ever runs on one.
type Service struct {
	rt      *lua.Runtime
	session *reloader.Session
	journal journal.Backend
	events  *EventHub
	svc     ChanSvc
	log     *log.Logger
	limit   int  // default journal listing limit
	verbose bool // trace every reload even when the request does not ask
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Journal      journal.Backend
	Logger       *log.Logger
	JournalLimit int
	Verbose      bool
}

// NewService creates the service and starts its executor goroutine.
func NewService(rt *lua.Runtime, session *reloader.Session, opts ServiceOptions) *Service {
	if opts.Journal == nil {
		opts.Journal = journal.Discard
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.JournalLimit <= 0 {
		opts.JournalLimit = 100
	}

	s := &Service{
		rt:      rt,
		session: session,
		journal: opts.Journal,
		events:  NewEventHub(),
		svc:     make(ChanSvc),
		log:     opts.Logger,
		limit:   opts.JournalLimit,
		verbose: opts.Verbose,
	}
	RunSvc(s.svc)
	return s
}

// Events returns the hub carrying server-push notifications.
func (s *Service) Events() *EventHub {
	return s.events
}

// Close stops the executor once queued work has drained, then the event hub.
func (s *Service) Close() {
	done := make(chan struct{})
	s.svc <- func() { close(done) }
	close(s.svc)
	<-done
	s.events.Close()
}

// Do runs fn on the runtime goroutine and waits for it. Host code uses this
// to call into the interpreter without racing the API.
func (s *Service) Do(fn func(rt *lua.Runtime) error) error {
	_, err := SvcSync(s.svc, func() (struct{}, error) {
		return struct{}{}, fn(s.rt)
	})
	return err
}

// Reload re-executes name's dependency subtree in reverse discovery order.
// A non-empty scope limits re-executed dependencies to names under that
// dotted prefix; the named module itself always re-executes.
func (s *Service) Reload(name string, verbose bool, scope string) (*protocol.ReloadResponse, error) {
	return SvcSync(s.svc, func() (*protocol.ReloadResponse, error) {
		m, ok := s.rt.Registry().Lookup(name)
		if !ok {
			return nil, &lua.NotLoadedError{Name: name}
		}

		var order []string
		opts := []reloader.ReloadOption{
			reloader.WithVerbose(verbose || s.verbose),
			reloader.WithNotify(func(m *lua.Module) {
				order = append(order, m.Name())
			}),
		}
		if scope != "" {
			opts = append(opts, reloader.WithScope(func(m *lua.Module) bool {
				return modname.Within(m.Name(), scope)
			}))
		}

		start := time.Now()
		err := s.session.Reload(m, opts...)
		elapsed := time.Since(start)

		s.record(&journal.Entry{
			Op:       journal.OpReload,
			Module:   name,
			Modules:  order,
			Duration: elapsed,
			Error:    errString(err),
		})
		s.events.Publish(protocol.Event{Kind: "reload", Module: name, Modules: order, Error: errString(err)})
		if err != nil {
			return nil, err
		}

		return &protocol.ReloadResponse{
			Module:     name,
			Reloaded:   order,
			DurationMS: float64(elapsed) / float64(time.Millisecond),
		}, nil
	})
}

// Import loads a module by dotted name.
func (s *Service) Import(name string) (*protocol.ImportResponse, error) {
	return SvcSync(s.svc, func() (*protocol.ImportResponse, error) {
		m, err := s.rt.ImportModule(name)
		s.record(&journal.Entry{Op: journal.OpImport, Module: name, Error: errString(err)})
		if err != nil {
			s.events.Publish(protocol.Event{Kind: "import", Module: name, Error: err.Error()})
			return nil, err
		}
		s.events.Publish(protocol.Event{Kind: "import", Module: m.Name()})
		return &protocol.ImportResponse{Module: m.Name(), File: m.File()}, nil
	})
}

// Modules lists loaded modules in load order.
func (s *Service) Modules() (*protocol.ModulesResponse, error) {
	return SvcSync(s.svc, func() (*protocol.ModulesResponse, error) {
		mods := s.rt.Registry().Modules()
		infos := make([]protocol.ModuleInfo, len(mods))
		for i, m := range mods {
			infos[i] = protocol.ModuleInfo{Name: m.Name(), File: m.File(), Builtin: m.Builtin()}
		}
		return &protocol.ModulesResponse{Modules: infos}, nil
	})
}

// Dependencies reports a module's recorded imports in discovery order.
func (s *Service) Dependencies(name string) (*protocol.DependenciesResponse, error) {
	return SvcSync(s.svc, func() (*protocol.DependenciesResponse, error) {
		if _, ok := s.rt.Registry().Lookup(name); !ok {
			return nil, &lua.NotLoadedError{Name: name}
		}
		deps, tracked := s.session.Dependencies(name)
		resp := &protocol.DependenciesResponse{Module: name, Tracked: tracked}
		for _, d := range deps {
			resp.Dependencies = append(resp.Dependencies, d.Name())
		}
		return resp, nil
	})
}

// DependencyGraph exports the dependency graph in the requested format.
func (s *Service) DependencyGraph(format string) (*protocol.GraphResponse, error) {
	return SvcSync(s.svc, func() (*protocol.GraphResponse, error) {
		g := s.session.Graph()
		resp := &protocol.GraphResponse{Format: format}
		switch format {
		case "mermaid":
			resp.Text = g.Mermaid()
		case "json":
			edges := make(map[string][]string)
			for _, parent := range g.Parents() {
				deps, _ := g.Get(parent)
				names := make([]string, len(deps))
				for i, d := range deps {
					names[i] = d.Name()
				}
				edges[parent] = names
			}
			resp.Edges = edges
		default:
			resp.Text = g.DOT()
		}
		return resp, nil
	})
}

// Journal lists recent journal entries, newest first.
func (s *Service) Journal(limit int) (*protocol.JournalResponse, error) {
	if limit <= 0 {
		limit = s.limit
	}
	entries, err := s.journal.Recent(limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return &protocol.JournalResponse{Entries: entries}, nil
}

// EnableTracking turns dependency tracking on. A nil blacklist keeps the
// current one; a non-nil slice (even empty) replaces it.
func (s *Service) EnableTracking(blacklist []string) (*protocol.EnableResponse, error) {
	return SvcSync(s.svc, func() (*protocol.EnableResponse, error) {
		s.session.Enable(blacklist)
		effective := s.session.Blacklist()
		s.record(&journal.Entry{Op: journal.OpEnable, Modules: effective})
		s.events.Publish(protocol.Event{Kind: "enable", Modules: effective})
		return &protocol.EnableResponse{Blacklist: effective}, nil
	})
}

// DisableTracking restores plain imports and clears all tracking state.
func (s *Service) DisableTracking() (*protocol.EnableResponse, error) {
	return SvcSync(s.svc, func() (*protocol.EnableResponse, error) {
		s.session.Disable()
		s.record(&journal.Entry{Op: journal.OpDisable})
		s.events.Publish(protocol.Event{Kind: "disable"})
		return &protocol.EnableResponse{}, nil
	})
}

// Status summarizes the runtime.
func (s *Service) Status() (*protocol.StatusResponse, error) {
	return SvcSync(s.svc, func() (*protocol.StatusResponse, error) {
		return &protocol.StatusResponse{
			Tracking:  s.session.Enabled(),
			Modules:   s.rt.Registry().Len(),
			Tracked:   s.session.Graph().Len(),
			Roots:     s.rt.Resolver().Roots(),
			Blacklist: s.session.Blacklist(),
		}, nil
	})
}

// record appends a journal entry, stamping its ID and time.
func (s *Service) record(e *journal.Entry) {
	e.ID = uuid.NewString()
	e.Time = time.Now().UTC()
	if err := s.journal.Append(e); err != nil {
		s.log.Error("failed to record journal entry", "op", e.Op, "error", err)
	}
}

func errString(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}
