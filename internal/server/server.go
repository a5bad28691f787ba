// Package server implements the preview server: it renders templates on
// request, injects the assets of the invoked components and tells
// connected browsers to reload when templates or assets change.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/uikit/internal/assets"
	"github.com/conneroisu/uikit/internal/engine"
	uierrors "github.com/conneroisu/uikit/internal/errors"
	"github.com/conneroisu/uikit/internal/logging"
	"github.com/conneroisu/uikit/internal/middleware"
	"github.com/conneroisu/uikit/internal/version"
	"github.com/conneroisu/uikit/internal/watcher"
)

// Options configure a Server.
type Options struct {
	Addr string
	// Inline embeds asset contents instead of linking them.
	Inline bool
	// LiveReload injects the reload client into rendered pages.
	LiveReload bool
	// AllowedOrigins are extra websocket origin patterns, e.g. "localhost:3000".
	AllowedOrigins []string
	Logger         logging.Logger
}

// Server serves rendered templates and their assets.
type Server struct {
	engine *engine.Engine
	hub    *Hub
	opts   Options
	logger logging.Logger

	serverMutex  sync.RWMutex
	httpServer   *http.Server
	shutdownOnce sync.Once
}

// New creates a preview server for e.
func New(e *engine.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Server{
		engine: e,
		hub:    NewHub(opts.AllowedOrigins, opts.Logger),
		opts:   opts,
		logger: opts.Logger.WithComponent("server"),
	}
}

// Hub returns the live reload hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET "+assets.DefaultURLPrefix, s.engine.Assets())
	mux.Handle("GET /ws", s.hub)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /components", s.handleComponents)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /{template...}", s.handleRender)
	return middleware.New(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
		middleware.SecurityHeaders(),
		middleware.NoCache(),
	).Then(mux)
}

// Start serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, err, "shutdown failed")
		}
	}()

	s.logger.Info(ctx, "serving previews on http://{addr}", "addr", s.opts.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			err = server.Shutdown(ctx)
		}
	})
	return err
}

// HandleChanges is a watcher handler: it invalidates what changed and
// tells browsers to reload.
func (s *Server) HandleChanges(events []watcher.ChangeEvent) error {
	msg := Message{Type: MessageReload, Paths: watcher.Paths(events)}
	if err := s.engine.HandleChanges(events); err != nil {
		msg = Message{Type: MessageError, Error: err.Error()}
	}
	s.logger.Info(context.Background(), "{count} files changed, reloading", "count", len(events))
	s.hub.Broadcast(msg)
	return nil
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("template")
	data := make(map[string]string, len(r.URL.Query()))
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			data[key] = values[0]
		}
	}

	var buf bytes.Buffer
	pass, err := s.engine.Render(r.Context(), &buf, name, data)
	if err != nil {
		status := http.StatusInternalServerError
		if uierrors.HasCode(err, uierrors.CodeTemplateNotFound) {
			status = http.StatusNotFound
		}
		s.logger.Warn(r.Context(), err, "cannot render {template}", "template", name)
		http.Error(w, err.Error(), status)
		return
	}

	head, err := assets.Render(pass.Assets, s.opts.Inline)
	if err != nil {
		s.logger.Error(r.Context(), err, "cannot render assets of {template}", "template", name)
	}
	page := inject(buf.Bytes(), headClose, []byte(head), true)
	if s.opts.LiveReload {
		page = inject(page, bodyClose, []byte(reloadScript), false)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Uikit-Pass", pass.ID)
	_, _ = w.Write(page)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	names, err := s.engine.Templates()
	if err != nil {
		s.logger.Error(r.Context(), err, "cannot list templates")
		http.Error(w, "cannot list templates", http.StatusInternalServerError)
		return
	}

	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html><html><head><title>uikit</title></head><body><h1>Templates</h1><ul>")
	for _, name := range names {
		escaped := html.EscapeString(name)
		fmt.Fprintf(&b, `<li><a href="/%s">%s</a></li>`, escaped, escaped)
	}
	b.WriteString("</ul></body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b.Bytes())
}

type componentInfo struct {
	Class  string   `json:"class"`
	Name   string   `json:"name"`
	Tags   []string `json:"tags"`
	Assets []string `json:"assets,omitempty"`
}

func (s *Server) handleComponents(w http.ResponseWriter, _ *http.Request) {
	entries := s.engine.Registry().GetAll()
	out := make([]componentInfo, 0, len(entries))
	for _, entry := range entries {
		info := componentInfo{Class: entry.Class, Name: entry.Name, Tags: entry.Tags}
		if provider, ok := entry.Value.(assets.Provider); ok {
			info.Assets = provider.Assets()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	writeJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.Short(),
		"components": s.engine.Registry().Count(),
		"clients":    s.hub.Count(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

var (
	headClose = regexp.MustCompile(`(?i)</head\s*>`)
	bodyClose = regexp.MustCompile(`(?i)</body\s*>`)
)

// inject inserts snippet before the first match of marker. Without a
// match the snippet is prepended or appended.
func inject(page []byte, marker *regexp.Regexp, snippet []byte, prepend bool) []byte {
	if len(snippet) == 0 {
		return page
	}
	loc := marker.FindIndex(page)
	if loc == nil {
		if prepend {
			return append(append([]byte{}, snippet...), page...)
		}
		return append(page, snippet...)
	}
	out := make([]byte, 0, len(page)+len(snippet))
	out = append(out, page[:loc[0]]...)
	out = append(out, snippet...)
	return append(out, page[loc[0]:]...)
}

const reloadScript = `<script data-uikit-reload>
(function () {
  var url = (location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws";
  var connect = function () {
    var ws = new WebSocket(url);
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      if (msg.type === "reload") { location.reload(); }
      if (msg.type === "error") { console.error("uikit:", msg.error); }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  };
  connect();
})();
</script>
`
