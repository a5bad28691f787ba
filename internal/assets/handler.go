package assets

import (
	"context"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/uikit/internal/logging"
	"github.com/conneroisu/uikit/internal/registry"
)

// DefaultURLPrefix is where the handler serves asset files.
const DefaultURLPrefix = "/assets/"

// Invocations lists the component classes a render pass invoked.
type Invocations interface {
	Classes() []string
}

// Handler resolves component assets against a filesystem.
type Handler struct {
	registry    *registry.ComponentRegistry
	fs          afero.Fs
	directories []string
	prefix      string
	logger      logging.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithDirectories adds directories relative asset paths are looked up
// in, in order. Directories that do not exist are ignored.
func WithDirectories(dirs ...string) Option {
	return func(h *Handler) { h.directories = append(h.directories, dirs...) }
}

// WithURLPrefix sets the URL prefix assets are served under.
func WithURLPrefix(prefix string) Option {
	return func(h *Handler) { h.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// New creates a handler reading files from fs.
func New(reg *registry.ComponentRegistry, fs afero.Fs, opts ...Option) *Handler {
	h := &Handler{
		registry: reg,
		fs:       fs,
		prefix:   DefaultURLPrefix,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.WithComponent("assets")
	if !strings.HasSuffix(h.prefix, "/") {
		h.prefix += "/"
	}

	existing := make([]string, 0, len(h.directories))
	for _, dir := range h.directories {
		if ok, _ := afero.DirExists(fs, dir); ok {
			existing = append(existing, filepath.Clean(dir))
			continue
		}
		h.logger.Debug(context.Background(), "ignoring missing asset directory {dir}", "dir", dir)
	}
	h.directories = existing
	return h
}

// Directories returns the asset directories in lookup order.
func (h *Handler) Directories() []string {
	return append([]string(nil), h.directories...)
}

// Resolve finds the file declared as p. Absolute paths are used as is;
// relative ones are tried against each directory and then as given.
func (h *Handler) Resolve(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	if filepath.IsAbs(p) {
		return p, h.isFile(p)
	}
	for _, dir := range h.directories {
		candidate := filepath.Join(dir, p)
		if h.isFile(candidate) {
			return candidate, true
		}
	}
	candidate := filepath.Clean(p)
	return candidate, h.isFile(candidate)
}

func (h *Handler) isFile(p string) bool {
	info, err := h.fs.Stat(p)
	return err == nil && !info.IsDir()
}

// ComponentAssets returns the existing assets of every invoked class.
// Classes, or component names, listed in filter are skipped.
func (h *Handler) ComponentAssets(invocations Invocations, filter ...string) []Asset {
	skip := make(map[string]bool, len(filter))
	for _, f := range filter {
		skip[f] = true
	}

	var assets []Asset
	seen := make(map[string]bool)
	for _, class := range invocations.Classes() {
		entry, ok := h.registry.Get(class)
		if !ok || skip[class] || skip[entry.Name] {
			continue
		}
		provider, ok := entry.Value.(Provider)
		if !ok {
			continue
		}
		for _, declared := range provider.Assets() {
			file, ok := h.Resolve(declared)
			if !ok {
				h.logger.Debug(context.Background(), "asset {path} of {component} not found",
					"path", declared, "component", entry.Name)
				continue
			}
			if seen[file] {
				continue
			}
			seen[file] = true
			assets = append(assets, Asset{
				Kind:      KindOf(declared),
				Path:      declared,
				File:      file,
				URL:       h.url(declared),
				Class:     class,
				Component: entry.Name,
				fs:        h.fs,
			})
		}
	}
	return assets
}

func (h *Handler) url(declared string) string {
	return h.prefix + strings.TrimPrefix(path.Clean(filepath.ToSlash(declared)), "/")
}

// Lookup finds the declared asset served at urlPath.
func (h *Handler) Lookup(urlPath string) (Asset, bool) {
	for _, entry := range h.registry.GetAll() {
		provider, ok := entry.Value.(Provider)
		if !ok {
			continue
		}
		for _, declared := range provider.Assets() {
			if h.url(declared) != urlPath {
				continue
			}
			file, ok := h.Resolve(declared)
			if !ok {
				return Asset{}, false
			}
			return Asset{
				Kind:      KindOf(declared),
				Path:      declared,
				File:      file,
				URL:       urlPath,
				Class:     entry.Class,
				Component: entry.Name,
				fs:        h.fs,
			}, true
		}
	}
	return Asset{}, false
}

// ServeHTTP serves the files components declare. Nothing else on the
// filesystem is reachable.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	asset, ok := h.Lookup(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := h.fs.Open(asset.File)
	if err != nil {
		h.logger.Error(r.Context(), err, "cannot open asset {file}", "file", asset.File)
		http.Error(w, "asset unavailable", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "asset unavailable", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, path.Base(asset.File), info.ModTime(), f)
}
