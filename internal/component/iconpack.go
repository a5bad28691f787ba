package component

import (
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/uikit/internal/element"
)

// Vector is the SVG body of one icon plus its presentation attributes.
type Vector struct {
	Attributes element.Attributes
	SVG        string
}

// IconPack is a named set of icons drawn on a 16x16 grid.
type IconPack struct {
	mu       sync.RWMutex
	icons    map[string]Vector
	fallback string
}

var defaultPack = NewIconPack("notice", map[string]Vector{
	"arrow": {
		Attributes: element.Attributes{"stroke": "currentColor", "fill": "none"},
		SVG:        `<path class="primary" stroke-linecap="round" stroke-linejoin="round" d="M8 12.5v-9m0 0-4 4m4-4 4 4"/>`,
	},
	"arrow-to-line": {
		Attributes: element.Attributes{"stroke": "currentColor", "fill": "none"},
		SVG:        `<path class="primary" d="M8 14V5m0 0L4 9m4-4 4 4" stroke-linecap="round" stroke-linejoin="round"/><path class="secondary" d="M3 2.5h10" stroke-linecap="round" stroke-linejoin="round"/>`,
	},
	"success": {
		Attributes: element.Attributes{"fill": "currentColor"},
		SVG:        `<path d="M16 8A8 8 0 1 1 0 8a8 8 0 0 1 16 0zm-3.97-3.03a.75.75 0 0 0-1.08.022L7.477 9.417 5.384 7.323a.75.75 0 0 0-1.06 1.06L6.97 11.03a.75.75 0 0 0 1.079-.02l3.992-4.99a.75.75 0 0 0-.01-1.05z"/>`,
	},
	"info": {
		Attributes: element.Attributes{"fill": "currentColor"},
		SVG:        `<path d="M8 16A8 8 0 1 0 8 0a8 8 0 0 0 0 16zm.93-9.412-1 4.705c-.07.34.029.533.304.533.194 0 .487-.07.686-.246l-.088.416c-.287.346-.92.598-1.465.598-.703 0-1.002-.422-.808-1.319l.738-3.468c.064-.293.006-.399-.287-.47l-.451-.081.082-.381 2.29-.287zM8 5.5a1 1 0 1 1 0-2 1 1 0 0 1 0 2z"/>`,
	},
	"danger": {
		Attributes: element.Attributes{"fill": "currentColor"},
		SVG:        `<path d="M16 8A8 8 0 1 1 0 8a8 8 0 0 1 16 0zM5.354 4.646a.5.5 0 1 0-.708.708L7.293 8l-2.647 2.646a.5.5 0 0 0 .708.708L8 8.707l2.646 2.647a.5.5 0 0 0 .708-.708L8.707 8l2.647-2.646a.5.5 0 0 0-.708-.708L8 7.293 5.354 4.646z"/>`,
	},
	"warning": {
		Attributes: element.Attributes{"fill": "currentColor"},
		SVG:        `<path fill-rule="evenodd" clip-rule="evenodd" d="M9.336.757c-.594-1.01-2.078-1.010-2.672 0L.21 11.73C-.385 12.739.357 14 1.545 14h12.91c1.188 0 1.930-1.261 1.336-2.270L9.336.757ZM9 4.5C9 4 9 4 8 4s-1 0-1 .5l.383 3.538c.103.505.103.505.617.505s.514 0 .617-.505L9 4.5Zm-1 7.482c1.028 0 1.028 0 1.028-1.010 0-1.009 0-1.009-1.028-1.009s-1.028.094-1.028 1.010c0 1.008 0 1.008 1.028 1.008Z"/>`,
	},
	"notice": {
		Attributes: element.Attributes{"fill": "currentColor"},
		SVG:        `<path fill-rule="evenodd" clip-rule="evenodd" d="M6.983 1.006a.776.776 0 0 1 .667.634l1.781 9.967 1.754-3.925a.774.774 0 0 1 .706-.46h3.335c.427 0 .774.348.774.778 0 .43-.347.778-.774.778h-2.834L9.818 14.540a.774.774 0 0 1-1.468-.181L6.569 4.393 4.816 8.318a.774.774 0 0 1-.707.46H.774A.776.776 0 0 1 0 8c0-.43.347-.778.774-.778h2.834L6.182 1.460a.774.774 0 0 1 .8-.453Z"/>`,
	},
	"close": {
		Attributes: element.Attributes{"stroke": "currentColor", "fill": "none"},
		SVG:        `<path stroke-linecap="round" stroke-linejoin="round" d="m4 4 8 8m0-8-8 8"/>`,
	},
	"asterisk": {
		Attributes: element.Attributes{"stroke": "currentColor", "fill": "none"},
		SVG:        `<path stroke-linecap="round" stroke-linejoin="round" d="M8 4v8m3.46-6-6.92 4m0-4 6.92 4"/>`,
	},
	"chevron": {
		Attributes: element.Attributes{"stroke": "currentColor", "fill": "none"},
		SVG:        `<path stroke-linecap="round" stroke-linejoin="round" d="m6 3.5 4.5 4.5L6 12.5"/>`,
	},
})

// DefaultIconPack returns the built-in icons.
func DefaultIconPack() *IconPack { return defaultPack }

// NewIconPack creates a pack. Lookups of unknown names return fallback.
func NewIconPack(fallback string, icons map[string]Vector) *IconPack {
	p := &IconPack{icons: make(map[string]Vector, len(icons)), fallback: fallback}
	for name, v := range icons {
		p.icons[strings.ToLower(name)] = v
	}
	return p
}

// Add registers or replaces an icon.
func (p *IconPack) Add(name string, v Vector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.icons[strings.ToLower(name)] = v
}

// Has reports whether the pack defines name.
func (p *IconPack) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.icons[strings.ToLower(name)]
	return ok
}

// Names returns the icon names, sorted.
func (p *IconPack) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.icons))
	for name := range p.icons {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get builds the <svg> element of name, falling back to the pack's
// fallback icon. It reports false when neither exists.
func (p *IconPack) Get(name string) (*element.Element, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	p.mu.RLock()
	v, ok := p.icons[name]
	if !ok {
		v, ok = p.icons[p.fallback]
	}
	p.mu.RUnlock()
	if !ok {
		return nil, false
	}

	svg := element.New("svg").
		Attr("class", "icon").
		Attr("viewBox", "0 0 16 16").
		With(v.Attributes).
		Raw(squishSVG(v.SVG))
	if name != "" {
		svg.Attr("class", name)
	}
	return svg, true
}

// squishSVG collapses whitespace, including the runs between tags.
func squishSVG(s string) string {
	return strings.ReplaceAll(element.Squish(s), "> <", "><")
}
