package errors

import (
	"fmt"
	"sort"
	"sync"
)

// Severity of a compile diagnostic
type Severity int

const (
	SeverityNotice Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityNotice:
		return "notice"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is a non-fatal problem found while compiling a template.
type Diagnostic struct {
	Template string
	Tag      string
	Line     int
	Message  string
	Severity Severity
}

// Error implements the error interface
func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d: %s: <%s> %s", d.Template, d.Line, d.Severity, d.Tag, d.Message)
}

// Collector gathers diagnostics for one or more compile runs.
type Collector struct {
	diagnostics []Diagnostic
	mutex       sync.RWMutex
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{diagnostics: make([]Diagnostic, 0)}
}

// Add appends a diagnostic
func (c *Collector) Add(d Diagnostic) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.diagnostics = append(c.diagnostics, d)
}

// All returns a copy of the collected diagnostics ordered by template and line
func (c *Collector) All() []Diagnostic {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make([]Diagnostic, len(c.diagnostics))
	copy(out, c.diagnostics)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Template != out[j].Template {
			return out[i].Template < out[j].Template
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// HasErrors reports whether any diagnostic has error severity
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, d := range c.diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ByTemplate returns diagnostics for one template
func (c *Collector) ByTemplate(name string) []Diagnostic {
	var out []Diagnostic
	for _, d := range c.All() {
		if d.Template == name {
			out = append(out, d)
		}
	}
	return out
}

// Clear clears all diagnostics
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.diagnostics = c.diagnostics[:0]
}

// ClearTemplate drops the diagnostics of one template, e.g. before it is recompiled
func (c *Collector) ClearTemplate(name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	kept := c.diagnostics[:0]
	for _, d := range c.diagnostics {
		if d.Template != name {
			kept = append(kept, d)
		}
	}
	c.diagnostics = kept
}
