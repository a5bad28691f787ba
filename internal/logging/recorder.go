package logging

import (
	"context"
	"sync"
)

// Entry is a single record captured by a Recorder.
type Entry struct {
	Level     LogLevel
	Message   string
	Err       error
	Component string
	Fields    map[string]interface{}
}

// Recorder is a Logger that keeps every record in memory.
type Recorder struct {
	mu        *sync.Mutex
	entries   *[]Entry
	component string
	fields    map[string]interface{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		mu:      &sync.Mutex{},
		entries: &[]Entry{},
		fields:  map[string]interface{}{},
	}
}

func (r *Recorder) Debug(ctx context.Context, msg string, fields ...interface{}) {
	r.record(LevelDebug, nil, msg, fields)
}

func (r *Recorder) Info(ctx context.Context, msg string, fields ...interface{}) {
	r.record(LevelInfo, nil, msg, fields)
}

func (r *Recorder) Notice(ctx context.Context, msg string, fields ...interface{}) {
	r.record(LevelNotice, nil, msg, fields)
}

func (r *Recorder) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	r.record(LevelWarn, err, msg, fields)
}

func (r *Recorder) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	r.record(LevelError, err, msg, fields)
}

func (r *Recorder) Critical(ctx context.Context, err error, msg string, fields ...interface{}) {
	r.record(LevelCritical, err, msg, fields)
}

// With returns a Recorder sharing the same entry log with extra fields.
func (r *Recorder) With(fields ...interface{}) Logger {
	next := r.clone()
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			next.fields[key] = fields[i+1]
		}
	}
	return next
}

// WithComponent returns a Recorder sharing the same entry log.
func (r *Recorder) WithComponent(component string) Logger {
	next := r.clone()
	next.component = component
	return next
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(*r.entries))
	copy(out, *r.entries)
	return out
}

// Count returns how many records were logged at exactly level.
func (r *Recorder) Count(level LogLevel) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Reset drops all recorded entries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = (*r.entries)[:0]
}

func (r *Recorder) clone() *Recorder {
	fields := make(map[string]interface{}, len(r.fields))
	for k, v := range r.fields {
		fields[k] = v
	}
	return &Recorder{mu: r.mu, entries: r.entries, component: r.component, fields: fields}
}

func (r *Recorder) record(level LogLevel, err error, msg string, fields []interface{}) {
	all := make(map[string]interface{}, len(r.fields)+len(fields)/2)
	for k, v := range r.fields {
		all[k] = v
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			all[key] = fields[i+1]
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, Entry{
		Level:     level,
		Message:   Interpolate(msg, fields...),
		Err:       err,
		Component: r.component,
		Fields:    all,
	})
}
