package logger

import (
	"fmt"
	"sync"
)

// Warning is a non-fatal problem found while preparing or running a search.
type Warning struct {
	Code    string         `json:"code" msgpack:"code"`
	Message string         `json:"message" msgpack:"message"`
	Attrs   map[string]any `json:"attrs,omitempty" msgpack:"attrs,omitempty"`
}

func (w Warning) String() string {
	if len(w.Attrs) == 0 {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	return fmt.Sprintf("%s: %s %v", w.Code, w.Message, w.Attrs)
}

// Warnings collects warnings and logs each one as it arrives. The zero value
// collects without logging. Safe for concurrent use.
type Warnings struct {
	log *Logger

	mu    sync.Mutex
	items []Warning
}

// NewWarnings returns a collector that also logs to l. l may be nil.
func NewWarnings(l *Logger) *Warnings {
	return &Warnings{log: l}
}

// Add records a warning. attrs are key/value pairs as for slog.
func (w *Warnings) Add(code, msg string, attrs ...any) {
	if w == nil {
		return
	}
	warning := Warning{Code: code, Message: msg}
	if len(attrs) > 1 {
		warning.Attrs = make(map[string]any, len(attrs)/2)
		for i := 0; i+1 < len(attrs); i += 2 {
			warning.Attrs[fmt.Sprint(attrs[i])] = attrs[i+1]
		}
	}

	w.mu.Lock()
	w.items = append(w.items, warning)
	w.mu.Unlock()

	if w.log != nil {
		w.log.Warn(msg, append([]any{"code", code}, attrs...)...)
	}
}

// List returns a copy of the collected warnings in arrival order.
func (w *Warnings) List() []Warning {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Warning(nil), w.items...)
}

// Len returns the number of collected warnings.
func (w *Warnings) Len() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}
