package testutil

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Entry is one log call seen by a LogCapture. Keys of attributes opened under
// a group are joined with dots, as in "request.path".
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// sink is shared by a LogCapture and every handler derived from it
type sink struct {
	mu      sync.Mutex
	entries []Entry
}

// LogCapture is a slog.Handler that keeps every entry in memory. Entries made
// through loggers derived with With or WithGroup land in the same capture.
type LogCapture struct {
	sink   *sink
	t      testing.TB
	prefix string
	bound  map[string]any
}

// CaptureLogs returns a debug-level logger and the capture behind it. Entries
// are echoed to t when tests run verbosely.
func CaptureLogs(t testing.TB) (*slog.Logger, *LogCapture) {
	c := &LogCapture{sink: &sink{}, t: t}
	return slog.New(c), c
}

func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(c.bound)+r.NumAttrs())
	for k, v := range c.bound {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, c.prefix, a)
		return true
	})

	c.sink.mu.Lock()
	c.sink.entries = append(c.sink.entries, Entry{Level: r.Level, Message: r.Message, Attrs: attrs})
	c.sink.mu.Unlock()

	if c.t != nil && testing.Verbose() {
		c.t.Logf("%s %q %v", r.Level, r.Message, attrs)
	}
	return nil
}

func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := c.derive(c.prefix)
	for _, a := range attrs {
		flatten(next.bound, c.prefix, a)
	}
	return next
}

func (c *LogCapture) WithGroup(name string) slog.Handler {
	if name == "" {
		return c
	}
	return c.derive(c.prefix + name + ".")
}

func (c *LogCapture) derive(prefix string) *LogCapture {
	bound := make(map[string]any, len(c.bound))
	for k, v := range c.bound {
		bound[k] = v
	}
	return &LogCapture{sink: c.sink, t: c.t, prefix: prefix, bound: bound}
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		dst[prefix+a.Key] = v.Any()
		return
	}
	if a.Key != "" {
		prefix += a.Key + "."
	}
	for _, ga := range v.Group() {
		flatten(dst, prefix, ga)
	}
}

// Entries returns a copy of everything captured so far
func (c *LogCapture) Entries() []Entry {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return slices.Clone(c.sink.entries)
}

// At returns the entries logged at exactly level
func (c *LogCapture) At(level slog.Level) []Entry {
	var out []Entry
	for _, e := range c.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// HasMessage reports whether any entry's message contains substr
func (c *LogCapture) HasMessage(substr string) bool {
	return slices.ContainsFunc(c.Entries(), func(e Entry) bool {
		return strings.Contains(e.Message, substr)
	})
}

// HasAttr reports whether any entry carries key with a value equal to want.
// Integer attributes are stored as int64, as slog does.
func (c *LogCapture) HasAttr(key string, want any) bool {
	return slices.ContainsFunc(c.Entries(), func(e Entry) bool {
		got, ok := e.Attrs[key]
		return ok && got == want
	})
}

func (c *LogCapture) Len() int {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	return len(c.sink.entries)
}

func (c *LogCapture) Reset() {
	c.sink.mu.Lock()
	c.sink.entries = nil
	c.sink.mu.Unlock()
}

// ExpectLogged fails t unless some entry at level contains substr
func ExpectLogged(t testing.TB, c *LogCapture, level slog.Level, substr string) bool {
	t.Helper()
	for _, e := range c.At(level) {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return assert.Fail(t, "log entry not found",
		"no %s entry containing %q; captured:\n%s", level, substr, c.dump())
}

// ExpectAttr fails t unless some entry carries key=want
func ExpectAttr(t testing.TB, c *LogCapture, key string, want any) bool {
	t.Helper()
	if c.HasAttr(key, want) {
		return true
	}
	return assert.Fail(t, "log attribute not found",
		"no entry with %s=%v (%T); captured:\n%s", key, want, want, c.dump())
}

// ExpectNoErrors fails t if anything was logged at error level
func ExpectNoErrors(t testing.TB, c *LogCapture) bool {
	t.Helper()
	errs := c.At(slog.LevelError)
	if len(errs) == 0 {
		return true
	}
	var b strings.Builder
	for _, e := range errs {
		b.WriteString("  " + e.Message + "\n")
	}
	return assert.Fail(t, "unexpected error logs", b.String())
}

func (c *LogCapture) dump() string {
	var b strings.Builder
	for _, e := range c.Entries() {
		b.WriteString("  [" + e.Level.String() + "] " + e.Message)
		for _, k := range sortedKeys(e.Attrs) {
			b.WriteString(" " + k + "=")
			b.WriteString(strings.TrimSpace(slog.AnyValue(e.Attrs[k]).String()))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
