// Package logging provides a slog.Handler that tees every record into
// a bounded in-memory ring so the operator surface can drain recent
// log lines without touching the server's stderr stream.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ring is the shared buffer behind every derived handler.
type ring struct {
	mu      sync.Mutex
	entries []string
	head    int
	size    int
}

func (r *ring) append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < len(r.entries) {
		r.entries[(r.head+r.size)%len(r.entries)] = line
		r.size++
		return
	}
	// Full: overwrite the oldest entry. Draining never blocks logging.
	r.entries[r.head] = line
	r.head = (r.head + 1) % len(r.entries)
}

func (r *ring) drain(max int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.size
	if max > 0 && max < n {
		n = max
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.entries[(r.head+i)%len(r.entries)])
	}
	r.head = (r.head + n) % len(r.entries)
	r.size -= n
	return out
}

// RingHandler wraps another slog.Handler and mirrors each record into
// a fixed-capacity ring buffer.
type RingHandler struct {
	inner slog.Handler
	attrs []slog.Attr
	ring  *ring
}

// NewRingHandler returns a handler mirroring records into a ring of
// the given capacity.
func NewRingHandler(inner slog.Handler, capacity int) *RingHandler {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingHandler{
		inner: inner,
		ring:  &ring{entries: make([]string, capacity)},
	}
}

func (h *RingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RingHandler) Handle(ctx context.Context, record slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", record.Time.Format(time.TimeOnly), record.Level, record.Message)
	for _, attr := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", attr.Key, attr.Value)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", attr.Key, attr.Value)
		return true
	})
	h.ring.append(b.String())

	return h.inner.Handle(ctx, record)
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &RingHandler{
		inner: h.inner.WithAttrs(attrs),
		attrs: merged,
		ring:  h.ring,
	}
}

func (h *RingHandler) WithGroup(name string) slog.Handler {
	return &RingHandler{
		inner: h.inner.WithGroup(name),
		attrs: h.attrs,
		ring:  h.ring,
	}
}

// Drain removes and returns up to max buffered lines, oldest first.
// A non-positive max drains everything.
func (h *RingHandler) Drain(max int) []string {
	return h.ring.drain(max)
}
