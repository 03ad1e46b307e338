package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Tags is a replaceable attribute set read by every log call. Set may be
// called from any goroutine; readers never block.
type Tags struct {
	attrs atomic.Pointer[[]slog.Attr]
}

// Set replaces the attributes.
func (t *Tags) Set(attrs ...slog.Attr) {
	cp := append([]slog.Attr(nil), attrs...)
	t.attrs.Store(&cp)
}

// Attrs returns the current attributes.
func (t *Tags) Attrs() []slog.Attr {
	if p := t.attrs.Load(); p != nil {
		return *p
	}
	return nil
}

// ContextHandler wraps another handler and appends the current tags.
type ContextHandler struct {
	inner slog.Handler
	tags  *Tags
}

// NewContextHandler creates a handler that adds tags to each record.
func NewContextHandler(inner slog.Handler, tags *Tags) *ContextHandler {
	return &ContextHandler{inner: inner, tags: tags}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := h.tags.Attrs(); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), tags: h.tags}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), tags: h.tags}
}
