package logging

import (
	"context"
	"log/slog"
)

// LevelFilter passes only records at or above a minimum level to the wrapped
// handler. The minimum is a Leveler so it can be a *slog.LevelVar.
type LevelFilter struct {
	handler slog.Handler
	min     slog.Leveler
}

func NewLevelFilter(handler slog.Handler, min slog.Leveler) *LevelFilter {
	return &LevelFilter{handler: handler, min: min}
}

func (h *LevelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min.Level() && h.handler.Enabled(ctx, level)
}

func (h *LevelFilter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.min.Level() {
		return nil
	}
	return h.handler.Handle(ctx, r)
}

func (h *LevelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelFilter{handler: h.handler.WithAttrs(attrs), min: h.min}
}

func (h *LevelFilter) WithGroup(name string) slog.Handler {
	return &LevelFilter{handler: h.handler.WithGroup(name), min: h.min}
}
