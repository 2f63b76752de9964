package logging

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// maxDedupEntries bounds the seen map; expired keys are pruned past it.
const maxDedupEntries = 1024

// DedupHandler lets the first of a run of identical records through and
// swallows the rest for a window. The first record seen after the window
// carries repeated_count with the number swallowed. A watcher whose API is
// down logs the same warning on every poll tick; this keeps that to one line
// per window.
type DedupHandler struct {
	handler slog.Handler
	window  time.Duration
	scope   uint64 // hash of attrs and groups added via WithAttrs/WithGroup
	state   *dedupState
}

type dedupState struct {
	mu   sync.Mutex
	seen map[uint64]*dedupEntry
	now  func() time.Time
}

type dedupEntry struct {
	first      time.Time
	suppressed int
}

// NewDedupHandler wraps handler. A non-positive window disables suppression.
func NewDedupHandler(handler slog.Handler, window time.Duration) *DedupHandler {
	return &DedupHandler{
		handler: handler,
		window:  window,
		state: &dedupState{
			seen: make(map[uint64]*dedupEntry),
			now:  time.Now,
		},
	}
}

func (h *DedupHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *DedupHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.window <= 0 {
		return h.handler.Handle(ctx, r)
	}

	key := h.hashRecord(r)
	s := h.state

	s.mu.Lock()
	now := s.now()
	e, ok := s.seen[key]
	if ok && now.Sub(e.first) < h.window {
		e.suppressed++
		s.mu.Unlock()
		return nil
	}
	repeated := 0
	if ok {
		repeated = e.suppressed
	}
	s.seen[key] = &dedupEntry{first: now}
	if len(s.seen) > maxDedupEntries {
		s.prune(now, h.window)
	}
	s.mu.Unlock()

	if repeated > 0 {
		r = r.Clone()
		r.AddAttrs(slog.Int("repeated_count", repeated))
	}
	return h.handler.Handle(ctx, r)
}

// prune drops expired entries. Must be called with s.mu held.
func (s *dedupState) prune(now time.Time, window time.Duration) {
	for k, e := range s.seen {
		if now.Sub(e.first) >= window {
			delete(s.seen, k)
		}
	}
}

// hashRecord hashes level, message and attributes, but not the time.
func (h *DedupHandler) hashRecord(r slog.Record) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatUint(h.scope, 16))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(r.Level.String())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		_, _ = d.WriteString("|")
		_, _ = d.WriteString(a.Key)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(a.Value.Resolve().String())
		return true
	})
	return d.Sum64()
}

func (h *DedupHandler) derive(next slog.Handler, part string) *DedupHandler {
	d := xxhash.New()
	_, _ = d.WriteString(strconv.FormatUint(h.scope, 16))
	_, _ = d.WriteString(part)
	return &DedupHandler{handler: next, window: h.window, scope: d.Sum64(), state: h.state}
}

// WithAttrs shares suppression state with the receiver; the attrs become part
// of the key so records from different sessions are not merged.
func (h *DedupHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	part := ""
	for _, a := range attrs {
		part += "|" + a.Key + "=" + a.Value.Resolve().String()
	}
	return h.derive(h.handler.WithAttrs(attrs), part)
}

func (h *DedupHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(h.handler.WithGroup(name), "#"+name)
}
