package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/syntrixbase/statussync/internal/core/realtime"
	"github.com/syntrixbase/statussync/internal/fetch"
)

// printer renders session output. Callbacks arrive from several goroutines.
type printer struct {
	mu       sync.Mutex
	w        io.Writer
	json     bool
	interval time.Duration
	now      func() time.Time
}

func newPrinter(w io.Writer, asJSON bool, interval time.Duration) *printer {
	return &printer{w: w, json: asJSON, interval: interval, now: time.Now}
}

type line struct {
	Time      time.Time        `json:"time"`
	Type      string           `json:"type"`
	Connected *bool            `json:"connected,omitempty"`
	Event     string           `json:"event,omitempty"`
	Payload   realtime.Payload `json:"payload,omitempty"`
	Kind      string           `json:"kind,omitempty"`
	Count     *int             `json:"count,omitempty"`
	Items     any              `json:"items,omitempty"`
}

func (p *printer) connection(connected bool) {
	if p.json {
		p.writeJSON(line{Type: "connection", Connected: &connected})
		return
	}

	switch {
	case connected:
		p.writef("● live")
	case p.interval > 0:
		p.writef("○ offline, polling every %s", p.interval)
	default:
		p.writef("○ offline, polling disabled")
	}
}

func (p *printer) event(e realtime.Event) realtime.Handler {
	return func(payload realtime.Payload) {
		if p.json {
			p.writeJSON(line{Type: "event", Event: e.String(), Payload: payload})
			return
		}
		b, err := json.Marshal(payload)
		if err != nil {
			b = []byte(fmt.Sprint(payload))
		}
		p.writef("%s %s", e, b)
	}
}

func (p *printer) snapshot(s fetch.Snapshot) {
	n := s.Len()
	if p.json {
		p.writeJSON(line{Time: s.FetchedAt, Type: "snapshot", Kind: string(s.Kind), Count: &n, Items: s.Items})
		return
	}
	p.writef("refreshed %s (%d)", s.Kind, n)
}

func (p *printer) writef(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s\n", p.now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

func (p *printer) writeJSON(l line) {
	if l.Time.IsZero() {
		l.Time = p.now()
	}
	b, err := json.Marshal(l)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s\n", b)
}
