package nats

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/syntrixbase/statussync/internal/core/realtime"
)

type channel struct {
	nc      natsConnection
	bufSize int
	logger  *slog.Logger

	mu     sync.Mutex
	scopes map[string]*subscription
}

// Subscribe starts the scope's dispatch loop. Subjects are only subscribed
// when a listener is added.
func (c *channel) Subscribe(scope string) (realtime.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sub, ok := c.scopes[scope]; ok {
		return sub, nil
	}
	sub := newSubscription(c.nc, scope, c.bufSize, c.logger)
	c.scopes[scope] = sub
	go sub.dispatch()
	return sub, nil
}

func (c *channel) Leave(scope string) {
	c.mu.Lock()
	sub, ok := c.scopes[scope]
	delete(c.scopes, scope)
	c.mu.Unlock()

	if ok {
		sub.close()
	}
}

func (c *channel) Connected() bool {
	return c.nc.IsConnected()
}

// subscription funnels every subject of a scope through one Go channel, so
// handlers see messages in the order the connection read them.
type subscription struct {
	nc     natsConnection
	scope  string
	logger *slog.Logger
	msgs   chan *nats.Msg
	stop   chan struct{}
	closed atomic.Bool

	mu       sync.RWMutex
	handlers map[realtime.Event]realtime.Handler
	subs     map[realtime.Event]*nats.Subscription
}

func newSubscription(nc natsConnection, scope string, bufSize int, logger *slog.Logger) *subscription {
	return &subscription{
		nc:       nc,
		scope:    scope,
		logger:   logger.With("scope", scope),
		msgs:     make(chan *nats.Msg, bufSize),
		stop:     make(chan struct{}),
		handlers: make(map[realtime.Event]realtime.Handler),
		subs:     make(map[realtime.Event]*nats.Subscription),
	}
}

// Subject returns the subject carrying event for scope.
func Subject(scope string, event realtime.Event) string {
	return scope + "." + event.String()
}

func (s *subscription) On(event realtime.Event, handler realtime.Handler) realtime.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[event] = handler
	if _, ok := s.subs[event]; ok {
		return s
	}
	ns, err := s.nc.ChanSubscribe(Subject(s.scope, event), s.msgs)
	if err != nil {
		s.logger.Warn("Failed to subscribe", "event", event, "error", err)
		return s
	}
	s.subs[event] = ns
	return s
}

func (s *subscription) StopListening(event realtime.Event) realtime.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handlers, event)
	if ns, ok := s.subs[event]; ok {
		unsubscribe(ns)
		delete(s.subs, event)
	}
	return s
}

func (s *subscription) dispatch() {
	for {
		select {
		case <-s.stop:
			return
		case msg := <-s.msgs:
			s.deliver(msg)
		}
	}
}

func (s *subscription) deliver(msg *nats.Msg) {
	if s.closed.Load() {
		return
	}
	event, ok := realtime.ParseEvent(strings.TrimPrefix(msg.Subject, s.scope+"."))
	if !ok {
		return
	}

	var payload realtime.Payload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		s.logger.Warn("Dropping undecodable event", "event", event, "error", err)
		return
	}

	// Lookup and call stay adjacent; the lock is not held across the call.
	s.mu.RLock()
	h := s.handlers[event]
	s.mu.RUnlock()
	if h == nil || s.closed.Load() {
		return
	}
	h(payload)
}

func (s *subscription) close() {
	if s.closed.Swap(true) {
		return
	}

	s.mu.Lock()
	for event, ns := range s.subs {
		unsubscribe(ns)
		delete(s.subs, event)
	}
	s.handlers = make(map[realtime.Event]realtime.Handler)
	s.mu.Unlock()

	close(s.stop)
}

func unsubscribe(ns *nats.Subscription) {
	if ns == nil {
		return
	}
	_ = ns.Unsubscribe()
}
