// Package memory provides an in-process push channel for standalone mode and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/syntrixbase/statussync/internal/core/realtime"
)

// ErrHubClosed is returned when asking a closed hub for a channel.
var ErrHubClosed = errors.New("hub is closed")

// Hub routes published events to the subscriptions of every channel it handed
// out. Delivery is synchronous on the publishing goroutine.
type Hub struct {
	mu        sync.RWMutex
	channels  map[*Channel]struct{}
	connected atomic.Bool
	closed    atomic.Bool
}

var _ realtime.Provider = (*Hub)(nil)

// NewHub creates a connected hub.
func NewHub() *Hub {
	h := &Hub{channels: make(map[*Channel]struct{})}
	h.connected.Store(true)
	return h
}

// Channel returns a new channel attached to the hub.
func (h *Hub) Channel(ctx context.Context) (realtime.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.closed.Load() {
		return nil, ErrHubClosed
	}

	c := &Channel{hub: h, scopes: make(map[string]*subscription)}
	h.mu.Lock()
	h.channels[c] = struct{}{}
	h.mu.Unlock()
	return c, nil
}

// SetConnected changes what every channel reports from Connected.
func (h *Hub) SetConnected(connected bool) {
	h.connected.Store(connected)
}

// Publish delivers payload to every listener of event on scope and returns the
// number of handlers invoked.
func (h *Hub) Publish(scope string, event realtime.Event, payload realtime.Payload) int {
	if h.closed.Load() || !h.connected.Load() {
		return 0
	}

	h.mu.RLock()
	var handlers []realtime.Handler
	for c := range h.channels {
		if hd := c.handler(scope, event); hd != nil {
			handlers = append(handlers, hd)
		}
	}
	h.mu.RUnlock()

	for _, hd := range handlers {
		hd(payload)
	}
	return len(handlers)
}

// Subscribers returns how many channels currently hold scope.
func (h *Hub) Subscribers(scope string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.channels {
		if c.has(scope) {
			n++
		}
	}
	return n
}

// Close detaches all channels. Further Channel calls fail.
func (h *Hub) Close() error {
	if h.closed.Swap(true) {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.channels {
		c.clear()
	}
	h.channels = make(map[*Channel]struct{})
	return nil
}

// Channel is one consumer's view of the hub.
type Channel struct {
	hub *Hub

	mu     sync.RWMutex
	scopes map[string]*subscription
}

// Subscribe joins scope. Subscribing twice returns the existing subscription.
func (c *Channel) Subscribe(scope string) (realtime.Subscription, error) {
	if c.hub.closed.Load() {
		return nil, ErrHubClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.scopes[scope]; ok {
		return sub, nil
	}
	sub := &subscription{handlers: make(map[realtime.Event]realtime.Handler)}
	c.scopes[scope] = sub
	return sub, nil
}

// Leave drops scope and its listeners.
func (c *Channel) Leave(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scopes, scope)
}

// Connected reports the hub's connected flag.
func (c *Channel) Connected() bool {
	return !c.hub.closed.Load() && c.hub.connected.Load()
}

func (c *Channel) handler(scope string, event realtime.Event) realtime.Handler {
	c.mu.RLock()
	sub, ok := c.scopes[scope]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	return sub.handler(event)
}

func (c *Channel) has(scope string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.scopes[scope]
	return ok
}

func (c *Channel) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes = make(map[string]*subscription)
}

type subscription struct {
	mu       sync.RWMutex
	handlers map[realtime.Event]realtime.Handler
}

func (s *subscription) On(event realtime.Event, handler realtime.Handler) realtime.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = handler
	return s
}

func (s *subscription) StopListening(event realtime.Event) realtime.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
	return s
}

func (s *subscription) handler(event realtime.Event) realtime.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[event]
}
