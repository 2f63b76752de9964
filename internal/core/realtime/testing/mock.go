// Package testing provides recording fakes of the realtime provider interfaces.
package testing

import (
	"context"
	"sync"

	"github.com/syntrixbase/statussync/internal/core/realtime"
)

// MockProvider is a realtime.Provider that hands out a single MockChannel.
type MockProvider struct {
	mu      sync.Mutex
	channel *MockChannel
	err     error
	panicV  any
	block   chan struct{}
	calls   int
}

// NewMockProvider creates a provider whose channel starts connected.
func NewMockProvider() *MockProvider {
	return &MockProvider{channel: NewMockChannel()}
}

// Channel returns the mock channel, the configured error, or panics when told to.
func (p *MockProvider) Channel(ctx context.Context) (realtime.Channel, error) {
	p.mu.Lock()
	p.calls++
	block, err, panicV, ch := p.block, p.err, p.panicV, p.channel
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if panicV != nil {
		panic(panicV)
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// SetError makes Channel fail with err. Nil clears it.
func (p *MockProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// SetPanic makes Channel panic with v. Nil clears it.
func (p *MockProvider) SetPanic(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panicV = v
}

// Block makes Channel wait until the returned release func is called or the
// caller's context ends.
func (p *MockProvider) Block() (release func()) {
	ch := make(chan struct{})
	p.mu.Lock()
	p.block = ch
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.block = nil
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many times Channel was called.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// MockChannel returns the channel handed out by the provider.
func (p *MockProvider) MockChannel() *MockChannel {
	return p.channel
}

// MockChannel records Subscribe and Leave calls.
type MockChannel struct {
	mu         sync.Mutex
	connected  bool
	subErr     error
	onPanic    any
	leavePanic any
	subscribed []string
	left       []string
	subs       map[string]*MockSubscription
}

// NewMockChannel creates a connected channel.
func NewMockChannel() *MockChannel {
	return &MockChannel{
		connected: true,
		subs:      make(map[string]*MockSubscription),
	}
}

// Subscribe records the scope and returns a fresh subscription for it.
func (c *MockChannel) Subscribe(scope string) (realtime.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribed = append(c.subscribed, scope)
	if c.subErr != nil {
		return nil, c.subErr
	}
	sub := newMockSubscription(scope)
	sub.panicV = c.onPanic
	c.subs[scope] = sub
	return sub, nil
}

// Leave records the scope and detaches its subscription.
func (c *MockChannel) Leave(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.left = append(c.left, scope)
	if c.leavePanic != nil {
		panic(c.leavePanic)
	}
	if sub, ok := c.subs[scope]; ok {
		sub.detach()
		delete(c.subs, scope)
	}
}

// Connected reports the configured transport state.
func (c *MockChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SetConnected changes what Connected reports.
func (c *MockChannel) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

// SetSubscribeError makes Subscribe fail with err.
func (c *MockChannel) SetSubscribeError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subErr = err
}

// SetOnPanic makes On panic with v on subscriptions created afterwards.
func (c *MockChannel) SetOnPanic(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPanic = v
}

// SetLeavePanic makes Leave panic with v after recording the scope.
func (c *MockChannel) SetLeavePanic(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leavePanic = v
}

// Subscribed returns every scope passed to Subscribe.
func (c *MockChannel) Subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribed...)
}

// Left returns every scope passed to Leave.
func (c *MockChannel) Left() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.left...)
}

// Subscription returns the live subscription for scope, or nil.
func (c *MockChannel) Subscription(scope string) *MockSubscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[scope]
}

// Emit delivers payload to the listener for event on scope. It returns false
// when nothing is listening.
func (c *MockChannel) Emit(scope string, event realtime.Event, payload realtime.Payload) bool {
	sub := c.Subscription(scope)
	if sub == nil {
		return false
	}
	return sub.Emit(event, payload)
}

// MockSubscription records listener registrations.
type MockSubscription struct {
	scope  string
	panicV any

	mu       sync.Mutex
	handlers map[realtime.Event]realtime.Handler
	on       []realtime.Event
	stopped  []realtime.Event
	detached bool
}

func newMockSubscription(scope string) *MockSubscription {
	return &MockSubscription{
		scope:    scope,
		handlers: make(map[realtime.Event]realtime.Handler),
	}
}

// On records the registration and returns the same subscription.
func (s *MockSubscription) On(event realtime.Event, handler realtime.Handler) realtime.Subscription {
	if s.panicV != nil {
		panic(s.panicV)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = append(s.on, event)
	s.handlers[event] = handler
	return s
}

// StopListening records the call and drops the handler.
func (s *MockSubscription) StopListening(event realtime.Event) realtime.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = append(s.stopped, event)
	delete(s.handlers, event)
	return s
}

// Registered returns the events passed to On, in call order.
func (s *MockSubscription) Registered() []realtime.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.Event(nil), s.on...)
}

// Stopped returns the events passed to StopListening, in call order.
func (s *MockSubscription) Stopped() []realtime.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.Event(nil), s.stopped...)
}

// Emit calls the handler for event synchronously.
func (s *MockSubscription) Emit(event realtime.Event, payload realtime.Payload) bool {
	s.mu.Lock()
	h, ok := s.handlers[event]
	detached := s.detached
	s.mu.Unlock()

	if !ok || detached {
		return false
	}
	h(payload)
	return true
}

func (s *MockSubscription) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
}

// StaticIdentity is an Identity with a fixed team id. An empty id means none.
type StaticIdentity string

// TeamID returns the id and whether it is set.
func (i StaticIdentity) TeamID() (string, bool) {
	return string(i), i != ""
}
