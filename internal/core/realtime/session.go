package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Session is one activation of the status sync core. It owns at most one
// subscription and at most one poll loop, and never shares either.
type Session struct {
	id       string
	ctx      context.Context
	provider Provider
	identity Identity
	bindings Bindings
	poller   *poller
	notify   *notifier
	logger   *slog.Logger

	// gen changes on every connect attempt and teardown. Deliveries and connect
	// results tagged with an older generation are discarded.
	gen atomic.Uint64

	mu      sync.RWMutex
	state   State
	err     error
	channel Channel
	sub     Subscription
	scope   string
	cancel  context.CancelFunc
	closed  bool
}

// Activate starts a session. It never blocks on the network: the connect
// attempt, if any, completes on its own goroutine. ctx bounds connect attempts
// made by this session.
func Activate(ctx context.Context, provider Provider, identity Identity, opts Options) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	logger := opts.logger().With("session_id", id)

	s := &Session{
		id:       id,
		ctx:      ctx,
		provider: provider,
		identity: identity,
		bindings: opts.bindings(),
		poller:   newPoller(opts.PollingInterval, opts.OnPollTick, logger),
		notify:   newNotifier(opts.OnConnectionChange),
		logger:   logger,
		state:    StateDisconnected,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !opts.EnablePushChannel {
		s.logger.Info("Push channel disabled", "polling_interval", opts.PollingInterval)
		s.startPollingLocked()
		return s
	}
	s.connectLocked()
	return s
}

// ID identifies the activation in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current connectivity state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsConnected reports whether events are arriving over the push channel.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// IsPolling reports whether the fallback loop is running.
func (s *Session) IsPolling() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.poller.Active()
}

// Err returns the last recorded connection failure, or nil.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Status returns state, connectivity, polling and error as one snapshot.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		State:     s.state,
		Connected: s.state == StateConnected,
		Polling:   s.poller.Active(),
		Err:       s.err,
	}
}

// Reconnect drops the current subscription, if any, and starts a new connect
// attempt. A running poll loop keeps running until the attempt succeeds.
// It does nothing after Deactivate.
func (s *Session) Reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.logger.Info("Reconnecting push channel", "state", s.state)
	s.teardownLocked()
	s.connectLocked()
}

// Deactivate leaves the subscription, stops polling and resets the state to
// Disconnected. It may be called any number of times from any state.
func (s *Session) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.teardownLocked()
	s.poller.Stop()
	s.transitionLocked(StateDisconnected)
	s.logger.Debug("Session deactivated")
}

func (s *Session) connectLocked() {
	teamID, ok := "", false
	if s.identity != nil {
		teamID, ok = s.identity.TeamID()
	}
	if !ok || teamID == "" {
		s.err = ErrNoScope
		s.logger.Warn("No team scope, push channel not attempted")
		s.transitionLocked(StateErrored)
		s.startPollingLocked()
		return
	}

	s.scope = TeamScope(teamID)
	gen := s.gen.Add(1)
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.transitionLocked(StateConnecting)

	go s.connect(ctx, gen, s.scope)
}

func (s *Session) connect(ctx context.Context, gen uint64, scope string) {
	ch, sub, err := s.open(ctx, scope)
	if !s.establish(gen, scope, ch, sub, err) {
		return
	}

	// Listeners go live only after the Connected transition. bind runs
	// unlocked so handlers replayed from On may call into the session.
	live := func() bool { return s.gen.Load() == gen }
	if err := s.bind(sub, live); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !live() {
			return
		}
		s.teardownLocked()
		s.err = err
		s.logger.Warn("Binding listeners failed, falling back to polling", "scope", scope, "error", err)
		s.transitionLocked(StateErrored)
		s.startPollingLocked()
		return
	}
	if !live() {
		s.unbind(sub, scope)
	}
}

func (s *Session) bind(sub Subscription, live func() bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: provider panic: %v", ErrChannelUnavailable, r)
		}
	}()
	s.bindings.bind(sub, live)
	return nil
}

// establish records the outcome of a connect attempt. It reports whether the
// attempt is current and succeeded.
func (s *Session) establish(gen uint64, scope string, ch Channel, sub Subscription, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen.Load() != gen {
		// Torn down or superseded while connecting.
		if sub != nil {
			s.leave(ch, scope)
		}
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	if err != nil {
		s.err = err
		s.logger.Warn("Push channel failed, falling back to polling", "scope", scope, "error", err)
		s.transitionLocked(StateErrored)
		s.startPollingLocked()
		return false
	}

	s.channel, s.sub, s.err = ch, sub, nil
	s.poller.Stop()
	s.transitionLocked(StateConnected)
	s.logger.Info("Push channel connected", "scope", scope, "events", len(s.bindings.Bound()))
	return true
}

// open obtains a channel and subscribes to scope. Provider errors and panics
// come back as errors.
func (s *Session) open(ctx context.Context, scope string) (ch Channel, sub Subscription, err error) {
	defer func() {
		if r := recover(); r != nil {
			if sub != nil {
				s.leave(ch, scope)
			}
			ch, sub = nil, nil
			err = fmt.Errorf("%w: provider panic: %v", ErrChannelUnavailable, r)
		}
	}()

	if s.provider == nil {
		return nil, nil, fmt.Errorf("%w: no provider configured", ErrChannelUnavailable)
	}
	ch, err = s.provider.Channel(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrChannelUnavailable, err)
	}
	if ch == nil {
		return nil, nil, fmt.Errorf("%w: provider returned no channel", ErrChannelUnavailable)
	}

	sub, err = ch.Subscribe(scope)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: subscribe %s: %w", ErrChannelUnavailable, scope, err)
	}
	if sub == nil {
		return nil, nil, fmt.Errorf("%w: subscribe %s returned no subscription", ErrChannelUnavailable, scope)
	}
	if !ch.Connected() {
		s.leave(ch, scope)
		return nil, nil, fmt.Errorf("%w: scope %s", ErrChannelDisconnected, scope)
	}
	return ch, sub, nil
}

// teardownLocked invalidates any in-flight attempt and releases the current
// subscription.
func (s *Session) teardownLocked() {
	s.gen.Add(1)
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.sub != nil {
		s.unbind(s.sub, s.scope)
		s.leave(s.channel, s.scope)
	}
	s.channel, s.sub = nil, nil
}

func (s *Session) unbind(sub Subscription, scope string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Stop listening failed", "scope", scope, "panic", r)
		}
	}()
	s.bindings.unbind(sub)
}

func (s *Session) startPollingLocked() {
	if s.state == StateConnected {
		return
	}
	s.poller.Start()
}

func (s *Session) transitionLocked(to State) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	s.logger.Debug("Connectivity changed", "from", from, "to", to)
	s.notify.push(to == StateConnected)
}

func (s *Session) leave(ch Channel, scope string) {
	if ch == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Leave failed", "scope", scope, "panic", r)
		}
	}()
	ch.Leave(scope)
}
