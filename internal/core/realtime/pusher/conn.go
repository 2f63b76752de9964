package pusher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syntrixbase/statussync/internal/core/realtime"
)

const writeWait = 10 * time.Second

// Conn is one websocket connection. It closes itself once the last scope
// is left.
type Conn struct {
	p      *Provider
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.RWMutex
	state    string
	socketID string
	activity time.Duration
	channels map[string]*subscription

	done      chan struct{}
	closeOnce sync.Once
}

var _ realtime.Channel = (*Conn)(nil)

func newConn(p *Provider, ws *websocket.Conn) *Conn {
	return &Conn{
		p:        p,
		ws:       ws,
		logger:   p.logger,
		state:    StateConnecting,
		activity: p.cfg.ActivityTimeout,
		channels: make(map[string]*subscription),
		done:     make(chan struct{}),
	}
}

// handshake reads frames until the server sends connection_established.
func (c *Conn) handshake(ctx context.Context) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetReadDeadline(deadline)
	}
	defer c.ws.SetReadDeadline(time.Time{})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("pusher handshake failed: %w", err)
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("pusher handshake failed: %w", err)
		}

		switch f.Event {
		case eventConnectionEstablished:
			var cd connectionData
			if err := decodeData(f.Data, &cd); err != nil {
				return fmt.Errorf("invalid connection_established: %w", err)
			}
			if cd.SocketID == "" {
				return fmt.Errorf("invalid connection_established: missing socket_id")
			}

			c.mu.Lock()
			c.socketID = cd.SocketID
			c.state = StateConnected
			if cd.ActivityTimeout > 0 {
				server := time.Duration(cd.ActivityTimeout) * time.Second
				if server < c.activity {
					c.activity = server
				}
			}
			c.logger = c.logger.With("socket_id", cd.SocketID)
			c.mu.Unlock()
			return nil
		case eventError:
			var ed errorData
			_ = decodeData(f.Data, &ed)
			return fmt.Errorf("pusher refused connection: %d %s", ed.Code, ed.Message)
		}
	}
}

func (c *Conn) start() {
	go c.readPump()
	go c.pingPump()
}

// SocketID returns the id assigned by the server.
func (c *Conn) SocketID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.socketID
}

// State returns the pusher connection state.
func (c *Conn) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Conn) Connected() bool {
	return c.State() == StateConnected
}

// Subscribe authorizes (for private channels) and joins the scope's channel.
func (c *Conn) Subscribe(scope string) (realtime.Subscription, error) {
	name := c.p.channelName(scope)

	c.mu.RLock()
	existing, ok := c.channels[name]
	socketID := c.socketID
	c.mu.RUnlock()
	if ok {
		return existing, nil
	}
	if !c.Connected() {
		return nil, fmt.Errorf("pusher connection is %s", c.State())
	}

	req := subscribeData{Channel: name}
	if c.p.cfg.AuthEndpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), c.p.cfg.AuthTimeout)
		auth, err := c.p.authorize(ctx, socketID, name)
		cancel()
		if err != nil {
			c.closeIfIdle()
			return nil, err
		}
		req.Auth = auth.Auth
		req.ChannelData = auth.ChannelData
	}

	sub := &subscription{conn: c, channel: name, handlers: make(map[realtime.Event]realtime.Handler)}
	c.mu.Lock()
	c.channels[name] = sub
	c.mu.Unlock()

	if err := c.send(eventSubscribe, "", req); err != nil {
		c.mu.Lock()
		delete(c.channels, name)
		c.mu.Unlock()
		c.closeIfIdle()
		return nil, err
	}

	c.logger.Debug("Subscribed", "channel", name)
	return sub, nil
}

// Leave unsubscribes from the scope's channel.
func (c *Conn) Leave(scope string) {
	name := c.p.channelName(scope)

	c.mu.Lock()
	sub, ok := c.channels[name]
	delete(c.channels, name)
	idle := len(c.channels) == 0
	c.mu.Unlock()

	if ok {
		sub.detach()
		if err := c.send(eventUnsubscribe, "", subscribeData{Channel: name}); err != nil {
			c.logger.Debug("Failed to send unsubscribe", "channel", name, "error", err)
		}
	}
	if idle {
		c.Close()
	}
}

// Close closes the websocket. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateDisconnected
		subs := c.channels
		c.channels = make(map[string]*subscription)
		c.mu.Unlock()

		for _, sub := range subs {
			sub.detach()
		}

		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		_ = c.ws.Close()
		close(c.done)
		c.p.forget(c)
	})
}

func (c *Conn) closeIfIdle() {
	c.mu.RLock()
	idle := len(c.channels) == 0
	c.mu.RUnlock()
	if idle {
		c.Close()
	}
}

func (c *Conn) send(event, channel string, data any) error {
	msg, err := encodeFrame(event, channel, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return fmt.Errorf("pusher connection closed")
	default:
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// readPump routes frames until the socket fails. Handlers run on this
// goroutine, so a channel's events arrive in the order they were sent.
func (c *Conn) readPump() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.state != StateDisconnected {
				c.state = StateUnavailable
				c.logger.Warn("Pusher connection lost", "error", err)
			}
			c.mu.Unlock()
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Debug("Ignoring malformed frame", "error", err)
			continue
		}
		c.route(f)
	}
}

func (c *Conn) route(f frame) {
	switch f.Event {
	case eventPing:
		if err := c.send(eventPong, "", map[string]any{}); err != nil {
			c.logger.Debug("Failed to send pong", "error", err)
		}
		return
	case eventPong:
		return
	case eventError:
		var ed errorData
		_ = decodeData(f.Data, &ed)
		c.logger.Warn("Pusher error", "code", ed.Code, "message", ed.Message)
		return
	case eventSubscriptionSucceeded:
		c.logger.Debug("Subscription succeeded", "channel", f.Channel)
		return
	case eventSubscriptionError:
		c.logger.Warn("Subscription rejected", "channel", f.Channel)
		return
	}

	if f.Channel == "" {
		return
	}
	event, ok := parseEventName(c.p.cfg.EventNamespace, f.Event)
	if !ok {
		return
	}

	c.mu.RLock()
	sub := c.channels[f.Channel]
	c.mu.RUnlock()
	if sub == nil {
		return
	}
	sub.deliver(event, f.Data)
}

// pingPump keeps the connection alive through idle proxies.
func (c *Conn) pingPump() {
	c.mu.RLock()
	period := c.activity
	c.mu.RUnlock()

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.send(eventPing, "", map[string]any{}); err != nil {
				return
			}
		}
	}
}

type subscription struct {
	conn    *Conn
	channel string

	mu       sync.RWMutex
	detached bool
	handlers map[realtime.Event]realtime.Handler
}

func (s *subscription) On(event realtime.Event, handler realtime.Handler) realtime.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.detached {
		s.handlers[event] = handler
	}
	return s
}

func (s *subscription) StopListening(event realtime.Event) realtime.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, event)
	return s
}

func (s *subscription) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detached = true
	s.handlers = make(map[realtime.Event]realtime.Handler)
}

// deliver decodes before looking up the listener so the lookup and the call
// stay adjacent. The lock is not held across the call.
func (s *subscription) deliver(event realtime.Event, raw json.RawMessage) {
	if !s.listening(event) {
		return
	}

	var payload realtime.Payload
	if err := decodeData(raw, &payload); err != nil {
		s.conn.logger.Warn("Dropping undecodable event", "channel", s.channel, "event", event, "error", err)
		return
	}

	s.mu.RLock()
	h := s.handlers[event]
	if s.detached {
		h = nil
	}
	s.mu.RUnlock()
	if h != nil {
		h(payload)
	}
}

func (s *subscription) listening(event realtime.Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.detached && s.handlers[event] != nil
}
