package pusher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"

	"github.com/syntrixbase/statussync/internal/core/realtime"
)

// Config configures the Pusher provider.
type Config struct {
	// URL is the websocket base, e.g. ws://127.0.0.1:6001.
	URL string `yaml:"url"`
	Key string `yaml:"key"`

	// AuthEndpoint authorizes private channels. Empty subscribes to public
	// channels named after the scope.
	AuthEndpoint string `yaml:"auth_endpoint"`
	Token        string `yaml:"token"`

	// EventNamespace prefixes event names, e.g. `App\Events`.
	EventNamespace string `yaml:"event_namespace"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	AuthTimeout      time.Duration `yaml:"auth_timeout"`
	ActivityTimeout  time.Duration `yaml:"activity_timeout"`
}

// DefaultConfig returns settings matching a stock Soketi install.
func DefaultConfig() Config {
	return Config{
		URL:              "ws://127.0.0.1:6001",
		Key:              "app-key",
		EventNamespace:   `App\Events`,
		HandshakeTimeout: 10 * time.Second,
		AuthTimeout:      10 * time.Second,
		ActivityTimeout:  120 * time.Second,
	}
}

// socketURL builds the application websocket endpoint.
func (c Config) socketURL() (string, error) {
	u, err := url.Parse(strings.TrimSuffix(c.URL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid pusher url: %w", err)
	}
	if c.Key == "" {
		return "", fmt.Errorf("pusher app key is required")
	}
	u.Path = u.Path + "/app/" + c.Key
	q := u.Query()
	q.Set("protocol", fmt.Sprint(protocolVersion))
	q.Set("client", "statussync-go")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Provider dials one websocket connection per Channel call.
type Provider struct {
	cfg        Config
	dialer     *websocket.Dialer
	httpClient *http.Client
	encoder    *schema.Encoder
	logger     *slog.Logger

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

var _ realtime.Provider = (*Provider)(nil)

// NewProvider creates a provider. Zero durations fall back to DefaultConfig.
func NewProvider(cfg Config) *Provider {
	def := DefaultConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = def.AuthTimeout
	}
	if cfg.ActivityTimeout <= 0 {
		cfg.ActivityTimeout = def.ActivityTimeout
	}

	return &Provider{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		httpClient: &http.Client{Timeout: cfg.AuthTimeout},
		encoder:    schema.NewEncoder(),
		logger:     slog.Default().With("provider", "pusher"),
		conns:      make(map[*Conn]struct{}),
	}
}

// Channel dials a new connection and waits for the server to establish it.
func (p *Provider) Channel(ctx context.Context) (realtime.Channel, error) {
	target, err := p.cfg.socketURL()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.HandshakeTimeout)
	defer cancel()

	ws, _, err := p.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", p.cfg.URL, err)
	}

	c := newConn(p, ws)
	if err := c.handshake(ctx); err != nil {
		_ = ws.Close()
		return nil, err
	}

	p.mu.Lock()
	p.conns[c] = struct{}{}
	p.mu.Unlock()

	c.start()
	p.logger.Debug("Pusher connection established", "socket_id", c.SocketID())
	return c, nil
}

// Close closes every connection handed out by the provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	conns := make([]*Conn, 0, len(p.conns))
	for c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	return nil
}

func (p *Provider) forget(c *Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, c)
}

// channelName maps a scope to the pusher channel name.
func (p *Provider) channelName(scope string) string {
	if p.cfg.AuthEndpoint == "" {
		return scope
	}
	return "private-" + scope
}

// authorize obtains the signature for a private channel subscription.
func (p *Provider) authorize(ctx context.Context, socketID, channel string) (authResponse, error) {
	form := url.Values{}
	if err := p.encoder.Encode(authRequest{SocketID: socketID, ChannelName: channel}, form); err != nil {
		return authResponse{}, fmt.Errorf("failed to encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.AuthEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return authResponse{}, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return authResponse{}, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return authResponse{}, fmt.Errorf("auth rejected for %s: status %d", channel, resp.StatusCode)
	}

	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return authResponse{}, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if out.Auth == "" {
		return authResponse{}, fmt.Errorf("auth response for %s has no signature", channel)
	}
	return out, nil
}
