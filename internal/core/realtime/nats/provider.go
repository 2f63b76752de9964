// Package nats provides a push channel backed by core NATS subjects.
//
// Events for a scope are published on "<scope>.<EventName>", for example
// "team.1.DeploymentCreated", with a JSON object body.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/syntrixbase/statussync/internal/core/realtime"
)

// natsConnection abstracts the nats.Conn for testing purposes
type natsConnection interface {
	ChanSubscribe(subject string, ch chan *nats.Msg) (*nats.Subscription, error)
	IsConnected() bool
	Close()
}

// natsConnectFunc is a function type for connecting to NATS (injectable for testing)
type natsConnectFunc func(url string, opts ...nats.Option) (natsConnection, error)

var defaultNatsConnect natsConnectFunc = func(url string, opts ...nats.Option) (natsConnection, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return nc, nil
}

// Config configures the NATS provider.
type Config struct {
	URL           string        `yaml:"url"`
	Name          string        `yaml:"name"`
	Token         string        `yaml:"token"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DefaultConfig returns a config pointing at a local server.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "statussync",
		MaxReconnects: 60,
		ReconnectWait: 2 * time.Second,
		BufferSize:    256,
	}
}

// Provider implements realtime.Provider over a single shared NATS connection.
// Each Channel call returns a fresh channel so sessions never share
// subscriptions.
type Provider struct {
	cfg         Config
	natsConnect natsConnectFunc // injectable for testing
	logger      *slog.Logger

	mu sync.Mutex
	nc natsConnection
}

var _ realtime.Provider = (*Provider)(nil)

// NewProvider creates a provider. The connection is opened on first use.
func NewProvider(cfg Config) *Provider {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &Provider{
		cfg:         cfg,
		natsConnect: defaultNatsConnect,
		logger:      slog.Default().With("provider", "nats"),
	}
}

// Channel returns a channel on the shared connection, connecting first if needed.
func (p *Provider) Channel(ctx context.Context) (realtime.Channel, error) {
	nc, err := p.connection(ctx)
	if err != nil {
		return nil, err
	}
	return &channel{
		nc:      nc,
		bufSize: p.cfg.BufferSize,
		logger:  p.logger,
		scopes:  make(map[string]*subscription),
	}, nil
}

func (p *Provider) connection(ctx context.Context) (natsConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc != nil {
		return p.nc, nil
	}

	connectFn := p.natsConnect
	if connectFn == nil {
		connectFn = defaultNatsConnect
	}
	nc, err := connectFn(p.cfg.URL, p.options()...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", p.cfg.URL, err)
	}
	if err := ctx.Err(); err != nil {
		nc.Close()
		return nil, err
	}
	p.nc = nc

	p.logger.Info("Connected to NATS", "url", p.cfg.URL)
	return nc, nil
}

func (p *Provider) options() []nats.Option {
	opts := []nats.Option{
		nats.Name(p.cfg.Name),
		nats.MaxReconnects(p.cfg.MaxReconnects),
		nats.ReconnectWait(p.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
	if p.cfg.Token != "" {
		opts = append(opts, nats.Token(p.cfg.Token))
	}
	return opts
}

// Close closes the NATS connection.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc != nil {
		p.logger.Info("Closing NATS connection...")
		p.nc.Close()
		p.nc = nil
	}
	return nil
}
