package realtime

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollingInterval is used when DefaultOptions is the starting point.
const DefaultPollingInterval = 30 * time.Second

// Options configures a single activation. The Session keeps its own copy, so
// changes after Activate have no effect.
type Options struct {
	// EnablePushChannel selects the push channel. When false the channel is
	// never attempted.
	EnablePushChannel bool

	// PollingInterval is the fallback tick period. Zero disables the fallback.
	PollingInterval time.Duration

	OnApplicationStatusChange Handler
	OnDatabaseStatusChange    Handler
	OnServiceStatusChange     Handler
	OnServerStatusChange      Handler
	OnDeploymentCreated       Handler
	OnDeploymentFinished      Handler

	// OnConnectionChange is called once per state transition with whether the
	// new state is connected.
	OnConnectionChange func(connected bool)

	// OnPollTick is invoked on every fallback tick, each in its own goroutine.
	// The context is cancelled when polling stops.
	OnPollTick func(ctx context.Context)

	Logger *slog.Logger
}

// DefaultOptions returns Options with push enabled and a 30s fallback.
func DefaultOptions() Options {
	return Options{
		EnablePushChannel: true,
		PollingInterval:   DefaultPollingInterval,
	}
}

func (o Options) bindings() Bindings {
	var b Bindings
	b[ApplicationStatusChanged] = o.OnApplicationStatusChange
	b[DatabaseStatusChanged] = o.OnDatabaseStatusChange
	b[ServiceStatusChanged] = o.OnServiceStatusChange
	b[ServerReachabilityChanged] = o.OnServerStatusChange
	b[DeploymentCreated] = o.OnDeploymentCreated
	b[DeploymentFinished] = o.OnDeploymentFinished
	return b
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
