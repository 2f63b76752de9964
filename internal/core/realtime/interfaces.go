// Package realtime keeps a client view of team resource status in sync with the
// server, over a push channel when one is available and a polling loop otherwise.
package realtime

import (
	"context"
)

// Provider hands out push channels. Implementations own the transport and its
// credentials; a Session only ever asks for a channel.
type Provider interface {
	// Channel returns a channel ready to accept subscriptions.
	Channel(ctx context.Context) (Channel, error)
}

// Channel is a live transport that can carry scoped subscriptions.
type Channel interface {
	// Subscribe joins the given scope and returns a handle for binding listeners.
	Subscribe(scope string) (Subscription, error)

	// Leave drops the scope. Once Leave returns no listener of that scope is
	// looked up again; a delivery that already holds its listener may still
	// finish. Listeners may call Leave and StopListening themselves.
	Leave(scope string)

	// Connected reports whether the underlying transport is connected.
	Connected() bool
}

// Subscription is a scoped channel handle. Registrations chain.
type Subscription interface {
	On(event Event, handler Handler) Subscription
	StopListening(event Event) Subscription
}

// Identity supplies the team the caller acts for.
type Identity interface {
	TeamID() (string, bool)
}

// TeamScope builds the subscription scope for a team id.
func TeamScope(teamID string) string {
	return "team." + teamID
}
