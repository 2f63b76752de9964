package realtime

import "errors"

var (
	// ErrChannelUnavailable is recorded when the provider fails to produce a channel
	// or a subscription.
	ErrChannelUnavailable = errors.New("push channel unavailable")

	// ErrChannelDisconnected is recorded when the transport reports itself not
	// connected after a subscribe that appeared to succeed.
	ErrChannelDisconnected = errors.New("push channel disconnected")

	// ErrNoScope is recorded when the identity carries no team id.
	ErrNoScope = errors.New("no team scope available")
)
