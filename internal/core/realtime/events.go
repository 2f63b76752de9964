package realtime

// Event is one of the fixed status events delivered over a team channel.
type Event int

const (
	ApplicationStatusChanged Event = iota
	DatabaseStatusChanged
	ServiceStatusChanged
	ServerReachabilityChanged
	DeploymentCreated
	DeploymentFinished

	eventCount
)

var eventNames = [eventCount]string{
	ApplicationStatusChanged:  "ApplicationStatusChanged",
	DatabaseStatusChanged:     "DatabaseStatusChanged",
	ServiceStatusChanged:      "ServiceStatusChanged",
	ServerReachabilityChanged: "ServerReachabilityChanged",
	DeploymentCreated:         "DeploymentCreated",
	DeploymentFinished:        "DeploymentFinished",
}

// String returns the event name as it appears on the wire.
func (e Event) String() string {
	if !e.Valid() {
		return "Unknown"
	}
	return eventNames[e]
}

// Valid reports whether e is one of the known events.
func (e Event) Valid() bool {
	return e >= 0 && e < eventCount
}

// Events returns all known events in declaration order.
func Events() []Event {
	out := make([]Event, 0, eventCount)
	for e := Event(0); e < eventCount; e++ {
		out = append(out, e)
	}
	return out
}

// ParseEvent maps a wire name back to its Event.
func ParseEvent(name string) (Event, bool) {
	for e, n := range eventNames {
		if n == name {
			return Event(e), true
		}
	}
	return 0, false
}

// Payload is the decoded body of a delivered event. It is passed to handlers
// exactly as the channel produced it.
type Payload map[string]any

// Handler receives the payload of a single event delivery.
type Handler func(Payload)
