// Package pusher provides a push channel speaking the Pusher websocket protocol
// (Pusher, Soketi, Laravel Reverb).
package pusher

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/syntrixbase/statussync/internal/core/realtime"
)

// Protocol events
const (
	eventConnectionEstablished = "pusher:connection_established"
	eventError                 = "pusher:error"
	eventPing                  = "pusher:ping"
	eventPong                  = "pusher:pong"
	eventSubscribe             = "pusher:subscribe"
	eventUnsubscribe           = "pusher:unsubscribe"
	eventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	eventSubscriptionError     = "pusher:subscription_error"
)

// Connection states, as reported by pusher clients.
const (
	StateInitialized  = "initialized"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateUnavailable  = "unavailable"
	StateDisconnected = "disconnected"
)

const protocolVersion = 7

// frame is the envelope for every message in both directions.
type frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type connectionData struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type subscribeData struct {
	Channel     string `json:"channel"`
	Auth        string `json:"auth,omitempty"`
	ChannelData string `json:"channel_data,omitempty"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// authRequest is the form body posted to the broadcasting auth endpoint.
type authRequest struct {
	SocketID    string `schema:"socket_id"`
	ChannelName string `schema:"channel_name"`
}

type authResponse struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// decodeData unwraps frame data. Servers send event data as a JSON string
// holding JSON; some send the object directly.
func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty data")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		return json.Unmarshal([]byte(s), v)
	}
	return json.Unmarshal(raw, v)
}

func encodeFrame(event, channel string, data any) ([]byte, error) {
	f := frame{Event: event, Channel: channel}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		f.Data = b
	}
	return json.Marshal(f)
}

// eventName maps an Event to its broadcast name under namespace.
func eventName(namespace string, e realtime.Event) string {
	if namespace == "" {
		return e.String()
	}
	return namespace + `\` + e.String()
}

// parseEventName is the inverse of eventName.
func parseEventName(namespace, name string) (realtime.Event, bool) {
	if namespace != "" {
		trimmed := strings.TrimPrefix(name, namespace+`\`)
		if trimmed == name {
			return 0, false
		}
		name = trimmed
	}
	return realtime.ParseEvent(name)
}
