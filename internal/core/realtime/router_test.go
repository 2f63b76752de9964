package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// chainSub returns a new handle from every call to exercise chaining.
type chainSub struct {
	root     *chainRoot
	position int
}

type chainRoot struct {
	on       map[Event]Handler
	stopped  []Event
	handles  []int
	returned int
}

func newChainSub() *chainSub {
	return &chainSub{root: &chainRoot{on: make(map[Event]Handler)}}
}

func (s *chainSub) On(event Event, h Handler) Subscription {
	s.root.on[event] = h
	s.root.handles = append(s.root.handles, s.position)
	s.root.returned++
	return &chainSub{root: s.root, position: s.root.returned}
}

func (s *chainSub) StopListening(event Event) Subscription {
	s.root.stopped = append(s.root.stopped, event)
	delete(s.root.on, event)
	return s
}

func TestBindings_Bound(t *testing.T) {
	var b Bindings
	assert.Empty(t, b.Bound())

	b[DeploymentFinished] = func(Payload) {}
	b[ApplicationStatusChanged] = func(Payload) {}
	assert.Equal(t, []Event{ApplicationStatusChanged, DeploymentFinished}, b.Bound())
}

func TestBindings_BindChainsRegistrations(t *testing.T) {
	var b Bindings
	b[DatabaseStatusChanged] = func(Payload) {}
	b[ServiceStatusChanged] = func(Payload) {}
	b[DeploymentCreated] = func(Payload) {}

	sub := newChainSub()
	b.bind(sub, func() bool { return true })

	// Each registration is made on the handle returned by the previous one.
	assert.Equal(t, []int{0, 1, 2}, sub.root.handles)
	assert.Len(t, sub.root.on, 3)
	assert.NotContains(t, sub.root.on, ApplicationStatusChanged)
}

func TestBindings_LiveGuard(t *testing.T) {
	var got []Payload
	var b Bindings
	b[DeploymentCreated] = func(p Payload) { got = append(got, p) }

	live := true
	sub := newChainSub()
	b.bind(sub, func() bool { return live })

	sub.root.on[DeploymentCreated](Payload{"n": 1})
	live = false
	sub.root.on[DeploymentCreated](Payload{"n": 2})

	assert.Equal(t, []Payload{{"n": 1}}, got)
}

func TestBindings_Unbind(t *testing.T) {
	var b Bindings
	b[ServerReachabilityChanged] = func(Payload) {}
	b[DeploymentFinished] = func(Payload) {}

	sub := newChainSub()
	b.bind(sub, func() bool { return true })
	b.unbind(sub)

	assert.Equal(t, []Event{ServerReachabilityChanged, DeploymentFinished}, sub.root.stopped)
	assert.Empty(t, sub.root.on)
}

func TestOptions_Bindings(t *testing.T) {
	noop := func(Payload) {}
	opts := Options{
		OnApplicationStatusChange: noop,
		OnDatabaseStatusChange:    noop,
		OnServiceStatusChange:     noop,
		OnServerStatusChange:      noop,
		OnDeploymentCreated:       noop,
		OnDeploymentFinished:      noop,
	}
	assert.Equal(t, Events(), opts.bindings().Bound())
	assert.Empty(t, Options{}.bindings().Bound())
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.EnablePushChannel)
	assert.Equal(t, DefaultPollingInterval, opts.PollingInterval)
	assert.NotNil(t, opts.logger())
}

func TestEvent_Names(t *testing.T) {
	tests := []struct {
		event Event
		name  string
	}{
		{ApplicationStatusChanged, "ApplicationStatusChanged"},
		{DatabaseStatusChanged, "DatabaseStatusChanged"},
		{ServiceStatusChanged, "ServiceStatusChanged"},
		{ServerReachabilityChanged, "ServerReachabilityChanged"},
		{DeploymentCreated, "DeploymentCreated"},
		{DeploymentFinished, "DeploymentFinished"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.event.String())
		parsed, ok := ParseEvent(tt.name)
		assert.True(t, ok)
		assert.Equal(t, tt.event, parsed)
	}

	assert.Equal(t, "Unknown", Event(99).String())
	assert.False(t, Event(-1).Valid())
	_, ok := ParseEvent("ServerCreated")
	assert.False(t, ok)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "errored", StateErrored.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestTeamScope(t *testing.T) {
	assert.Equal(t, "team.1", TeamScope("1"))
}
