package nats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/statussync/internal/core/realtime"
)

// mockConn is a fake NATS connection that records subscriptions.
type mockConn struct {
	mock.Mock

	mu        sync.Mutex
	connected bool
	chans     map[string]chan *nats.Msg
}

func newMockConn() *mockConn {
	return &mockConn{connected: true, chans: make(map[string]chan *nats.Msg)}
}

func (m *mockConn) ChanSubscribe(subject string, ch chan *nats.Msg) (*nats.Subscription, error) {
	args := m.Called(subject)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.chans[subject] = ch
	m.mu.Unlock()
	return nil, nil
}

func (m *mockConn) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockConn) Close() {
	m.Called()
}

func (m *mockConn) emit(subject string, data string) bool {
	m.mu.Lock()
	ch, ok := m.chans[subject]
	m.mu.Unlock()
	if !ok {
		return false
	}
	ch <- &nats.Msg{Subject: subject, Data: []byte(data)}
	return true
}

func newTestProvider(conn *mockConn, connectErr error) (*Provider, *int) {
	p := NewProvider(DefaultConfig())
	calls := 0
	p.natsConnect = func(url string, opts ...nats.Option) (natsConnection, error) {
		calls++
		if connectErr != nil {
			return nil, connectErr
		}
		return conn, nil
	}
	return p, &calls
}

type team string

func (t team) TeamID() (string, bool) { return string(t), t != "" }

func TestNewProvider_Defaults(t *testing.T) {
	p := NewProvider(Config{URL: "nats://localhost:4222"})
	assert.Equal(t, "nats://localhost:4222", p.cfg.URL)
	assert.Equal(t, 256, p.cfg.BufferSize)
	assert.Nil(t, p.nc)
}

func TestProvider_ConnectsOnce(t *testing.T) {
	conn := newMockConn()
	p, calls := newTestProvider(conn, nil)

	_, err := p.Channel(context.Background())
	require.NoError(t, err)
	_, err = p.Channel(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, *calls)
}

func TestProvider_ConnectError(t *testing.T) {
	p, _ := newTestProvider(nil, errors.New("no servers available"))

	_, err := p.Channel(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}

func TestProvider_ContextCancelled(t *testing.T) {
	p, calls := newTestProvider(newMockConn(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Channel(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, *calls)
}

func TestProvider_Close(t *testing.T) {
	conn := newMockConn()
	conn.On("Close").Return()
	p, _ := newTestProvider(conn, nil)

	require.NoError(t, p.Close())
	_, err := p.Channel(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	conn.AssertNumberOfCalls(t, "Close", 1)
}

func TestChannel_SubscribesOnlyBoundSubjects(t *testing.T) {
	conn := newMockConn()
	conn.On("ChanSubscribe", "team.1.DeploymentCreated").Return(nil)
	conn.On("ChanSubscribe", "team.1.DeploymentFinished").Return(nil)
	p, _ := newTestProvider(conn, nil)

	ch, err := p.Channel(context.Background())
	require.NoError(t, err)
	sub, err := ch.Subscribe("team.1")
	require.NoError(t, err)
	defer ch.Leave("team.1")

	sub.On(realtime.DeploymentCreated, func(realtime.Payload) {}).
		On(realtime.DeploymentFinished, func(realtime.Payload) {})

	conn.AssertExpectations(t)
	conn.AssertNumberOfCalls(t, "ChanSubscribe", 2)
}

func TestChannel_DeliversInOrder(t *testing.T) {
	conn := newMockConn()
	conn.On("ChanSubscribe", mock.Anything).Return(nil)
	p, _ := newTestProvider(conn, nil)

	ch, _ := p.Channel(context.Background())
	sub, _ := ch.Subscribe("team.1")
	defer ch.Leave("team.1")

	got := make(chan string, 4)
	sub.On(realtime.DeploymentCreated, func(pl realtime.Payload) { got <- "created:" + pl["status"].(string) }).
		On(realtime.DeploymentFinished, func(pl realtime.Payload) { got <- "finished:" + pl["status"].(string) })

	require.True(t, conn.emit("team.1.DeploymentFinished", `{"status":"success"}`))
	require.True(t, conn.emit("team.1.DeploymentCreated", `{"status":"queued"}`))

	var order []string
	for i := 0; i < 2; i++ {
		select {
		case s := <-got:
			order = append(order, s)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
	assert.Equal(t, []string{"finished:success", "created:queued"}, order)
}

func TestChannel_DropsUndecodable(t *testing.T) {
	conn := newMockConn()
	conn.On("ChanSubscribe", mock.Anything).Return(nil)
	p, _ := newTestProvider(conn, nil)

	ch, _ := p.Channel(context.Background())
	sub, _ := ch.Subscribe("team.1")
	defer ch.Leave("team.1")

	got := make(chan realtime.Payload, 2)
	sub.On(realtime.ServiceStatusChanged, func(pl realtime.Payload) { got <- pl })

	conn.emit("team.1.ServiceStatusChanged", `not json`)
	conn.emit("team.1.ServiceStatusChanged", `{"status":"running"}`)

	select {
	case pl := <-got:
		assert.Equal(t, realtime.Payload{"status": "running"}, pl)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestChannel_SubscribeErrorIsLogged(t *testing.T) {
	conn := newMockConn()
	conn.On("ChanSubscribe", mock.Anything).Return(errors.New("permissions violation"))
	p, _ := newTestProvider(conn, nil)

	ch, _ := p.Channel(context.Background())
	sub, _ := ch.Subscribe("team.1")
	defer ch.Leave("team.1")

	assert.NotPanics(t, func() {
		sub.On(realtime.DatabaseStatusChanged, func(realtime.Payload) {})
	})
}

func TestChannel_LeaveStopsDelivery(t *testing.T) {
	conn := newMockConn()
	conn.On("ChanSubscribe", mock.Anything).Return(nil)
	p, _ := newTestProvider(conn, nil)

	ch, _ := p.Channel(context.Background())
	sub, _ := ch.Subscribe("team.1")
	delivered := make(chan struct{}, 1)
	sub.On(realtime.ApplicationStatusChanged, func(realtime.Payload) { delivered <- struct{}{} })

	ch.Leave("team.1")
	ch.Leave("team.1")

	s := sub.(*subscription)
	s.deliver(&nats.Msg{Subject: "team.1.ApplicationStatusChanged", Data: []byte(`{}`)})
	select {
	case <-delivered:
		t.Fatal("delivered after leave")
	default:
	}
}

func TestChannel_ListenerMayLeaveDuringDelivery(t *testing.T) {
	conn := newMockConn()
	conn.On("ChanSubscribe", mock.Anything).Return(nil)
	p, _ := newTestProvider(conn, nil)

	ch, _ := p.Channel(context.Background())
	sub, _ := ch.Subscribe("team.1")
	calls := 0
	sub.On(realtime.DeploymentFinished, func(realtime.Payload) {
		calls++
		sub.StopListening(realtime.DeploymentFinished)
		ch.Leave("team.1")
	})

	s := sub.(*subscription)
	done := make(chan struct{})
	go func() {
		defer close(done)
		msg := &nats.Msg{Subject: "team.1.DeploymentFinished", Data: []byte(`{"status":"finished"}`)}
		s.deliver(msg)
		s.deliver(msg)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener calling Leave blocked delivery")
	}
	assert.Equal(t, 1, calls)
}

func TestChannel_Connected(t *testing.T) {
	conn := newMockConn()
	p, _ := newTestProvider(conn, nil)
	ch, _ := p.Channel(context.Background())

	assert.True(t, ch.Connected())
	conn.mu.Lock()
	conn.connected = false
	conn.mu.Unlock()
	assert.False(t, ch.Connected())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "team.1.ServerReachabilityChanged", Subject("team.1", realtime.ServerReachabilityChanged))
}

func TestProvider_DrivesSession(t *testing.T) {
	conn := newMockConn()
	conn.On("ChanSubscribe", "team.3.DeploymentCreated").Return(nil)
	p, _ := newTestProvider(conn, nil)

	got := make(chan realtime.Payload, 1)
	opts := realtime.DefaultOptions()
	opts.OnDeploymentCreated = func(pl realtime.Payload) { got <- pl }
	s := realtime.Activate(context.Background(), p, team("3"), opts)
	defer s.Deactivate()

	require.Eventually(t, s.IsConnected, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return conn.emit("team.3.DeploymentCreated", `{"deploymentId":1,"applicationId":1,"status":"queued"}`)
	}, time.Second, 5*time.Millisecond)

	select {
	case pl := <-got:
		assert.Equal(t, realtime.Payload{"deploymentId": float64(1), "applicationId": float64(1), "status": "queued"}, pl)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
