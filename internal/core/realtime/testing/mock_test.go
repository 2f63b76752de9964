package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/statussync/internal/core/realtime"
)

func TestMockProvider_Channel(t *testing.T) {
	p := NewMockProvider()

	ch, err := p.Channel(context.Background())
	require.NoError(t, err)
	assert.Same(t, p.MockChannel(), ch)
	assert.Equal(t, 1, p.Calls())

	boom := errors.New("boom")
	p.SetError(boom)
	_, err = p.Channel(context.Background())
	assert.ErrorIs(t, err, boom)

	p.SetError(nil)
	p.SetPanic("kaboom")
	assert.PanicsWithValue(t, "kaboom", func() { _, _ = p.Channel(context.Background()) })
	assert.Equal(t, 3, p.Calls())
}

func TestMockProvider_Block(t *testing.T) {
	p := NewMockProvider()
	release := p.Block()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Channel(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() {
		_, err := p.Channel(context.Background())
		done <- err
	}()
	release()
	release()
	assert.NoError(t, <-done)
}

func TestMockChannel_SubscribeEmitLeave(t *testing.T) {
	c := NewMockChannel()
	assert.True(t, c.Connected())

	sub, err := c.Subscribe("team.1")
	require.NoError(t, err)

	var got realtime.Payload
	sub.On(realtime.DeploymentCreated, func(p realtime.Payload) { got = p }).
		On(realtime.DeploymentFinished, func(realtime.Payload) {})

	assert.True(t, c.Emit("team.1", realtime.DeploymentCreated, realtime.Payload{"id": 1}))
	assert.Equal(t, realtime.Payload{"id": 1}, got)
	assert.False(t, c.Emit("team.2", realtime.DeploymentCreated, nil))

	ms := c.Subscription("team.1")
	require.NotNil(t, ms)
	assert.Equal(t, []realtime.Event{realtime.DeploymentCreated, realtime.DeploymentFinished}, ms.Registered())

	sub.StopListening(realtime.DeploymentFinished)
	assert.Equal(t, []realtime.Event{realtime.DeploymentFinished}, ms.Stopped())
	assert.False(t, ms.Emit(realtime.DeploymentFinished, nil))

	c.Leave("team.1")
	assert.Equal(t, []string{"team.1"}, c.Subscribed())
	assert.Equal(t, []string{"team.1"}, c.Left())
	assert.Nil(t, c.Subscription("team.1"))
	assert.False(t, ms.Emit(realtime.DeploymentCreated, nil))

	c.SetConnected(false)
	assert.False(t, c.Connected())

	c.SetSubscribeError(errors.New("denied"))
	_, err = c.Subscribe("team.1")
	assert.Error(t, err)
}

func TestMockChannel_OnPanic(t *testing.T) {
	c := NewMockChannel()
	c.SetOnPanic("boom")

	sub, err := c.Subscribe("team.1")
	require.NoError(t, err)
	assert.PanicsWithValue(t, "boom", func() { sub.On(realtime.DeploymentCreated, func(realtime.Payload) {}) })
}

func TestStaticIdentity(t *testing.T) {
	id, ok := StaticIdentity("5").TeamID()
	assert.True(t, ok)
	assert.Equal(t, "5", id)

	_, ok = StaticIdentity("").TeamID()
	assert.False(t, ok)
}
