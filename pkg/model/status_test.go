package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_DeploymentEvent(t *testing.T) {
	var ev DeploymentEvent
	err := Decode(map[string]any{"deploymentId": float64(1), "applicationId": float64(2), "status": "queued"}, &ev)
	require.NoError(t, err)
	assert.Equal(t, DeploymentEvent{DeploymentID: 1, ApplicationID: 2, Status: DeploymentQueued}, ev)
	assert.False(t, ev.Status.Done())
}

func TestDecode_ServerReachability(t *testing.T) {
	var ev ServerReachability
	require.NoError(t, Decode(map[string]any{"serverId": float64(4), "reachable": true}, &ev))
	assert.Equal(t, 4, ev.ServerID)
	assert.True(t, ev.Reachable)
	assert.False(t, ev.Usable)
}

func TestDecode_Errors(t *testing.T) {
	var ev ApplicationStatus
	assert.ErrorIs(t, Decode(nil, &ev), ErrInvalidPayload)
	assert.ErrorIs(t, Decode(map[string]any{"applicationId": "not-a-number"}, &ev), ErrInvalidPayload)
	assert.ErrorIs(t, Decode(map[string]any{"bad": func() {}}, &ev), ErrInvalidPayload)
}

func TestDeploymentStatus_Done(t *testing.T) {
	tests := []struct {
		status DeploymentStatus
		done   bool
	}{
		{DeploymentQueued, false},
		{DeploymentInProgress, false},
		{DeploymentFinished, true},
		{DeploymentFailed, true},
		{DeploymentCancelled, true},
		{DeploymentStatus("unknown"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.done, tt.status.Done())
		})
	}
}

func TestParseResourceKind(t *testing.T) {
	for _, k := range ResourceKinds() {
		got, err := ParseResourceKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseResourceKind("volumes")
	assert.Error(t, err)
}
