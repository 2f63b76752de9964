package cmd

import (
	"context"
	"time"

	"github.com/syntrixbase/statussync/internal/core/realtime"
	"github.com/syntrixbase/statussync/internal/core/realtime/memory"
	"github.com/syntrixbase/statussync/pkg/model"
)

// demoStep returns the n-th event of the demo script.
func demoStep(n int) (realtime.Event, realtime.Payload) {
	deployment := float64(n/6 + 1)
	switch n % 6 {
	case 0:
		return realtime.DeploymentCreated, realtime.Payload{"deploymentId": deployment, "applicationId": float64(1), "status": string(model.DeploymentQueued)}
	case 1:
		return realtime.ApplicationStatusChanged, realtime.Payload{"applicationId": float64(1), "status": "restarting"}
	case 2:
		return realtime.DeploymentFinished, realtime.Payload{"deploymentId": deployment, "applicationId": float64(1), "status": string(model.DeploymentFinished)}
	case 3:
		return realtime.ServiceStatusChanged, realtime.Payload{"serviceId": float64(2), "status": "running"}
	case 4:
		return realtime.DatabaseStatusChanged, realtime.Payload{"databaseId": float64(3), "status": "running"}
	default:
		return realtime.ServerReachabilityChanged, realtime.Payload{"serverId": float64(1), "reachable": true}
	}
}

// publishDemo publishes a repeating script of events on scope until ctx is done.
func publishDemo(ctx context.Context, hub *memory.Hub, scope string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			event, payload := demoStep(n)
			hub.Publish(scope, event, payload)
		}
	}
}
