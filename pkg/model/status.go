// Package model holds typed views of status payloads and resource snapshots.
//
// Payloads are delivered as plain JSON objects. Consumers that want typed
// access decode them with Decode; routing never depends on these types.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResourceKind names a collection served by the REST API.
type ResourceKind string

const (
	KindApplications ResourceKind = "applications"
	KindDatabases    ResourceKind = "databases"
	KindServices     ResourceKind = "services"
	KindServers      ResourceKind = "servers"
	KindDeployments  ResourceKind = "deployments"
)

// ResourceKinds lists every kind in a stable order.
func ResourceKinds() []ResourceKind {
	return []ResourceKind{KindApplications, KindDatabases, KindServices, KindServers, KindDeployments}
}

// ParseResourceKind validates a kind name.
func ParseResourceKind(s string) (ResourceKind, error) {
	for _, k := range ResourceKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// DeploymentStatus is the lifecycle state of a deployment.
type DeploymentStatus string

const (
	DeploymentQueued     DeploymentStatus = "queued"
	DeploymentInProgress DeploymentStatus = "in_progress"
	DeploymentFinished   DeploymentStatus = "finished"
	DeploymentFailed     DeploymentStatus = "failed"
	DeploymentCancelled  DeploymentStatus = "cancelled-by-user"
)

// Done reports whether the deployment reached a terminal state.
func (s DeploymentStatus) Done() bool {
	switch s {
	case DeploymentFinished, DeploymentFailed, DeploymentCancelled:
		return true
	}
	return false
}

// ApplicationStatus is the payload of ApplicationStatusChanged.
type ApplicationStatus struct {
	ApplicationID int    `json:"applicationId"`
	UUID          string `json:"uuid,omitempty"`
	Status        string `json:"status"`
}

// DatabaseStatus is the payload of DatabaseStatusChanged.
type DatabaseStatus struct {
	DatabaseID int    `json:"databaseId"`
	UUID       string `json:"uuid,omitempty"`
	Status     string `json:"status"`
}

// ServiceStatus is the payload of ServiceStatusChanged.
type ServiceStatus struct {
	ServiceID int    `json:"serviceId"`
	UUID      string `json:"uuid,omitempty"`
	Status    string `json:"status"`
}

// ServerReachability is the payload of ServerReachabilityChanged.
type ServerReachability struct {
	ServerID  int  `json:"serverId"`
	Reachable bool `json:"reachable"`
	Usable    bool `json:"usable,omitempty"`
}

// DeploymentEvent is the payload of DeploymentCreated and DeploymentFinished.
type DeploymentEvent struct {
	DeploymentID  int              `json:"deploymentId"`
	ApplicationID int              `json:"applicationId"`
	Status        DeploymentStatus `json:"status"`
}

// Application is a snapshot row from the applications listing.
type Application struct {
	ID     int    `json:"id"`
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Status string `json:"status"`
	FQDN   string `json:"fqdn,omitempty"`
}

type Database struct {
	ID     int    `json:"id"`
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status"`
}

type Service struct {
	ID     int    `json:"id"`
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type Server struct {
	ID          int    `json:"id"`
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	IP          string `json:"ip"`
	IsReachable bool   `json:"is_reachable"`
	IsUsable    bool   `json:"is_usable"`
}

type Deployment struct {
	ID            int              `json:"id"`
	UUID          string           `json:"deployment_uuid"`
	ApplicationID int              `json:"application_id"`
	Status        DeploymentStatus `json:"status"`
	Commit        string           `json:"commit,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty"`
}

// Decode converts an event payload into one of the typed views.
func Decode(payload map[string]any, v any) error {
	if payload == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}
