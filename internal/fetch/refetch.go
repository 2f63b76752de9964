package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/syntrixbase/statussync/pkg/model"
)

// Snapshot is one freshly fetched resource listing. Items holds the typed
// slice for Kind, e.g. []model.Server.
type Snapshot struct {
	Kind      model.ResourceKind
	Items     any
	FetchedAt time.Time
}

// Len returns the number of items in the snapshot.
func (s Snapshot) Len() int {
	v := reflect.ValueOf(s.Items)
	if v.Kind() != reflect.Slice {
		return 0
	}
	return v.Len()
}

// Sink receives snapshots. Nothing is retained after the call.
type Sink func(Snapshot)

// Refetcher re-pulls a set of resource kinds on each poll tick.
type Refetcher struct {
	client      *Client
	kinds       []model.ResourceKind
	deployments DeploymentQuery
	sink        Sink
	logger      *slog.Logger
	now         func() time.Time
}

// NewRefetcher creates a refetcher. An empty kinds list means every kind.
func NewRefetcher(client *Client, kinds []model.ResourceKind, sink Sink) *Refetcher {
	if len(kinds) == 0 {
		kinds = model.ResourceKinds()
	}
	if sink == nil {
		sink = func(Snapshot) {}
	}
	return &Refetcher{
		client: client,
		kinds:  kinds,
		sink:   sink,
		logger: slog.Default().With("component", "refetcher"),
		now:    time.Now,
	}
}

// WithDeploymentQuery narrows the deployments listing.
func (r *Refetcher) WithDeploymentQuery(q DeploymentQuery) *Refetcher {
	r.deployments = q
	return r
}

// Tick fetches every configured kind. It has the shape of a poll tick
// handler; a cancelled ctx abandons the remaining kinds.
func (r *Refetcher) Tick(ctx context.Context) {
	for _, kind := range r.kinds {
		if ctx.Err() != nil {
			return
		}
		items, err := r.fetch(ctx, kind)
		if err != nil {
			if model.IsCanceled(err) {
				r.logger.Debug("Refetch canceled", "kind", kind)
				return
			}
			r.logger.Warn("Refetch failed", "kind", kind, "error", err)
			continue
		}
		r.sink(Snapshot{Kind: kind, Items: items, FetchedAt: r.now()})
	}
}

func (r *Refetcher) fetch(ctx context.Context, kind model.ResourceKind) (any, error) {
	switch kind {
	case model.KindApplications:
		return r.client.ListApplications(ctx)
	case model.KindDatabases:
		return r.client.ListDatabases(ctx)
	case model.KindServices:
		return r.client.ListServices(ctx)
	case model.KindServers:
		return r.client.ListServers(ctx)
	case model.KindDeployments:
		return r.client.ListDeployments(ctx, r.deployments)
	}
	return nil, fmt.Errorf("unknown resource kind %q", kind)
}
