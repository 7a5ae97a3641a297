// Package store defines C5: the Store port used by the dispatcher and
// agents to read, write, and watch Robot and Mission objects. It is
// specified only as an interface (§1: "out of scope... specified only as a
// Store port"); store/memstore and store/postgres are its adapters.
// store/archive is a separate write-only mission archive, not a Store.
package store

import (
	"context"

	"github.com/nvidia-isaac/mission-dispatch/model"
)

// ListParams filters a List call. Recognized keys mirror the original's
// RobotQueryParamsV1/MissionQueryParamsV1 (min_battery, max_battery, state,
// online, names for robots); adapters that don't support a given filter
// ignore it rather than erroring, matching the "thin CRUD" framing in §1.
type ListParams map[string]string

// WatchEvent is one entry of a watch<T> stream (§6): the current object, or
// Deleted=true if the object was removed. watch MUST yield the current set
// of objects on subscribe (Deleted=false, one event per existing object),
// then each subsequent change as a delta.
type WatchEvent[T any] struct {
	Object  T
	Deleted bool
}

// RobotStore is the Robot half of the Store port.
type RobotStore interface {
	List(ctx context.Context, params ListParams) ([]*model.Robot, error)
	Get(ctx context.Context, name string) (*model.Robot, error)
	Create(ctx context.Context, robot *model.Robot) error
	UpdateSpec(ctx context.Context, name string, spec model.RobotSpec) error
	UpdateStatus(ctx context.Context, name string, status model.RobotStatus) error
	SetLifecycle(ctx context.Context, name string, lifecycle model.Lifecycle) error
	Delete(ctx context.Context, name string) error

	// Watch yields the current snapshot of robots, then every subsequent
	// change, until ctx is canceled. A publisher id attached to ctx via
	// WithPublisherID suppresses delta events caused by writes made through a
	// context carrying that same id (§6: "publisher_id filtering prevents
	// self-notifications").
	Watch(ctx context.Context) (<-chan WatchEvent[*model.Robot], error)
}

// MissionStore is the Mission half of the Store port.
type MissionStore interface {
	List(ctx context.Context, params ListParams) ([]*model.Mission, error)
	Get(ctx context.Context, name string) (*model.Mission, error)
	Create(ctx context.Context, mission *model.Mission) error
	UpdateSpec(ctx context.Context, name string, spec model.MissionSpec) error
	UpdateStatus(ctx context.Context, name string, status model.MissionStatus) error
	SetLifecycle(ctx context.Context, name string, lifecycle model.Lifecycle) error
	Delete(ctx context.Context, name string) error

	Watch(ctx context.Context) (<-chan WatchEvent[*model.Mission], error)
}

// Store is the full port C3/C4 depend on.
type Store interface {
	Robots() RobotStore
	Missions() MissionStore
}

type publisherIDKey struct{}

// WithPublisherID attaches a caller's publisher id to a context, so a write
// made through this context is tagged and can be filtered back out of that
// same caller's Watch stream (§6 publisher_id filtering). Passed via context
// rather than added to every write method's signature, since it is
// orthogonal to each write's own arguments.
func WithPublisherID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, publisherIDKey{}, id)
}

// PublisherIDFromContext retrieves the id set by WithPublisherID, if any.
func PublisherIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(publisherIDKey{}).(string)
	return id, ok
}
