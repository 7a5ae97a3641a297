// Package memstore is an in-memory Store adapter: the reference
// implementation of the watch snapshot-then-delta contract (§6), used by
// agent/dispatcher tests so the core engine's tests don't depend on
// store/postgres or a running database.
package memstore

import (
	"context"
	"sync"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/store"
)

type watcher[T any] struct {
	ch          chan store.WatchEvent[T]
	publisherID string
}

// typedStore is the shared generic machinery behind robotStore/missionStore:
// a name-keyed map plus a watcher fan-out list, both guarded by one mutex.
type typedStore[T any] struct {
	mu       sync.Mutex
	objects  map[string]T
	watchers []*watcher[T]
}

func newTypedStore[T any]() *typedStore[T] {
	return &typedStore[T]{objects: make(map[string]T)}
}

func (s *typedStore[T]) snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, 0, len(s.objects))
	for _, v := range s.objects {
		out = append(out, v)
	}
	return out
}

func (s *typedStore[T]) get(name string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.objects[name]
	return v, ok
}

// publish fans a write out to every watcher except one whose publisherID
// matches the writer's (self-notification filtering, §6).
func (s *typedStore[T]) publish(ev store.WatchEvent[T], writerPublisherID string) {
	s.mu.Lock()
	watchers := make([]*watcher[T], len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, w := range watchers {
		if writerPublisherID != "" && w.publisherID == writerPublisherID {
			continue
		}
		select {
		case w.ch <- ev:
		default:
			// A slow watcher must not block writers; it will observe a gap
			// relative to a full replay, which is why every Watch begins
			// with a fresh snapshot rather than relying on buffered replay.
		}
	}
}

func (s *typedStore[T]) watch(ctx context.Context) <-chan store.WatchEvent[T] {
	publisherID, _ := store.PublisherIDFromContext(ctx)
	ch := make(chan store.WatchEvent[T], 64)
	w := &watcher[T]{ch: ch, publisherID: publisherID}

	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	snapshot := make([]T, 0, len(s.objects))
	for _, v := range s.objects {
		snapshot = append(snapshot, v)
	}
	s.mu.Unlock()

	go func() {
		for _, v := range snapshot {
			select {
			case ch <- store.WatchEvent[T]{Object: v}:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
		s.mu.Lock()
		for i, existing := range s.watchers {
			if existing == w {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Store is the in-memory Store port implementation.
type Store struct {
	robots   *typedStore[*model.Robot]
	missions *typedStore[*model.Mission]
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{
		robots:   newTypedStore[*model.Robot](),
		missions: newTypedStore[*model.Mission](),
	}
}

func (s *Store) Robots() store.RobotStore     { return robotStore{s.robots} }
func (s *Store) Missions() store.MissionStore { return missionStore{s.missions} }

type robotStore struct{ s *typedStore[*model.Robot] }

func (r robotStore) List(_ context.Context, params store.ListParams) ([]*model.Robot, error) {
	all := r.s.snapshot()
	if len(params) == 0 {
		return all, nil
	}
	filtered := all[:0:0]
	for _, robot := range all {
		if state, ok := params["state"]; ok && string(robot.Status.State) != state {
			continue
		}
		filtered = append(filtered, robot)
	}
	return filtered, nil
}

func (r robotStore) Get(_ context.Context, name string) (*model.Robot, error) {
	v, ok := r.s.get(name)
	if !ok {
		return nil, shared.ErrNotFound
	}
	return v, nil
}

func (r robotStore) Create(ctx context.Context, robot *model.Robot) error {
	r.s.mu.Lock()
	if _, exists := r.s.objects[robot.Name]; exists {
		r.s.mu.Unlock()
		return shared.ErrAlreadyExists
	}
	r.s.objects[robot.Name] = robot
	r.s.mu.Unlock()
	publisherID, _ := store.PublisherIDFromContext(ctx)
	r.s.publish(store.WatchEvent[*model.Robot]{Object: robot}, publisherID)
	return nil
}

func (r robotStore) UpdateSpec(ctx context.Context, name string, spec model.RobotSpec) error {
	r.s.mu.Lock()
	robot, ok := r.s.objects[name]
	if !ok {
		r.s.mu.Unlock()
		return shared.ErrNotFound
	}
	robot.Spec = spec
	r.s.mu.Unlock()
	publisherID, _ := store.PublisherIDFromContext(ctx)
	r.s.publish(store.WatchEvent[*model.Robot]{Object: robot}, publisherID)
	return nil
}

func (r robotStore) UpdateStatus(ctx context.Context, name string, status model.RobotStatus) error {
	r.s.mu.Lock()
	robot, ok := r.s.objects[name]
	if !ok {
		r.s.mu.Unlock()
		return shared.ErrNotFound
	}
	robot.Status = status
	r.s.mu.Unlock()
	publisherID, _ := store.PublisherIDFromContext(ctx)
	r.s.publish(store.WatchEvent[*model.Robot]{Object: robot}, publisherID)
	return nil
}

func (r robotStore) SetLifecycle(ctx context.Context, name string, lifecycle model.Lifecycle) error {
	r.s.mu.Lock()
	robot, ok := r.s.objects[name]
	if !ok {
		r.s.mu.Unlock()
		return shared.ErrNotFound
	}
	robot.Lifecycle = lifecycle
	r.s.mu.Unlock()
	publisherID, _ := store.PublisherIDFromContext(ctx)
	r.s.publish(store.WatchEvent[*model.Robot]{Object: robot}, publisherID)
	return nil
}

func (r robotStore) Delete(ctx context.Context, name string) error {
	r.s.mu.Lock()
	robot, ok := r.s.objects[name]
	if !ok {
		r.s.mu.Unlock()
		return shared.ErrNotFound
	}
	delete(r.s.objects, name)
	r.s.mu.Unlock()
	publisherID, _ := store.PublisherIDFromContext(ctx)
	r.s.publish(store.WatchEvent[*model.Robot]{Object: robot, Deleted: true}, publisherID)
	return nil
}

func (r robotStore) Watch(ctx context.Context) (<-chan store.WatchEvent[*model.Robot], error) {
	return r.s.watch(ctx), nil
}

type missionStore struct{ s *typedStore[*model.Mission] }

func (m missionStore) List(_ context.Context, params store.ListParams) ([]*model.Mission, error) {
	all := m.s.snapshot()
	if len(params) == 0 {
		return all, nil
	}
	filtered := all[:0:0]
	for _, mission := range all {
		if state, ok := params["state"]; ok && string(mission.Status.State) != state {
			continue
		}
		if robot, ok := params["robot"]; ok && mission.Spec.Robot != robot {
			continue
		}
		filtered = append(filtered, mission)
	}
	return filtered, nil
}

func (m missionStore) Get(_ context.Context, name string) (*model.Mission, error) {
	v, ok := m.s.get(name)
	if !ok {
		return nil, shared.ErrNotFound
	}
	return v, nil
}

func (m missionStore) Create(ctx context.Context, mission *model.Mission) error {
	m.s.mu.Lock()
	if _, exists := m.s.objects[mission.Name]; exists {
		m.s.mu.Unlock()
		return shared.ErrAlreadyExists
	}
	m.s.objects[mission.Name] = mission
	m.s.mu.Unlock()
	publisherID, _ := store.PublisherIDFromContext(ctx)
	m.s.publish(store.WatchEvent[*model.Mission]{Object: mission}, publisherID)
	return nil
}

func (m missionStore) UpdateSpec(ctx context.Context, name string, spec model.MissionSpec) error {
	m.s.mu.Lock()
	mission, ok := m.s.objects[name]
	if !ok {
		m.s.mu.Unlock()
		return shared.ErrNotFound
	}
	mission.Spec = spec
	m.s.mu.Unlock()
	publisherID, _ := store.PublisherIDFromContext(ctx)
	m.s.publish(store.WatchEvent[*model.Mission]{Object: mission}, publisherID)
	return nil
}

func (m missionStore) UpdateStatus(ctx context.Context, name string, status model.MissionStatus) error {
	m.s.mu.Lock()
	mission, ok := m.s.objects[name]
	if !ok {
		m.s.mu.Unlock()
		return shared.ErrNotFound
	}
	mission.Status = status
	m.s.mu.Unlock()
	publisherID, _ := store.PublisherIDFromContext(ctx)
	m.s.publish(store.WatchEvent[*model.Mission]{Object: mission}, publisherID)
	return nil
}

func (m missionStore) SetLifecycle(ctx context.Context, name string, lifecycle model.Lifecycle) error {
	m.s.mu.Lock()
	mission, ok := m.s.objects[name]
	if !ok {
		m.s.mu.Unlock()
		return shared.ErrNotFound
	}
	mission.Lifecycle = lifecycle
	m.s.mu.Unlock()
	publisherID, _ := store.PublisherIDFromContext(ctx)
	m.s.publish(store.WatchEvent[*model.Mission]{Object: mission}, publisherID)
	return nil
}

func (m missionStore) Delete(ctx context.Context, name string) error {
	m.s.mu.Lock()
	mission, ok := m.s.objects[name]
	if !ok {
		m.s.mu.Unlock()
		return shared.ErrNotFound
	}
	delete(m.s.objects, name)
	m.s.mu.Unlock()
	publisherID, _ := store.PublisherIDFromContext(ctx)
	m.s.publish(store.WatchEvent[*model.Mission]{Object: mission, Deleted: true}, publisherID)
	return nil
}

func (m missionStore) Watch(ctx context.Context) (<-chan store.WatchEvent[*model.Mission], error) {
	return m.s.watch(ctx), nil
}
