// Package postgres is the gorm/gorm.io/driver/postgres-backed implementation
// of store.Store, the system of record for Robot and Mission objects. It
// follows the teacher's database package's Start/Stop/IsHealthy lifecycle
// shape (database/databases.go) adapted from a single Mongo handle to a
// gorm.DB, plus an in-process watcher fan-out (mirroring store/memstore's)
// since Postgres itself has no generic change-feed the way Mongo's change
// streams do.
package postgres

import (
	"context"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/store"
)

// Config holds the Postgres DSN and pool sizing.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig mirrors the pool defaults the teacher's Mongo handler used
// (max 100, min 10), translated to Postgres's open/idle connection knobs.
func DefaultConfig() Config {
	return Config{MaxOpenConns: 100, MaxIdleConns: 10, ConnMaxLifetime: time.Hour}
}

// Store is the gorm-backed Store port implementation.
type Store struct {
	db *gorm.DB

	robotWatchers   []*watcher[*model.Robot]
	missionWatchers []*watcher[*model.Mission]
	mu              sync.Mutex
}

type watcher[T any] struct {
	ch          chan store.WatchEvent[T]
	publisherID string
}

// Connect opens the database, runs schema migration for robots/missions,
// and verifies connectivity with a ping.
func Connect(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, shared.NewUsageError("postgres: DSN is required")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, shared.NewTransientError(err, "opening postgres connection")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, shared.NewServerError(err, "getting underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, shared.NewTransientError(err, "pinging postgres")
	}

	if err := db.AutoMigrate(&robotRow{}, &missionRow{}); err != nil {
		return nil, shared.NewServerError(err, "migrating schema")
	}

	shared.Infof("connected to postgres store")
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsHealthy pings the database, mirroring DBManager_t.IsHealthy.
func (s *Store) IsHealthy() bool {
	sqlDB, err := s.db.DB()
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx) == nil
}

func (s *Store) Robots() store.RobotStore     { return robotStore{s} }
func (s *Store) Missions() store.MissionStore { return missionStore{s} }

func publishRobot(s *Store, ev store.WatchEvent[*model.Robot], writerID string) {
	s.mu.Lock()
	watchers := make([]*watcher[*model.Robot], len(s.robotWatchers))
	copy(watchers, s.robotWatchers)
	s.mu.Unlock()
	for _, w := range watchers {
		if writerID != "" && w.publisherID == writerID {
			continue
		}
		select {
		case w.ch <- ev:
		default:
			shared.Warnf("postgres robot watcher backed up, dropping event for %q", ev.Object.Name)
		}
	}
}

func publishMission(s *Store, ev store.WatchEvent[*model.Mission], writerID string) {
	s.mu.Lock()
	watchers := make([]*watcher[*model.Mission], len(s.missionWatchers))
	copy(watchers, s.missionWatchers)
	s.mu.Unlock()
	for _, w := range watchers {
		if writerID != "" && w.publisherID == writerID {
			continue
		}
		select {
		case w.ch <- ev:
		default:
			shared.Warnf("postgres mission watcher backed up, dropping event for %q", ev.Object.Name)
		}
	}
}

type robotStore struct{ s *Store }

func (r robotStore) List(ctx context.Context, params store.ListParams) ([]*model.Robot, error) {
	q := r.s.db.WithContext(ctx).Model(&robotRow{})
	if state, ok := params["state"]; ok {
		q = q.Where("status->>'state' = ?", state)
	}
	var rows []robotRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, shared.NewTransientError(err, "listing robots")
	}
	out := make([]*model.Robot, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

func (r robotStore) Get(ctx context.Context, name string) (*model.Robot, error) {
	var row robotRow
	err := r.s.db.WithContext(ctx).First(&row, "name = ?", name).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, shared.NewTransientError(err, "getting robot %q", name)
	}
	return row.toModel(), nil
}

func (r robotStore) Create(ctx context.Context, robot *model.Robot) error {
	row := toRobotRow(robot)
	if err := r.s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return shared.NewTransientError(err, "creating robot %q", robot.Name)
	}
	publisherID, _ := store.PublisherIDFromContext(ctx)
	publishRobot(r.s, store.WatchEvent[*model.Robot]{Object: robot}, publisherID)
	return nil
}

func (r robotStore) UpdateSpec(ctx context.Context, name string, spec model.RobotSpec) error {
	robot, err := r.mutate(ctx, name, func(row *robotRow) { row.Spec = spec })
	if err != nil {
		return err
	}
	publisherID, _ := store.PublisherIDFromContext(ctx)
	publishRobot(r.s, store.WatchEvent[*model.Robot]{Object: robot}, publisherID)
	return nil
}

func (r robotStore) UpdateStatus(ctx context.Context, name string, status model.RobotStatus) error {
	robot, err := r.mutate(ctx, name, func(row *robotRow) { row.Status = status })
	if err != nil {
		return err
	}
	publisherID, _ := store.PublisherIDFromContext(ctx)
	publishRobot(r.s, store.WatchEvent[*model.Robot]{Object: robot}, publisherID)
	return nil
}

func (r robotStore) SetLifecycle(ctx context.Context, name string, lifecycle model.Lifecycle) error {
	robot, err := r.mutate(ctx, name, func(row *robotRow) { row.Lifecycle = lifecycle })
	if err != nil {
		return err
	}
	publisherID, _ := store.PublisherIDFromContext(ctx)
	publishRobot(r.s, store.WatchEvent[*model.Robot]{Object: robot}, publisherID)
	return nil
}

func (r robotStore) mutate(ctx context.Context, name string, apply func(*robotRow)) (*model.Robot, error) {
	var result *model.Robot
	err := r.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row robotRow
		if err := tx.First(&row, "name = ?", name).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return shared.ErrNotFound
			}
			return shared.NewTransientError(err, "loading robot %q", name)
		}
		apply(&row)
		row.UpdatedAt = time.Now()
		if err := tx.Save(&row).Error; err != nil {
			return shared.NewTransientError(err, "saving robot %q", name)
		}
		result = row.toModel()
		return nil
	})
	return result, err
}

func (r robotStore) Delete(ctx context.Context, name string) error {
	var row robotRow
	if err := r.s.db.WithContext(ctx).First(&row, "name = ?", name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return shared.ErrNotFound
		}
		return shared.NewTransientError(err, "loading robot %q", name)
	}
	if err := r.s.db.WithContext(ctx).Delete(&robotRow{}, "name = ?", name).Error; err != nil {
		return shared.NewTransientError(err, "deleting robot %q", name)
	}
	publisherID, _ := store.PublisherIDFromContext(ctx)
	publishRobot(r.s, store.WatchEvent[*model.Robot]{Object: row.toModel(), Deleted: true}, publisherID)
	return nil
}

func (r robotStore) Watch(ctx context.Context) (<-chan store.WatchEvent[*model.Robot], error) {
	publisherID, _ := store.PublisherIDFromContext(ctx)
	ch := make(chan store.WatchEvent[*model.Robot], 64)
	w := &watcher[*model.Robot]{ch: ch, publisherID: publisherID}

	robots, err := r.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	r.s.robotWatchers = append(r.s.robotWatchers, w)
	r.s.mu.Unlock()

	go func() {
		for _, robot := range robots {
			select {
			case ch <- store.WatchEvent[*model.Robot]{Object: robot}:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
		r.s.mu.Lock()
		for i, existing := range r.s.robotWatchers {
			if existing == w {
				r.s.robotWatchers = append(r.s.robotWatchers[:i], r.s.robotWatchers[i+1:]...)
				break
			}
		}
		r.s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

type missionStore struct{ s *Store }

func (m missionStore) List(ctx context.Context, params store.ListParams) ([]*model.Mission, error) {
	q := m.s.db.WithContext(ctx).Model(&missionRow{})
	if state, ok := params["state"]; ok {
		q = q.Where("state = ?", state)
	}
	if robot, ok := params["robot"]; ok {
		q = q.Where("robot = ?", robot)
	}
	var rows []missionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, shared.NewTransientError(err, "listing missions")
	}
	out := make([]*model.Mission, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

func (m missionStore) Get(ctx context.Context, name string) (*model.Mission, error) {
	var row missionRow
	err := m.s.db.WithContext(ctx).First(&row, "name = ?", name).Error
	if err == gorm.ErrRecordNotFound {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, shared.NewTransientError(err, "getting mission %q", name)
	}
	return row.toModel(), nil
}

func (m missionStore) Create(ctx context.Context, mission *model.Mission) error {
	row := toMissionRow(mission)
	if err := m.s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return shared.NewTransientError(err, "creating mission %q", mission.Name)
	}
	publisherID, _ := store.PublisherIDFromContext(ctx)
	publishMission(m.s, store.WatchEvent[*model.Mission]{Object: mission}, publisherID)
	return nil
}

func (m missionStore) UpdateSpec(ctx context.Context, name string, spec model.MissionSpec) error {
	mission, err := m.mutate(ctx, name, func(row *missionRow) { row.Spec = spec; row.Robot = spec.Robot })
	if err != nil {
		return err
	}
	publisherID, _ := store.PublisherIDFromContext(ctx)
	publishMission(m.s, store.WatchEvent[*model.Mission]{Object: mission}, publisherID)
	return nil
}

func (m missionStore) UpdateStatus(ctx context.Context, name string, status model.MissionStatus) error {
	mission, err := m.mutate(ctx, name, func(row *missionRow) { row.Status = status; row.State = status.State })
	if err != nil {
		return err
	}
	publisherID, _ := store.PublisherIDFromContext(ctx)
	publishMission(m.s, store.WatchEvent[*model.Mission]{Object: mission}, publisherID)
	return nil
}

func (m missionStore) SetLifecycle(ctx context.Context, name string, lifecycle model.Lifecycle) error {
	mission, err := m.mutate(ctx, name, func(row *missionRow) { row.Lifecycle = lifecycle })
	if err != nil {
		return err
	}
	publisherID, _ := store.PublisherIDFromContext(ctx)
	publishMission(m.s, store.WatchEvent[*model.Mission]{Object: mission}, publisherID)
	return nil
}

func (m missionStore) mutate(ctx context.Context, name string, apply func(*missionRow)) (*model.Mission, error) {
	var result *model.Mission
	err := m.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row missionRow
		if err := tx.First(&row, "name = ?", name).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return shared.ErrNotFound
			}
			return shared.NewTransientError(err, "loading mission %q", name)
		}
		apply(&row)
		row.UpdatedAt = time.Now()
		if err := tx.Save(&row).Error; err != nil {
			return shared.NewTransientError(err, "saving mission %q", name)
		}
		result = row.toModel()
		return nil
	})
	return result, err
}

func (m missionStore) Delete(ctx context.Context, name string) error {
	var row missionRow
	if err := m.s.db.WithContext(ctx).First(&row, "name = ?", name).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return shared.ErrNotFound
		}
		return shared.NewTransientError(err, "loading mission %q", name)
	}
	if err := m.s.db.WithContext(ctx).Delete(&missionRow{}, "name = ?", name).Error; err != nil {
		return shared.NewTransientError(err, "deleting mission %q", name)
	}
	publisherID, _ := store.PublisherIDFromContext(ctx)
	publishMission(m.s, store.WatchEvent[*model.Mission]{Object: row.toModel(), Deleted: true}, publisherID)
	return nil
}

func (m missionStore) Watch(ctx context.Context) (<-chan store.WatchEvent[*model.Mission], error) {
	publisherID, _ := store.PublisherIDFromContext(ctx)
	ch := make(chan store.WatchEvent[*model.Mission], 64)
	w := &watcher[*model.Mission]{ch: ch, publisherID: publisherID}

	missions, err := m.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	m.s.mu.Lock()
	m.s.missionWatchers = append(m.s.missionWatchers, w)
	m.s.mu.Unlock()

	go func() {
		for _, mission := range missions {
			select {
			case ch <- store.WatchEvent[*model.Mission]{Object: mission}:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
		m.s.mu.Lock()
		for i, existing := range m.s.missionWatchers {
			if existing == w {
				m.s.missionWatchers = append(m.s.missionWatchers[:i], m.s.missionWatchers[i+1:]...)
				break
			}
		}
		m.s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), detected by substring since pulling in the
// pgconn error type just for this check isn't worth another direct
// dependency on top of jackc/pgx already pulled in transitively by gorm's
// postgres driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
