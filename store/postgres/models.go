package postgres

import (
	"time"

	"github.com/nvidia-isaac/mission-dispatch/model"
)

// robotRow is the gorm-mapped row for a Robot. Spec/Status are stored as
// JSONB via gorm's json serializer, the way the relational half of a
// spec/status domain object is usually persisted when the nested shape
// (labels, battery thresholds, factsheet) doesn't warrant its own tables.
type robotRow struct {
	Name      string           `gorm:"primaryKey"`
	Lifecycle model.Lifecycle  `gorm:"index"`
	UpdatedAt time.Time
	Spec      model.RobotSpec   `gorm:"serializer:json"`
	Status    model.RobotStatus `gorm:"serializer:json"`
}

func (robotRow) TableName() string { return "robots" }

func toRobotRow(r *model.Robot) robotRow {
	return robotRow{
		Name:      r.Name,
		Lifecycle: r.Lifecycle,
		UpdatedAt: r.UpdatedAt,
		Spec:      r.Spec,
		Status:    r.Status,
	}
}

func (row robotRow) toModel() *model.Robot {
	return &model.Robot{
		ObjectMeta: model.ObjectMeta{Name: row.Name, Lifecycle: row.Lifecycle, UpdatedAt: row.UpdatedAt},
		Spec:       row.Spec,
		Status:     row.Status,
	}
}

// missionRow is the gorm-mapped row for a Mission.
type missionRow struct {
	Name      string          `gorm:"primaryKey"`
	Robot     string          `gorm:"index"`
	State     model.MissionState `gorm:"index"`
	Lifecycle model.Lifecycle `gorm:"index"`
	UpdatedAt time.Time
	Spec      model.MissionSpec   `gorm:"serializer:json"`
	Status    model.MissionStatus `gorm:"serializer:json"`
}

func (missionRow) TableName() string { return "missions" }

func toMissionRow(m *model.Mission) missionRow {
	return missionRow{
		Name:      m.Name,
		Robot:     m.Spec.Robot,
		State:     m.Status.State,
		Lifecycle: m.Lifecycle,
		UpdatedAt: m.UpdatedAt,
		Spec:      m.Spec,
		Status:    m.Status,
	}
}

func (row missionRow) toModel() *model.Mission {
	return &model.Mission{
		ObjectMeta: model.ObjectMeta{Name: row.Name, Lifecycle: row.Lifecycle, UpdatedAt: row.UpdatedAt},
		Spec:       row.Spec,
		Status:     row.Status,
	}
}
