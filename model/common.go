// Package model holds the domain types the dispatcher operates on: Robot,
// Mission, MissionNode and their spec/status halves. These mirror §3's data
// model, widened per SPEC_FULL.md's DOMAIN MODEL additions (factsheet,
// per-mission info messages, structured robot errors) recovered from
// original_source/cloud_common/objects/{robot,mission}.py.
package model

import "time"

// Pose2D is a planar robot pose, grounded on the original's
// packages/objects/common.Pose2D.
type Pose2D struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
	MapID string  `json:"map_id"`
}

// Lifecycle is the tri-state lifecycle shared by Robot and Mission (§3).
type Lifecycle string

const (
	LifecycleAlive         Lifecycle = "ALIVE"
	LifecyclePendingDelete Lifecycle = "PENDING_DELETE"
	LifecycleDeleted       Lifecycle = "DELETED"
)

// ObjectMeta is the identity/lifecycle envelope common to Robot and Mission,
// analogous to the original's ApiObject base and the teacher's pattern of a
// shared struct embedded into each domain type.
type ObjectMeta struct {
	Name      string    `json:"name"`
	Lifecycle Lifecycle `json:"lifecycle"`
	UpdatedAt time.Time `json:"updated_at"`
}
