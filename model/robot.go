package model

import "time"

// RobotState is the operational state machine in §3/§4.3: IDLE <-> {ON_TASK,
// CHARGING, MAP_DEPLOYMENT, TELEOP}.
type RobotState string

const (
	RobotStateIdle          RobotState = "IDLE"
	RobotStateOnTask        RobotState = "ON_TASK"
	RobotStateCharging      RobotState = "CHARGING"
	RobotStateMapDeployment RobotState = "MAP_DEPLOYMENT"
	RobotStateTeleop        RobotState = "TELEOP"
)

// Running reports whether the robot is actively working a mission, mirroring
// original_source/packages/objects/robot.py's RobotStateV1.running property.
func (s RobotState) Running() bool {
	return s == RobotStateOnTask || s == RobotStateMapDeployment
}

// RobotBatterySpec configures the battery thresholds named in §3.
type RobotBatterySpec struct {
	CriticalLevel        float64  `json:"critical_level"`
	RecommendedMinimum   *float64 `json:"recommended_minimum,omitempty"`
	RecommendedMaximum   *float64 `json:"recommended_maximum,omitempty"`
}

// RobotSpec is the user-controlled configuration of a robot (§3).
type RobotSpec struct {
	Labels           []string          `json:"labels"`
	Battery          RobotBatterySpec  `json:"battery"`
	HeartbeatTimeout time.Duration     `json:"heartbeat_timeout"`
	SwitchTeleop     bool              `json:"switch_teleop"`
}

// RobotHardwareVersion identifies the physical unit reporting state.
type RobotHardwareVersion struct {
	Manufacturer string `json:"manufacturer"`
	SerialNumber string `json:"serial_number"`
}

// RobotError is a structured fault entry, recovered from
// original_source/cloud_common/objects/robot.py's RobotStatusError — the
// distilled spec's "errors" field is widened from bare strings to this.
type RobotError struct {
	ErrorCode  string `json:"error_code"`
	ErrorMsg   string `json:"error_msg"`
	ErrorLevel string `json:"error_level"`
}

// RobotStatus is the server-observed state of a robot (§3), widened with the
// factsheet field recovered from the original source (SPEC_FULL.md DOMAIN
// MODEL additions).
type RobotStatus struct {
	Pose             Pose2D                 `json:"pose"`
	HardwareVersion  RobotHardwareVersion   `json:"hardware_version"`
	SoftwareVersion  string                 `json:"software_version"`
	Online           bool                   `json:"online"`
	BatteryLevel     float64                `json:"battery_level"`
	State            RobotState             `json:"state"`
	InfoMessages     []string               `json:"info_messages"`
	Errors           []RobotError           `json:"errors"`
	Factsheet        map[string]interface{} `json:"factsheet,omitempty"`
}

// Robot is the full domain object: identity, spec, and status (§3).
type Robot struct {
	ObjectMeta
	Spec   RobotSpec   `json:"spec"`
	Status RobotStatus `json:"status"`
}

// DefaultRobotSpec returns the zero-value spec used when a robot is created
// without an explicit spec, mirroring the original's RobotSpecV1 defaults
// (30s heartbeat timeout, 0.1 critical battery level).
func DefaultRobotSpec() RobotSpec {
	return RobotSpec{
		Battery:          RobotBatterySpec{CriticalLevel: 0.1},
		HeartbeatTimeout: 30 * time.Second,
	}
}
