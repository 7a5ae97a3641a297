package model

import (
	"strconv"
	"time"

	"github.com/nvidia-isaac/mission-dispatch/shared"
)

// MissionState is the tri-state-plus lifecycle of a mission (§3, §4.3 state
// machine).
type MissionState string

const (
	MissionPending   MissionState = "PENDING"
	MissionRunning   MissionState = "RUNNING"
	MissionCompleted MissionState = "COMPLETED"
	MissionCanceled  MissionState = "CANCELED"
	MissionFailed    MissionState = "FAILED"
)

// Done reports whether the state is terminal, mirroring the original's
// MissionStateV1.done property.
func (s MissionState) Done() bool {
	return s == MissionCompleted || s == MissionCanceled || s == MissionFailed
}

// MissionFailureCategory classifies why a mission failed, recovered from
// original_source/packages/objects/mission.py's MissionFailureCategoryV1.
type MissionFailureCategory string

const (
	FailureCategoryRobotApp MissionFailureCategory = "ROBOT_APP"
	FailureCategoryTimeout  MissionFailureCategory = "TIMEOUT"
	FailureCategoryDeadline MissionFailureCategory = "DEADLINE"
	FailureCategoryCanceled MissionFailureCategory = "CANCELED"
)

// MissionSpec is the user-submitted mission definition (§3).
type MissionSpec struct {
	Robot         string                  `json:"robot"`
	MissionTree   []MissionNode           `json:"mission_tree"`
	Timeout       time.Duration           `json:"timeout"`
	Deadline      *time.Time              `json:"deadline,omitempty"`
	NeedsCanceled bool                    `json:"needs_canceled"`
	UpdateNodes   map[string]RouteNode    `json:"update_nodes,omitempty"`
}

// MissionNodeStatus is the per-node progress record (§3).
type MissionNodeStatus struct {
	State    MissionState `json:"state"`
	ErrorMsg string       `json:"error_msg,omitempty"`
}

// MissionStatus is the server-maintained progress of a mission (§3), widened
// with per-mission InfoMessages recovered from the original's Mission object
// (SPEC_FULL.md DOMAIN MODEL additions).
type MissionStatus struct {
	State           MissionState                 `json:"state"`
	CurrentNode     int                          `json:"current_node"`
	NodeStatus      map[string]*MissionNodeStatus `json:"node_status"`
	StartTimestamp  *time.Time                   `json:"start_timestamp,omitempty"`
	EndTimestamp    *time.Time                   `json:"end_timestamp,omitempty"`
	FailureReason   string                       `json:"failure_reason,omitempty"`
	FailureCategory MissionFailureCategory       `json:"failure_category,omitempty"`
	InfoMessages    []string                     `json:"info_messages,omitempty"`
}

// Mission is the full domain object (§3).
type Mission struct {
	ObjectMeta
	Spec   MissionSpec   `json:"spec"`
	Status MissionStatus `json:"status"`
}

// DefaultMissionTimeout matches original_source's MissionSpecV1 default of
// 300 seconds.
const DefaultMissionTimeout = 300 * time.Second

// NewMission validates spec per §3 invariants 1-3 and returns a Mission with
// status.node_status pre-populated for every node name plus "root" —
// mirroring MissionObjectV1.__init__'s post-construction fixup in
// original_source/packages/objects/mission.py.
func NewMission(name string, spec MissionSpec) (*Mission, error) {
	if len(spec.MissionTree) < 1 {
		return nil, shared.NewUsageError("mission %q: mission_tree must be non-empty", name)
	}
	if spec.Timeout <= 0 {
		spec.Timeout = DefaultMissionTimeout
	}

	seen := map[string]bool{RootNodeName: true}
	nodeStatus := make(map[string]*MissionNodeStatus, len(spec.MissionTree)+1)
	nodeStatus[RootNodeName] = &MissionNodeStatus{State: MissionPending}

	for i := range spec.MissionTree {
		node := &spec.MissionTree[i]
		if node.Name == "" {
			node.Name = strconv.Itoa(i)
		}
		if node.Parent == "" {
			node.Parent = RootNodeName
		}
		if node.Name == RootNodeName {
			return nil, shared.NewUsageError("mission %q: node name %q is reserved", name, RootNodeName)
		}
		if seen[node.Name] {
			return nil, shared.NewUsageError("mission %q: node name %q is repeated", name, node.Name)
		}
		if !seen[node.Parent] {
			return nil, shared.NewUsageError(
				"mission %q: node %q has parent %q which does not appear before it", name, node.Name, node.Parent)
		}
		if err := node.validateKind(); err != nil {
			return nil, err
		}
		seen[node.Name] = true
		nodeStatus[node.Name] = &MissionNodeStatus{State: MissionPending}
	}

	return &Mission{
		ObjectMeta: ObjectMeta{Name: name, Lifecycle: LifecycleAlive},
		Spec:       spec,
		Status: MissionStatus{
			State:      MissionPending,
			NodeStatus: nodeStatus,
		},
	}, nil
}

// Cancel marks a mission to be canceled by the agent when it is able to,
// mirroring original_source's MissionObjectV1.cancel. Rejects an attempt on
// an already-terminal mission (§7 UsageError: "cancel on a terminal
// mission").
func (m *Mission) Cancel() error {
	if m.Status.State.Done() {
		return shared.NewUsageError("mission %q is already %s and cannot be canceled", m.Name, m.Status.State)
	}
	m.Spec.NeedsCanceled = true
	return nil
}

// ApplyUpdateNodes validates and stages a route-node update, mirroring
// original_source's MissionObjectV1.update: the node must exist and, if the
// mission is RUNNING, the targeted node must not already be done.
func (m *Mission) ApplyUpdateNodes(updates map[string]RouteNode) error {
	if m.Status.State.Done() {
		return shared.NewUsageError("mission %q is finished with status %s", m.Name, m.Status.State)
	}
	names := make(map[string]bool, len(m.Spec.MissionTree))
	for _, n := range m.Spec.MissionTree {
		names[n.Name] = true
	}
	for nodeName := range updates {
		if !names[nodeName] {
			return shared.NewUsageError("mission %q: node %q does not exist", m.Name, nodeName)
		}
		if m.Status.State == MissionRunning {
			if st, ok := m.Status.NodeStatus[nodeName]; ok && st.State.Done() {
				return shared.NewUsageError(
					"mission %q: node %q is finished with status %s", m.Name, nodeName, st.State)
			}
		}
	}
	if m.Spec.UpdateNodes == nil {
		m.Spec.UpdateNodes = make(map[string]RouteNode, len(updates))
	}
	for k, v := range updates {
		m.Spec.UpdateNodes[k] = v
	}
	return nil
}
