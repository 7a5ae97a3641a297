package vda5050

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/nvidia-isaac/mission-dispatch/model"
)

// LeafOutcome is the result a State feedback implies for the order's leaf.
type LeafOutcome string

const (
	LeafOutcomeNone      LeafOutcome = ""
	LeafOutcomeCompleted LeafOutcome = "COMPLETED"
	LeafOutcomeFailed    LeafOutcome = "FAILED"
)

// ParsedState is the decoded, domain-relevant projection of a VDA5050 State
// message (§4.1). The agent applies it to its owned Robot/Mission; the
// codec itself never mutates domain objects.
type ParsedState struct {
	Pose             model.Pose2D
	HasBattery       bool
	BatteryLevel     float64
	Charging         bool
	HardwareVersion  model.RobotHardwareVersion
	InfoMessages     []string
	LeafOutcome      LeafOutcome
	LeafErrorMsg     string
	TeleopRequested  bool
	AckedActionIDs   []string
}

// pauseActionTypes are the vendor action types whose presence in
// actionStates, whatever its status, implies the robot entered a
// paused/teleop-requesting state (§4.1: "PAUSE-
// class action type induces a TELEOP robot-state transition").
var pauseActionTypes = map[string]bool{
	ActionTypePauseOrder: true,
}

// currentOrderNodeID derives the robot's acknowledged position in the order
// sequence (§4.1).
func currentOrderNodeID(state *State) int {
	return state.LastNodeSequenceID + 2
}

// ParseState decodes a State feedback against the leaf currently believed to
// be in flight. waypointCount is only meaningful for route leaves.
func ParseState(state *State, leaf *model.MissionNode, waypointCount int) *ParsedState {
	out := &ParsedState{}

	if state.AgvPosition != nil {
		out.Pose = model.Pose2D{
			X: state.AgvPosition.X, Y: state.AgvPosition.Y,
			Theta: state.AgvPosition.Theta, MapID: state.AgvPosition.MapID,
		}
	}
	if state.BatteryState != nil {
		out.HasBattery = true
		out.BatteryLevel = state.BatteryState.BatteryCharge
		out.Charging = state.BatteryState.Charging
	}
	if state.Manufacturer != "" || state.SerialNumber != "" {
		out.HardwareVersion = model.RobotHardwareVersion{
			Manufacturer: state.Manufacturer,
			SerialNumber: state.SerialNumber,
		}
	}

	for _, info := range state.Information {
		if info.InfoType != "user_info" {
			continue
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(info.InfoDescription), &decoded); err == nil {
			if s, ok := decoded.(string); ok {
				out.InfoMessages = append(out.InfoMessages, s)
			} else {
				out.InfoMessages = append(out.InfoMessages, info.InfoDescription)
			}
		} else {
			out.InfoMessages = append(out.InfoMessages, info.InfoDescription)
		}
	}

	if leaf != nil {
		switch leaf.Kind() {
		case model.NodeKindRoute:
			if currentOrderNodeID(state) == 2*waypointCount+2 {
				out.LeafOutcome = LeafOutcomeCompleted
			}
		case model.NodeKindMove:
			if currentOrderNodeID(state) == 4 {
				out.LeafOutcome = LeafOutcomeCompleted
			}
		case model.NodeKindAction:
			if len(state.ActionStates) > 0 {
				as := state.ActionStates[0]
				switch as.ActionStatus {
				case ActionFinished:
					out.LeafOutcome = LeafOutcomeCompleted
				case ActionFailed:
					out.LeafOutcome = LeafOutcomeFailed
					out.LeafErrorMsg = as.ResultDescription
				}
				if pauseActionTypes[leaf.Action.ActionType] {
					out.TeleopRequested = true
				}
			}
		}
	}

	return out
}

// AckedInstantActions scans actionStates in reverse (§4.1: "scan
// actionStates in reverse") and returns the ids of every instant action the
// feedback reports FINISHED.
func AckedInstantActions(state *State) []string {
	var acked []string
	for i := len(state.ActionStates) - 1; i >= 0; i-- {
		as := state.ActionStates[i]
		if as.ActionStatus == ActionFinished {
			acked = append(acked, as.ActionID)
		}
	}
	return acked
}

// LeafFault is one FATAL error folded onto a specific leaf (§4.1 error
// folding).
type LeafFault struct {
	LeafIndex int
	ErrorMsg  string
}

// referenceKeys are the node/action-id reference keys §4.1 recognizes; both
// snake_case and camelCase variants appear across VDA5050 implementations.
var referenceKeys = map[string]bool{
	"node_id": true, "nodeId": true, "action_id": true, "actionId": true,
}

// leafIndexFromReference extracts the leaf index out of a
// "{mission}-n{i}-s{seq}"-shaped reference value: the substring after "-n"
// and before "-s" (§4.1).
func leafIndexFromReference(value string) (int, bool) {
	nIdx := strings.LastIndex(value, "-n")
	if nIdx < 0 {
		return 0, false
	}
	rest := value[nIdx+2:]
	sIdx := strings.Index(rest, "-s")
	if sIdx < 0 {
		return 0, false
	}
	idx, err := strconv.Atoi(rest[:sIdx])
	if err != nil {
		return 0, false
	}
	return idx, true
}

// FoldErrors iterates state.Errors per §4.1: WARNING is ignored; each FATAL
// error is attributed to the leaf named by its first recognized
// errorReference.
func FoldErrors(state *State) []LeafFault {
	var faults []LeafFault
	for _, e := range state.Errors {
		if e.ErrorLevel != ErrorLevelFatal {
			continue
		}
		for _, ref := range e.ErrorReferences {
			if !referenceKeys[ref.ReferenceKey] {
				continue
			}
			if idx, ok := leafIndexFromReference(ref.ReferenceValue); ok {
				faults = append(faults, LeafFault{LeafIndex: idx, ErrorMsg: e.ErrorDescription})
				break
			}
		}
	}
	return faults
}

// IsStaleOrderID reports whether a feedback's orderId does not belong to the
// currently executing mission (§4.3 "mismatched feedback"): its prefix must
// be "{currentMission}-n".
func IsStaleOrderID(orderID, currentMission string) bool {
	return !strings.HasPrefix(orderID, currentMission+"-n")
}
