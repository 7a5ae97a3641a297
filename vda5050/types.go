// Package vda5050 implements C1: the bidirectional mapping between
// mission-tree leaves and VDA5050 Order/InstantActions wire messages, and
// the parsing of State feedback. Field names and enums follow §6's wire
// contract (camelCase JSON, VDA5050 v2), grounded on
// original_source/packages/controllers/mission/vda5050_types/vda5050_types.py.
package vda5050

// ActionStatus is the VDA5050 action lifecycle (§6).
type ActionStatus string

const (
	ActionWaiting      ActionStatus = "WAITING"
	ActionInitializing ActionStatus = "INITIALIZING"
	ActionRunning      ActionStatus = "RUNNING"
	ActionPaused       ActionStatus = "PAUSED"
	ActionFinished     ActionStatus = "FINISHED"
	ActionFailed       ActionStatus = "FAILED"
)

// ErrorLevel is the VDA5050 error severity (§6).
type ErrorLevel string

const (
	ErrorLevelWarning ErrorLevel = "WARNING"
	ErrorLevelFatal   ErrorLevel = "FATAL"
)

// BlockingType controls whether an action may run concurrently with motion.
type BlockingType string

const (
	BlockingNone BlockingType = "NONE"
	BlockingSoft BlockingType = "SOFT"
	BlockingHard BlockingType = "HARD"
)

// Action is a VDA5050 action attached to a Node or sent as an InstantAction.
type Action struct {
	ActionType        string                 `json:"actionType"`
	ActionID          string                 `json:"actionId"`
	ActionDescription string                 `json:"actionDescription,omitempty"`
	BlockingType      BlockingType           `json:"blockingType"`
	ActionParameters  map[string]interface{} `json:"actionParameters,omitempty"`
}

// NodePosition pins a Node to a physical pose.
type NodePosition struct {
	X                     float64 `json:"x"`
	Y                     float64 `json:"y"`
	Theta                 float64 `json:"theta"`
	MapID                 string  `json:"mapId"`
	AllowedDeviationXY    float64 `json:"allowedDeviationXY,omitempty"`
	AllowedDeviationTheta float64 `json:"allowedDeviationTheta,omitempty"`
}

// Node is one stop in an Order's node list (§4.1).
type Node struct {
	NodeID       string        `json:"nodeId"`
	SequenceID   int           `json:"sequenceId"`
	Released     bool          `json:"released"`
	NodePosition *NodePosition `json:"nodePosition,omitempty"`
	Actions      []Action      `json:"actions"`
}

// Edge connects two Nodes in an Order's edge list (§4.1).
type Edge struct {
	EdgeID             string   `json:"edgeId"`
	SequenceID         int      `json:"sequenceId"`
	Released           bool     `json:"released"`
	StartNodeID        string   `json:"startNodeId"`
	EndNodeID          string   `json:"endNodeId"`
	Actions            []Action `json:"actions"`
}

// Order is the outbound VDA5050 message published to
// "{prefix}/{robot}/order" (§6).
type Order struct {
	HeaderID      int    `json:"headerId"`
	Version       string `json:"version"`
	Manufacturer  string `json:"manufacturer"`
	SerialNumber  string `json:"serialNumber"`
	OrderID       string `json:"orderId"`
	OrderUpdateID int    `json:"orderUpdateId"`
	Nodes         []Node `json:"nodes"`
	Edges         []Edge `json:"edges"`
}

// InstantActions is the outbound VDA5050 message published to
// "{prefix}/{robot}/instantActions" (§6).
type InstantActions struct {
	HeaderID     int      `json:"headerId"`
	Version      string   `json:"version"`
	Manufacturer string   `json:"manufacturer"`
	SerialNumber string   `json:"serialNumber"`
	Actions      []Action `json:"actions"`
}

// ActionState reports the status of one in-flight or completed action,
// appearing in State.ActionStates (§4.1).
type ActionState struct {
	ActionID          string       `json:"actionId"`
	ActionType        string       `json:"actionType,omitempty"`
	ActionDescription string       `json:"actionDescription,omitempty"`
	ActionStatus      ActionStatus `json:"actionStatus"`
	ResultDescription string       `json:"resultDescription,omitempty"`
}

// NodeState reports the sequence ID of a node along the robot's current
// order (§4.1's current_order_node_id derivation).
type NodeState struct {
	NodeID     string `json:"nodeId"`
	SequenceID int    `json:"sequenceId"`
	Released   bool   `json:"released"`
}

// EdgeState mirrors NodeState for edges.
type EdgeState struct {
	EdgeID     string `json:"edgeId"`
	SequenceID int    `json:"sequenceId"`
	Released   bool   `json:"released"`
}

// AgvPosition is the robot's reported pose (§4.1 state parsing).
type AgvPosition struct {
	X                     float64 `json:"x"`
	Y                     float64 `json:"y"`
	Theta                 float64 `json:"theta"`
	MapID                 string  `json:"mapId"`
	PositionInitialized   bool    `json:"positionInitialized"`
}

// BatteryState is the robot's reported battery (§4.1).
type BatteryState struct {
	BatteryCharge float64 `json:"batteryCharge"`
	BatteryVoltage float64 `json:"batteryVoltage,omitempty"`
	Charging      bool    `json:"charging"`
}

// ErrorReference keys a Error to the node/action it originated from (§4.1
// error folding: referenceKey in {node_id, nodeId, action_id, actionId}).
type ErrorReference struct {
	ReferenceKey   string `json:"referenceKey"`
	ReferenceValue string `json:"referenceValue"`
}

// Error is a VDA5050 fault entry reported in State.Errors (§4.1, §6).
type Error struct {
	ErrorType        string           `json:"errorType"`
	ErrorLevel       ErrorLevel       `json:"errorLevel"`
	ErrorReferences  []ErrorReference `json:"errorReferences,omitempty"`
	ErrorDescription string           `json:"errorDescription,omitempty"`
}

// Info carries out-of-band information from the robot; infoType "user_info"
// entries are decoded as JSON info_messages per §4.1.
type Info struct {
	InfoType        string `json:"infoType"`
	InfoDescription string `json:"infoDescription,omitempty"`
	InfoLevel       string `json:"infoLevel,omitempty"`
}

// HardwareVersion identifies the physical unit reporting State.
type HardwareVersion struct {
	Manufacturer string `json:"manufacturer"`
	SerialNumber string `json:"serialNumber"`
}

// State is the inbound VDA5050 message received on "{prefix}/+/state"
// (§4.1, §6).
type State struct {
	HeaderID         int              `json:"headerId"`
	Version          string           `json:"version"`
	Manufacturer     string           `json:"manufacturer"`
	SerialNumber     string           `json:"serialNumber"`
	OrderID          string           `json:"orderId"`
	OrderUpdateID    int              `json:"orderUpdateId"`
	LastNodeID       string           `json:"lastNodeId"`
	LastNodeSequenceID int            `json:"lastNodeSequenceId"`
	NodeStates       []NodeState      `json:"nodeStates"`
	EdgeStates       []EdgeState      `json:"edgeStates"`
	ActionStates     []ActionState    `json:"actionStates"`
	AgvPosition      *AgvPosition     `json:"agvPosition,omitempty"`
	BatteryState     *BatteryState    `json:"batteryState,omitempty"`
	Errors           []Error          `json:"errors"`
	Information      []Info           `json:"information,omitempty"`
	OperatingMode    string           `json:"operatingMode,omitempty"`
	Driving          bool             `json:"driving"`
}

// Version is the VDA5050 protocol version this codec speaks.
const Version = "2.0.0"

// Vendor action type strings (§6): appear verbatim in Action.ActionType.
const (
	ActionTypeCancelOrder  = "cancelOrder"
	ActionTypeStartTeleop  = "startTeleop"
	ActionTypeStopTeleop   = "stopTeleop"
	ActionTypeDummyAction  = "dummy_action"
	ActionTypeLoadMap      = "load_map"
	ActionTypePauseOrder   = "pause_order"
	ActionTypeDockRobot    = "dock_robot"
	ActionTypeGetObjects   = "get_objects"
)
