package agent

import (
	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/vda5050"
)

// Event is one of RobotEvent/MissionEvent/FeedbackEvent, the three kinds
// C4 forwards onto an agent's inbox (§4.3). A tagged-union interface with
// three concrete types, the same shape model.MissionNode uses for its
// seven kinds, rather than one struct with three optional pointer fields:
// every event here is genuinely one-of, with no case needing more than one
// field set.
type Event interface {
	isAgentEvent()
}

// RobotEvent is a new or updated Robot object from Store.watch(Robot).
type RobotEvent struct {
	Robot   *model.Robot
	Deleted bool
}

// MissionEvent is a new or updated Mission object from Store.watch(Mission).
type MissionEvent struct {
	Mission *model.Mission
	Deleted bool
}

// FeedbackEvent is a parsed VDA5050 State received on the broker.
type FeedbackEvent struct {
	State *vda5050.State
}

// NotifyResultEvent reports the outcome of a notify leaf's background HTTP
// POST (§4.3), fed back onto the agent's own inbox so the result is still
// applied under the single-event-at-a-time rule rather than from the POST's
// own goroutine.
type NotifyResultEvent struct {
	Mission  string
	NodeName string
	Success  bool
	ErrorMsg string
}

func (RobotEvent) isAgentEvent()        {}
func (MissionEvent) isAgentEvent()      {}
func (FeedbackEvent) isAgentEvent()     {}
func (NotifyResultEvent) isAgentEvent() {}
