package vda5050

import "fmt"

// InstantActionType is one of the three instant actions this dispatcher
// issues (§4.1).
type InstantActionType string

const (
	InstantActionCancelOrder InstantActionType = ActionTypeCancelOrder
	InstantActionStartTeleop InstantActionType = ActionTypeStartTeleop
	InstantActionStopTeleop  InstantActionType = ActionTypeStopTeleop
)

// instantActionID follows §4.1's "{mission}-instantaction-n{header}"
// convention, keyed on the header counter so every instant action the agent
// issues gets a fresh, traceable id.
func instantActionID(mission string, headerID int) string {
	return fmt.Sprintf("%s-instantaction-n%d", mission, headerID)
}

// BuildInstantActions wraps a single instant action of the given type for
// the named mission, stamped with the agent's current header counter and a
// fresh actionId.
func BuildInstantActions(mission string, actionType InstantActionType, identity AgentIdentity, headerID int) *InstantActions {
	return BuildInstantActionsWithID(instantActionID(mission, headerID), actionType, identity, headerID)
}

// BuildInstantActionsWithID wraps a single instant action under a caller-
// supplied actionId, used when the agent must retransmit a previously sent
// instant action (§4.3's "retransmitted" instant actions): headerId
// advances with every message, but the actionId identifying the pending
// action must stay stable so the robot's ack can be matched back to it.
func BuildInstantActionsWithID(actionID string, actionType InstantActionType, identity AgentIdentity, headerID int) *InstantActions {
	return &InstantActions{
		HeaderID:     headerID,
		Version:      Version,
		Manufacturer: identity.Manufacturer,
		SerialNumber: identity.SerialNumber,
		Actions: []Action{{
			ActionType:   string(actionType),
			ActionID:     actionID,
			BlockingType: BlockingHard,
		}},
	}
}
