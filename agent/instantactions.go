package agent

import (
	"context"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/vda5050"
)

// sendInstantAction issues a fresh cancelOrder/startTeleop/stopTeleop
// instant action and records it in the outstanding table, keyed by actionId,
// so a later ack (or the watchdog-driven retransmit) can find it (§4.3
// "Instant actions"). scope is the mission or robot name the action is
// logically tied to; it only feeds the actionId, which must stay stable
// across retransmissions.
func (a *Agent) sendInstantAction(ctx context.Context, scope string, actionType vda5050.InstantActionType, reason cancelReason) {
	msg := vda5050.BuildInstantActions(scope, actionType, a.identity, a.nextHeaderID())
	actionID := msg.Actions[0].ActionID
	a.pendingInstantActions.Set(actionID, pendingInstantAction{
		ActionID: actionID,
		Type:     actionType,
		Reason:   reason,
	})
	if err := a.publishInstantActions(ctx, msg); err != nil {
		shared.LogError("agent: publishing instant action", err)
	}
}

// retransmitPending resends every outstanding instant action with a fresh
// headerId but its original actionId, per §4.3's retransmission rule. Called
// by the online watchdog on each fired tick while actions remain
// unacknowledged.
func (a *Agent) retransmitPending(ctx context.Context) {
	for _, pending := range a.pendingInstantActions.Values() {
		msg := vda5050.BuildInstantActionsWithID(pending.ActionID, pending.Type, a.identity, a.nextHeaderID())
		if err := a.publishInstantActions(ctx, msg); err != nil {
			shared.LogError("agent: retransmitting instant action", err)
		}
	}
}

// ackInstantActions removes every acked id from the outstanding table and
// reacts to what just completed: a cancelOrder ack either finishes the
// mission as CANCELED (user-initiated) or clears the way to resend the
// rewritten leaf's order (update-triggered); a teleop ack just updates robot
// state.
func (a *Agent) ackInstantActions(ctx context.Context, ackedIDs []string) {
	for _, id := range ackedIDs {
		pending, ok := a.pendingInstantActions.Get(id)
		if !ok {
			continue
		}
		a.pendingInstantActions.Delete(id)

		switch pending.Type {
		case vda5050.InstantActionCancelOrder:
			a.handleCancelAcked(ctx, pending.Reason)
		case vda5050.InstantActionStartTeleop:
			if a.robot != nil {
				a.robot.Status.State = model.RobotStateTeleop
			}
		case vda5050.InstantActionStopTeleop:
			if a.robot != nil {
				a.robot.Status.State = model.RobotStateIdle
			}
		}
	}
}

func (a *Agent) handleCancelAcked(ctx context.Context, reason cancelReason) {
	if a.current == nil {
		return
	}
	switch reason {
	case cancelReasonUserCancel:
		a.finishMission(ctx, model.MissionCanceled, "", model.FailureCategoryCanceled)
	case cancelReasonUpdateResend:
		a.lastTipName = ""
		if tip := a.tree.Tip(); tip != nil {
			delete(a.pendingResend, tip.Name())
		}
		a.emitOrderForTip(ctx)
	}
}
