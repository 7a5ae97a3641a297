package agent

import (
	"context"
	"time"

	"github.com/nvidia-isaac/mission-dispatch/missiontree"
	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/shared/data_structures"
	"github.com/nvidia-isaac/mission-dispatch/vda5050"
)

func (a *Agent) handleMissionEvent(ctx context.Context, ev MissionEvent) {
	m := ev.Mission
	if ev.Deleted {
		a.removeMission(ctx, m.Name)
		return
	}

	if a.current != nil && a.current.Name == m.Name {
		a.applyUpdateToCurrent(ctx, m)
		return
	}
	if queued, ok := a.missions.Get(m.Name); ok {
		a.applyUpdateToQueued(ctx, queued, m)
		return
	}

	// New mission.
	a.missions.Set(m.Name, m)
	a.maybeStartNextMission(ctx)
}

func (a *Agent) removeMission(ctx context.Context, name string) {
	if a.current != nil && a.current.Name == name {
		a.current = nil
		a.tree = nil
		a.stopMissionTimeout()
		a.maybeStartNextMission(ctx)
		return
	}
	a.missions.Delete(name)
}

// applyUpdateToCurrent merges an externally-changed Spec (cancel flag,
// update_nodes) into the in-flight mission (§4.3 "Update to current
// mission"). Status/node_status stay agent-owned and are never overwritten
// from the incoming copy.
func (a *Agent) applyUpdateToCurrent(ctx context.Context, incoming *model.Mission) {
	wasCanceled := a.current.Spec.NeedsCanceled
	a.current.Spec.NeedsCanceled = incoming.Spec.NeedsCanceled

	for name, route := range incoming.Spec.UpdateNodes {
		existing, had := a.current.Spec.UpdateNodes[name]
		if had && equalRouteNodes(existing, route) {
			continue
		}
		if a.current.Spec.UpdateNodes == nil {
			a.current.Spec.UpdateNodes = map[string]model.RouteNode{}
		}
		a.current.Spec.UpdateNodes[name] = route
		a.handleNodeUpdate(ctx, name, route)
	}

	if !wasCanceled && a.current.Spec.NeedsCanceled {
		a.handleCancelRequested(ctx)
	}
}

func (a *Agent) applyUpdateToQueued(ctx context.Context, queued, incoming *model.Mission) {
	queued.Spec = incoming.Spec
	queued.Lifecycle = incoming.Lifecycle
	if incoming.Spec.NeedsCanceled || incoming.Lifecycle == model.LifecyclePendingDelete {
		a.missions.Delete(queued.Name)
		queued.Status.State = model.MissionCanceled
		now := clockNow()
		queued.Status.EndTimestamp = &now
		if err := a.store.Missions().UpdateStatus(a.writeCtx(ctx), queued.Name, queued.Status); err != nil {
			shared.LogError("agent: writing terminal status for canceled queued mission", err)
		}
	}
}

// handleNodeUpdate implements the RUNNING-leaf branch of §4.3's update_nodes
// handling: if the rewritten leaf is the tip, cancel the in-flight order and
// mark it for resend once the cancellation is acked.
func (a *Agent) handleNodeUpdate(ctx context.Context, nodeName string, route model.RouteNode) {
	for i := range a.current.Spec.MissionTree {
		if a.current.Spec.MissionTree[i].Name == nodeName && a.current.Spec.MissionTree[i].Route != nil {
			a.current.Spec.MissionTree[i].Route = &route
		}
	}
	if a.tree == nil {
		return
	}
	status, ok := a.current.Status.NodeStatus[nodeName]
	if !ok || status.State != model.MissionRunning {
		return
	}
	a.pendingResend[nodeName] = true
	a.sendInstantAction(ctx, a.current.Name, vda5050.InstantActionCancelOrder, cancelReasonUpdateResend)
}

// handleCancelRequested implements §5's cancellation asynchrony: a PENDING
// mission is canceled immediately (no order was ever emitted); a RUNNING
// mission gets an asynchronous cancelOrder and waits for the ack.
func (a *Agent) handleCancelRequested(ctx context.Context) {
	switch a.current.Status.State {
	case model.MissionPending:
		a.finishMission(ctx, model.MissionCanceled, "", model.FailureCategoryCanceled)
	case model.MissionRunning:
		a.sendInstantAction(ctx, a.current.Name, vda5050.InstantActionCancelOrder, cancelReasonUserCancel)
	}
}

// maybeStartNextMission starts the next queued mission if the agent is idle
// and the robot is known and ALIVE (§4.3 "Starting a mission" preconditions).
func (a *Agent) maybeStartNextMission(ctx context.Context) {
	if a.current != nil {
		return
	}
	if a.robot == nil || a.robot.Lifecycle != model.LifecycleAlive {
		return
	}
	name, m, ok := a.missions.First()
	if !ok {
		return
	}
	a.missions.Delete(name)
	a.startMission(ctx, m)
}

func (a *Agent) startMission(ctx context.Context, m *model.Mission) {
	a.current = m
	a.buildLeafIndex(m)

	tree, err := missiontree.Build(m)
	if err != nil {
		a.finishMission(ctx, model.MissionFailed, err.Error(), model.FailureCategoryRobotApp)
		return
	}
	a.tree = tree

	state := tree.Tick()
	if state != missiontree.Running {
		// An empty-effective tree resolves immediately; treat as failure
		// since §4.3 expects the first tick to yield RUNNING.
		a.finishMission(ctx, model.MissionFailed, "mission tree did not yield a running tip on first tick", model.FailureCategoryRobotApp)
		return
	}

	a.armMissionTimeout(m.Spec.Timeout)

	now := clockNow()
	m.Status.State = model.MissionRunning
	m.Status.StartTimestamp = &now
	a.robot.Status.State = model.RobotStateOnTask

	a.lastTipName = ""
	a.emitOrderForTip(ctx)

	if err := a.persistMission(ctx); err != nil {
		shared.LogError("agent: persisting mission on start", err)
	}
	if err := a.persistRobot(ctx); err != nil {
		shared.LogError("agent: persisting robot on-task transition", err)
	}
}

func (a *Agent) buildLeafIndex(m *model.Mission) {
	a.leafIndexByName = make(map[string]int, len(m.Spec.MissionTree))
	a.nameByLeafIndex = make(map[int]string, len(m.Spec.MissionTree))
	for i, node := range m.Spec.MissionTree {
		a.leafIndexByName[node.Name] = i
		a.nameByLeafIndex[i] = node.Name
	}
}

// emitOrderForTip publishes the order for the tree's current tip, if it is
// a route/move/action leaf and differs from the last leaf an order was
// issued for (§4.2 "When tip changes, the agent emits the next order").
func (a *Agent) emitOrderForTip(ctx context.Context) {
	if a.robot != nil && a.robot.Status.State == model.RobotStateTeleop {
		// §4.3 "Teleop": while TELEOP, the agent does not emit new orders.
		return
	}
	tip := a.tree.Tip()
	if tip == nil {
		return
	}
	leafNode, ok := tip.(missiontree.LeafNode)
	if !ok {
		return
	}
	mn := leafNode.MissionNode()
	if mn.Kind() == model.NodeKindNotify || mn.Kind() == model.NodeKindConstant {
		// Server-side leaves: no order to emit; notify is driven from
		// handleFeedback/maybeRunNotify instead.
		if mn.Name == a.lastTipName {
			return
		}
		a.lastTipName = mn.Name
		a.maybeRunNotify(ctx, mn)
		return
	}
	if mn.Name == a.lastTipName {
		return
	}
	a.lastTipName = mn.Name

	idx := a.leafIndexByName[mn.Name]
	order, err := vda5050.BuildOrder(a.current.Name, idx, mn, a.robot.Status.Pose, a.identity, a.nextHeaderID())
	if err != nil {
		shared.LogError("agent: building order", err)
		return
	}
	if st, ok := a.current.Status.NodeStatus[mn.Name]; ok && st.State == model.MissionPending {
		st.State = model.MissionRunning
	}
	if err := a.publishOrder(ctx, order); err != nil {
		shared.LogError("agent: publishing order", err)
	}
}

func clockNow() time.Time { return time.Now() }

func equalRouteNodes(a, b model.RouteNode) bool {
	if len(a.Waypoints) != len(b.Waypoints) {
		return false
	}
	for i := range a.Waypoints {
		if a.Waypoints[i] != b.Waypoints[i] {
			return false
		}
	}
	return true
}

func (a *Agent) persistMission(ctx context.Context) error {
	return a.store.Missions().UpdateStatus(a.writeCtx(ctx), a.current.Name, a.current.Status)
}

func (a *Agent) persistRobot(ctx context.Context) error {
	return a.store.Robots().UpdateStatus(a.writeCtx(ctx), a.name, a.robot.Status)
}

// finishMission stamps terminal status, resets robot state, and advances
// the queue (§4.3 step 5 of the per-feedback loop, and the empty-tree
// failure path from startMission).
func (a *Agent) finishMission(ctx context.Context, state model.MissionState, failureReason string, category model.MissionFailureCategory) {
	if a.current == nil {
		return
	}
	now := clockNow()
	a.current.Status.State = state
	a.current.Status.EndTimestamp = &now
	if failureReason != "" {
		a.current.Status.FailureReason = failureReason
		a.current.Status.FailureCategory = category
	}

	if err := a.persistMission(ctx); err != nil {
		shared.LogError("agent: persisting terminal mission status", err)
	}

	finished := a.current
	a.current = nil
	a.tree = nil
	a.leafIndexByName = nil
	a.nameByLeafIndex = nil
	a.lastTipName = ""
	a.pendingInstantActions = data_structures.NewOrderedMap[string, pendingInstantAction]()
	a.pendingResend = map[string]bool{}
	a.stopMissionTimeout()

	if a.robot != nil {
		a.robot.Status.State = model.RobotStateIdle
		if err := a.persistRobot(ctx); err != nil {
			shared.LogError("agent: persisting robot idle transition", err)
		}
		if a.robot.Lifecycle == model.LifecyclePendingDelete {
			// Deletion was deferred while ON_TASK; now idle, delete it here
			// and let the loop's shouldStop check stop the agent.
			a.deleteSelf(ctx)
		}
	}

	if a.side.Archive != nil {
		if err := a.side.Archive.Append(ctx, finished, now); err != nil {
			shared.LogError("agent: archiving terminal mission", err)
		}
	}

	a.maybeStartNextMission(ctx)
}

// handleFeedback implements §4.3's per-feedback loop: refresh robot
// telemetry and reset the online watchdog regardless of mission state, then
// (if a mission is in flight and the feedback isn't stale) reconcile the
// current leaf, fold any FATAL errors onto their leaves, re-tick the tree,
// and emit a new order if the tip advanced.
func (a *Agent) handleFeedback(ctx context.Context, state *vda5050.State) {
	if a.robot == nil {
		return
	}
	a.robot.Status.Online = true
	a.resetWatchdog()

	if state.AgvPosition != nil {
		a.robot.Status.Pose = model.Pose2D{
			X: state.AgvPosition.X, Y: state.AgvPosition.Y,
			Theta: state.AgvPosition.Theta, MapID: state.AgvPosition.MapID,
		}
		a.maybeHandleMapDeployment(ctx, state.AgvPosition.MapID)
	}
	if state.BatteryState != nil {
		a.robot.Status.BatteryLevel = state.BatteryState.BatteryCharge
		a.maybeHandleCharging(ctx, state.BatteryState.Charging)
	}
	if state.Manufacturer != "" {
		a.robot.Status.HardwareVersion.Manufacturer = state.Manufacturer
	}
	if state.SerialNumber != "" {
		a.robot.Status.HardwareVersion.SerialNumber = state.SerialNumber
	}

	a.ackInstantActions(ctx, vda5050.AckedInstantActions(state))

	if a.current == nil || a.tree == nil || vda5050.IsStaleOrderID(state.OrderID, a.current.Name) {
		// No mission in flight, or the feedback belongs to a prior/unrelated
		// order (§4.3 "mismatched feedback"): robot telemetry still applies,
		// mission reconciliation does not.
		if err := a.persistRobot(ctx); err != nil {
			shared.LogError("agent: persisting robot status from feedback", err)
		}
		return
	}

	if leafNode, ok := a.tree.Tip().(missiontree.LeafNode); ok {
		mn := leafNode.MissionNode()
		waypointCount := 0
		if mn.Route != nil {
			waypointCount = len(mn.Route.Waypoints)
		}
		parsed := vda5050.ParseState(state, mn, waypointCount)
		if status, ok := a.current.Status.NodeStatus[mn.Name]; ok {
			switch parsed.LeafOutcome {
			case vda5050.LeafOutcomeCompleted:
				status.State = model.MissionCompleted
			case vda5050.LeafOutcomeFailed:
				status.State = model.MissionFailed
				status.ErrorMsg = parsed.LeafErrorMsg
			}
		}
		if parsed.TeleopRequested {
			a.robot.Status.State = model.RobotStateTeleop
		}
	}

	for _, fault := range vda5050.FoldErrors(state) {
		name, ok := a.nameByLeafIndex[fault.LeafIndex]
		if !ok {
			continue
		}
		if st, ok := a.current.Status.NodeStatus[name]; ok && st.State == model.MissionRunning {
			st.State = model.MissionFailed
			st.ErrorMsg = fault.ErrorMsg
		}
	}

	result := a.tree.Tick()
	a.emitOrderForTip(ctx)

	if err := a.persistMission(ctx); err != nil {
		shared.LogError("agent: persisting mission status from feedback", err)
	}
	if err := a.persistRobot(ctx); err != nil {
		shared.LogError("agent: persisting robot status from feedback", err)
	}

	switch result {
	case missiontree.Success:
		a.finishMission(ctx, model.MissionCompleted, "", "")
	case missiontree.Failure:
		a.finishMission(ctx, model.MissionFailed, a.firstFailureReason(), model.FailureCategoryRobotApp)
	}
}

// firstFailureReason returns the error message of the first failed node in
// mission-tree order, for stamping on the mission's terminal status.
func (a *Agent) firstFailureReason() string {
	for i := range a.current.Spec.MissionTree {
		name := a.current.Spec.MissionTree[i].Name
		if st, ok := a.current.Status.NodeStatus[name]; ok && st.State == model.MissionFailed && st.ErrorMsg != "" {
			return st.ErrorMsg
		}
	}
	return "mission tree resolved to FAILURE"
}

func (a *Agent) handleMissionTimeoutFired(ctx context.Context) {
	if a.current == nil || a.current.Status.State != model.MissionRunning {
		return
	}
	a.finishMission(ctx, model.MissionFailed, "Mission timed out", model.FailureCategoryTimeout)
}

func (a *Agent) armMissionTimeout(d time.Duration) {
	a.stopMissionTimeout()
	if d <= 0 {
		d = model.DefaultMissionTimeout
	}
	a.missionTimeoutTimer = time.NewTimer(d)
}

func (a *Agent) stopMissionTimeout() {
	if a.missionTimeoutTimer != nil {
		a.missionTimeoutTimer.Stop()
		a.missionTimeoutTimer = nil
	}
}
