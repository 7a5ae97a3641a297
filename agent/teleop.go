package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/vda5050"
)

// handleTeleopCommand reacts to edges in robot.Spec.switch_teleop by issuing
// the matching instant action. While TELEOP, emitOrderForTip skips emitting
// new orders (§4.3 "Teleop"); pose updates keep flowing through
// handleFeedback regardless of robot state.
func (a *Agent) handleTeleopCommand(ctx context.Context) {
	want := a.robot.Spec.SwitchTeleop
	if want == a.lastSwitchTeleop {
		return
	}
	a.lastSwitchTeleop = want
	if want {
		a.sendInstantAction(ctx, a.name, vda5050.InstantActionStartTeleop, cancelReasonTeleop)
	} else {
		a.sendInstantAction(ctx, a.name, vda5050.InstantActionStopTeleop, cancelReasonTeleop)
	}
}

// maybeHandleCharging implements §4.3's charging transition: a charging
// battery report while the robot is not actively running a mission moves it
// to CHARGING, and a battery level at or below recommended_minimum while
// idle best-effort notifies mission control.
func (a *Agent) maybeHandleCharging(ctx context.Context, charging bool) {
	if a.robot == nil {
		return
	}
	if charging && !a.robot.Status.State.Running() {
		a.robot.Status.State = model.RobotStateCharging
	}
	min := a.robot.Spec.Battery.RecommendedMinimum
	if min != nil && a.robot.Status.State == model.RobotStateIdle && a.robot.Status.BatteryLevel <= *min {
		a.postSideIntegration(ctx, "/api/v1/mission/charging", map[string]interface{}{"robot_name": a.name})
	}
}

// maybeHandleMapDeployment implements §4.3's map-deployment transition: a
// missing map_id on feedback while the robot isn't running triggers a
// best-effort push_map call, entering MAP_DEPLOYMENT on success.
func (a *Agent) maybeHandleMapDeployment(ctx context.Context, mapID string) {
	if a.robot == nil || mapID != "" || a.robot.Status.State.Running() {
		return
	}
	url := fmt.Sprintf("%s/api/v1/push_map?robot_name=%s", a.side.MissionControlURL, a.name)
	if a.postURL(ctx, url, nil) {
		a.robot.Status.State = model.RobotStateMapDeployment
	}
}

// postSideIntegration is the best-effort JSON-body variant of postURL used
// by the charging path.
func (a *Agent) postSideIntegration(ctx context.Context, path string, body map[string]interface{}) {
	a.postURL(ctx, a.side.MissionControlURL+path, body)
}

// postURL performs a best-effort POST: any error (including a non-2xx
// status) is logged and ignored (§4.3: "these side-integrations are
// best-effort"). Returns whether the call succeeded with a 2xx status.
func (a *Agent) postURL(ctx context.Context, url string, body map[string]interface{}) bool {
	if a.side.HTTPClient == nil || a.side.MissionControlURL == "" {
		return false
	}
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			shared.LogError("agent: marshaling side-integration body", err)
			return false
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		shared.LogError("agent: building side-integration request", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.side.HTTPClient.Do(req)
	if err != nil {
		shared.Warnf("agent: side-integration POST %s failed: %v", url, err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		shared.Warnf("agent: side-integration POST %s returned status %d", url, resp.StatusCode)
		return false
	}
	return true
}
