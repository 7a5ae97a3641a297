package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nvidia-isaac/mission-dispatch/missiontree"
	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
)

// retryableStatus is the set of HTTP statuses §4.3's notify leaf retries on:
// {408, 425, 429, 500, 502, 503, 504}.
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooEarly:           true,
	http.StatusTooManyRequests:    true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// notifyMaxAttempts is the total attempt count: one initial try plus up to
// 3 retries (§4.3 "up to 3 retries"; spec.md §8 scenario S6: "notify
// attempted 4 times total").
const notifyMaxAttempts = 4

// maybeRunNotify fires the notify leaf's POST exactly once per tip arrival,
// off the event loop, reporting the outcome back via NotifyResultEvent so
// the result is applied under the agent's single-event rule.
func (a *Agent) maybeRunNotify(ctx context.Context, node *model.MissionNode) {
	if node.Notify == nil {
		return
	}
	status, ok := a.current.Status.NodeStatus[node.Name]
	if !ok || status.State != model.MissionPending {
		return
	}
	if a.side.HTTPClient == nil {
		// No HTTP client wired (tests, or a deployment that opts out of
		// notify leaves): fail fast rather than hanging the mission.
		a.Send(NotifyResultEvent{Mission: a.current.Name, NodeName: node.Name, Success: false, ErrorMsg: "no notify HTTP client configured"})
		return
	}

	mission := a.current.Name
	go a.runNotify(ctx, mission, node)
}

func (a *Agent) runNotify(ctx context.Context, mission string, node *model.MissionNode) {
	timeout := node.Notify.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body, err := json.Marshal(node.Notify.JSON)
	if err != nil {
		a.Send(NotifyResultEvent{Mission: mission, NodeName: node.Name, Success: false, ErrorMsg: err.Error()})
		return
	}

	var lastErr string
	for attempt := 1; attempt <= notifyMaxAttempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, node.Notify.URL, bytes.NewReader(body))
		if err != nil {
			cancel()
			a.Send(NotifyResultEvent{Mission: mission, NodeName: node.Name, Success: false, ErrorMsg: err.Error()})
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.side.HTTPClient.Do(req)
		cancel()
		if err != nil {
			lastErr = err.Error()
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			a.Send(NotifyResultEvent{Mission: mission, NodeName: node.Name, Success: true})
			return
		}
		lastErr = shared.NewServerError(nil, "notify %q returned status %d", node.Notify.URL, resp.StatusCode).Error()
		if !retryableStatus[resp.StatusCode] {
			break
		}
	}
	a.Send(NotifyResultEvent{Mission: mission, NodeName: node.Name, Success: false, ErrorMsg: lastErr})
}

// handleNotifyResult applies a background notify call's outcome to the
// owning leaf's node_status and re-ticks the tree, mirroring how feedback
// reconciliation drives the tree forward (§4.3).
func (a *Agent) handleNotifyResult(ctx context.Context, ev NotifyResultEvent) {
	if a.current == nil || a.current.Name != ev.Mission || a.tree == nil {
		return
	}
	status, ok := a.current.Status.NodeStatus[ev.NodeName]
	if !ok {
		return
	}
	if ev.Success {
		status.State = model.MissionCompleted
	} else {
		status.State = model.MissionFailed
		status.ErrorMsg = ev.ErrorMsg
	}

	result := a.tree.Tick()
	a.emitOrderForTip(ctx)

	if err := a.persistMission(ctx); err != nil {
		shared.LogError("agent: persisting mission status after notify", err)
	}

	switch result {
	case missiontree.Success:
		a.finishMission(ctx, model.MissionCompleted, "", "")
	case missiontree.Failure:
		a.finishMission(ctx, model.MissionFailed, a.firstFailureReason(), model.FailureCategoryRobotApp)
	}
}
