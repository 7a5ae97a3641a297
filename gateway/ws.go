package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/shared/event_bus"
	"github.com/nvidia-isaac/mission-dispatch/store"
)

// robotEventType and missionEventType are the event_bus.Event.GetType()
// tags the gateway's two fan-in loops publish under.
const (
	robotEventType   = "robot"
	missionEventType = "mission"
)

// upgrader mirrors the teacher's http_server package-level upgrader: origin
// checking is left open since the operator console runs same-origin or
// behind a trusted proxy (§1 non-goal: no auth).
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEvent is one frame pushed to a connected operator console: a robot or
// mission watch event tagged with its kind, so a single socket can mirror
// both streams (the teacher's wsHandler was a stub; this fills it in with
// the one thing an operator console needs live — fleet state changes).
type wsEvent struct {
	Kind    string      `json:"kind"`
	Deleted bool        `json:"deleted"`
	Object  interface{} `json:"object"`
}

// startEventBusFanIn opens exactly one Store.Watch per object kind and
// republishes every event onto s.bus, so every /ws connection only needs a
// Subscribe/Unsubscribe pair instead of its own Store.Watch call. Runs for
// the lifetime of ctx.
func (s *Server) startEventBusFanIn(ctx context.Context) error {
	robots, err := s.store.Robots().Watch(ctx)
	if err != nil {
		return fmt.Errorf("opening robot watch: %w", err)
	}
	missions, err := s.store.Missions().Watch(ctx)
	if err != nil {
		return fmt.Errorf("opening mission watch: %w", err)
	}

	go republishRobotEvents(ctx, s.bus, robots)
	go republishMissionEvents(ctx, s.bus, missions)
	return nil
}

func republishRobotEvents(ctx context.Context, bus event_bus.EventBus, ch <-chan store.WatchEvent[*model.Robot]) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			bus.PublishData(robotEventType, wsEvent{Kind: robotEventType, Deleted: ev.Deleted, Object: ev.Object})
		}
	}
}

func republishMissionEvents(ctx context.Context, bus event_bus.EventBus, ch <-chan store.WatchEvent[*model.Mission]) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			bus.PublishData(missionEventType, wsEvent{Kind: missionEventType, Deleted: ev.Deleted, Object: ev.Object})
		}
	}
}

// handleWS upgrades the connection and subscribes it to both event kinds on
// s.bus, mirroring every robot and mission change as a JSON frame until the
// client disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		shared.LogError("gateway: upgrading websocket connection", err)
		return
	}
	defer conn.Close()

	out := make(chan wsEvent, shared.EventBusBufferSize)
	handler := func(event event_bus.Event) {
		if ev, ok := event.GetData().(wsEvent); ok {
			select {
			case out <- ev:
			default:
				shared.Warnf("gateway: websocket subscriber backed up, dropping %s event", event.GetType())
			}
		}
	}

	sub := s.bus.Subscribe(robotEventType, nil, handler)
	s.bus.Subscribe(missionEventType, sub, handler)
	defer s.bus.Unsubscribe(robotEventType, sub)
	defer s.bus.Unsubscribe(missionEventType, sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-out:
			if err := conn.WriteJSON(ev); err != nil {
				shared.Debugf("gateway: websocket write failed, closing: %v", err)
				return
			}
		}
	}
}
