package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/store"
)

func (s *Server) missionRoutes(r chi.Router) {
	r.Get("/", s.listMissions)
	r.Post("/", s.createMission)
	r.Get("/watch", s.watchMissions)
	r.Get("/{name}", s.getMission)
	r.Put("/{name}/spec", s.updateMissionSpec)
	r.Put("/{name}/status", s.updateMissionStatus)
	r.Post("/{name}/lifecycle", s.setMissionLifecycle)
	// update_nodes and cancel are mission-specific conveniences over
	// UpdateSpec: both stage onto spec (route-node overrides, the
	// needs_canceled flag) the way model.Mission.ApplyUpdateNodes/Cancel do,
	// rather than requiring the caller to read-modify-write the full spec.
	r.Post("/{name}/update_nodes", s.updateMissionNodes)
	r.Post("/{name}/cancel", s.cancelMission)
}

func (s *Server) listMissions(w http.ResponseWriter, r *http.Request) {
	params := make(store.ListParams, len(r.URL.Query()))
	for k := range r.URL.Query() {
		params[k] = r.URL.Query().Get(k)
	}
	missions, err := s.store.Missions().List(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, missions, http.StatusOK)
}

func (s *Server) getMission(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	mission, err := s.store.Missions().Get(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, mission, http.StatusOK)
}

// createMission accepts {"name": "...", "spec": {...}} and runs it through
// model.NewMission, which validates the tree and pre-populates node_status
// (§3 invariants 1-3) before it ever reaches the store.
func (s *Server) createMission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string            `json:"name"`
		Spec model.MissionSpec `json:"spec"`
	}
	if err := parseJSONRequest(r, &req); err != nil {
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		sendResponseAsJSON(w, map[string]string{"error": "name is required"}, http.StatusBadRequest)
		return
	}
	mission, err := model.NewMission(req.Name, req.Spec)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Missions().Create(r.Context(), mission); err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, mission, http.StatusCreated)
}

func (s *Server) updateMissionSpec(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var spec model.MissionSpec
	if err := parseJSONRequest(r, &spec); err != nil {
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	if err := s.store.Missions().UpdateSpec(r.Context(), name, spec); err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

func (s *Server) updateMissionStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var status model.MissionStatus
	if err := parseJSONRequest(r, &status); err != nil {
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	if err := s.store.Missions().UpdateStatus(r.Context(), name, status); err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

func (s *Server) setMissionLifecycle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Lifecycle model.Lifecycle `json:"lifecycle"`
	}
	if err := parseJSONRequest(r, &req); err != nil {
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	if err := s.store.Missions().SetLifecycle(r.Context(), name, req.Lifecycle); err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

// updateMissionNodes stages a route-node update via
// model.Mission.ApplyUpdateNodes, then persists the resulting spec. The
// owning agent picks the update up on its next mission-event tick (§4.3
// "update to current mission").
func (s *Server) updateMissionNodes(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var updates map[string]model.RouteNode
	if err := parseJSONRequest(r, &updates); err != nil {
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	mission, err := s.store.Missions().Get(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := mission.ApplyUpdateNodes(updates); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Missions().UpdateSpec(r.Context(), name, mission.Spec); err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

// cancelMission stages model.Mission.Cancel's needs_canceled flag and
// persists it; the owning agent performs the actual cancelOrder handshake
// (§5 "Cancellation asynchrony").
func (s *Server) cancelMission(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	mission, err := s.store.Missions().Get(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := mission.Cancel(); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Missions().UpdateSpec(r.Context(), name, mission.Spec); err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, map[string]string{"status": "canceled"}, http.StatusOK)
}

// watchMissions mirrors watchRobots for the Mission half of the Store port.
func (s *Server) watchMissions(w http.ResponseWriter, r *http.Request) {
	fw, ok := w.(flushWriter)
	if !ok {
		sendResponseAsJSON(w, map[string]string{"error": "streaming unsupported"}, http.StatusInternalServerError)
		return
	}
	ch, err := s.store.Missions().Watch(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	fw.Header().Set("Content-Type", "application/x-ndjson")
	fw.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(fw)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := enc.Encode(ev); err != nil {
				shared.LogError("gateway: writing mission watch chunk", err)
				return
			}
			fw.Flush()
		}
	}
}
