package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/store"
)

func (s *Server) robotRoutes(r chi.Router) {
	r.Get("/", s.listRobots)
	r.Post("/", s.createRobot)
	r.Get("/watch", s.watchRobots)
	r.Get("/{name}", s.getRobot)
	r.Put("/{name}/spec", s.updateRobotSpec)
	r.Put("/{name}/status", s.updateRobotStatus)
	r.Post("/{name}/lifecycle", s.setRobotLifecycle)
}

func (s *Server) listRobots(w http.ResponseWriter, r *http.Request) {
	params := make(store.ListParams, len(r.URL.Query()))
	for k := range r.URL.Query() {
		params[k] = r.URL.Query().Get(k)
	}
	robots, err := s.store.Robots().List(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, robots, http.StatusOK)
}

func (s *Server) getRobot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	robot, err := s.store.Robots().Get(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, robot, http.StatusOK)
}

// createRobot accepts {"name": "...", "spec": {...}}; spec is optional and
// defaults per model.DefaultRobotSpec, matching NewMission's analogous
// zero-value fill-in for missions.
func (s *Server) createRobot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string         `json:"name"`
		Spec *model.RobotSpec `json:"spec"`
	}
	if err := parseJSONRequest(r, &req); err != nil {
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		sendResponseAsJSON(w, map[string]string{"error": "name is required"}, http.StatusBadRequest)
		return
	}
	spec := model.DefaultRobotSpec()
	if req.Spec != nil {
		spec = *req.Spec
	}
	robot := &model.Robot{
		ObjectMeta: model.ObjectMeta{Name: req.Name, Lifecycle: model.LifecycleAlive},
		Spec:       spec,
	}
	if err := s.store.Robots().Create(r.Context(), robot); err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, robot, http.StatusCreated)
}

func (s *Server) updateRobotSpec(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var spec model.RobotSpec
	if err := parseJSONRequest(r, &spec); err != nil {
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	if err := s.store.Robots().UpdateSpec(r.Context(), name, spec); err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

func (s *Server) updateRobotStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var status model.RobotStatus
	if err := parseJSONRequest(r, &status); err != nil {
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	if err := s.store.Robots().UpdateStatus(r.Context(), name, status); err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

func (s *Server) setRobotLifecycle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Lifecycle model.Lifecycle `json:"lifecycle"`
	}
	if err := parseJSONRequest(r, &req); err != nil {
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	if err := s.store.Robots().SetLifecycle(r.Context(), name, req.Lifecycle); err != nil {
		writeError(w, err)
		return
	}
	sendResponseAsJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

// watchRobots streams the Store's watch<Robot> as chunked NDJSON: one
// store.WatchEvent[*model.Robot] JSON object per line, snapshot first then
// deltas, until the client disconnects or the watch stream ends.
func (s *Server) watchRobots(w http.ResponseWriter, r *http.Request) {
	fw, ok := w.(flushWriter)
	if !ok {
		sendResponseAsJSON(w, map[string]string{"error": "streaming unsupported"}, http.StatusInternalServerError)
		return
	}
	ch, err := s.store.Robots().Watch(r.Context())
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
				shared.LogError("gateway: writing robot watch chunk", err)
				return
			}
			fw.Flush()
		}
	}
}
