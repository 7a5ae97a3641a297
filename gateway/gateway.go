// Package gateway implements the thin REST+WebSocket front end over the
// Store port (SPEC_FULL.md's GATEWAY section). It is the one component
// spec.md explicitly puts out of scope ("specified only by the interfaces
// the core uses"); this implementation exists only so `cmd/database` has
// something runnable, and never runs any mission-dispatch logic itself —
// every handler is a direct, thin call into store.Store.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nvidia-isaac/mission-dispatch/shared"
	"github.com/nvidia-isaac/mission-dispatch/shared/event_bus"
	"github.com/nvidia-isaac/mission-dispatch/store"
)

// Server is the gateway's HTTP+WebSocket process, grounded on the teacher's
// http_server.HTTPServer: a chi.Mux wrapped in an http.Server, started and
// shut down by Run the same way the teacher's Start races ListenAndServe's
// error channel against ctx.Done().
type Server struct {
	store  store.Store
	router *chi.Mux
	srv    *http.Server

	// bus fans robot/mission watch events out to every connected /ws
	// client, so N concurrent operator consoles share two Store.Watch
	// loops instead of opening 2N of them (see shared/event_bus).
	bus event_bus.EventBus
}

// NewServer builds a gateway bound to addr (e.g. ":8080"), serving st.
func NewServer(st store.Store, addr string) *Server {
	r := chi.NewRouter()
	s := &Server{
		store: st,
		router: r,
		srv: &http.Server{
			Addr:    addr,
			Handler: r,
		},
		bus: event_bus.NewEventBus(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	s.router.Get("/ws", s.handleWS)
	s.router.Route("/robots", s.robotRoutes)
	s.router.Route("/missions", s.missionRoutes)
}

// Run starts the server and blocks until ctx is canceled or ListenAndServe
// fails, matching the teacher's Start(ctx, robotHandler) shutdown dance.
func (s *Server) Run(ctx context.Context) error {
	if err := s.startEventBusFanIn(ctx); err != nil {
		return fmt.Errorf("gateway: starting websocket fan-in: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		shared.Infof("gateway: listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("gateway: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shared.Infof("gateway: shutting down")
		return s.srv.Shutdown(context.Background())
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	sendResponseAsJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleReadyz additionally confirms the store answers a List call, so a
// load balancer can distinguish "process up" from "store reachable".
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Robots().List(r.Context(), nil); err != nil {
		shared.LogError("gateway: readyz store check", err)
		sendResponseAsJSON(w, map[string]string{"status": "not ready"}, http.StatusServiceUnavailable)
		return
	}
	sendResponseAsJSON(w, map[string]string{"status": "ready"}, http.StatusOK)
}
