package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nvidia-isaac/mission-dispatch/shared"
)

// sendResponseAsJSON mirrors the teacher's http_server util of the same
// name: encode v as the body, after writing status.
func sendResponseAsJSON(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		shared.LogError("gateway: encoding JSON response", err)
	}
}

// parseJSONRequest mirrors the teacher's helper of the same name.
func parseJSONRequest(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError maps an error from the Store port to an HTTP response: a
// *shared.DispatchError uses its Kind's status, the store sentinels get
// fixed statuses, anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	if de, ok := shared.AsDispatchError(err); ok {
		sendResponseAsJSON(w, map[string]string{"error": de.Error(), "code": de.Code}, de.Kind.HTTPStatus())
		return
	}
	switch {
	case errors.Is(err, shared.ErrNotFound):
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusNotFound)
	case errors.Is(err, shared.ErrAlreadyExists):
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusConflict)
	case errors.Is(err, shared.ErrLifecycleConflict):
		sendResponseAsJSON(w, map[string]string{"error": err.Error()}, http.StatusConflict)
	default:
		shared.LogError("gateway: unclassified store error", err)
		sendResponseAsJSON(w, map[string]string{"error": "internal error"}, http.StatusInternalServerError)
	}
}

// flushWriter is satisfied by the http.ResponseWriter implementations chi
// and net/http hand handlers, used by the /watch NDJSON streams to push
// each line to the client as it's written rather than buffering.
type flushWriter interface {
	http.ResponseWriter
	http.Flusher
}
