package server

import (
	"encoding/json"
	"net/http"

	"FlowSentinel/internal/errs"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, errs.HTTPStatus(err), errorBody{
		Error:     err.Error(),
		RequestID: RequestID(r.Context()),
	})
}
