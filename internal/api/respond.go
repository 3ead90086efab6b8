package api

import (
	"encoding/json"
	"net/http"
)

// envelope is the body of every API response. success is filled in by the writers.
type envelope map[string]any

// responder writes the success/error envelopes. With legacyStatus set, errors
// are answered with HTTP 200 and only the body carries the failure.
type responder struct {
	legacyStatus bool
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (rs responder) ok(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, status, body)
}

func (rs responder) fail(w http.ResponseWriter, status int, code, message string, extra envelope) {
	body := envelope{}
	for k, v := range extra {
		body[k] = v
	}
	body["success"] = false
	body["error"] = message
	body["code"] = code

	if rs.legacyStatus {
		status = http.StatusOK
	}
	writeJSON(w, status, body)
}

// writeError is the bare form used by middleware, which always answers with
// the real status.
func writeError(w http.ResponseWriter, status int, code, message string) {
	responder{}.fail(w, status, code, message, nil)
}
