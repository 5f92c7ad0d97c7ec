package server

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// Build metadata, overridable at link time.
var (
	Version = "dev"
	Commit  = "unknown"
)

// StatusHandler serves the unauthenticated status endpoint.
type StatusHandler struct {
	apiVersion int
}

// NewStatusHandler creates the status endpoint handler.
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{apiVersion: 1}
}

type statusResponse struct {
	APIVersion int    `json:"api_version"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	GoVersion  string `json:"go_version"`
}

// GetStatus handles GET /status/ - liveness and build information.
// The route is exempt from authentication.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		APIVersion: h.apiVersion,
		Version:    Version,
		Commit:     Commit,
		GoVersion:  runtime.Version(),
	})
}
