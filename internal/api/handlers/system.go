package handlers

import (
	"net/http"

	"github.com/zoumson/OpenFreeAI/internal/version"
)

// Health handles GET /health for load balancers and probes.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version handles GET /api/v1/version.
func Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"build_time": version.BuildTime,
	})
}
