package api

import "net/http"

const serviceName = "khunphaen-syncserver"

// RootHandler serves service metadata at GET /.
func RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": serviceName,
		"status":  "ok",
		"ws_path": "/ws",
	})
}
