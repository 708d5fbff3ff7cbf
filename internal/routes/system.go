package routes

import (
	"net/http"

	"github.com/gregriff/vogo/relay/internal/metrics"
)

// ICE returns the STUN/TURN servers clients should use for their peer connections.
func (h *RouteHandler) ICE(w http.ResponseWriter, req *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"iceServers": h.iceServers})
}

func (h *RouteHandler) Healthz(w http.ResponseWriter, req *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "connections": h.hub.Connections()})
}

func (h *RouteHandler) Metrics() http.Handler {
	return metrics.PrometheusHandler(h.metrics)
}
