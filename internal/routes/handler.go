// package routes contains the exposed API endpoints
package routes

import (
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/gregriff/vogo/relay/configs"
	"github.com/gregriff/vogo/relay/internal/metrics"
	"github.com/gregriff/vogo/relay/internal/registry"
	"github.com/gregriff/vogo/relay/internal/signaling"
)

// RouteHandler provides the dependencies for any endpoint, and is the reciever of the endpoint handling functions
type RouteHandler struct {
	registry *registry.Registry
	hub      *signaling.Hub
	metrics  *metrics.Metrics
	log      *slog.Logger

	iceServers []webrtc.ICEServer
	limits     configs.SignalingSettings
}

// NewRouteHandler creates the reciever for all endpoint handling functions
func NewRouteHandler(
	reg *registry.Registry,
	hub *signaling.Hub,
	m *metrics.Metrics,
	log *slog.Logger,
	iceServers []webrtc.ICEServer,
	limits configs.SignalingSettings,
) *RouteHandler {
	if iceServers == nil {
		iceServers = []webrtc.ICEServer{}
	}
	return &RouteHandler{
		registry:   reg,
		hub:        hub,
		metrics:    m,
		log:        log,
		iceServers: iceServers,
		limits:     limits,
	}
}
