package app

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/attitude-estimator/internal/estimator"
	"github.com/relabs-tech/attitude-estimator/internal/logging"
)

var telemetryUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local development, any origin
	},
}

// telemetryHub fans each incoming AttitudeActual sample out to every
// connected websocket client, replacing the calibration session's
// single-connection model with a broadcast one since telemetry has no
// per-client state to track.
type telemetryHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newTelemetryHub() *telemetryHub {
	return &telemetryHub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *telemetryHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := telemetryUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.Error().Err(err).Msg("web: telemetry websocket upgrade")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// Drain reads until the client disconnects; no inbound commands.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *telemetryHub) broadcast(a estimator.AttitudeActual) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(a); err != nil {
			logging.Log.Debug().Err(err).Msg("web: telemetry websocket write")
		}
	}
}
