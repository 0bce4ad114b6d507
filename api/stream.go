// Websocket snapshot stream: pushes each newly published snapshot to the
// client. Readers poll the store's atomic latest pointer, so a slow client
// only ever skips ticks, never blocks the orchestrator.

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/citygrid-sim/citygrid-sim/sim"
)

// streamPollInterval bounds how often the stream checks for a new tick.
const streamPollInterval = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	// Dashboard assets are served from elsewhere during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler upgrades to a websocket and writes one JSON snapshot per new
// tick until the client disconnects or the orchestrator halts.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("api: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var lastTick int64 = -1
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		snap := s.Orch.Store().Latest()
		if snap == nil || snap.Tick == lastTick {
			if s.Orch.State() == sim.StateHalted && snap != nil && snap.Tick == lastTick {
				// Final snapshot already delivered; tell the client why the
				// stream is ending instead of going silent.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "simulation halted"),
					time.Now().Add(time.Second))
				return
			}
			continue
		}
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
		lastTick = snap.Tick
	}
}
