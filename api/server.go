// Package api exposes the read-only dashboard surface over HTTP: snapshot
// reads, orchestrator status, advisory text, a websocket snapshot stream, and
// intent submission into the bounded queue. Handlers never touch simulation
// state directly; they read the Store and submit Intents, nothing else.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/citygrid-sim/citygrid-sim/sim"
	"github.com/citygrid-sim/citygrid-sim/sim/advice"
)

// Server wires the HTTP surface over a running orchestrator.
type Server struct {
	Orch    *sim.Orchestrator
	Advisor advice.Advisor
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.StatusHandler).Methods(http.MethodGet)
	r.HandleFunc("/state", s.StateHandler).Methods(http.MethodGet)
	r.HandleFunc("/state/{tick}", s.StateAtHandler).Methods(http.MethodGet)
	r.HandleFunc("/advice", s.AdviceHandler).Methods(http.MethodGet)
	r.HandleFunc("/intents", s.IntentHandler).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.StreamHandler)
	return r
}

type statusResponse struct {
	State     string `json:"state"`
	Tick      int64  `json:"tick"`
	HaltCause string `json:"halt_cause,omitempty"`
}

// StatusHandler reports the orchestrator lifecycle state. A halted run is
// surfaced distinctly so the dashboard shows "halted" rather than
// stale-looking live data.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State: string(s.Orch.State()),
		Tick:  s.Orch.Tick(),
	}
	if cause := s.Orch.HaltCause(); cause != nil {
		resp.HaltCause = cause.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// StateHandler serves the latest published snapshot.
func (s *Server) StateHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.Orch.Store().Latest()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// StateAtHandler serves a retained historical snapshot by tick.
func (s *Server) StateAtHandler(w http.ResponseWriter, r *http.Request) {
	tick, err := strconv.ParseInt(mux.Vars(r)["tick"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "tick must be an integer")
		return
	}
	snap, ok := s.Orch.Store().At(tick)
	if !ok {
		writeError(w, http.StatusNotFound, "snapshot not retained for that tick")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type adviceResponse struct {
	Tick   int64  `json:"tick"`
	Advice string `json:"advice"`
}

// AdviceHandler returns one-shot advisory text for the latest snapshot.
// Advisory failure is non-fatal and maps to 503; the simulation is untouched.
func (s *Server) AdviceHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.Orch.Store().Latest()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	if s.Advisor == nil {
		writeError(w, http.StatusServiceUnavailable, "no advisor configured")
		return
	}
	text, err := s.Advisor.Advise(snap)
	if err != nil {
		logrus.Warnf("api: advisory unavailable: %v", err)
		writeError(w, http.StatusServiceUnavailable, "advisory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, adviceResponse{Tick: snap.Tick, Advice: text})
}

type intentRequest struct {
	Kind           string `json:"kind"`
	NodeID         string `json:"node_id,omitempty"`
	Count          int    `json:"count,omitempty"`
	TickIntervalMS int    `json:"tick_interval_ms,omitempty"`
}

type intentResponse struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
}

// IntentHandler submits a control intent into the bounded queue. A full
// queue maps to 429: the orchestrator has not drained yet and the caller
// should retry.
func (s *Server) IntentHandler(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	it := sim.NewIntent(sim.IntentKind(req.Kind))
	switch it.Kind {
	case sim.IntentPause, sim.IntentResume, sim.IntentHalt:
	case sim.IntentSpawn:
		if req.Count <= 0 {
			writeError(w, http.StatusBadRequest, "count must be > 0 for spawn_vehicles")
			return
		}
		it.Count = req.Count
	case sim.IntentFailNode, sim.IntentRestoreNode:
		if req.NodeID == "" {
			writeError(w, http.StatusBadRequest, "node_id required")
			return
		}
		it.NodeID = req.NodeID
	case sim.IntentSetInterval:
		if req.TickIntervalMS < 0 {
			writeError(w, http.StatusBadRequest, "tick_interval_ms must be >= 0")
			return
		}
		it.TickInterval = time.Duration(req.TickIntervalMS) * time.Millisecond
	default:
		writeError(w, http.StatusBadRequest, "unknown intent kind")
		return
	}

	if err := s.Orch.Intents().Submit(it); err != nil {
		if sim.IsQueueFull(err) {
			writeError(w, http.StatusTooManyRequests, "intent queue full, retry shortly")
			return
		}
		writeError(w, http.StatusInternalServerError, "intent submission failed")
		return
	}
	writeJSON(w, http.StatusAccepted, intentResponse{ID: it.ID.String(), Accepted: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Warnf("api: response encode failed: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
