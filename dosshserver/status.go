package dosshserver

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"goji.io"
	"goji.io/pat"
)

// StatusHandler is an http.Handler serving GET /status and GET /metrics.
type StatusHandler struct {
	*goji.Mux
	s *Server
}

// NewStatusHandler returns a StatusHandler for s. Metrics are read from g.
func NewStatusHandler(s *Server, g prometheus.Gatherer) StatusHandler {
	h := StatusHandler{
		Mux: goji.NewMux(),
		s:   s,
	}
	h.Handle(pat.Get("/status"), http.HandlerFunc(h.status))
	h.Handle(pat.Get("/metrics"), promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return h
}

// StatusResponse is the JSON structure returned by GET /status.
type StatusResponse struct {
	PeerID       string        `json:"peer_id"`
	AllowedPorts []uint16      `json:"allowed_ports"`
	Sessions     []SessionInfo `json:"sessions"`
}

func (h *StatusHandler) status(w http.ResponseWriter, r *http.Request) {
	out := StatusResponse{
		PeerID:       h.s.config.Identity.String(),
		AllowedPorts: h.s.config.Allow.Ports(),
		Sessions:     h.s.Sessions(),
	}
	writeJSON(w, &out)
}

// writeJSON encodes v before writing anything, so an encoding failure can
// still be reported as a 500.
func writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logrus.Errorf("S: status: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}
