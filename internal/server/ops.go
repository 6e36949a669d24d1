package server

import (
	"encoding/json"
	"net/http"

	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/mode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	NUIMessagePath = "/nui/message"
	MetricsPath    = "/metrics"
	HealthPath     = "/healthz"
)

// MessageSink accepts inbound NUI messages.
type MessageSink interface {
	Deliver(msg mode.HostStatus) bool
}

type ModeSource interface {
	Mode() domain.RuntimeMode
}

// MountOps registers the plain HTTP routes next to the RPC procedures.
func MountOps(mux *http.ServeMux, sink MessageSink, source ModeSource, reg *prometheus.Registry, logger zerolog.Logger) {
	mux.HandleFunc(NUIMessagePath, nuiMessageHandler(sink, logger))
	mux.Handle(MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"mode":   source.Mode().Kind,
		})
	})
}

func nuiMessageHandler(sink MessageSink, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		var msg mode.HostStatus
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&msg); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message"})
			return
		}

		delivered := sink.Deliver(msg)
		logger.Debug().Str("type", msg.Type).Bool("delivered", delivered).Msg("NUI message received")
		writeJSON(w, http.StatusOK, map[string]bool{"delivered": delivered})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
