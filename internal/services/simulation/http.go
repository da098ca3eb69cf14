package simulation

import (
	"encoding/json"
	"net/http"
)

// ConnChecker reports the broker connection state.
type ConnChecker interface {
	IsConnectionOpen() bool
}

// NewHTTPMux exposes /healthz, /readyz and /metrics.
func NewHTTPMux(svc *Service, broker ConnChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status        string `json:"status"`
			MQTTConnected bool   `json:"mqtt_connected"`
			InFlight      int64  `json:"runs_in_flight"`
		}
		st := status{
			MQTTConnected: broker != nil && broker.IsConnectionOpen(),
			InFlight:      svc.InFlight(),
		}
		switch {
		case st.MQTTConnected && svc.Ready():
			st.Status = "ok"
		case svc.Ready():
			st.Status = "degraded"
		default:
			st.Status = "down"
		}
		writeJSON(w, http.StatusOK, st)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ready := svc.Ready() && broker != nil && broker.IsConnectionOpen()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]bool{"ready": ready})
	})
	mux.Handle("/metrics", svc.Metrics().Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
