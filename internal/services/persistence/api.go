package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ConnChecker reports the broker connection state.
type ConnChecker interface {
	IsConnectionOpen() bool
}

// queryParams are the common query string options of the run endpoints.
type queryParams struct {
	Source  string // auto | influx | cache
	Limit   int
	Timeout time.Duration
}

func parseQuery(r *http.Request, defLimit, maxLimit int) queryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	source := strings.ToLower(strings.TrimSpace(q.Get("source")))
	if source == "" {
		source = "auto"
	}
	return queryParams{
		Source:  source,
		Limit:   get("limit", defLimit, 1, maxLimit),
		Timeout: time.Duration(get("timeout_ms", 2000, 200, 5000)) * time.Millisecond,
	}
}

// NewHTTPMux exposes the health endpoints and the run queries:
//
//	GET /runs/latest?field=&limit=&source=auto|influx|cache
//	GET /runs/{run}/records?limit=&source=
//
// In auto mode Influx is asked first and the cache answers when it fails or
// returns nothing. X-Data-Source names the source used.
func NewHTTPMux(svc *Service, broker ConnChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status          string  `json:"status"`
			MQTTConnected   bool    `json:"mqtt_connected"`
			InfluxOK        bool    `json:"influx_ok"`
			LastWriteErrorS float64 `json:"last_write_error_age_sec"`
		}
		st := status{
			MQTTConnected:   broker != nil && broker.IsConnectionOpen(),
			InfluxOK:        svc.store != nil,
			LastWriteErrorS: svc.writer.LastErrorAge().Seconds(),
		}
		switch {
		case st.MQTTConnected && st.InfluxOK && svc.writer.LastErrorAge() > 30*time.Second:
			st.Status = "ok"
		case st.MQTTConnected || st.InfluxOK:
			st.Status = "degraded"
		default:
			st.Status = "down"
		}
		writeJSON(w, http.StatusOK, "", st)
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		ready := broker != nil && broker.IsConnectionOpen() && svc.store != nil && svc.writer.LastErrorAge() > 2*time.Second
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, "", map[string]bool{"ready": ready})
	})

	mux.HandleFunc("GET /runs/latest", func(w http.ResponseWriter, r *http.Request) {
		p := parseQuery(r, 20, 500)
		field := strings.TrimSpace(r.URL.Query().Get("field"))
		ctx, cancel := context.WithTimeout(r.Context(), p.Timeout)
		defer cancel()

		if p.Source != "cache" && svc.store != nil {
			list, err := svc.store.LatestRuns(ctx, field, p.Limit)
			if err != nil {
				svc.log.WithError(err).Warn("latest runs query failed")
				w.Header().Set("X-Error", "influx-query-error")
			}
			if err == nil && (len(list) > 0 || p.Source == "influx") {
				writeJSON(w, http.StatusOK, "influx", list)
				return
			}
		}
		writeJSON(w, http.StatusOK, "cache", svc.cache.Latest(field, p.Limit))
	})

	mux.HandleFunc("GET /runs/{run}/records", func(w http.ResponseWriter, r *http.Request) {
		run := strings.TrimSpace(r.PathValue("run"))
		if run == "" {
			http.Error(w, "missing run id", http.StatusBadRequest)
			return
		}
		p := parseQuery(r, 366, 5000)
		ctx, cancel := context.WithTimeout(r.Context(), p.Timeout)
		defer cancel()

		if p.Source != "cache" && svc.store != nil {
			list, err := svc.store.RunRecords(ctx, run, p.Limit)
			if err != nil {
				svc.log.WithError(err).WithField("run", run).Warn("run records query failed")
				w.Header().Set("X-Error", "influx-query-error")
			}
			if err == nil && (len(list) > 0 || p.Source == "influx") {
				writeJSON(w, http.StatusOK, "influx", list)
				return
			}
		}
		writeJSON(w, http.StatusOK, "cache", svc.cache.Records(run, p.Limit))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, code int, source string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if source != "" {
		w.Header().Set("X-Data-Source", source)
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
