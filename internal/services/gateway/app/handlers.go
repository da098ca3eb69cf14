package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	simpb "github.com/LeonardoBeccarini/cropsim/grpc/simulation"
	"github.com/LeonardoBeccarini/cropsim/internal/model"
)

const maxRequestBody = 64 << 10

func (g *Gateway) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"simulation":  g.simCB.State().String(),
		"persistence": g.persistence.State().String(),
	})
}

// HandleSimulate forwards a run request to the simulation service and
// answers with its run result.
func (g *Gateway) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req model.RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid run request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.FieldID) == "" {
		http.Error(w, "field_id is required", http.StatusBadRequest)
		return
	}
	in, err := simpb.Encode(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.runTimeout())
	defer cancel()
	out, err := g.simCB.Execute(func() (any, error) {
		return g.sim.Run(ctx, in)
	})
	log := g.log.WithFields(logrus.Fields{
		"field":   req.FieldID,
		"cb":      g.simCB.State().String(),
		"took_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		code := simulateStatus(err)
		log.WithError(err).WithField("code", code).Warn("POST /simulate failed")
		http.Error(w, err.Error(), code)
		return
	}

	var res model.RunResultEvent
	if err := simpb.Decode(out.(*structpb.Struct), &res); err != nil {
		log.WithError(err).Error("decode run result")
		http.Error(w, "bad answer from simulation service", http.StatusBadGateway)
		return
	}
	log.WithFields(logrus.Fields{"run": res.RunID, "status": res.Status}).Info("POST /simulate")
	writeJSON(w, http.StatusOK, res)
}

func (g *Gateway) runTimeout() time.Duration {
	return 20 * g.cfg.Timeout
}

func simulateStatus(err error) int {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return http.StatusServiceUnavailable
	}
	switch status.Code(err) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// HandleDashboard assembles the latest runs of a field, the daily records
// of the newest run and yield statistics over the successful runs.
func (g *Gateway) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	field := strings.TrimSpace(r.URL.Query().Get("field"))
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.Timeout)
	defer cancel()

	data := DashboardData{
		Field:   field,
		Runs:    []model.RunResultEvent{},
		Records: []model.DailyRecordEvent{},
		Stats:   map[string]float64{},
	}

	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if field != "" {
		q.Set("field", field)
	}
	var runs []model.RunResultEvent
	if err := g.persistence.GetJSON(ctx, "/runs/latest", q, &runs); err != nil {
		g.log.WithError(err).WithField("field", field).Warn("latest runs unavailable")
		if cached, ok := g.recall(field); ok {
			runs = cached
			data.Stale = true
		}
	} else {
		g.remember(field, runs)
	}
	if runs != nil {
		data.Runs = runs
	}

	if len(data.Runs) > 0 {
		latest := data.Runs[0]
		data.Latest = &latest
		if !data.Stale {
			var recs []model.DailyRecordEvent
			path := "/runs/" + url.PathEscape(latest.RunID) + "/records"
			if err := g.persistence.GetJSON(ctx, path, nil, &recs); err != nil {
				g.log.WithError(err).WithField("run", latest.RunID).Warn("run records unavailable")
			} else if recs != nil {
				data.Records = recs
			}
		}
	}
	data.Stats = yieldStats(data.Runs)

	writeJSON(w, http.StatusOK, data)
	g.log.WithFields(logrus.Fields{
		"field":   field,
		"runs":    len(data.Runs),
		"records": len(data.Records),
		"stale":   data.Stale,
		"cb":      g.persistence.State().String(),
		"took_ms": time.Since(start).Milliseconds(),
	}).Debug("GET /dashboard")
}

func yieldStats(runs []model.RunResultEvent) map[string]float64 {
	stats := map[string]float64{}
	var sum, minv, maxv, irr float64
	minv = math.MaxFloat64
	n := 0
	for _, r := range runs {
		if r.Status != model.StatusOK {
			continue
		}
		n++
		sum += r.Yield
		irr += r.Irrigation
		minv = math.Min(minv, r.Yield)
		maxv = math.Max(maxv, r.Yield)
	}
	if n == 0 {
		return stats
	}
	stats["runs_ok"] = float64(n)
	stats["yield_mean"] = sum / float64(n)
	stats["yield_min"] = minv
	stats["yield_max"] = maxv
	stats["irrigation_mean"] = irr / float64(n)
	return stats
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
