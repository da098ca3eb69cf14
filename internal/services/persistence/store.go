package persistence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"

	"github.com/LeonardoBeccarini/cropsim/internal/model"
)

// Store answers the run queries of the HTTP API.
type Store interface {
	LatestRuns(ctx context.Context, field string, limit int) ([]model.RunResultEvent, error)
	RunRecords(ctx context.Context, run string, limit int) ([]model.DailyRecordEvent, error)
}

// InfluxStore runs Flux queries against the simulation bucket.
type InfluxStore struct {
	api         api.QueryAPI
	bucket      string
	measurement string
	// Window bounds the run result lookup.
	Window time.Duration
}

func NewInfluxStore(q api.QueryAPI, bucket, measurement string) *InfluxStore {
	return &InfluxStore{api: q, bucket: bucket, measurement: measurement, Window: 30 * 24 * time.Hour}
}

func buildLatestRunsFlux(bucket string, window time.Duration, field string, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", bucket)
	fmt.Fprintf(&b, "  |> range(start: -%dm)\n", int(window.Minutes()))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %q)\n", ResultMeasurement)
	if field != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.field_id == %q)\n", field)
	}
	b.WriteString("  |> pivot(rowKey: [\"_time\"], columnKey: [\"_field\"], valueColumn: \"_value\")\n")
	b.WriteString("  |> group()\n")
	b.WriteString("  |> sort(columns: [\"_time\"], desc: true)\n")
	fmt.Fprintf(&b, "  |> limit(n: %d)\n", limit)
	return b.String()
}

func buildRecordsFlux(bucket, measurement, run string, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == %q and r.run_id == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"])
  |> limit(n: %d)
`, bucket, measurement, run, limit)
}

// LatestRuns returns the newest run results, optionally of one field.
func (s *InfluxStore) LatestRuns(ctx context.Context, field string, limit int) ([]model.RunResultEvent, error) {
	res, err := s.api.Query(ctx, buildLatestRunsFlux(s.bucket, s.Window, field, limit))
	if err != nil {
		return nil, fmt.Errorf("query latest runs: %w", err)
	}
	defer res.Close()

	out := make([]model.RunResultEvent, 0, limit)
	for res.Next() {
		out = append(out, resultFromRow(res.Record()))
	}
	if err := res.Err(); err != nil {
		return out, fmt.Errorf("read latest runs: %w", err)
	}
	return out, nil
}

// RunRecords returns the daily records of a run in day order.
func (s *InfluxStore) RunRecords(ctx context.Context, run string, limit int) ([]model.DailyRecordEvent, error) {
	res, err := s.api.Query(ctx, buildRecordsFlux(s.bucket, s.measurement, run, limit))
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer res.Close()

	out := make([]model.DailyRecordEvent, 0, limit)
	for res.Next() {
		out = append(out, dailyFromRow(res.Record()))
	}
	if err := res.Err(); err != nil {
		return out, fmt.Errorf("read run records: %w", err)
	}
	return out, nil
}

// row reads typed columns of a pivoted Flux record.
type row struct{ rec *query.FluxRecord }

func (r row) str(k string) string {
	if s, ok := r.rec.ValueByKey(k).(string); ok {
		return s
	}
	return ""
}

func (r row) num(k string) float64 {
	switch v := r.rec.ValueByKey(k).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}

func (r row) boolean(k string) bool {
	b, _ := r.rec.ValueByKey(k).(bool)
	return b
}

func resultFromRow(rec *query.FluxRecord) model.RunResultEvent {
	r := row{rec}
	started, _ := time.Parse(time.RFC3339Nano, r.str("started_at"))
	return model.RunResultEvent{
		RunID:      r.str("run_id"),
		FieldID:    r.str("field_id"),
		Status:     r.str("status"),
		Reason:     r.str("reason"),
		Days:       int(r.num("days")),
		LastDay:    int(r.num("last_day")),
		Biomass:    r.num("biomass_t_ha"),
		HI:         r.num("hi"),
		Yield:      r.num("yield_t_ha"),
		Irrigation: r.num("irrigation_mm"),
		Runoff:     r.num("runoff_mm"),
		Drainage:   r.num("drainage_mm"),
		ET:         r.num("et_mm"),
		StartedAt:  started,
		Timestamp:  rec.Time(),
	}
}

func dailyFromRow(rec *query.FluxRecord) model.DailyRecordEvent {
	r := row{rec}
	e := model.DailyRecordEvent{
		RunID:         r.str("run_id"),
		FieldID:       r.str("field_id"),
		Day:           int(r.num("day")),
		Date:          rec.Time().UTC().Format(time.DateOnly),
		Stage:         r.str("stage"),
		CC:            r.num("cc"),
		Zr:            r.num("zr_m"),
		GDD:           r.num("gdd"),
		GDDCum:        r.num("gdd_cum"),
		Biomass:       r.num("biomass_t_ha"),
		HI:            r.num("hi"),
		Yield:         r.num("yield_t_ha"),
		KsExp:         r.num("ks_exp"),
		KsSto:         r.num("ks_sto"),
		KsSen:         r.num("ks_sen"),
		KsTemp:        r.num("ks_temp"),
		Aeration:      r.boolean("aeration"),
		Rain:          r.num("rain_mm"),
		Irrigation:    r.num("irrigation_mm"),
		Runoff:        r.num("runoff_mm"),
		Infiltration:  r.num("infiltration_mm"),
		Drainage:      r.num("drainage_mm"),
		CapillaryRise: r.num("capillary_rise_mm"),
		Evaporation:   r.num("evaporation_mm"),
		Transpiration: r.num("transpiration_mm"),
		Timestamp:     rec.Time(),
	}
	for i := 0; ; i++ {
		v := rec.ValueByKey(fmt.Sprintf("theta_%02d", i))
		if v == nil {
			break
		}
		e.Theta = append(e.Theta, r.num(fmt.Sprintf("theta_%02d", i)))
	}
	return e
}
