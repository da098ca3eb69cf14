package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/cropsim/internal/model"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// Measurements written besides the daily records.
const (
	StageMeasurement      = "stage_change"
	IrrigationMeasurement = "irrigation_decision"
	ResultMeasurement     = "run_result"
)

// ErrUnknownTopic is returned for topics the service does not store.
var ErrUnknownTopic = errors.New("unknown topic")

// Record is one decoded message, ready to become an Influx point.
type Record struct {
	Measurement string
	FieldID     string
	RunID       string
	Tags        map[string]string
	Fields      map[string]interface{}
	Time        time.Time

	daily  *model.DailyRecordEvent
	result *model.RunResultEvent
}

// Point returns the Influx point of the record.
func (r Record) Point() *write.Point {
	tags := map[string]string{"field_id": r.FieldID, "run_id": r.RunID}
	for k, v := range r.Tags {
		tags[k] = v
	}
	return influxdb2.NewPoint(r.Measurement, tags, r.Fields, r.Time)
}

// Decoder maps the simulation topics to records.
type Decoder struct {
	// DailyMeasurement names the measurement of the daily records.
	DailyMeasurement string
}

// Decode parses a message published on topic.
func (d Decoder) Decode(topic string, payload []byte) (Record, error) {
	switch {
	case strings.HasPrefix(topic, "sim/daily/"):
		return d.daily(topic, payload)
	case strings.HasPrefix(topic, "event/stageChange/"):
		return decodeStage(topic, payload)
	case strings.HasPrefix(topic, "event/irrigationDecision/"):
		return decodeIrrigation(topic, payload)
	case strings.HasPrefix(topic, "event/runResult/"):
		return decodeResult(topic, payload)
	}
	return Record{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}

func (d Decoder) daily(topic string, payload []byte) (Record, error) {
	var e model.DailyRecordEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return Record{}, fmt.Errorf("daily record: %w", err)
	}
	field, run, err := pickIDs(topic, "sim/daily/", e.FieldID, e.RunID)
	if err != nil {
		return Record{}, fmt.Errorf("daily record: %w", err)
	}
	e.FieldID, e.RunID = field, run
	fields := map[string]interface{}{
		"day":               int64(e.Day),
		"cc":                e.CC,
		"zr_m":              e.Zr,
		"gdd":               e.GDD,
		"gdd_cum":           e.GDDCum,
		"biomass_t_ha":      e.Biomass,
		"hi":                e.HI,
		"yield_t_ha":        e.Yield,
		"ks_exp":            e.KsExp,
		"ks_sto":            e.KsSto,
		"ks_sen":            e.KsSen,
		"ks_temp":           e.KsTemp,
		"aeration":          e.Aeration,
		"rain_mm":           e.Rain,
		"irrigation_mm":     e.Irrigation,
		"runoff_mm":         e.Runoff,
		"infiltration_mm":   e.Infiltration,
		"drainage_mm":       e.Drainage,
		"capillary_rise_mm": e.CapillaryRise,
		"evaporation_mm":    e.Evaporation,
		"transpiration_mm":  e.Transpiration,
	}
	for i, v := range e.Theta {
		fields[fmt.Sprintf("theta_%02d", i)] = v
	}
	for i, v := range e.Salinity {
		fields[fmt.Sprintf("salinity_%02d", i)] = v
	}
	return Record{
		Measurement: d.DailyMeasurement,
		FieldID:     field,
		RunID:       run,
		Tags:        map[string]string{"stage": e.Stage},
		Fields:      fields,
		Time:        simulatedTime(e.Day, e.Timestamp),
		daily:       &e,
	}, nil
}

func decodeStage(topic string, payload []byte) (Record, error) {
	var e model.StageChangeEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return Record{}, fmt.Errorf("stage change: %w", err)
	}
	field, run, err := pickIDs(topic, "event/stageChange/", e.FieldID, e.RunID)
	if err != nil {
		return Record{}, fmt.Errorf("stage change: %w", err)
	}
	return Record{
		Measurement: StageMeasurement,
		FieldID:     field,
		RunID:       run,
		Tags:        map[string]string{"stage": e.NewStage},
		Fields: map[string]interface{}{
			"day":       int64(e.Day),
			"old_stage": e.OldStage,
			"gdd_cum":   e.GDDCum,
		},
		Time: simulatedTime(e.Day, e.Timestamp),
	}, nil
}

func decodeIrrigation(topic string, payload []byte) (Record, error) {
	var e model.IrrigationDecisionEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return Record{}, fmt.Errorf("irrigation decision: %w", err)
	}
	field, run, err := pickIDs(topic, "event/irrigationDecision/", e.FieldID, e.RunID)
	if err != nil {
		return Record{}, fmt.Errorf("irrigation decision: %w", err)
	}
	return Record{
		Measurement: IrrigationMeasurement,
		FieldID:     field,
		RunID:       run,
		Tags:        map[string]string{"stage": e.Stage},
		Fields: map[string]interface{}{
			"day":       int64(e.Day),
			"method":    int64(e.Method),
			"dr_pct":    e.DrPct,
			"gross_mm":  e.GrossMM,
			"net_mm":    e.NetMM,
			"season_mm": e.SeasonMM,
		},
		Time: simulatedTime(e.Day, e.Timestamp),
	}, nil
}

func decodeResult(topic string, payload []byte) (Record, error) {
	var e model.RunResultEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return Record{}, fmt.Errorf("run result: %w", err)
	}
	field, run, err := pickIDs(topic, "event/runResult/", e.FieldID, e.RunID)
	if err != nil {
		return Record{}, fmt.Errorf("run result: %w", err)
	}
	e.FieldID, e.RunID = field, run
	t := e.Timestamp
	if t.IsZero() {
		t = time.Now()
	}
	return Record{
		Measurement: ResultMeasurement,
		FieldID:     field,
		RunID:       run,
		Tags:        map[string]string{"status": e.Status},
		Fields: map[string]interface{}{
			"reason":        e.Reason,
			"days":          int64(e.Days),
			"last_day":      int64(e.LastDay),
			"biomass_t_ha":  e.Biomass,
			"hi":            e.HI,
			"yield_t_ha":    e.Yield,
			"irrigation_mm": e.Irrigation,
			"runoff_mm":     e.Runoff,
			"drainage_mm":   e.Drainage,
			"et_mm":         e.ET,
			"started_at":    e.StartedAt.UTC().Format(time.RFC3339Nano),
		},
		Time:   t,
		result: &e,
	}, nil
}

// simulatedTime stamps a record with its simulated date, or with ts when the
// day is unknown.
func simulatedTime(day int, ts time.Time) time.Time {
	if day > 0 {
		return entities.DayNumber(day).Date()
	}
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}

// pickIDs takes the ids from the payload, else from "prefix/{field}/{run}".
func pickIDs(topic, prefix, fieldID, runID string) (string, string, error) {
	if strings.TrimSpace(fieldID) != "" && strings.TrimSpace(runID) != "" {
		return fieldID, runID, nil
	}
	parts := strings.Split(strings.TrimPrefix(topic, prefix), "/")
	if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
		return parts[0], parts[1], nil
	}
	return "", "", errors.New("missing field/run")
}
