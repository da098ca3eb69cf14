package simulation

import (
	"strings"
	"time"

	"github.com/LeonardoBeccarini/cropsim/internal/engine"
	"github.com/LeonardoBeccarini/cropsim/internal/model"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// Topic templates of the published events.
const (
	DailyTopic      = "sim/daily/{field}/{run}"
	StageTopic      = "event/stageChange/{field}/{run}"
	IrrigationTopic = "event/irrigationDecision/{field}/{run}"
	ResultTopic     = "event/runResult/{field}/{run}"
)

// gPerM2ToTHa converts biomass from g/m2 to t/ha.
const gPerM2ToTHa = 0.01

func formatTopic(tmpl, field, run string) string {
	return strings.NewReplacer("{field}", field, "{run}", run).Replace(tmpl)
}

func dailyEvent(runID, fieldID string, rec engine.DailyRecord, now time.Time) model.DailyRecordEvent {
	return model.DailyRecordEvent{
		RunID:         runID,
		FieldID:       fieldID,
		Day:           int(rec.Day),
		Date:          rec.Day.String(),
		Stage:         string(rec.Stage),
		CC:            rec.CC,
		Zr:            rec.Zr,
		GDD:           rec.GDD,
		GDDCum:        rec.GDDCum,
		Biomass:       rec.Biomass * gPerM2ToTHa,
		HI:            rec.HI,
		Yield:         rec.Yield,
		KsExp:         rec.Stress.KsExp,
		KsSto:         rec.Stress.KsSto,
		KsSen:         rec.Stress.KsSen,
		KsTemp:        rec.Stress.KsTemp,
		Aeration:      rec.Stress.Aeration,
		Rain:          rec.Fluxes.Rain,
		Irrigation:    rec.Fluxes.Irrigation,
		Runoff:        rec.Fluxes.Runoff,
		Infiltration:  rec.Fluxes.Infiltration,
		Drainage:      rec.Fluxes.Drainage,
		CapillaryRise: rec.Fluxes.CapillaryRise,
		Evaporation:   rec.Fluxes.Evaporation,
		Transpiration: rec.Fluxes.Transpiration,
		Theta:         rec.Theta,
		Salinity:      rec.Salinity,
		Timestamp:     now,
	}
}

// tracker turns the record stream of a run into stage and irrigation events.
// stageChange must see a record before irrigation does.
type tracker struct {
	runID, fieldID string
	method         entities.IrrigationMethod
	stage          entities.Stage
	season         float64
}

func (t *tracker) stageChange(rec engine.DailyRecord, now time.Time) (model.StageChangeEvent, bool) {
	old := t.stage
	t.stage = rec.Stage
	if rec.Stage == entities.StageInitial && old != entities.StageInitial {
		t.season = 0
	}
	if old == "" || old == rec.Stage {
		return model.StageChangeEvent{}, false
	}
	return model.StageChangeEvent{
		RunID:     t.runID,
		FieldID:   t.fieldID,
		Day:       int(rec.Day),
		OldStage:  string(old),
		NewStage:  string(rec.Stage),
		GDDCum:    rec.GDDCum,
		Timestamp: now,
	}, true
}

func (t *tracker) irrigation(rec engine.DailyRecord, now time.Time) (model.IrrigationDecisionEvent, bool) {
	if rec.Fluxes.IrrigationGross <= 0 {
		return model.IrrigationDecisionEvent{}, false
	}
	t.season += rec.Fluxes.IrrigationGross
	return model.IrrigationDecisionEvent{
		RunID:     t.runID,
		FieldID:   t.fieldID,
		Day:       int(rec.Day),
		Date:      rec.Day.String(),
		Stage:     string(rec.Stage),
		Method:    int(t.method),
		DrPct:     100 * rec.Stress.Drel,
		GrossMM:   rec.Fluxes.IrrigationGross,
		NetMM:     rec.Fluxes.Irrigation,
		SeasonMM:  t.season,
		Timestamp: now,
	}, true
}

func resultEvent(runID, fieldID string, res engine.Result, started, now time.Time) model.RunResultEvent {
	ev := model.RunResultEvent{
		RunID:      runID,
		FieldID:    fieldID,
		Status:     model.StatusOK,
		Days:       len(res.Records),
		Biomass:    res.Season.Biomass * gPerM2ToTHa,
		HI:         res.Season.HI,
		Yield:      res.Season.Yield,
		Irrigation: res.Totals.Irrigation,
		Runoff:     res.Totals.Runoff,
		Drainage:   res.Totals.Drainage,
		ET:         res.Totals.Evaporation + res.Totals.Transpiration,
		StartedAt:  started,
		Timestamp:  now,
	}
	if n := len(res.Records); n > 0 {
		ev.LastDay = int(res.Records[n-1].Day)
	}
	return ev
}
