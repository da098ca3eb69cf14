package irrigation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

func policy(m entities.IrrigationMethod) entities.IrrigationPolicy {
	p := entities.DefaultIrrigationPolicy()
	p.Method = m
	return p
}

func TestRainfedNeverIrrigates(t *testing.T) {
	ev := Decide(policy(entities.IrrigationRainfed), Situation{Day: 10, Dr: 100, TAW: 120})
	assert.True(t, ev.None())
	assert.Zero(t, ev.Gross)
}

func TestSoilMoistureTargets(t *testing.T) {
	p := policy(entities.IrrigationSoilMoisture)
	p.SMT = [4]float64{70, 60, 50, 30}
	p.AppEff = 80

	// 60 % target in canopy development: irrigate when depletion exceeds 40 % of TAW
	ev := Decide(p, Situation{Stage: entities.StageCanopyDevelopment, Dr: 30, TAW: 100})
	assert.True(t, ev.None())

	ev = Decide(p, Situation{Stage: entities.StageCanopyDevelopment, Dr: 16, TAW: 30})
	assert.False(t, ev.None())
	assert.InDelta(t, 20, ev.Gross, 1e-9)
	assert.InDelta(t, 16, ev.Net, 1e-9)
	assert.False(t, ev.Capped)

	ev = Decide(p, Situation{Stage: entities.StageMidSeason, Dr: 60, TAW: 100})
	assert.InDelta(t, p.MaxIrr, ev.Gross, 1e-9)
	assert.True(t, ev.Capped)
}

func TestIntervalAndConstantDepth(t *testing.T) {
	p := policy(entities.IrrigationInterval)
	p.Interval = 7
	p.Depth = 20

	assert.InDelta(t, 20, Decide(p, Situation{Day: 114, CropStart: 100}).Gross, 1e-9)
	assert.True(t, Decide(p, Situation{Day: 115, CropStart: 100}).None())

	c := policy(entities.IrrigationConstantDepth)
	c.Depth = 3
	assert.InDelta(t, 3, Decide(c, Situation{Day: 1}).Net, 1e-9)
}

func TestScheduleAndSeasonCap(t *testing.T) {
	p := policy(entities.IrrigationSchedule)
	p.MaxIrr = 100
	p.MaxIrrSeason = 50
	p.ECw = 1.5
	p.Schedule = []entities.ScheduledIrrigation{{Day: 5, Depth: 40}, {Day: 6, Depth: 40}}

	ev := Decide(p, Situation{Day: 5})
	assert.InDelta(t, 40, ev.Gross, 1e-9)
	assert.InDelta(t, 40*1.5*0.64, ev.Salt, 1e-9)

	ev = Decide(p, Situation{Day: 6, SeasonIrr: 40})
	assert.InDelta(t, 10, ev.Gross, 1e-9)
	assert.True(t, ev.Capped)

	ev = Decide(p, Situation{Day: 7, SeasonIrr: 50})
	assert.True(t, ev.None())
}

func TestNetIrrigationAndPreIrrigation(t *testing.T) {
	p := policy(entities.IrrigationNet)
	p.NetSMT = 50
	rz := []RootZoneWater{
		{Theta: 0.15, ThetaFC: 0.31, ThetaWP: 0.15, Thickness: 0.1},
		{Theta: 0.30, ThetaFC: 0.31, ThetaWP: 0.15, Thickness: 0.1},
	}
	ev := Decide(p, Situation{Day: 100, CropStart: 100, RootZone: rz})
	assert.True(t, ev.Direct)
	assert.Equal(t, "pre-irrigation", ev.Reason)
	assert.InDelta(t, 8, ev.Net, 1e-9)
	assert.InDelta(t, 0.5, ev.Threshold, 1e-9)

	ev = Decide(p, Situation{Day: 101, CropStart: 100, RootZone: rz[1:]})
	assert.True(t, ev.None())
}

func TestOffSeason(t *testing.T) {
	o := entities.OffSeason{ECw: 2, Irrigation: []entities.ScheduledIrrigation{{Day: 3, Depth: 15}}}
	ev := OffSeason(o, 3)
	assert.InDelta(t, 15, ev.Net, 1e-9)
	assert.InDelta(t, 15*2*0.64, ev.Salt, 1e-9)
	assert.True(t, OffSeason(o, 4).None())
}
