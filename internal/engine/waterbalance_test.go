package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/irrigation"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

func soilSalt(comps []Compartment) float64 {
	total := 0.0
	for _, c := range comps {
		total += c.SaltMobile + c.SaltMicro + c.SaltSolid
	}
	return total
}

func stack(comps ...Compartment) []Compartment {
	for i := range comps {
		comps[i].Top = float64(i) * comps[i].Thickness
	}
	return comps
}

func salineIrrigation(net, ecw float64) irrigation.Event {
	return irrigation.Event{Gross: net, Net: net, ECw: ecw, Salt: net * ecw * ecToGramsPerLitre}
}

func TestBundedSalineIrrigationConservesSalt(t *testing.T) {
	cfg := config.Default()
	soil := entities.DefaultSoilProfile()
	soil.Layers[0].Ksat = 10
	wb := NewWaterBalance(cfg, soil, entities.MaizeGDD(), entities.ManagementPlan{Bunds: true, BundHeight: 0.2}, nil, nil)
	st := wb.Initial(Compartments(soil, nil))
	before := soilSalt(st.Compartments)

	irr := salineIrrigation(80, 2)
	require.InDelta(t, 102.4, irr.Salt, 1e-9)

	var fl DayFluxes
	var err error
	st, fl, err = wb.Advance(st, cfg.SimulationStart, forcingDay(4), irr, CanopyState{}, NoStress())
	require.NoError(t, err)
	require.Greater(t, st.Ponding, 0.0)
	assert.InDelta(t, (irr.Net-fl.Infiltration)*irr.Salt/irr.Net, st.PondingSalt, 1e-9, "pond keeps the salt it did not infiltrate")
	assert.InDelta(t, irr.Salt, fl.SaltIn, 1e-9)
	firstDay := soilSalt(st.Compartments)

	for d := 1; d < 10; d++ {
		st, _, err = wb.Advance(st, cfg.SimulationStart+entities.DayNumber(d), forcingDay(4), irrigation.Event{}, CanopyState{}, NoStress())
		require.NoError(t, err)
		held := soilSalt(st.Compartments) - before + st.PondingSalt
		assert.InDelta(t, st.Totals.SaltIn-st.Totals.SaltOut, held, 1e-6, "day %d", d)
	}
	assert.Greater(t, soilSalt(st.Compartments), firstDay, "ponded salt reaches the soil")
	assert.InDelta(t, irr.Salt, soilSalt(st.Compartments)-before+st.PondingSalt+st.Totals.SaltOut, 1e-6)
}

func TestRunoffCarriesIrrigationSalt(t *testing.T) {
	cfg := config.Default()
	soil := entities.DefaultSoilProfile()
	soil.Layers[0].Ksat = 10
	wb := NewWaterBalance(cfg, soil, entities.MaizeGDD(), entities.ManagementPlan{}, nil, nil)
	st := wb.Initial(Compartments(soil, nil))

	irr := salineIrrigation(80, 2)
	st, fl, err := wb.Advance(st, cfg.SimulationStart, forcingDay(4), irr, CanopyState{}, NoStress())
	require.NoError(t, err)
	assert.InDelta(t, 70, fl.Runoff, 1e-9)
	assert.GreaterOrEqual(t, fl.SaltOut, 70*irr.Salt/irr.Net-1e-9)
	assert.Zero(t, st.PondingSalt)
	assert.InDelta(t, irr.Salt, soilSalt(st.Compartments)+st.Totals.SaltOut, 1e-6)
}

func TestDriedPondLeavesSaltInTopsoil(t *testing.T) {
	cfg := config.Default()
	soil := entities.DefaultSoilProfile()
	wb := NewWaterBalance(cfg, soil, entities.MaizeGDD(), entities.ManagementPlan{Bunds: true, BundHeight: 0.2}, nil, nil)
	comps := stack(loamCompartment(0.46), loamCompartment(0.31))
	st := WaterBalanceState{Compartments: comps, Ponding: 1, PondingSalt: 5}

	var fl DayFluxes
	wb.evaporate(&st, &fl, 5, CanopyState{})
	assert.Zero(t, st.Ponding)
	assert.Zero(t, st.PondingSalt)
	assert.InDelta(t, 5, st.Compartments[0].SaltMobile, 1e-12)
}

func TestEvaporationFallsToStageTwo(t *testing.T) {
	cfg := config.Default()
	soil := entities.DefaultSoilProfile()
	wb := NewWaterBalance(cfg, soil, entities.MaizeGDD(), entities.ManagementPlan{}, nil, nil)
	zmax := cfg.EvapZMax / 100

	st := WaterBalanceState{Compartments: Compartments(soil, nil), Stage1Left: 2}
	ref := append([]Compartment(nil), st.Compartments...)
	require.InDelta(t, 2, extractEvaporation(ref, 2, zmax), 1e-12)
	fwcc := cfg.EvapDeclineFactor
	kr := (math.Exp(fwcc*evapLayerWrel(ref, zmax)) - 1) / (math.Exp(fwcc) - 1)

	var fl DayFluxes
	wb.evaporate(&st, &fl, 5, CanopyState{})
	assert.InDelta(t, cfg.KeX*5, fl.EsPot, 1e-12)
	assert.Zero(t, st.Stage1Left, "readily evaporable water used up")
	assert.InDelta(t, 2+kr*(fl.EsPot-2), fl.Evaporation, 1e-9)
	assert.Less(t, fl.Evaporation, fl.EsPot)

	// drier evaporating layer, steeper decline
	evap := func(factor float64) float64 {
		c := cfg
		c.EvapDeclineFactor = factor
		w := NewWaterBalance(c, soil, entities.MaizeGDD(), entities.ManagementPlan{}, nil, nil)
		s := WaterBalanceState{Compartments: Compartments(soil, &entities.InitialConditions{Preset: entities.PresetWiltingPoint})}
		var f DayFluxes
		w.evaporate(&s, &f, 5, CanopyState{})
		return f.Evaporation
	}
	assert.Greater(t, evap(1), evap(4))
	assert.Greater(t, evap(4), evap(8))
}

func TestTranspirationExtractionPatterns(t *testing.T) {
	layered := func() []Compartment {
		return stack(loamCompartment(0.31), loamCompartment(0.31), loamCompartment(0.31))
	}

	deep := layered()
	got := extractTranspiration(deep, 0.3, 5, entities.ExtractionDeepestFirst)
	assert.InDelta(t, 5, got, 1e-12)
	assert.Equal(t, 0.31, deep[0].Theta)
	assert.Equal(t, 0.31, deep[1].Theta)
	assert.InDelta(t, 0.31-0.05, deep[2].Theta, 1e-12)

	// the deepest compartment holds 16 mm; the rest comes from the next one up
	deep = layered()
	got = extractTranspiration(deep, 0.3, 20, entities.ExtractionDeepestFirst)
	assert.InDelta(t, 20, got, 1e-12)
	assert.Equal(t, 0.31, deep[0].Theta)
	assert.InDelta(t, 0.31-0.04, deep[1].Theta, 1e-12)
	assert.InDelta(t, deep[2].Soil.ThetaWP, deep[2].Theta, 1e-12)

	even := layered()
	got = extractTranspiration(even, 0.3, 6, entities.ExtractionUniform)
	assert.InDelta(t, 6, got, 1e-12)
	for _, c := range even {
		assert.InDelta(t, 0.31-0.02, c.Theta, 1e-12)
	}
}

func TestAerationStressGracePeriod(t *testing.T) {
	rz := rootZone{Wr: 440, Wsat: 460, Waer: 420}

	ks, full := aerationStress(rz, 0, 3)
	assert.Equal(t, 1.0, ks)
	assert.False(t, full)

	ks, full = aerationStress(rz, 1, 3)
	assert.InDelta(t, 1-0.5/3, ks, 1e-12)
	assert.False(t, full)

	ks, full = aerationStress(rz, 3, 3)
	assert.InDelta(t, 0.5, ks, 1e-12)
	assert.False(t, full, "flag waits until the grace period is exceeded")

	ks, full = aerationStress(rz, 4, 3)
	assert.InDelta(t, 0.5, ks, 1e-12)
	assert.True(t, full)

	_, full = aerationStress(rz, 1, 0)
	assert.True(t, full)

	ks, full = aerationStress(rootZone{Wr: 400, Wsat: 460, Waer: 420}, 5, 3)
	assert.Equal(t, 1.0, ks)
	assert.False(t, full)
}

func TestStressesReportWaterlogging(t *testing.T) {
	cfg := config.Default()
	crop := entities.MaizeGDD()
	soil := entities.DefaultSoilProfile()
	comps := Compartments(soil, nil)
	for i := range comps {
		comps[i].Theta = comps[i].Soil.ThetaSat
	}
	canopy := CanopyState{Active: true, Zr: 0.3}

	w := WaterBalanceState{Compartments: comps, AerationDays: cfg.AerationDays}
	ks := Stresses(w, canopy, crop, cfg, 5, 12)
	assert.Zero(t, ks.KsAer)
	assert.False(t, ks.Aeration)

	w.AerationDays++
	ks = Stresses(w, canopy, crop, cfg, 5, 12)
	assert.Zero(t, ks.KsAer)
	assert.True(t, ks.Aeration)
}

func TestAerationCounterFollowsWaterlogging(t *testing.T) {
	cfg := config.Default()
	soil := entities.DefaultSoilProfile()
	soil.Layers[0].Ksat = 0
	wb := NewWaterBalance(cfg, soil, entities.MaizeGDD(), entities.ManagementPlan{}, nil, nil)
	comps := Compartments(soil, nil)
	for i := range comps {
		comps[i].Theta = comps[i].Soil.ThetaSat
	}
	st := wb.Initial(comps)
	canopy := CanopyState{Active: true, Zr: 0.3}

	var err error
	for d := 1; d <= 2; d++ {
		st, _, err = wb.Advance(st, cfg.SimulationStart+entities.DayNumber(d), forcingDay(0), irrigation.Event{}, canopy, NoStress())
		require.NoError(t, err)
		assert.Equal(t, d, st.AerationDays)
	}

	st, _, err = wb.Advance(st, cfg.SimulationStart+3, forcingDay(0), irrigation.Event{}, CanopyState{}, NoStress())
	require.NoError(t, err)
	assert.Zero(t, st.AerationDays, "reset outside the season")
}
