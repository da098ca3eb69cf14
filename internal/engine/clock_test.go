package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// climate builds a series over the simulated period without temperatures.
// rain(i) gives the rainfall of the i-th day.
func climate(cfg config.SimulationConfig, eto float64, rain func(i int) float64) *entities.ClimateSeries {
	var rs []entities.ClimateRecord
	for d := cfg.SimulationStart; d <= cfg.SimulationEnd; d++ {
		rs = append(rs, entities.ClimateRecord{
			Day:  d,
			Tmin: entities.Missing,
			Tmax: entities.Missing,
			ETo:  eto,
			Rain: rain(int(d - cfg.SimulationStart)),
			CO2:  entities.Missing,
		})
	}
	return entities.NewClimateSeries(rs, false, nil)
}

func everyNthDay(n int, mm float64) func(int) float64 {
	return func(i int) float64 {
		if i%n == 0 {
			return mm
		}
		return 0
	}
}

func seasonConfig(days int) config.SimulationConfig {
	cfg := config.Default()
	cfg.SimulationEnd = cfg.SimulationStart + entities.DayNumber(days-1)
	cfg.CropEnd = cfg.SimulationEnd
	return cfg
}

func maizeInputs(cfg config.SimulationConfig, eto float64, rain func(int) float64) Inputs {
	crop := entities.MaizeGDD()
	return Inputs{Climate: climate(cfg, eto, rain), Crop: &crop}
}

func TestRunDefaultTemperaturesGiveTwelveGDD(t *testing.T) {
	cfg := config.Default()
	res, err := Run(context.Background(), cfg, maizeInputs(cfg, 4, everyNthDay(7, 20)))
	require.NoError(t, err)
	require.Len(t, res.Records, cfg.Days())
	for _, r := range res.Records {
		assert.InDelta(t, 12.0, r.GDD, 1e-9, "day %s", r.Day)
		assert.Empty(t, r.Substituted)
	}
}

func TestRunRejectsCropStartBeforeSimulation(t *testing.T) {
	cfg := config.Default()
	cfg.CropStart = cfg.SimulationStart - 1
	res, err := Run(context.Background(), cfg, maizeInputs(config.Default(), 4, everyNthDay(7, 20)))

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "crop_start", ce.Field)
	assert.Empty(t, res.Records)
}

func TestRunMissingInputs(t *testing.T) {
	cfg := config.Default()
	in := maizeInputs(cfg, 4, everyNthDay(7, 20))

	cases := []struct {
		name  string
		input string
		edit  func(c *config.SimulationConfig, in *Inputs)
	}{
		{"no climate", "climate", func(_ *config.SimulationConfig, in *Inputs) { in.Climate = nil }},
		{"no crop", "crop", func(_ *config.SimulationConfig, in *Inputs) { in.Crop = nil }},
		{"groundwater file not loaded", "groundwater", func(c *config.SimulationConfig, _ *Inputs) {
			c.Files.Groundwater = config.Ref("table.json", "")
		}},
		{"irrigation file not loaded", "irrigation", func(c *config.SimulationConfig, _ *Inputs) {
			c.Files.Irrigation = config.Ref("irr.yaml", "")
		}},
		{"schedule without events", "irrigation schedule", func(c *config.SimulationConfig, in *Inputs) {
			c.Files.Irrigation = config.Ref("irr.yaml", "")
			p := entities.DefaultIrrigationPolicy()
			p.Method = entities.IrrigationSchedule
			in.Irrigation = &p
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, i := cfg, in
			tc.edit(&c, &i)
			_, err := Run(context.Background(), c, i)
			var me *MissingInputError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tc.input, me.Input)
		})
	}
}

func TestRunRejectsBadCropAndSoil(t *testing.T) {
	cfg := config.Default()
	in := maizeInputs(cfg, 4, everyNthDay(7, 20))
	bad := *in.Crop
	bad.CC0 = 2
	in.Crop = &bad
	_, err := Run(context.Background(), cfg, in)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "crop.cc0", ce.Field)

	in = maizeInputs(cfg, 4, everyNthDay(7, 20))
	soil := entities.DefaultSoilProfile()
	soil.Layers[0].ThetaFC = 0.5
	in.Soil = &soil
	cfg.Files.Soil = config.Ref("inverted.sol", "")
	_, err = Run(context.Background(), cfg, in)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "soil.layers[0]", ce.Field)
}

func TestRunKeepsStateWithinBounds(t *testing.T) {
	cfg := seasonConfig(200)
	cfg.Files.Initial = config.Ref("salty.yaml", "")
	in := maizeInputs(cfg, 5, everyNthDay(5, 30))
	in.Initial = &entities.InitialConditions{Points: []entities.InitialPoint{
		{Depth: 0.5, Theta: 0.25, Salinity: 3},
		{Depth: 2.0, Theta: 0.35, Salinity: 1},
	}}

	res, err := Run(context.Background(), cfg, in)
	require.NoError(t, err)
	loam := entities.DefaultSoilProfile().Layers[0]
	for _, r := range res.Records {
		for i, th := range r.Theta {
			assert.GreaterOrEqual(t, th, 0.0, "day %s compartment %d", r.Day, i)
			assert.LessOrEqual(t, th, loam.ThetaSat, "day %s compartment %d", r.Day, i)
			assert.GreaterOrEqual(t, r.Salinity[i], 0.0)
			assert.LessOrEqual(t, r.Salinity[i], cfg.SaltSolubility+1e-9)
		}
		assert.GreaterOrEqual(t, r.CC, 0.0)
		assert.LessOrEqual(t, r.CC, in.Crop.CCx)
		assert.GreaterOrEqual(t, r.Fluxes.Runoff, 0.0)
		assert.GreaterOrEqual(t, r.Fluxes.Drainage, 0.0)
	}
}

func TestRunCanopyAndRootsEvolveMonotonically(t *testing.T) {
	cfg := seasonConfig(200)
	in := maizeInputs(cfg, 4, everyNthDay(3, 15))
	res, err := Run(context.Background(), cfg, in)
	require.NoError(t, err)

	declining := false
	for i := 1; i < len(res.Records); i++ {
		prev, cur := res.Records[i-1], res.Records[i]
		if cur.CC < prev.CC {
			declining = true
		}
		if declining {
			assert.LessOrEqual(t, cur.CC, prev.CC, "cover grew after senescence on %s", cur.Day)
		}
		if cur.Stage == entities.StageDormant || prev.Stage == entities.StageDormant {
			continue
		}
		assert.GreaterOrEqual(t, cur.Zr, prev.Zr, "roots shrank on %s", cur.Day)
		assert.LessOrEqual(t, cur.Zr-prev.Zr, cfg.MaxRootRate/100+1e-12)
		assert.LessOrEqual(t, cur.Zr, in.Crop.Zmax)
	}
	assert.True(t, declining, "the season should reach senescence")
	assert.Equal(t, entities.StageMature, res.Records[len(res.Records)-1].Stage)
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := config.Default()
	a, err := Run(context.Background(), cfg, maizeInputs(cfg, 4.5, everyNthDay(4, 12)))
	require.NoError(t, err)
	b, err := Run(context.Background(), cfg, maizeInputs(cfg, 4.5, everyNthDay(4, 12)))
	require.NoError(t, err)
	if diff := cmp.Diff(a.Records, b.Records); diff != "" {
		t.Fatalf("records differ between identical runs (-first +second):\n%s", diff)
	}
	assert.Equal(t, a.Season, b.Season)
}

func TestRunCurveNumberAdjustmentOnWetTopsoil(t *testing.T) {
	cfg := config.Default()
	rain := func(i int) float64 {
		if i == 0 {
			return 60
		}
		return 0
	}

	cfg.AdjustCNToAMC = true
	on, err := Run(context.Background(), cfg, maizeInputs(cfg, 4, rain))
	require.NoError(t, err)
	cfg.AdjustCNToAMC = false
	off, err := Run(context.Background(), cfg, maizeInputs(cfg, 4, rain))
	require.NoError(t, err)

	assert.Greater(t, on.Records[0].Fluxes.CN, off.Records[0].Fluxes.CN)
	assert.Greater(t, on.Records[0].Fluxes.Runoff, off.Records[0].Fluxes.Runoff)
}

func TestRunGroundwaterFeature(t *testing.T) {
	cfg := config.Default()
	table := &entities.Groundwater{Points: []entities.GroundwaterPoint{{Day: cfg.SimulationStart, Depth: 1.5}}}

	in := maizeInputs(cfg, 6, func(int) float64 { return 0 })
	in.Groundwater = table
	disabled, err := Run(context.Background(), cfg, in)
	require.NoError(t, err)
	for _, r := range disabled.Records {
		assert.Zero(t, r.Fluxes.CapillaryRise)
		assert.Zero(t, r.Fluxes.WaterTable)
	}

	cfg.Files.Groundwater = config.Ref("table.json", "")
	enabled, err := Run(context.Background(), cfg, in)
	require.NoError(t, err)
	assert.Greater(t, enabled.Totals.CapillaryRise, 0.0)
	last := enabled.Records[len(enabled.Records)-1]
	loam := entities.DefaultSoilProfile().Layers[0]
	assert.InDelta(t, loam.ThetaSat, last.Theta[len(last.Theta)-1], 1e-9)
}

func TestRunCancelKeepsCommittedDays(t *testing.T) {
	cfg := config.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := maizeInputs(cfg, 4, everyNthDay(7, 20))
	seen := 0
	in.OnDay = func(DailyRecord) error {
		seen++
		if seen == 10 {
			cancel()
		}
		return nil
	}
	res, err := Run(ctx, cfg, in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, res.Records, 10)
	assert.Equal(t, res.Records[9].Day, res.Last.Day)
}

func TestRunForcingGapStopsRun(t *testing.T) {
	cfg := config.Default()
	in := maizeInputs(cfg, 4, everyNthDay(7, 20))
	in.Climate.Records[5].ETo = entities.Missing

	res, err := Run(context.Background(), cfg, in)
	var ge *ForcingGapError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "ETo", ge.Variable)
	assert.Equal(t, int(cfg.SimulationStart)+5, ge.Day)
	assert.Len(t, res.Records, 5)
}

func TestRunHarvestsAtMaturity(t *testing.T) {
	cfg := seasonConfig(200)
	res, err := Run(context.Background(), cfg, maizeInputs(cfg, 4, everyNthDay(3, 15)))
	require.NoError(t, err)

	s := res.Season
	require.True(t, s.Harvested)
	assert.Less(t, s.HarvestDay, cfg.CropEnd)
	assert.Greater(t, s.Biomass, 0.0)
	assert.Greater(t, s.HI, 0.0)
	assert.InDelta(t, s.Biomass*s.HI/100, s.Yield, 1e-9)

	// biomass is frozen once harvested
	var after []float64
	for _, r := range res.Records {
		if r.Day > s.HarvestDay {
			after = append(after, r.Biomass)
		}
	}
	require.NotEmpty(t, after)
	for _, b := range after {
		assert.Equal(t, s.Biomass, b)
	}
}

func TestRunNetIrrigationKeepsCropWatered(t *testing.T) {
	cfg := config.Default()
	p := entities.DefaultIrrigationPolicy()
	p.Method = entities.IrrigationNet
	p.NetSMT = 70

	dry := maizeInputs(cfg, 6, func(int) float64 { return 0 })
	rainfed, err := Run(context.Background(), cfg, dry)
	require.NoError(t, err)

	cfg.Files.Irrigation = config.Ref("net.irr", "")
	dry.Irrigation = &p
	irrigated, err := Run(context.Background(), cfg, dry)
	require.NoError(t, err)

	assert.Greater(t, irrigated.Totals.Irrigation, 0.0)
	assert.Zero(t, rainfed.Totals.Irrigation)
	assert.GreaterOrEqual(t, irrigated.Season.Biomass, rainfed.Season.Biomass)
}

func TestRunBundsStoreWater(t *testing.T) {
	cfg := config.Default()
	cfg.Files.Management = config.Ref("bunds.man", "")
	m := entities.DefaultManagementPlan()
	m.Bunds = true
	m.BundHeight = 0.2

	soil := entities.DefaultSoilProfile()
	soil.Layers[0].Ksat = 10
	cfg.Files.Soil = config.Ref("slow.sol", "")

	in := maizeInputs(cfg, 3, func(i int) float64 {
		if i == 0 {
			return 80
		}
		return 0
	})
	in.Management = &m
	in.Soil = &soil
	res, err := Run(context.Background(), cfg, in)
	require.NoError(t, err)
	day0 := res.Records[0]
	assert.Zero(t, day0.Fluxes.Runoff)
	assert.Greater(t, day0.Ponding, 0.0)
	assert.LessOrEqual(t, day0.Ponding, m.BundHeight*1000)
}
