package engine

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/forcing"
	"github.com/LeonardoBeccarini/cropsim/internal/irrigation"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// Inputs are the loaded external inputs of a run. Optional inputs are only
// consulted when the matching file reference of the configuration is enabled.
type Inputs struct {
	Field       entities.Field
	Climate     *entities.ClimateSeries
	Crop        *entities.CropParameters
	Soil        *entities.SoilProfile
	Management  *entities.ManagementPlan
	Irrigation  *entities.IrrigationPolicy
	Groundwater *entities.Groundwater
	Initial     *entities.InitialConditions
	OffSeason   *entities.OffSeason

	// GapPolicy defaults to forcing.DefaultGapPolicy at the field latitude.
	GapPolicy *forcing.GapPolicy

	Logger logrus.FieldLogger
	// OnDay is called with every committed record. A returned error stops the run.
	OnDay func(DailyRecord) error
}

// Season summarises the cropping period of a run.
type Season struct {
	Crop       string
	Start      entities.DayNumber
	End        entities.DayNumber
	Harvested  bool
	HarvestDay entities.DayNumber
	Biomass    float64 // g/m2
	HI         float64
	Yield      float64 // t/ha
	Irrigation float64 // gross mm
	CCMax      float64
	Dead       bool
}

// Result holds everything a run produced. On error it holds the days committed
// before the failure.
type Result struct {
	Records []DailyRecord
	Last    DayState
	Season  Season
	Totals  Totals
}

// run bundles the components wired for one simulation.
type run struct {
	cfg      config.SimulationConfig
	features config.Features
	crop     entities.CropParameters
	mgmt     entities.ManagementPlan
	off      *entities.OffSeason

	resolver *forcing.Resolver
	water    *WaterBalance
	canopy   *Canopy
	yield    *Yield
	log      logrus.FieldLogger
}

// Run simulates every day of the configured period and returns the daily records.
// Days are processed strictly in order and a failure stops the run with the
// records committed so far. Cancelling ctx stops the run between days.
func Run(ctx context.Context, cfg config.SimulationConfig, in Inputs) (Result, error) {
	var res Result
	r, state, err := prepare(cfg, in)
	if err != nil {
		return res, err
	}
	res.Last = state
	res.Records = make([]DailyRecord, 0, cfg.Days())
	res.Season = Season{Crop: r.crop.Name, Start: cfg.CropStart, End: cfg.CropEnd}

	r.log.WithFields(logrus.Fields{
		"field": in.Field.ID,
		"crop":  r.crop.Name,
		"from":  cfg.SimulationStart.String(),
		"to":    cfg.SimulationEnd.String(),
	}).Info("simulation started")

	for d := cfg.SimulationStart; d <= cfg.SimulationEnd; d++ {
		if err := ctx.Err(); err != nil {
			r.log.WithField("day", d.String()).Warn("simulation cancelled")
			return res, fmt.Errorf("run stopped before %s: %w", d, err)
		}
		next, rec, err := r.step(state, d)
		if err != nil {
			r.log.WithError(err).WithField("day", d.String()).Error("simulation failed")
			return res, err
		}
		state = next
		res.Records = append(res.Records, rec)
		res.Last = state
		res.Totals = state.Water.Totals
		r.summarise(&res.Season, state, rec)
		if in.OnDay != nil {
			if err := in.OnDay(rec); err != nil {
				return res, fmt.Errorf("day %s callback: %w", d, err)
			}
		}
	}

	r.log.WithFields(logrus.Fields{
		"days":    len(res.Records),
		"biomass": res.Season.Biomass,
		"yield":   res.Season.Yield,
	}).Info("simulation finished")
	return res, nil
}

// prepare validates the configuration against the inputs and wires the components.
func prepare(cfg config.SimulationConfig, in Inputs) (*run, DayState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, DayState{}, err
	}
	if in.Climate == nil {
		return nil, DayState{}, &MissingInputError{Input: "climate", Reason: "a climate series is required"}
	}
	if in.Crop == nil {
		return nil, DayState{}, &MissingInputError{Input: "crop", Reason: "crop parameters are required"}
	}
	if err := validateCrop(*in.Crop); err != nil {
		return nil, DayState{}, err
	}

	feat := cfg.Files.Resolve()
	soil := entities.DefaultSoilProfile()
	if feat.CustomSoil {
		if in.Soil == nil {
			return nil, DayState{}, &MissingInputError{Input: "soil", Reason: "soil file " + cfg.Files.Soil.String() + " not loaded"}
		}
		soil = *in.Soil
	}
	if err := validateSoil(soil); err != nil {
		return nil, DayState{}, err
	}

	mgmt := entities.DefaultManagementPlan()
	if feat.Management {
		if in.Management == nil {
			return nil, DayState{}, &MissingInputError{Input: "management", Reason: "management file " + cfg.Files.Management.String() + " not loaded"}
		}
		mgmt = *in.Management
	}
	mgmt.Irrigation = entities.DefaultIrrigationPolicy()
	if feat.Irrigation {
		if in.Irrigation == nil {
			return nil, DayState{}, &MissingInputError{Input: "irrigation", Reason: "irrigation file " + cfg.Files.Irrigation.String() + " not loaded"}
		}
		mgmt.Irrigation = *in.Irrigation
		if mgmt.Irrigation.Method == entities.IrrigationSchedule && len(mgmt.Irrigation.Schedule) == 0 {
			return nil, DayState{}, &MissingInputError{Input: "irrigation schedule", Reason: "scheduled irrigation without events"}
		}
	}

	var gw *entities.Groundwater
	if feat.CapillaryRise {
		if in.Groundwater == nil || len(in.Groundwater.Points) == 0 {
			return nil, DayState{}, &MissingInputError{Input: "groundwater", Reason: "water table file " + cfg.Files.Groundwater.String() + " not loaded"}
		}
		gw = in.Groundwater
	}
	var ic *entities.InitialConditions
	if feat.InitialSeeded {
		if in.Initial == nil {
			return nil, DayState{}, &MissingInputError{Input: "initial conditions", Reason: "initial file " + cfg.Files.Initial.String() + " not loaded"}
		}
		ic = in.Initial
	}
	var off *entities.OffSeason
	if feat.OffSeason {
		if in.OffSeason == nil {
			return nil, DayState{}, &MissingInputError{Input: "off-season", Reason: "off-season file " + cfg.Files.OffSeason.String() + " not loaded"}
		}
		off = in.OffSeason
	}

	policy := forcing.DefaultGapPolicy()
	if in.GapPolicy != nil {
		policy = *in.GapPolicy
	}
	if policy.Latitude == 0 {
		policy.Latitude = in.Field.Latitude
	}
	resolver, err := forcing.NewResolver(in.Climate, policy, cfg.DefaultTmin, cfg.DefaultTmax)
	if err != nil {
		return nil, DayState{}, &ConfigurationError{Field: "co2", Reason: err.Error()}
	}

	logger := in.Logger
	if logger == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		logger = quiet
	}

	comps := Compartments(soil, ic)
	r := &run{
		cfg:      cfg,
		features: feat,
		crop:     *in.Crop,
		mgmt:     mgmt,
		off:      off,
		resolver: resolver,
		water:    NewWaterBalance(cfg, soil, *in.Crop, mgmt, off, gw),
		canopy:   NewCanopy(*in.Crop, cfg, profileDepth(comps)),
		yield:    NewYield(*in.Crop, mgmt.WeedCoverPct),
		log:      logger.WithField("component", "engine"),
	}
	state := DayState{
		Day:    cfg.SimulationStart - 1,
		Water:  r.water.Initial(comps),
		Canopy: r.canopy.Dormant(),
	}
	return r, state, nil
}

// step advances prev by one day and returns the committed state and its record.
func (r *run) step(prev DayState, d entities.DayNumber) (DayState, DailyRecord, error) {
	f, err := r.resolver.Day(d)
	if err != nil {
		return prev, DailyRecord{}, err
	}
	gdd := forcing.DailyGDD(r.cfg.GDDMethod, f.Tmin, f.Tmax, r.crop.Tbase, r.crop.Tupp)

	canopy, yield, water := prev.Canopy, prev.Yield, prev.Water
	inCrop := r.cfg.InCropPeriod(d)
	switch {
	case inCrop && !canopy.Active && d == r.cfg.CropStart:
		canopy = r.canopy.Sown()
		yield = YieldState{}
		water = water.Clone()
		water.SeasonIrrigation = 0
		r.log.WithField("day", d.String()).Debug("crop sown")
	case !inCrop && canopy.Active:
		canopy = r.canopy.Dormant()
	}

	// start-of-day stresses drive the irrigation decision and canopy growth
	stress0 := Stresses(water, canopy, r.crop, r.cfg, f.ETo, gdd)

	var irr irrigation.Event
	switch {
	case canopy.Active && !canopy.Mature:
		zr := math.Max(canopy.Zr, r.crop.Zmin)
		irr = irrigation.Decide(r.mgmt.Irrigation, irrigation.Situation{
			Day:          d,
			CropStart:    r.cfg.CropStart,
			Stage:        canopy.Stage,
			Dr:           stress0.Dr,
			TAW:          stress0.TAW,
			RootZone:     rootZoneWater(water.Compartments, zr),
			SeasonIrr:    water.SeasonIrrigation,
			LastIrrDay:   water.LastIrrigation,
			PreIrrigated: d != r.cfg.CropStart,
		})
	case !inCrop && r.off != nil:
		irr = irrigation.OffSeason(*r.off, d)
	default:
		irr = irrigation.Event{Day: d}
	}
	if !irr.None() {
		r.log.WithFields(logrus.Fields{"day": d.String(), "net": irr.Net, "reason": irr.Reason}).Debug("irrigation")
	}

	wet := TopsoilWetEnoughForGermination(water, r.cfg)
	nextCanopy := r.canopy.Advance(canopy, gdd, stress0, wet)
	stress := Stresses(water, nextCanopy, r.crop, r.cfg, f.ETo, gdd)

	nextWater, fl, err := r.water.Advance(water, d, f, irr, nextCanopy, stress)
	if err != nil {
		return prev, DailyRecord{}, err
	}

	nextYield := r.yield.Advance(yield, nextCanopy, stress, fl, f)
	if nextCanopy.Active && !nextYield.Harvested && (d == r.cfg.CropEnd || nextCanopy.Mature) {
		nextYield = r.yield.Harvest(nextYield)
		r.log.WithFields(logrus.Fields{"day": d.String(), "yield": nextYield.Yield}).Debug("harvest")
	}

	next := DayState{Day: d, Water: nextWater, Canopy: nextCanopy, Yield: nextYield}
	return next, record(next, f, gdd, stress, fl), nil
}

func record(s DayState, f forcing.Forcing, gdd float64, stress StressCoefficients, fl DayFluxes) DailyRecord {
	comps := s.Water.Compartments
	rec := DailyRecord{
		Day:         s.Day,
		Stage:       s.Canopy.Stage,
		Tmin:        f.Tmin,
		Tmax:        f.Tmax,
		ETo:         f.ETo,
		CO2:         f.CO2,
		Substituted: append([]string(nil), f.Substituted...),
		GDD:         gdd,
		GDDCum:      s.Canopy.GDDCum,
		CC:          s.Canopy.CC,
		Zr:          s.Canopy.Zr,
		Biomass:     s.Yield.Biomass,
		HI:          s.Yield.HI,
		Yield:       s.Yield.Yield,
		Stress:      stress,
		Fluxes:      fl,
		Ponding:     s.Water.Ponding,
		Theta:       make([]float64, len(comps)),
		Salinity:    make([]float64, len(comps)),
	}
	if !s.Canopy.Active {
		rec.Zr = 0
	}
	for i, c := range comps {
		rec.Theta[i] = c.Theta
		rec.Salinity[i] = c.Salinity()
	}
	return rec
}

func (r *run) summarise(s *Season, st DayState, rec DailyRecord) {
	if !st.Canopy.Active {
		return
	}
	s.Biomass = st.Yield.Biomass
	s.HI = st.Yield.HI
	s.Yield = st.Yield.Yield
	s.Irrigation = st.Water.SeasonIrrigation
	s.CCMax = math.Max(s.CCMax, rec.CC)
	s.Dead = st.Canopy.Dead
	if st.Yield.Harvested && !s.Harvested {
		s.Harvested = true
		s.HarvestDay = st.Day
	}
}
