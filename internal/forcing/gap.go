package forcing

import (
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsim/internal/simerr"
)

// GapPolicy selects the substitutions applied to missing forcing values.
// Missing temperatures are always replaced by the configured defaults.
type GapPolicy struct {
	EToFromTemperature bool // Hargreaves ETo from the day's temperatures
	RainMissingIsZero  bool
	CO2Baseline        bool // annual series, else ReferenceCO2
	Latitude           float64
}

// DefaultGapPolicy fills CO2 only; missing ETo or rain stays fatal.
func DefaultGapPolicy() GapPolicy {
	return GapPolicy{CO2Baseline: true}
}

// Forcing is the resolved boundary forcing of one day.
type Forcing struct {
	Day  entities.DayNumber
	Tmin float64
	Tmax float64
	ETo  float64
	Rain float64
	CO2  float64
	// Substituted names the variables filled by the gap policy.
	Substituted []string
}

// Resolver looks up the daily forcing and applies the gap policy.
type Resolver struct {
	series      *entities.ClimateSeries
	policy      GapPolicy
	co2         *CO2Curve
	defaultTmin float64
	defaultTmax float64
}

// NewResolver builds a resolver over series using defaults for missing temperatures.
func NewResolver(series *entities.ClimateSeries, policy GapPolicy, defaultTmin, defaultTmax float64) (*Resolver, error) {
	var points []entities.CO2Point
	if series != nil {
		points = series.CO2
	}
	curve, err := NewCO2Curve(points)
	if err != nil {
		return nil, err
	}
	return &Resolver{series: series, policy: policy, co2: curve, defaultTmin: defaultTmin, defaultTmax: defaultTmax}, nil
}

// Day returns the forcing of day d, or a *simerr.ForcingGapError when a value is
// missing and the policy has no substitute for it.
func (r *Resolver) Day(d entities.DayNumber) (Forcing, error) {
	rec, ok := r.series.On(d)
	if !ok {
		rec = entities.ClimateRecord{
			Day:  d,
			Tmin: entities.Missing,
			Tmax: entities.Missing,
			ETo:  entities.Missing,
			Rain: entities.Missing,
			CO2:  entities.Missing,
		}
	}
	f := Forcing{Day: d, Tmin: rec.Tmin, Tmax: rec.Tmax, ETo: rec.ETo, Rain: rec.Rain, CO2: rec.CO2}

	hasTemperature := r.series != nil && r.series.HasTemperature
	if !hasTemperature || entities.IsMissing(f.Tmin) || entities.IsMissing(f.Tmax) {
		if hasTemperature {
			f.Substituted = append(f.Substituted, "temperature")
		}
		f.Tmin, f.Tmax = r.defaultTmin, r.defaultTmax
	}

	if entities.IsMissing(f.ETo) {
		if !r.policy.EToFromTemperature {
			return f, &simerr.ForcingGapError{Day: int(d), Variable: "ETo"}
		}
		f.ETo = Hargreaves(f.Tmin, f.Tmax, ExtraterrestrialRadiation(r.policy.Latitude, d.Date().YearDay()))
		f.Substituted = append(f.Substituted, "ETo")
	}

	if entities.IsMissing(f.Rain) {
		if !r.policy.RainMissingIsZero {
			return f, &simerr.ForcingGapError{Day: int(d), Variable: "rain"}
		}
		f.Rain = 0
		f.Substituted = append(f.Substituted, "rain")
	}

	if entities.IsMissing(f.CO2) || f.CO2 <= 0 {
		if !r.policy.CO2Baseline {
			return f, &simerr.ForcingGapError{Day: int(d), Variable: "CO2"}
		}
		f.CO2 = r.co2.At(d)
	}

	if f.ETo < 0 {
		f.ETo = 0
	}
	if f.Rain < 0 {
		f.Rain = 0
	}
	return f, nil
}
