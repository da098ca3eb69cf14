package engine

import (
	"math"

	"github.com/LeonardoBeccarini/cropsim/internal/forcing"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// Yield accumulates biomass and the harvest index.
type Yield struct {
	crop      entities.CropParameters
	weedShare float64
}

// NewYield returns the yield accumulator of crop. weedCoverPct removes that
// share of the biomass production.
func NewYield(crop entities.CropParameters, weedCoverPct float64) *Yield {
	return &Yield{crop: crop, weedShare: math.Max(0, math.Min(1, weedCoverPct/100))}
}

// CO2Factor returns the water productivity multiplier of atmospheric CO2 (ppm).
func CO2Factor(co2 float64) float64 {
	if co2 <= 0 {
		return 1
	}
	return (co2 / forcing.ReferenceCO2) / (1 + (co2-forcing.ReferenceCO2)*0.000138)
}

// Advance adds the biomass of the day and updates the harvest index.
func (y *Yield) Advance(prev YieldState, canopy CanopyState, stress StressCoefficients, fl DayFluxes, f forcing.Forcing) YieldState {
	s := prev
	if !canopy.Active || s.Harvested {
		return s
	}
	c := y.crop
	t := canopy.PhenoTime()

	if f.ETo > 0 && fl.Transpiration > 0 {
		wp := c.WP
		if t >= c.HIStart && c.WPy > 0 {
			wp *= c.WPy / 100
		}
		db := stress.KsTemp * wp * CO2Factor(f.CO2) * fl.Transpiration / f.ETo
		s.Biomass += math.Max(0, db*(1-y.weedShare))
	}

	if canopy.HIEligible && !s.HIFrozen && t >= c.HIStart {
		end := c.HIStart + c.YieldFormation
		at := canopy.EarlySenescenceAt
		switch {
		case canopy.EarlySenescence && at < c.HIStart:
			// senesced before flowering: the harvest index never builds
			s.HI = y.harvestIndex(0)
			s.HIFrozen = true
		case canopy.EarlySenescence && at < end && prev.HI > 0:
			s.HIFrozen = true
		default:
			s.HI = math.Max(s.HI, y.harvestIndex(t-c.HIStart))
		}
	}
	s.Yield = s.Biomass * s.HI / 100
	return s
}

// harvestIndex is the logistic harvest index after time dt into yield formation.
// It reaches 98 % of HI0 at the end of the yield formation window.
func (y *Yield) harvestIndex(dt float64) float64 {
	c := y.crop
	if c.HI0 <= 0 {
		return 0
	}
	ini := math.Min(c.HIini, c.HI0)
	if ini <= 0 || c.YieldFormation <= 0 {
		return c.HI0
	}
	if ini >= 0.98*c.HI0 {
		return c.HI0
	}
	g := -math.Log(ini*(1/0.98-1)/(c.HI0-ini)) / c.YieldFormation
	hi := ini * c.HI0 / (ini + (c.HI0-ini)*math.Exp(-g*dt))
	return math.Min(hi, c.HI0)
}

// Harvest marks the yield final.
func (y *Yield) Harvest(s YieldState) YieldState {
	s.Harvested = true
	s.Yield = s.Biomass * s.HI / 100
	return s
}
