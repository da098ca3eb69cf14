package engine

import (
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// Hydraulics are the static soil properties of a compartment.
type Hydraulics struct {
	ThetaSat float64
	ThetaFC  float64
	ThetaWP  float64
	Ksat     float64 // mm/day
	Tau      float64
	CapA     float64
	CapB     float64
}

// AirDry is the lowest water content soil evaporation can reach.
func (h Hydraulics) AirDry() float64 { return h.ThetaWP / 2 }

// Compartment is one discretised slice of the soil profile.
// Salt pools are masses in g per m2 of surface.
type Compartment struct {
	Top        float64 // m below surface
	Thickness  float64 // m
	Layer      int
	Soil       Hydraulics
	Theta      float64
	SaltMobile float64
	SaltMicro  float64
	SaltSolid  float64
	InRootZone bool
}

// Bottom returns the depth of the lower boundary.
func (c Compartment) Bottom() float64 { return c.Top + c.Thickness }

// Mid returns the depth of the compartment centre.
func (c Compartment) Mid() float64 { return c.Top + c.Thickness/2 }

// Water returns the stored water in mm.
func (c Compartment) Water() float64 { return c.Theta * c.Thickness * 1000 }

// Salinity returns the dissolved salt concentration in g/L.
func (c Compartment) Salinity() float64 {
	v := c.Water()
	if v <= 0 {
		return 0
	}
	return (c.SaltMobile + c.SaltMicro) / v
}

// CanopyState is the crop development part of the daily state.
type CanopyState struct {
	Active            bool // inside the cropping period
	CC                float64
	CCMaxReached      float64
	Zr                float64 // m
	GDDCum            float64 // thermal or calendar time since planting, delays included
	DaysAfterPlanting int
	DelayedGDD        float64 // time lost waiting for germination
	Germinated        bool
	Emerged           bool
	Stage             entities.Stage

	SenescenceTriggered bool
	EarlySenescence     bool
	EarlySenescenceAt   float64 // phenological time of the early trigger
	NaturalSenescence   bool
	PSenAdjusted        float64 // upper depletion threshold of early senescence
	CCSenStart          float64 // reference cover of the decline curve
	HIEligible          bool
	Mature              bool
	Dead                bool
}

// PhenoTime returns phenological time: accumulated time minus the germination delay.
func (c CanopyState) PhenoTime() float64 { return c.GDDCum - c.DelayedGDD }

// Totals accumulate the water and salt fluxes since the first simulated day.
type Totals struct {
	Rain          float64
	Irrigation    float64
	Runoff        float64
	Infiltration  float64
	Drainage      float64
	CapillaryRise float64
	Evaporation   float64
	Transpiration float64
	SaltIn        float64
	SaltOut       float64
}

// WaterBalanceState is the soil water and salt part of the daily state.
type WaterBalanceState struct {
	Compartments []Compartment
	Ponding      float64 // mm stored behind bunds
	PondingSalt  float64 // g/m2 dissolved in the ponded water
	Stage1Left   float64 // readily evaporable water left, mm
	AerationDays int     // consecutive days with a waterlogged root zone

	SeasonIrrigation float64 // gross mm applied in the current cropping period
	LastIrrigation   entities.DayNumber

	Totals Totals
}

// Clone returns a deep copy.
func (w WaterBalanceState) Clone() WaterBalanceState {
	out := w
	out.Compartments = append([]Compartment(nil), w.Compartments...)
	return out
}

// StressCoefficients are the crop stress responses of one day, each in [0, 1].
type StressCoefficients struct {
	KsExp    float64 // canopy expansion
	KsSto    float64 // stomatal closure
	KsSen    float64 // early canopy senescence
	KsAer    float64 // aeration deficit
	Aeration bool    // aeration deficit fully effective
	KsTemp   float64 // cold stress on biomass
	KsRoot   float64 // root expansion

	Dr   float64 // root zone depletion, mm
	TAW  float64 // root zone total available water, mm
	Drel float64
}

// NoStress has every coefficient at 1.
func NoStress() StressCoefficients {
	return StressCoefficients{KsExp: 1, KsSto: 1, KsSen: 1, KsAer: 1, KsTemp: 1, KsRoot: 1}
}

// YieldState is the biomass and harvest index part of the daily state.
type YieldState struct {
	Biomass   float64 // g/m2
	HI        float64
	HIFrozen  bool
	Yield     float64 // t/ha
	Harvested bool
}

// DayState is the full model state at the end of a day. Components return new
// values and never keep state between days.
type DayState struct {
	Day    entities.DayNumber
	Water  WaterBalanceState
	Canopy CanopyState
	Yield  YieldState
}

// Clone returns a deep copy.
func (s DayState) Clone() DayState {
	out := s
	out.Water = s.Water.Clone()
	return out
}

// DailyRecord is the immutable snapshot reported for every simulated day.
type DailyRecord struct {
	Day   entities.DayNumber
	Stage entities.Stage

	Tmin, Tmax  float64
	ETo         float64
	CO2         float64
	Substituted []string

	GDD     float64
	GDDCum  float64
	CC      float64
	Zr      float64
	Biomass float64
	HI      float64
	Yield   float64

	Stress StressCoefficients
	Fluxes DayFluxes

	Ponding  float64
	Theta    []float64
	Salinity []float64
}
