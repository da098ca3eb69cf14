// Package irrigation decides the daily irrigation depth of the crop season.
package irrigation

import (
	"math"

	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// ecwToGramsPerLitre converts irrigation water EC (dS/m) into dissolved salt (g/L).
const ecwToGramsPerLitre = 0.64

// RootZoneWater is the water state of one root-zone compartment.
type RootZoneWater struct {
	Theta     float64
	ThetaFC   float64
	ThetaWP   float64
	Thickness float64 // m inside the root zone
}

// Situation is what the policy sees on the morning of a crop day.
type Situation struct {
	Day          entities.DayNumber
	CropStart    entities.DayNumber
	Stage        entities.Stage
	Dr           float64 // root zone depletion, mm
	TAW          float64 // root zone total available water, mm
	RootZone     []RootZoneWater
	SeasonIrr    float64 // gross mm already applied this season
	LastIrrDay   entities.DayNumber
	PreIrrigated bool
}

// Event is the irrigation applied on a day.
type Event struct {
	Day    entities.DayNumber
	Method entities.IrrigationMethod
	Gross  float64 // mm delivered at the field edge
	Net    float64 // mm reaching the soil
	// Direct water goes straight into the root zone, bypassing the surface.
	Direct bool
	// Threshold is the root-zone water content (fraction of TAW) Direct water refills to.
	Threshold float64
	ECw       float64
	Salt      float64 // g/m2 carried by the net depth
	Capped    bool
	Reason    string
}

// None reports whether no water is applied.
func (e Event) None() bool { return e.Net <= 0 }

// Decide returns the irrigation of the day under policy p.
func Decide(p entities.IrrigationPolicy, s Situation) Event {
	ev := Event{Day: s.Day, Method: p.Method, ECw: p.ECw}
	eff := p.AppEff / 100
	if eff <= 0 {
		eff = 1
	}

	var gross float64
	switch p.Method {
	case entities.IrrigationRainfed:
		ev.Reason = "rainfed"
		return ev

	case entities.IrrigationSoilMoisture:
		smt := p.SMT[entities.StageIndex(s.Stage)] / 100
		if s.TAW <= 0 || s.Dr <= (1-smt)*s.TAW {
			ev.Reason = "above soil moisture target"
			return ev
		}
		gross = s.Dr / eff
		ev.Reason = "below soil moisture target"

	case entities.IrrigationInterval:
		if p.Interval <= 0 || int(s.Day-s.CropStart)%p.Interval != 0 {
			ev.Reason = "not an irrigation day"
			return ev
		}
		if p.Depth > 0 {
			gross = p.Depth
		} else {
			gross = s.Dr / eff
		}
		ev.Reason = "interval"

	case entities.IrrigationSchedule:
		for _, e := range p.Schedule {
			if e.Day == s.Day {
				gross += e.Depth
			}
		}
		ev.Reason = "schedule"

	case entities.IrrigationNet:
		ev.Direct = true
		ev.Threshold = p.NetSMT / 100
		need := NetRequirement(s.RootZone, ev.Threshold)
		if need <= 0 {
			ev.Reason = "root zone above net target"
			return ev
		}
		ev.Reason = "net irrigation"
		if s.Day == s.CropStart && !s.PreIrrigated {
			ev.Reason = "pre-irrigation"
		}
		gross = need

	case entities.IrrigationConstantDepth:
		gross = p.Depth
		ev.Reason = "constant depth"
	}

	if gross <= 0 {
		return ev
	}
	// net irrigation is not bounded by the daily cap
	if !ev.Direct && p.MaxIrr > 0 && gross > p.MaxIrr {
		gross = p.MaxIrr
		ev.Capped = true
	}
	if p.MaxIrrSeason > 0 {
		rem := math.Max(0, p.MaxIrrSeason-s.SeasonIrr)
		if gross > rem {
			gross = rem
			ev.Capped = true
		}
	}

	ev.Gross = gross
	if ev.Direct {
		ev.Net = gross
	} else {
		ev.Net = gross * eff
	}
	ev.Salt = ev.Net * p.ECw * ecwToGramsPerLitre
	return ev
}

// NetRequirement returns the mm needed to bring every root-zone compartment up to
// the wilting point plus threshold times its available water.
func NetRequirement(rz []RootZoneWater, threshold float64) float64 {
	need := 0.0
	for _, c := range rz {
		crit := c.ThetaWP + threshold*(c.ThetaFC-c.ThetaWP)
		if c.Theta < crit {
			need += (crit - c.Theta) * 1000 * c.Thickness
		}
	}
	return need
}

// OffSeason returns the off-season irrigation of day d.
func OffSeason(o entities.OffSeason, d entities.DayNumber) Event {
	depth := o.IrrigationOn(d)
	ev := Event{Day: d, Method: entities.IrrigationSchedule, ECw: o.ECw, Reason: "off-season"}
	if depth <= 0 {
		return ev
	}
	ev.Gross, ev.Net = depth, depth
	ev.Salt = depth * o.ECw * ecwToGramsPerLitre
	return ev
}
