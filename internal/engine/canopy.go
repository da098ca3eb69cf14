package engine

import (
	"math"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// deadCanopy is the green cover below which a senescing crop is considered dead.
const deadCanopy = 0.001

// Canopy advances phenology, canopy cover and root depth by one day.
type Canopy struct {
	crop      entities.CropParameters
	cfg       config.SimulationConfig
	soilDepth float64
}

// NewCanopy returns the canopy model of crop on a soil of the given depth (m).
func NewCanopy(crop entities.CropParameters, cfg config.SimulationConfig, soilDepth float64) *Canopy {
	return &Canopy{crop: crop, cfg: cfg, soilDepth: soilDepth}
}

// Dormant is the canopy state outside the cropping period.
func (m *Canopy) Dormant() CanopyState {
	return CanopyState{Stage: entities.StageDormant}
}

// Sown is the canopy state on the first day of the cropping period, before any
// development.
func (m *Canopy) Sown() CanopyState {
	return CanopyState{
		Active:       true,
		Zr:           math.Min(m.crop.Zmin, m.rootLimit()),
		Stage:        entities.StageInitial,
		PSenAdjusted: m.crop.PUpSen,
	}
}

func (m *Canopy) rootLimit() float64 {
	if m.soilDepth > 0 {
		return math.Min(m.crop.Zmax, m.soilDepth)
	}
	return m.crop.Zmax
}

// Increment returns the phenological time step of a day with the given GDD.
func (m *Canopy) Increment(gdd float64) float64 {
	if m.crop.CalendarType == entities.CalendarDays {
		return 1
	}
	return gdd
}

// Advance returns the canopy state at the end of the day.
func (m *Canopy) Advance(prev CanopyState, gdd float64, stress StressCoefficients, wetTopsoil bool) CanopyState {
	s := prev
	if !s.Active {
		return s
	}
	if s.Mature {
		s.Stage = entities.StageMature
		return s
	}

	dt := m.Increment(gdd)
	s.DaysAfterPlanting++
	s.GDDCum += dt
	if !s.Germinated {
		if wetTopsoil {
			s.Germinated = true
		} else {
			s.DelayedGDD += dt
		}
	}
	t, tPrev := s.PhenoTime(), prev.PhenoTime()
	step := t - tPrev

	if s.Germinated && !s.Emerged && t >= m.crop.Emergence {
		s.Emerged = true
		s.CC = m.crop.CC0
	} else if s.Emerged {
		s = m.advanceCover(s, t, step, stress)
	}
	s.CCMaxReached = math.Max(s.CCMaxReached, s.CC)
	if s.CC > m.cfg.CCThresholdHI/100 {
		s.HIEligible = true
	}

	s.Zr = m.advanceRoots(prev.Zr, tPrev, t, stress.KsRoot)

	if t >= m.crop.Maturity {
		s.Mature = true
	}
	s.Stage = m.crop.StageAt(t, s.Emerged, s.Mature)
	return s
}

func (m *Canopy) advanceCover(s CanopyState, t, step float64, stress StressCoefficients) CanopyState {
	c := m.crop
	if t >= c.Senescence && !s.NaturalSenescence {
		s.NaturalSenescence = true
		s.SenescenceTriggered = true
		s.CCSenStart = s.CC
	}
	if !s.SenescenceTriggered && stress.KsSen < 1 {
		s.EarlySenescence = true
		s.EarlySenescenceAt = t
		s.SenescenceTriggered = true
		s.CCSenStart = s.CC
		s.PSenAdjusted = c.PUpSen * (1 - m.cfg.PSenDecreasePct/100)
	}

	if s.SenescenceTriggered {
		cdc := c.CDC
		if !s.NaturalSenescence {
			cdc *= 1 - math.Pow(stress.KsSen, 8)
		}
		s.CC = math.Min(s.CC, declineStep(s.CC, s.CCSenStart, cdc, step))
		if s.CC < deadCanopy {
			s.CC = 0
			s.Dead = true
			s.Mature = true
		}
		return s
	}

	if tPrev := t - step; tPrev < c.MaxCanopy && step > 0 {
		eff := math.Min(step, c.MaxCanopy-tPrev) * stress.KsExp
		next := growthCurve(c, growthTime(c, s.CC)+eff)
		s.CC = math.Max(s.CC, math.Min(next, c.CCx))
	}
	return s
}

// growthCurve is the canopy cover after time t since emergence without stress.
func growthCurve(c entities.CropParameters, t float64) float64 {
	if t <= 0 {
		return c.CC0
	}
	cc := c.CC0 * math.Exp(c.CGC*t)
	if cc <= c.CCx/2 {
		return cc
	}
	return math.Max(0, c.CCx-0.25*c.CCx*c.CCx/c.CC0*math.Exp(-c.CGC*t))
}

// growthTime inverts growthCurve.
func growthTime(c entities.CropParameters, cc float64) float64 {
	if cc <= c.CC0 || c.CGC <= 0 {
		return 0
	}
	if cc <= c.CCx/2 {
		return math.Log(cc/c.CC0) / c.CGC
	}
	x := (c.CCx - cc) * 4 * c.CC0 / (c.CCx * c.CCx)
	if x <= 0 {
		return math.Inf(1)
	}
	return -math.Log(x) / c.CGC
}

// declineStep moves cc along the decline curve of reference cover ref by dt.
func declineStep(cc, ref, cdc, dt float64) float64 {
	if ref <= 0 {
		return 0
	}
	if cdc <= 0 || dt <= 0 {
		return cc
	}
	k := cdc * 3.33 / (ref + 2.29)
	t := math.Log(1+20*(1-math.Min(cc, ref)/ref)) / k
	next := ref * (1 - 0.05*(math.Exp(k*(t+dt))-1))
	return math.Max(0, next)
}

// potentialRoot is the unstressed root depth at phenological time t.
func (m *Canopy) potentialRoot(t float64) float64 {
	c := m.crop
	zstart := m.cfg.RootStartPct / 100 * c.Zmin
	t0 := c.Emergence / 2
	var z float64
	switch {
	case t <= t0:
		z = zstart
	case t >= c.MaxRooting || c.MaxRooting <= t0:
		z = c.Zmax
	default:
		shape := c.RootShape
		if shape <= 0 {
			shape = 1
		}
		z = zstart + (c.Zmax-zstart)*math.Pow((t-t0)/(c.MaxRooting-t0), 1/shape)
	}
	return math.Min(math.Max(z, c.Zmin), c.Zmax)
}

func (m *Canopy) advanceRoots(zr, tPrev, t, ksRoot float64) float64 {
	inc := m.potentialRoot(t) - m.potentialRoot(tPrev)
	if inc <= 0 {
		return zr
	}
	inc *= math.Max(0, math.Min(1, ksRoot))
	inc = math.Min(inc, m.cfg.MaxRootRate/100)
	return math.Min(zr+inc, math.Max(zr, m.rootLimit()))
}
