package engine

import (
	"math"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/forcing"
	"github.com/LeonardoBeccarini/cropsim/internal/irrigation"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// maxCapillaryRise bounds the daily capillary rise (mm).
const maxCapillaryRise = 99

// DayFluxes are the water and salt fluxes of one day in mm (salt in g/m2).
type DayFluxes struct {
	Rain                 float64
	Irrigation           float64 // net
	IrrigationGross      float64
	Runoff               float64
	Infiltration         float64
	Drainage             float64
	CapillaryRise        float64
	CapRiseByCompartment []float64
	GroundwaterInflow    float64
	WaterTable           float64 // m, 0 without groundwater
	Evaporation          float64
	EsPot                float64
	Transpiration        float64
	TrPot                float64
	CN                   float64
	SaltIn               float64
	SaltOut              float64
}

// WaterBalance advances soil water and salt by one day.
type WaterBalance struct {
	cfg       config.SimulationConfig
	cn        float64
	rew       float64
	crop      entities.CropParameters
	mgmt      entities.ManagementPlan
	offSeason *entities.OffSeason
	gw        *entities.Groundwater
}

// NewWaterBalance returns the water balance of a field. Nil offSeason or gw
// disable off-season mulches and capillary rise.
func NewWaterBalance(cfg config.SimulationConfig, soil entities.SoilProfile, crop entities.CropParameters,
	mgmt entities.ManagementPlan, offSeason *entities.OffSeason, gw *entities.Groundwater) *WaterBalance {
	return &WaterBalance{
		cfg:       cfg,
		cn:        soil.CN,
		rew:       soil.REW,
		crop:      crop,
		mgmt:      mgmt,
		offSeason: offSeason,
		gw:        gw,
	}
}

// Initial returns the water state of the first simulated day.
func (wb *WaterBalance) Initial(comps []Compartment) WaterBalanceState {
	return WaterBalanceState{Compartments: comps, Stage1Left: wb.rew}
}

// Advance applies one day of forcing, irrigation and crop water use to prev.
func (wb *WaterBalance) Advance(prev WaterBalanceState, day entities.DayNumber, f forcing.Forcing,
	irr irrigation.Event, canopy CanopyState, stress StressCoefficients) (WaterBalanceState, DayFluxes, error) {

	st := prev.Clone()
	comps := st.Compartments
	fl := DayFluxes{Rain: f.Rain, CapRiseByCompartment: make([]float64, len(comps))}

	// runoff on rainfall, from the start-of-day wetness
	fl.CN = wb.curveNumber(comps)
	rainIn := f.Rain
	if !wb.runoffInhibited() && f.Rain > 0 {
		fl.Runoff = curveNumberRunoff(f.Rain, fl.CN)
		rainIn -= fl.Runoff
	}

	// irrigation
	surfaceIrr, surfaceSalt := 0.0, 0.0
	fl.IrrigationGross = irr.Gross
	if irr.Direct {
		fl.Irrigation = applyDirect(comps, canopy.Zr, irr.Threshold, irr.Net, irr.ECw)
		fl.SaltIn += fl.Irrigation * irr.ECw * ecToGramsPerLitre
	} else if irr.Net > 0 {
		surfaceIrr, surfaceSalt = irr.Net, irr.Salt
		fl.Irrigation = irr.Net
		fl.SaltIn += irr.Salt
	}

	// infiltration, limited by the top layer Ksat. Salt on the surface moves
	// with the water: into the soil, into the pond or off the field.
	surface := st.Ponding + rainIn + surfaceIrr
	if surface > 0 {
		conc := (st.PondingSalt + surfaceSalt) / surface
		st.PondingSalt = 0
		capacity := surface
		if len(comps) > 0 {
			capacity = math.Min(surface, comps[0].Soil.Ksat)
		}
		fl.Infiltration = infiltrate(comps, capacity, conc)

		excess := surface - fl.Infiltration
		lost := excess
		if wb.mgmt.BundsActive() {
			st.Ponding = math.Min(excess, wb.mgmt.BundHeight*1000)
			st.PondingSalt = st.Ponding * conc
			lost -= st.Ponding
		} else {
			st.Ponding = 0
		}
		fl.Runoff += lost
		fl.SaltOut += lost * conc
	}

	wetting := fl.Infiltration
	if irr.Direct {
		wetting += fl.Irrigation
	}
	switch {
	case wetting >= wb.rew:
		st.Stage1Left = wb.rew
	case wetting > 0:
		st.Stage1Left = math.Min(wb.rew, st.Stage1Left+wetting)
	}

	wb.evaporate(&st, &fl, f.ETo, canopy)
	wb.transpire(comps, &fl, f.ETo, canopy, stress)
	wb.groundwater(comps, &fl, day)
	drain(comps, &fl, fl.WaterTable)
	settleSalt(comps, wb.cfg.SaltDiffusionPct, wb.cfg.SaltSolubility)

	// aeration counter from the end-of-day root zone
	if canopy.Active && canopy.Zr > 0 {
		rz := measureRootZone(comps, canopy.Zr, wb.crop.Aer)
		if rz.Wr > rz.Waer {
			st.AerationDays++
		} else {
			st.AerationDays = 0
		}
	} else {
		st.AerationDays = 0
	}
	markRootZone(comps, canopy.Zr)

	if err := checkBounds(comps, day); err != nil {
		return st, fl, err
	}

	if canopy.Active {
		st.SeasonIrrigation += irr.Gross
	}
	if irr.Net > 0 {
		st.LastIrrigation = day
	}
	t := &st.Totals
	t.Rain += fl.Rain
	t.Irrigation += fl.Irrigation
	t.Runoff += fl.Runoff
	t.Infiltration += fl.Infiltration
	t.Drainage += fl.Drainage
	t.CapillaryRise += fl.CapillaryRise
	t.Evaporation += fl.Evaporation
	t.Transpiration += fl.Transpiration
	t.SaltIn += fl.SaltIn
	t.SaltOut += fl.SaltOut
	return st, fl, nil
}

func (wb *WaterBalance) runoffInhibited() bool {
	return wb.mgmt.SurfaceRunoffInhibited || wb.mgmt.BundsActive()
}

// curveNumber returns the curve number of the day, moved between its dry and wet
// bounds by the relative wetness of the top soil when the adjustment is enabled.
func (wb *WaterBalance) curveNumber(comps []Compartment) float64 {
	cn := wb.cn * (1 + wb.mgmt.CNAdjustPct/100)
	if !wb.cfg.AdjustCNToAMC {
		return clampCN(cn)
	}
	cnBot := math.Round(1.4e-14 + 0.507*cn - 0.00374*cn*cn + 0.0000867*cn*cn*cn)
	cnTop := math.Round(5.6e-14 + 2.33*cn - 0.0209*cn*cn + 0.000076*cn*cn*cn)
	return clampCN(math.Round(cnBot + (cnTop-cnBot)*topWetness(comps, wb.cfg.CNDepth)))
}

// topWetness is the depth-weighted relative wetness (0 at wilting point, 1 at
// field capacity) of the soil above zcn. The compartment that straddles or ends
// at zcn is included, so the weights sum to 1 (AquaCrop drops it and sums to
// less).
func topWetness(comps []Compartment, zcn float64) float64 {
	xx, wet := 0.0, 0.0
	for _, c := range comps {
		if c.Top >= zcn {
			break
		}
		dzsum := math.Min(c.Bottom(), zcn)
		wx := 1.016 * (1 - math.Exp(-4.16*dzsum/zcn))
		wrel := math.Max(0, math.Min(1, wx-xx))
		xx = wx
		h := c.Soil
		if h.ThetaFC <= h.ThetaWP {
			continue
		}
		th := math.Max(h.ThetaWP, c.Theta)
		wet += wrel * (th - h.ThetaWP) / (h.ThetaFC - h.ThetaWP)
	}
	return math.Max(0, math.Min(1, wet))
}

func clampCN(cn float64) float64 {
	return math.Max(1, math.Min(100, cn))
}

// curveNumberRunoff partitions rainfall p (mm) with the SCS curve number method.
func curveNumberRunoff(p, cn float64) float64 {
	s := 25400/cn - 254
	term := p - 0.05*s
	if term <= 0 {
		return 0
	}
	return term * term / (p + 0.95*s)
}

// infiltrate fills compartments top-down to saturation and returns the mm stored.
func infiltrate(comps []Compartment, water, conc float64) float64 {
	stored := 0.0
	for i := range comps {
		if water <= 0 {
			break
		}
		c := &comps[i]
		mm := c.Thickness * 1000
		room := math.Max(c.Soil.ThetaSat-c.Theta, 0) * mm
		add := math.Min(room, water)
		c.Theta += add / mm
		c.SaltMobile += add * conc
		water -= add
		stored += add
	}
	return stored
}

// applyDirect raises root-zone compartments towards the net irrigation threshold
// and returns the mm applied, at most net.
func applyDirect(comps []Compartment, zr, threshold, net, ecw float64) float64 {
	applied := 0.0
	for i := range comps {
		c := &comps[i]
		f := fractionIn(*c, zr)
		if f <= 0 || applied >= net {
			break
		}
		crit := c.Soil.ThetaWP + threshold*(c.Soil.ThetaFC-c.Soil.ThetaWP)
		if c.Theta >= crit {
			continue
		}
		mm := c.Thickness * 1000
		add := math.Min((crit-c.Theta)*mm, net-applied)
		c.Theta += add / mm
		c.SaltMobile += add * ecw * ecToGramsPerLitre
		applied += add
	}
	return applied
}

func (wb *WaterBalance) mulchReduction(canopy CanopyState) float64 {
	if canopy.Active {
		return wb.mgmt.EvaporationReduction()
	}
	if wb.offSeason != nil {
		return wb.offSeason.EvaporationReduction()
	}
	return 1
}

// evaporate applies two-stage soil evaporation, drawing ponded water first.
func (wb *WaterBalance) evaporate(st *WaterBalanceState, fl *DayFluxes, eto float64, canopy CanopyState) {
	cc := 0.0
	if canopy.Active {
		cc = canopy.CC
	}
	fl.EsPot = math.Max(0, wb.cfg.KeX*(1-cc)*eto*wb.mulchReduction(canopy))
	rem := fl.EsPot
	if rem <= 0 {
		return
	}

	fromPond := math.Min(st.Ponding, rem)
	st.Ponding -= fromPond
	fl.Evaporation += fromPond
	rem -= fromPond

	comps := st.Compartments
	// a dried pond leaves its salt on the surface layer
	if st.Ponding <= 0 && st.PondingSalt > 0 && len(comps) > 0 {
		comps[0].SaltMobile += st.PondingSalt
		st.PondingSalt = 0
	}

	zmax := wb.cfg.EvapZMax / 100
	if rem > 0 && st.Stage1Left > 0 {
		want := math.Min(rem, st.Stage1Left)
		got := extractEvaporation(comps, want, zmax)
		st.Stage1Left -= got
		fl.Evaporation += got
		rem -= got
		if got < want {
			return
		}
	}
	if rem > 0 {
		fwcc := wb.cfg.EvapDeclineFactor
		kr := (math.Exp(fwcc*evapLayerWrel(comps, zmax)) - 1) / (math.Exp(fwcc) - 1)
		fl.Evaporation += extractEvaporation(comps, kr*rem, zmax)
	}
}

// evapLayerWrel is the relative water content of the evaporating layer between
// air-dry and field capacity.
func evapLayerWrel(comps []Compartment, zmax float64) float64 {
	w, wdry, wfc := 0.0, 0.0, 0.0
	for _, c := range comps {
		if c.Top >= zmax {
			break
		}
		mm := c.Thickness * 1000
		w += c.Theta * mm
		wdry += c.Soil.AirDry() * mm
		wfc += c.Soil.ThetaFC * mm
	}
	if wfc <= wdry {
		return 0
	}
	return math.Max(0, math.Min(1, (w-wdry)/(wfc-wdry)))
}

// extractEvaporation removes up to want mm top-down from the evaporating layer,
// never below air-dry, and returns the mm removed.
func extractEvaporation(comps []Compartment, want, zmax float64) float64 {
	got := 0.0
	for i := range comps {
		c := &comps[i]
		if c.Top >= zmax || got >= want {
			break
		}
		mm := c.Thickness * 1000
		avail := math.Max(c.Theta-c.Soil.AirDry(), 0) * mm
		take := math.Min(avail, want-got)
		c.Theta -= take / mm
		got += take
	}
	return got
}

// transpire withdraws crop transpiration from the root zone.
func (wb *WaterBalance) transpire(comps []Compartment, fl *DayFluxes, eto float64, canopy CanopyState, stress StressCoefficients) {
	if !canopy.Active || !canopy.Emerged || canopy.Mature || canopy.CC <= 0 || canopy.Zr <= 0 {
		return
	}
	cc := canopy.CC
	ccStar := math.Max(0, 1.72*cc-cc*cc+0.3*cc*cc*cc)
	trPot := wb.crop.KcTrx * ccStar * eto
	if canopy.SenescenceTriggered && canopy.CCMaxReached > 0 {
		trPot *= math.Pow(math.Min(1, cc/canopy.CCMaxReached), wb.cfg.SenescenceExponent)
	}
	fl.TrPot = math.Max(0, trPot)
	want := fl.TrPot * stress.KsSto * stress.KsAer
	if want <= 0 {
		return
	}
	fl.Transpiration = extractTranspiration(comps, canopy.Zr, want, wb.crop.Extraction)
}

func extractTranspiration(comps []Compartment, zr, want float64, pattern entities.ExtractionPattern) float64 {
	avail := make([]float64, len(comps))
	total := 0.0
	for i, c := range comps {
		f := fractionIn(c, zr)
		if f <= 0 {
			break
		}
		avail[i] = math.Max(c.Theta-c.Soil.ThetaWP, 0) * c.Thickness * 1000 * f
		total += avail[i]
	}
	if total <= 0 {
		return 0
	}
	want = math.Min(want, total)

	take := func(i int, mm float64) {
		comps[i].Theta -= mm / (comps[i].Thickness * 1000)
	}
	if pattern == entities.ExtractionDeepestFirst {
		left := want
		for i := len(comps) - 1; i >= 0 && left > 0; i-- {
			t := math.Min(avail[i], left)
			if t > 0 {
				take(i, t)
				left -= t
			}
		}
		return want - left
	}
	for i := range avail {
		if avail[i] > 0 {
			take(i, want*avail[i]/total)
		}
	}
	return want
}

// groundwater holds compartments under the water table at saturation and
// distributes capillary rise bottom-up above it.
func (wb *WaterBalance) groundwater(comps []Compartment, fl *DayFluxes, day entities.DayNumber) {
	if wb.gw == nil {
		return
	}
	zgw, ec, ok := wb.gw.On(day)
	if !ok || zgw <= 0 {
		return
	}
	fl.WaterTable = zgw
	conc := ec * ecToGramsPerLitre

	above := -1
	for i := range comps {
		c := &comps[i]
		if c.Mid() >= zgw {
			mm := c.Thickness * 1000
			add := math.Max(c.Soil.ThetaSat-c.Theta, 0) * mm
			c.Theta = math.Max(c.Theta, c.Soil.ThetaSat)
			c.SaltMobile += add * conc
			fl.GroundwaterInflow += add
			fl.SaltIn += add * conc
			continue
		}
		above = i
	}
	if above < 0 {
		return
	}

	a, b := comps[above].Soil.CapA, comps[above].Soil.CapB
	if a >= 0 {
		return
	}
	remaining := math.Min(math.Exp((math.Log(zgw)-b)/a), maxCapillaryRise)
	shape := wb.cfg.CapRiseShape
	for i := above; i >= 0 && remaining > 1e-9; i-- {
		c := &comps[i]
		h := c.Soil
		if c.Theta >= h.ThetaFC || h.ThetaFC <= h.ThetaWP {
			continue
		}
		wrel := math.Max(0, math.Min(1, (c.Theta-h.ThetaWP)/(h.ThetaFC-h.ThetaWP)))
		mm := c.Thickness * 1000
		room := (1 - math.Pow(wrel, shape)) * (h.ThetaFC - c.Theta) * mm
		add := math.Min(remaining, room)
		if add <= 0 {
			continue
		}
		c.Theta += add / mm
		c.SaltMobile += add * conc
		fl.CapRiseByCompartment[i] = add
		fl.CapillaryRise += add
		fl.SaltIn += add * conc
		remaining -= add
	}
}

// drainability returns the daily drainage (m3/m3) of a compartment at theta.
func drainability(h Hydraulics, theta float64) float64 {
	if theta <= h.ThetaFC || h.ThetaSat <= h.ThetaFC {
		return 0
	}
	if h.Tau >= 1 {
		return theta - h.ThetaFC
	}
	return h.Tau * (h.ThetaSat - h.ThetaFC) * (math.Exp(theta-h.ThetaFC) - 1) / (math.Exp(h.ThetaSat-h.ThetaFC) - 1)
}

// drain moves water above field capacity downwards. Water reaching the water
// table (zgw > 0) or the profile bottom leaves as deep percolation.
func drain(comps []Compartment, fl *DayFluxes, zgw float64) {
	incoming, inSalt := 0.0, 0.0
	for i := range comps {
		c := &comps[i]
		if zgw > 0 && c.Mid() >= zgw {
			break
		}
		mm := c.Thickness * 1000
		c.Theta += incoming / mm
		c.SaltMobile += inSalt

		out := 0.0
		if c.Theta > c.Soil.ThetaFC {
			out = math.Min(drainability(c.Soil, c.Theta), c.Theta-c.Soil.ThetaFC) * mm
			if c.Theta > c.Soil.ThetaSat {
				out = math.Max(out, (c.Theta-c.Soil.ThetaSat)*mm)
			}
		}
		saltOut := 0.0
		if out > 0 {
			saltOut = math.Min(mobileConcentration(*c)*out, c.SaltMobile)
			c.Theta -= out / mm
			c.SaltMobile -= saltOut
		}
		incoming, inSalt = out, saltOut
	}
	fl.Drainage = incoming
	fl.SaltOut += inSalt
}

// checkBounds snaps water contents within epsilon of their bounds and reports
// anything further out.
func checkBounds(comps []Compartment, day entities.DayNumber) error {
	for i := range comps {
		c := &comps[i]
		switch {
		case c.Theta < -epsilon:
			return &NumericalInstabilityError{Day: int(day), Compartment: i, Quantity: "theta", Value: c.Theta, Bound: 0}
		case c.Theta > c.Soil.ThetaSat+epsilon:
			return &NumericalInstabilityError{Day: int(day), Compartment: i, Quantity: "theta", Value: c.Theta, Bound: c.Soil.ThetaSat}
		case c.Theta < 0:
			c.Theta = 0
		case c.Theta > c.Soil.ThetaSat:
			c.Theta = c.Soil.ThetaSat
		}
	}
	return nil
}

// TopsoilWetEnoughForGermination reports whether the top soil holds enough of
// its available water for the seeds to germinate.
func TopsoilWetEnoughForGermination(w WaterBalanceState, cfg config.SimulationConfig) bool {
	z := cfg.GerminationDepth / 100
	wr, wfc, wwp := 0.0, 0.0, 0.0
	for _, c := range w.Compartments {
		f := fractionIn(c, z)
		if f <= 0 {
			break
		}
		mm := f * c.Thickness * 1000
		wr += c.Theta * mm
		wfc += c.Soil.ThetaFC * mm
		wwp += c.Soil.ThetaWP * mm
	}
	if wfc <= wwp {
		return true
	}
	return (wr-wwp)/(wfc-wwp) >= cfg.GerminationTAWPct/100
}
