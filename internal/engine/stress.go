package engine

import (
	"math"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// Stresses derives the stress coefficients of the day from the water and canopy
// state. It has no side effects.
func Stresses(water WaterBalanceState, canopy CanopyState, crop entities.CropParameters,
	cfg config.SimulationConfig, eto, gdd float64) StressCoefficients {

	ks := NoStress()
	ks.KsTemp = coldStress(gdd, crop.GDDLo, crop.GDDUp)
	if !canopy.Active {
		return ks
	}

	zr := math.Max(canopy.Zr, crop.Zmin)
	rz := measureRootZone(water.Compartments, zr, crop.Aer)
	ks.Dr, ks.TAW = rz.Depletion()
	if ks.TAW > 0 {
		ks.Drel = math.Min(1, ks.Dr/ks.TAW)
	}

	f := cfg.PAdjustETo
	pUpExp := adjustP(crop.PUpExp, f, eto)
	pLoExp := adjustP(crop.PLoExp, f, eto)
	pUpSto := adjustP(crop.PUpSto, f, eto)
	pSen := crop.PUpSen
	if canopy.PSenAdjusted > 0 {
		pSen = canopy.PSenAdjusted
	}
	pUpSen := adjustP(pSen, f, eto)

	ks.KsExp = ksCurve(ks.Drel, pUpExp, math.Max(pLoExp, pUpExp), crop.ShapeExp)
	ks.KsSto = ksCurve(ks.Drel, pUpSto, 1, crop.ShapeSto)
	ks.KsSen = ksCurve(ks.Drel, pUpSen, 1, crop.ShapeSen)
	ks.KsRoot = rootStress(ks.Drel, pUpSto, cfg.RootStressShape)

	ks.KsAer, ks.Aeration = aerationStress(rz, water.AerationDays, cfg.AerationDays)
	return ks
}

// adjustP shifts a depletion fraction with the evaporative demand.
func adjustP(p, f, eto float64) float64 {
	if p <= 0 || p >= 1 {
		return p
	}
	adj := p + f*0.04*(5-eto)*math.Log10(10-9*p)
	return math.Max(0, math.Min(1, adj))
}

// ksCurve returns the stress coefficient for relative depletion drel between the
// upper (no stress) and lower (full stress) thresholds.
func ksCurve(drel, pUp, pLo, shape float64) float64 {
	switch {
	case drel <= pUp:
		return 1
	case drel >= pLo || pLo <= pUp:
		return 0
	}
	srel := (drel - pUp) / (pLo - pUp)
	if shape == 0 {
		return 1 - srel
	}
	ks := 1 - (math.Exp(srel*shape)-1)/(math.Exp(shape)-1)
	return math.Max(0, math.Min(1, ks))
}

// rootStress damps root expansion once depletion passes the stomatal threshold.
func rootStress(drel, pUp, shape float64) float64 {
	if drel <= pUp {
		return 1
	}
	if pUp >= 1 {
		return 0
	}
	srel := math.Min(1, (drel-pUp)/(1-pUp))
	ks := 1 - (math.Exp(srel*shape)-1)/(math.Exp(shape)-1)
	return math.Max(0, math.Min(1, ks))
}

// aerationStress ramps to its full effect over fullDays consecutive waterlogged
// days. The flag is raised once waterlogging has lasted longer than fullDays.
func aerationStress(rz rootZone, days, fullDays int) (float64, bool) {
	if days <= 0 || rz.Wr <= rz.Waer || rz.Wsat <= rz.Waer {
		return 1, false
	}
	ksa := math.Max(0, math.Min(1, (rz.Wsat-rz.Wr)/(rz.Wsat-rz.Waer)))
	frac := 1.0
	if fullDays > 0 {
		frac = math.Min(float64(days), float64(fullDays)) / float64(fullDays)
	}
	return 1 - frac*(1-ksa), days > fullDays
}

// coldStress returns the temperature stress on biomass production from the
// daily growing degree days.
func coldStress(gdd, lo, up float64) float64 {
	if up <= lo || gdd >= up {
		return 1
	}
	if gdd <= lo {
		return 0
	}
	const ksUp, ksLo = 1.0, 0.02
	rel := (gdd - lo) / (up - lo)
	shape := -math.Log((ksLo*ksUp - 0.98*ksLo) / (0.98 * (ksUp - ksLo)))
	ks := ksUp * ksLo / (ksLo + (ksUp-ksLo)*math.Exp(-shape*rel))
	ks -= ksLo * (1 - rel)
	return math.Max(0, math.Min(1, ks))
}
