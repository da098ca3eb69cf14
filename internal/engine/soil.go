package engine

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/LeonardoBeccarini/cropsim/internal/irrigation"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// Compartments discretises the profile and seeds water and salt from the initial
// conditions. A nil ic starts the profile at field capacity.
func Compartments(soil entities.SoilProfile, ic *entities.InitialConditions) []Compartment {
	thick := soil.CompartmentThicknesses()
	out := make([]Compartment, len(thick))
	top := 0.0
	for i, dz := range thick {
		li := soil.LayerAt(top + dz/2)
		l := soil.Layers[li]
		a, b := l.CapillaryParams()
		c := Compartment{
			Top:       top,
			Thickness: dz,
			Layer:     li,
			Soil: Hydraulics{
				ThetaSat: l.ThetaSat,
				ThetaFC:  l.ThetaFC,
				ThetaWP:  l.ThetaWP,
				Ksat:     l.Ksat,
				Tau:      l.DrainageTau(),
				CapA:     a,
				CapB:     b,
			},
			Theta: l.ThetaFC,
		}
		if ic != nil {
			if theta, sal, ok := ic.At(c.Mid(), l); ok {
				c.Theta = math.Max(0, math.Min(theta, l.ThetaSat))
				salt := sal * c.Water()
				vmic, vmob := poolVolumes(c)
				if vmic+vmob > 0 {
					c.SaltMicro = salt * vmic / (vmic + vmob)
					c.SaltMobile = salt - c.SaltMicro
				}
			}
		}
		out[i] = c
		top += dz
	}
	return out
}

// rootZone summarises the water of the compartments above depth zr.
type rootZone struct {
	Wr, Wfc, Wwp, Wsat, Waer float64 // mm
	Depth                    float64
}

// fractionIn returns the part of compartment c above depth z.
func fractionIn(c Compartment, z float64) float64 {
	if z <= c.Top {
		return 0
	}
	return math.Min(1, (z-c.Top)/c.Thickness)
}

func measureRootZone(comps []Compartment, zr, aer float64) rootZone {
	var rz rootZone
	n := len(comps)
	wr := make([]float64, 0, n)
	wfc := make([]float64, 0, n)
	wwp := make([]float64, 0, n)
	wsat := make([]float64, 0, n)
	waer := make([]float64, 0, n)
	for _, c := range comps {
		f := fractionIn(c, zr)
		if f <= 0 {
			break
		}
		mm := f * c.Thickness * 1000
		wr = append(wr, c.Theta*mm)
		wfc = append(wfc, c.Soil.ThetaFC*mm)
		wwp = append(wwp, c.Soil.ThetaWP*mm)
		wsat = append(wsat, c.Soil.ThetaSat*mm)
		waer = append(waer, math.Max(c.Soil.ThetaSat-aer/100, c.Soil.ThetaFC)*mm)
		rz.Depth += f * c.Thickness
	}
	rz.Wr, rz.Wfc, rz.Wwp = floats.Sum(wr), floats.Sum(wfc), floats.Sum(wwp)
	rz.Wsat, rz.Waer = floats.Sum(wsat), floats.Sum(waer)
	return rz
}

// Depletion returns Dr and TAW (mm) of the root zone.
func (rz rootZone) Depletion() (dr, taw float64) {
	taw = math.Max(rz.Wfc-rz.Wwp, 0)
	dr = math.Max(rz.Wfc-rz.Wr, 0)
	return dr, taw
}

// rootZoneWater lists the root-zone compartments for the irrigation policy.
func rootZoneWater(comps []Compartment, zr float64) []irrigation.RootZoneWater {
	var out []irrigation.RootZoneWater
	for _, c := range comps {
		f := fractionIn(c, zr)
		if f <= 0 {
			break
		}
		out = append(out, irrigation.RootZoneWater{
			Theta:     c.Theta,
			ThetaFC:   c.Soil.ThetaFC,
			ThetaWP:   c.Soil.ThetaWP,
			Thickness: f * c.Thickness,
		})
	}
	return out
}

// markRootZone flags the compartments reached by roots.
func markRootZone(comps []Compartment, zr float64) {
	for i := range comps {
		comps[i].InRootZone = fractionIn(comps[i], zr) > 0
	}
}

func profileDepth(comps []Compartment) float64 {
	if len(comps) == 0 {
		return 0
	}
	return comps[len(comps)-1].Bottom()
}
