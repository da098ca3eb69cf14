package engine

import "math"

// ecToGramsPerLitre converts electrical conductivity (dS/m) into dissolved salt (g/L).
const ecToGramsPerLitre = 0.64

// poolVolumes splits the compartment water (L/m2) into the micro-pore water held
// up to field capacity and the mobile water above it.
func poolVolumes(c Compartment) (vmic, vmob float64) {
	mm := c.Thickness * 1000
	vmic = math.Min(c.Theta, c.Soil.ThetaFC) * mm
	vmob = math.Max(c.Theta-c.Soil.ThetaFC, 0) * mm
	return vmic, vmob
}

// mobileConcentration returns the concentration (g/L) of water leaving c by drainage.
func mobileConcentration(c Compartment) float64 {
	_, vmob := poolVolumes(c)
	if vmob <= 0 {
		return 0
	}
	return c.SaltMobile / vmob
}

// settleSalt diffuses salt between the pools of every compartment and keeps the
// concentration at or below the solubility limit.
func settleSalt(comps []Compartment, diffusionPct, solubility float64) {
	d := diffusionPct / 100
	for i := range comps {
		c := &comps[i]
		vmic, vmob := poolVolumes(*c)

		if vmob <= 0 {
			c.SaltMicro += c.SaltMobile
			c.SaltMobile = 0
		} else if vmic+vmob > 0 {
			total := c.SaltMobile + c.SaltMicro
			eq := total * vmic / (vmic + vmob)
			move := d * (eq - c.SaltMicro)
			c.SaltMicro += move
			c.SaltMobile -= move
		}

		v := vmic + vmob
		capacity := solubility * v
		dissolved := c.SaltMobile + c.SaltMicro
		switch {
		case dissolved > capacity:
			excess := dissolved - capacity
			fromMicro := math.Min(excess, c.SaltMicro)
			c.SaltMicro -= fromMicro
			c.SaltMobile -= excess - fromMicro
			c.SaltSolid += excess
		case c.SaltSolid > 0 && dissolved < capacity:
			back := math.Min(c.SaltSolid, capacity-dissolved)
			c.SaltSolid -= back
			c.SaltMicro += back
		}
		if c.SaltMobile < 0 {
			c.SaltMobile = 0
		}
		if c.SaltMicro < 0 {
			c.SaltMicro = 0
		}
	}
}
