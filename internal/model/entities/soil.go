package entities

import "math"

// TextureClass groups soils for the capillary rise parameters.
type TextureClass string

const (
	TextureSandy       TextureClass = "sandy"
	TextureLoamy       TextureClass = "loamy"
	TextureSandyClayey TextureClass = "sandy-clayey"
	TextureSiltyClayey TextureClass = "silty-clayey"
)

// SoilLayer is one horizon of the soil profile.
type SoilLayer struct {
	Name      string       `json:"name" yaml:"name" toml:"name"`
	Thickness float64      `json:"thickness_m" yaml:"thickness_m" toml:"thickness_m"` // m
	ThetaSat  float64      `json:"theta_sat" yaml:"theta_sat" toml:"theta_sat"`       // m3/m3
	ThetaFC   float64      `json:"theta_fc" yaml:"theta_fc" toml:"theta_fc"`          // m3/m3
	ThetaWP   float64      `json:"theta_wp" yaml:"theta_wp" toml:"theta_wp"`          // m3/m3
	Ksat      float64      `json:"ksat_mm_day" yaml:"ksat_mm_day" toml:"ksat_mm_day"` // mm/day
	Tau       float64      `json:"tau,omitempty" yaml:"tau" toml:"tau"`               // drainage characteristic, 1 = instantaneous
	Texture   TextureClass `json:"texture,omitempty" yaml:"texture" toml:"texture"`

	// capillary rise parameters; zero means derived from Texture and Ksat
	CapRiseA float64 `json:"cr_a,omitempty" yaml:"cr_a" toml:"cr_a"`
	CapRiseB float64 `json:"cr_b,omitempty" yaml:"cr_b" toml:"cr_b"`
}

// TAW returns total available water of the layer per metre of depth (m3/m3).
func (l SoilLayer) TAW() float64 { return l.ThetaFC - l.ThetaWP }

// DrainageTau returns tau, deriving it from Ksat when not given.
func (l SoilLayer) DrainageTau() float64 {
	if l.Tau > 0 {
		return math.Min(l.Tau, 1)
	}
	if l.Ksat <= 0 {
		return 0
	}
	tau := 0.0866 * math.Pow(l.Ksat, 0.35)
	return math.Max(0, math.Min(1, math.Round(tau*100)/100))
}

// CapillaryParams returns the (a, b) pair of the capillary rise equation
// CRmax = exp((ln(zGW) - b) / a).
func (l SoilLayer) CapillaryParams() (a, b float64) {
	if l.CapRiseA != 0 || l.CapRiseB != 0 {
		return l.CapRiseA, l.CapRiseB
	}
	k := math.Max(l.Ksat, 1)
	switch l.Texture {
	case TextureSandy:
		return -0.3112 - k*1e-5, -1.4936 + 0.2416*math.Log(k)
	case TextureSandyClayey:
		return -0.5677 - k*4e-5, -3.7189 + 0.5922*math.Log(k)
	case TextureSiltyClayey:
		return -0.6366 + k*8e-4, -1.9165 + 0.7063*math.Log(k)
	default:
		return -0.4986 + k*9e-5, -2.1320 + 0.4778*math.Log(k)
	}
}

// SoilProfile is the layered description of the field soil.
type SoilProfile struct {
	Name   string      `json:"name" yaml:"name" toml:"name"`
	Layers []SoilLayer `json:"layers" yaml:"layers" toml:"layers"`

	CN  float64 `json:"cn" yaml:"cn" toml:"cn"`             // runoff curve number
	REW float64 `json:"rew_mm" yaml:"rew_mm" toml:"rew_mm"` // readily evaporable water, mm

	// Compartments lists compartment thicknesses (m), top to bottom.
	// Empty means 0.10 m compartments down to the profile depth.
	Compartments []float64 `json:"compartments_m,omitempty" yaml:"compartments_m" toml:"compartments_m"`
}

// Depth returns total profile depth in m.
func (s SoilProfile) Depth() float64 {
	d := 0.0
	for _, l := range s.Layers {
		d += l.Thickness
	}
	return d
}

// CompartmentThicknesses returns the compartment discretisation of the profile.
func (s SoilProfile) CompartmentThicknesses() []float64 {
	if len(s.Compartments) > 0 {
		out := make([]float64, len(s.Compartments))
		copy(out, s.Compartments)
		return out
	}
	depth := s.Depth()
	var out []float64
	for z := 0.0; z < depth-1e-9; z += 0.1 {
		out = append(out, math.Min(0.1, depth-z))
	}
	return out
}

// LayerAt returns the index of the layer holding depth z (m) below the surface.
func (s SoilProfile) LayerAt(z float64) int {
	top := 0.0
	for i, l := range s.Layers {
		if z < top+l.Thickness-1e-9 {
			return i
		}
		top += l.Thickness
	}
	return len(s.Layers) - 1
}

// DefaultSoilProfile is the loam profile used when no soil file is configured.
func DefaultSoilProfile() SoilProfile {
	return SoilProfile{
		Name: "default loam",
		Layers: []SoilLayer{{
			Name:      "loam",
			Thickness: 2.0,
			ThetaSat:  0.46,
			ThetaFC:   0.31,
			ThetaWP:   0.15,
			Ksat:      500,
			Texture:   TextureLoamy,
		}},
		CN:  61,
		REW: 9,
	}
}
