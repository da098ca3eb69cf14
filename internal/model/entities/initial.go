package entities

// WaterPreset seeds every compartment at a characteristic water content.
type WaterPreset string

const (
	PresetFieldCapacity WaterPreset = "FC"
	PresetWiltingPoint  WaterPreset = "WP"
	PresetSaturation    WaterPreset = "SAT"
)

// InitialPoint sets water content and salinity down to Depth (m).
type InitialPoint struct {
	Depth    float64 `json:"depth_m" yaml:"depth_m" toml:"depth_m"`
	Theta    float64 `json:"theta" yaml:"theta" toml:"theta"`
	Salinity float64 `json:"salinity_g_l" yaml:"salinity_g_l" toml:"salinity_g_l"`
}

// InitialConditions describes the soil water and salt at the first simulated day.
// When Points is empty the Preset applies to the whole profile.
type InitialConditions struct {
	Preset WaterPreset    `json:"preset" yaml:"preset" toml:"preset"`
	Points []InitialPoint `json:"points" yaml:"points" toml:"points"`
}

// At returns the water content and salinity for a compartment centred at depth z
// in the given layer. ok is false when neither points nor a preset apply.
func (ic InitialConditions) At(z float64, layer SoilLayer) (theta, salinity float64, ok bool) {
	for _, p := range ic.Points {
		if z <= p.Depth {
			return p.Theta, p.Salinity, true
		}
	}
	if n := len(ic.Points); n > 0 {
		p := ic.Points[n-1]
		return p.Theta, p.Salinity, true
	}
	switch ic.Preset {
	case PresetWiltingPoint:
		return layer.ThetaWP, 0, true
	case PresetSaturation:
		return layer.ThetaSat, 0, true
	case PresetFieldCapacity:
		return layer.ThetaFC, 0, true
	}
	return 0, 0, false
}
