package entities

// Field represents the tract of land a simulation run describes.
type Field struct {
	ID        string  `json:"id" yaml:"id" toml:"id"`       // unique field identifier
	Name      string  `json:"name" yaml:"name" toml:"name"` // e.g. "north plot"
	Latitude  float64 `json:"latitude" yaml:"latitude" toml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude" toml:"longitude"`
	AreaHa    float64 `json:"area_ha,omitempty" yaml:"area_ha" toml:"area_ha"` // cultivated surface [ha]
}

// HasLocation reports whether the field carries usable coordinates.
func (f Field) HasLocation() bool {
	return f.Latitude != 0 || f.Longitude != 0
}
