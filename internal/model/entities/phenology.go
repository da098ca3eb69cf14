package entities

// Stage is a growth stage of the crop.
type Stage string

const (
	StageDormant           Stage = "Dormant"
	StageInitial           Stage = "Initial"
	StageCanopyDevelopment Stage = "CanopyDevelopment"
	StageMidSeason         Stage = "MidSeason"
	StageLateSeason        Stage = "LateSeason"
	StageMature            Stage = "Mature"
)

// StageIndex maps a stage to the soil-moisture-target slot (0..3) of the irrigation policy.
func StageIndex(s Stage) int {
	switch s {
	case StageCanopyDevelopment:
		return 1
	case StageMidSeason:
		return 2
	case StageLateSeason, StageMature:
		return 3
	default:
		return 0
	}
}

// CalendarType selects the unit of the phenological thresholds.
type CalendarType int

const (
	CalendarDays CalendarType = 1 // thresholds in days after planting
	CalendarGDD  CalendarType = 2 // thresholds in growing degree days
)

// ExtractionPattern is the way transpiration withdraws water from the root zone.
type ExtractionPattern string

const (
	ExtractionUniform      ExtractionPattern = "uniform"
	ExtractionDeepestFirst ExtractionPattern = "deepest-first"
)

// CropParameters holds the phenology, canopy, root, stress and yield parameters of a crop.
// Phenological thresholds are expressed in the unit selected by CalendarType.
type CropParameters struct {
	Name         string       `json:"name" yaml:"name" toml:"name"`
	CalendarType CalendarType `json:"calendar_type" yaml:"calendar_type" toml:"calendar_type"`

	Tbase float64 `json:"tbase" yaml:"tbase" toml:"tbase"` // °C
	Tupp  float64 `json:"tupp" yaml:"tupp" toml:"tupp"`    // °C
	GDDUp float64 `json:"gdd_up" yaml:"gdd_up" toml:"gdd_up"` // daily GDD for no cold stress on biomass
	GDDLo float64 `json:"gdd_lo" yaml:"gdd_lo" toml:"gdd_lo"` // daily GDD for full cold stress

	Emergence      float64 `json:"emergence" yaml:"emergence" toml:"emergence"`
	MaxRooting     float64 `json:"max_rooting" yaml:"max_rooting" toml:"max_rooting"`
	MaxCanopy      float64 `json:"max_canopy" yaml:"max_canopy" toml:"max_canopy"`
	Senescence     float64 `json:"senescence" yaml:"senescence" toml:"senescence"`
	Maturity       float64 `json:"maturity" yaml:"maturity" toml:"maturity"`
	HIStart        float64 `json:"hi_start" yaml:"hi_start" toml:"hi_start"`
	YieldFormation float64 `json:"yield_formation" yaml:"yield_formation" toml:"yield_formation"`

	CC0 float64 `json:"cc0" yaml:"cc0" toml:"cc0"` // canopy cover at emergence
	CCx float64 `json:"ccx" yaml:"ccx" toml:"ccx"` // maximum canopy cover
	CGC float64 `json:"cgc" yaml:"cgc" toml:"cgc"` // canopy growth coefficient per unit time
	CDC float64 `json:"cdc" yaml:"cdc" toml:"cdc"` // canopy decline coefficient per unit time

	Zmin      float64 `json:"zmin" yaml:"zmin" toml:"zmin"` // m
	Zmax      float64 `json:"zmax" yaml:"zmax" toml:"zmax"` // m
	RootShape float64 `json:"root_shape" yaml:"root_shape" toml:"root_shape"`

	KcTrx float64 `json:"kc_trx" yaml:"kc_trx" toml:"kc_trx"` // crop transpiration coefficient at full cover

	PUpExp   float64 `json:"p_up_exp" yaml:"p_up_exp" toml:"p_up_exp"`
	PLoExp   float64 `json:"p_lo_exp" yaml:"p_lo_exp" toml:"p_lo_exp"`
	ShapeExp float64 `json:"shape_exp" yaml:"shape_exp" toml:"shape_exp"`
	PUpSto   float64 `json:"p_up_sto" yaml:"p_up_sto" toml:"p_up_sto"`
	ShapeSto float64 `json:"shape_sto" yaml:"shape_sto" toml:"shape_sto"`
	PUpSen   float64 `json:"p_up_sen" yaml:"p_up_sen" toml:"p_up_sen"`
	ShapeSen float64 `json:"shape_sen" yaml:"shape_sen" toml:"shape_sen"`
	Aer      float64 `json:"aer" yaml:"aer" toml:"aer"` // anaerobiosis point, vol% below saturation

	WP    float64 `json:"wp" yaml:"wp" toml:"wp"`       // normalized water productivity, g/m2
	WPy   float64 `json:"wpy" yaml:"wpy" toml:"wpy"`    // WP during yield formation, % of WP
	HI0   float64 `json:"hi0" yaml:"hi0" toml:"hi0"`    // reference harvest index
	HIini float64 `json:"hi_ini" yaml:"hi_ini" toml:"hi_ini"`

	Extraction ExtractionPattern `json:"extraction" yaml:"extraction" toml:"extraction"`
}

// MaizeGDD returns a reference maize parameter set in thermal time.
func MaizeGDD() CropParameters {
	return CropParameters{
		Name:           "Maize",
		CalendarType:   CalendarGDD,
		Tbase:          8,
		Tupp:           30,
		GDDUp:          12,
		GDDLo:          0,
		Emergence:      80,
		MaxRooting:     1420,
		MaxCanopy:      1100,
		Senescence:     1420,
		Maturity:       1700,
		HIStart:        850,
		YieldFormation: 750,
		CC0:            0.0072,
		CCx:            0.96,
		CGC:            0.01237,
		CDC:            0.01,
		Zmin:           0.3,
		Zmax:           1.7,
		RootShape:      1.3,
		KcTrx:          1.05,
		PUpExp:         0.14,
		PLoExp:         0.72,
		ShapeExp:       2.9,
		PUpSto:         0.69,
		ShapeSto:       6,
		PUpSen:         0.69,
		ShapeSen:       2.7,
		Aer:            5,
		WP:             33.7,
		WPy:            100,
		HI0:            0.48,
		HIini:          0.01,
		Extraction:     ExtractionUniform,
	}
}

// StageAt returns the growth stage reached at phenological time t.
func (c CropParameters) StageAt(t float64, emerged, mature bool) Stage {
	switch {
	case mature || t >= c.Maturity:
		return StageMature
	case !emerged || t < c.Emergence:
		return StageInitial
	case t < c.MaxCanopy:
		return StageCanopyDevelopment
	case t < c.Senescence:
		return StageMidSeason
	default:
		return StageLateSeason
	}
}
