package entities

// IrrigationMethod selects how the irrigation policy decides daily depths.
type IrrigationMethod int

const (
	IrrigationRainfed       IrrigationMethod = 0 // no irrigation
	IrrigationSoilMoisture  IrrigationMethod = 1 // soil moisture targets per growth stage
	IrrigationInterval      IrrigationMethod = 2 // fixed interval in days
	IrrigationSchedule      IrrigationMethod = 3 // predefined schedule
	IrrigationNet           IrrigationMethod = 4 // net irrigation, root zone kept above NetSMT
	IrrigationConstantDepth IrrigationMethod = 5 // same depth every day
)

// ScheduledIrrigation is a single dated irrigation of a predefined schedule.
type ScheduledIrrigation struct {
	Day   DayNumber `json:"day" yaml:"day" toml:"day"`
	Depth float64   `json:"depth_mm" yaml:"depth_mm" toml:"depth_mm"`
}

// IrrigationPolicy is the irrigation strategy of the management plan.
type IrrigationPolicy struct {
	Method   IrrigationMethod      `json:"method" yaml:"method" toml:"method"`
	SMT      [4]float64            `json:"smt_pct" yaml:"smt_pct" toml:"smt_pct"` // % TAW per stage slot
	Interval int                   `json:"interval_days" yaml:"interval_days" toml:"interval_days"`
	Schedule []ScheduledIrrigation `json:"schedule" yaml:"schedule" toml:"schedule"`
	NetSMT   float64               `json:"net_smt_pct" yaml:"net_smt_pct" toml:"net_smt_pct"` // % TAW
	Depth    float64               `json:"depth_mm" yaml:"depth_mm" toml:"depth_mm"`          // method 2 and 5 depth

	AppEff       float64 `json:"app_eff_pct" yaml:"app_eff_pct" toml:"app_eff_pct"`          // application efficiency %
	MaxIrr       float64 `json:"max_irr_mm" yaml:"max_irr_mm" toml:"max_irr_mm"`             // per day
	MaxIrrSeason float64 `json:"max_season_mm" yaml:"max_season_mm" toml:"max_season_mm"`    // per season
	ECw          float64 `json:"ecw_ds_m" yaml:"ecw_ds_m" toml:"ecw_ds_m"`                   // irrigation water salinity
}

// DefaultIrrigationPolicy is a rainfed policy with the usual caps.
func DefaultIrrigationPolicy() IrrigationPolicy {
	return IrrigationPolicy{
		Method:       IrrigationRainfed,
		NetSMT:       80,
		AppEff:       100,
		MaxIrr:       25,
		MaxIrrSeason: 10000,
	}
}
