package messages

import "time"

// DailyRecordEvent carries one simulated day of a run.
type DailyRecordEvent struct {
	RunID   string `json:"run_id"`
	FieldID string `json:"field_id"`
	Day     int    `json:"day"`
	Date    string `json:"date"`
	Stage   string `json:"stage"`

	CC      float64 `json:"cc"`
	Zr      float64 `json:"zr_m"`
	GDD     float64 `json:"gdd"`
	GDDCum  float64 `json:"gdd_cum"`
	Biomass float64 `json:"biomass_t_ha"`
	HI      float64 `json:"hi"`
	Yield   float64 `json:"yield_t_ha"`

	KsExp    float64 `json:"ks_exp"`
	KsSto    float64 `json:"ks_sto"`
	KsSen    float64 `json:"ks_sen"`
	KsTemp   float64 `json:"ks_temp"`
	Aeration bool    `json:"aeration"`

	Rain          float64 `json:"rain_mm"`
	Irrigation    float64 `json:"irrigation_mm"`
	Runoff        float64 `json:"runoff_mm"`
	Infiltration  float64 `json:"infiltration_mm"`
	Drainage      float64 `json:"drainage_mm"`
	CapillaryRise float64 `json:"capillary_rise_mm"`
	Evaporation   float64 `json:"evaporation_mm"`
	Transpiration float64 `json:"transpiration_mm"`

	Theta    []float64 `json:"theta"`
	Salinity []float64 `json:"salinity_g_l"`

	Timestamp time.Time `json:"timestamp"`
}
