package messages

import "time"

// RunResultEvent is published at the end (or failure) of a simulation run.
type RunResultEvent struct {
	RunID      string    `json:"run_id"`
	FieldID    string    `json:"field_id"`
	Status     string    `json:"status"` // "OK" | "FAIL" | "CANCELLED"
	Reason     string    `json:"reason,omitempty"`
	Days       int       `json:"days"`
	LastDay    int       `json:"last_day"`
	Biomass    float64   `json:"biomass_t_ha"`
	HI         float64   `json:"hi"`
	Yield      float64   `json:"yield_t_ha"`
	Irrigation float64   `json:"irrigation_mm"`
	Runoff     float64   `json:"runoff_mm"`
	Drainage   float64   `json:"drainage_mm"`
	ET         float64   `json:"et_mm"`
	StartedAt  time.Time `json:"started_at"`
	Timestamp  time.Time `json:"timestamp"`
}
