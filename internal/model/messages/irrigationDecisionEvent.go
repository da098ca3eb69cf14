package messages

import "time"

// IrrigationDecisionEvent is published by the simulation service for every simulated
// day on which the irrigation policy applied water.
type IrrigationDecisionEvent struct {
	RunID     string    `json:"run_id"`
	FieldID   string    `json:"field_id"`
	Day       int       `json:"day"`
	Date      string    `json:"date"`
	Stage     string    `json:"stage"`
	Method    int       `json:"method"`
	DrPct     float64   `json:"dr_pct"`   // root-zone depletion, % TAW
	GrossMM   float64   `json:"gross_mm"` // depth leaving the system
	NetMM     float64   `json:"net_mm"`   // depth reaching the soil
	SeasonMM  float64   `json:"season_mm"`
	Timestamp time.Time `json:"timestamp"`
}
