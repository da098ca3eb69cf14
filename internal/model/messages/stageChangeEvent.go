package messages

import "time"

// StageChangeEvent is emitted when the simulated crop enters a new growth stage.
type StageChangeEvent struct {
	RunID     string    `json:"run_id"`
	FieldID   string    `json:"field_id"`
	Day       int       `json:"day"`
	OldStage  string    `json:"old_stage"`
	NewStage  string    `json:"new_stage"`
	GDDCum    float64   `json:"gdd_cum"`
	Timestamp time.Time `json:"timestamp"`
}
