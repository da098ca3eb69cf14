package app

import (
	"github.com/LeonardoBeccarini/cropsim/internal/model"
)

// DashboardData is the payload of GET /dashboard.
type DashboardData struct {
	Field   string                   `json:"field,omitempty"`
	Runs    []model.RunResultEvent   `json:"runs"`
	Latest  *model.RunResultEvent    `json:"latest,omitempty"`
	Records []model.DailyRecordEvent `json:"records"`
	Stats   map[string]float64       `json:"stats"`
	// Stale is set when the runs come from the last good answer.
	Stale bool `json:"stale,omitempty"`
}
