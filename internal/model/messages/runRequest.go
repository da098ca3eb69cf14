package messages

// RunRequest asks the simulation service to run a scenario.
type RunRequest struct {
	RequestID string `json:"request_id,omitempty"`
	FieldID   string `json:"field_id"`
	// ParameterFile is the positional parameter record of the run, relative to
	// the scenario root of the service.
	ParameterFile string `json:"parameter_file,omitempty"`
	// ScenarioDir overrides the directory of every file reference.
	ScenarioDir string `json:"scenario_dir,omitempty"`
	// Publish selects whether daily records are streamed on MQTT.
	Publish bool `json:"publish"`
	// Forecast extends the climate series with the weather forecast of the field.
	Forecast  bool    `json:"forecast,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}
