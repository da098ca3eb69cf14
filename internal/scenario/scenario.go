// Package scenario loads the external inputs named by the file references of a
// simulation configuration. Files are JSON, YAML or TOML, chosen by extension.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/engine"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsim/internal/simerr"
)

// Loader resolves file references. Relative paths are taken from Root.
type Loader struct {
	Root string
}

// Load reads every enabled input of cfg relative to the working directory.
func Load(cfg config.SimulationConfig) (engine.Inputs, error) {
	return Loader{}.Load(cfg)
}

// Load reads every enabled input of cfg. Climate and crop are required.
func (l Loader) Load(cfg config.SimulationConfig) (engine.Inputs, error) {
	var in engine.Inputs
	f := cfg.Files

	if !f.Climate.Enabled() {
		return in, &simerr.MissingInputError{Input: "climate", Reason: "no climate file configured"}
	}
	series, err := l.climate(f.Climate)
	if err != nil {
		return in, err
	}
	in.Climate = series

	if !f.Crop.Enabled() {
		return in, &simerr.MissingInputError{Input: "crop", Reason: "no crop file configured"}
	}
	var crop entities.CropParameters
	if err := l.decode(f.Crop, &crop); err != nil {
		return in, err
	}
	in.Crop = &crop

	if f.Soil.Enabled() {
		var soil entities.SoilProfile
		if err := l.decode(f.Soil, &soil); err != nil {
			return in, err
		}
		in.Soil = &soil
	}
	if f.Management.Enabled() {
		mgmt := entities.DefaultManagementPlan()
		if err := l.decode(f.Management, &mgmt); err != nil {
			return in, err
		}
		in.Management = &mgmt
	}
	if f.Irrigation.Enabled() {
		policy := entities.DefaultIrrigationPolicy()
		if err := l.decode(f.Irrigation, &policy); err != nil {
			return in, err
		}
		in.Irrigation = &policy
	}
	if f.Groundwater.Enabled() {
		var gw entities.Groundwater
		if err := l.decode(f.Groundwater, &gw); err != nil {
			return in, err
		}
		in.Groundwater = &gw
	}
	if f.Initial.Enabled() {
		var ic entities.InitialConditions
		if err := l.decode(f.Initial, &ic); err != nil {
			return in, err
		}
		in.Initial = &ic
	}
	if f.OffSeason.Enabled() {
		off := entities.OffSeason{MulchFactor: 0.5}
		if err := l.decode(f.OffSeason, &off); err != nil {
			return in, err
		}
		in.OffSeason = &off
	}
	return in, nil
}

func (l Loader) path(ref config.FileRef) string {
	p := ref.Path()
	if l.Root != "" && !filepath.IsAbs(p) {
		p = filepath.Join(l.Root, p)
	}
	return p
}

// decode reads the file of ref into v.
func (l Loader) decode(ref config.FileRef, v any) error {
	p := l.path(ref)
	data, err := os.ReadFile(p)
	if err != nil {
		return &simerr.MissingInputError{Input: ref.Name, Reason: err.Error()}
	}
	if err := Unmarshal(p, data, v); err != nil {
		return fmt.Errorf("decode %s: %w", p, err)
	}
	return nil
}

// Unmarshal decodes data in the format given by the extension of name.
func Unmarshal(name string, data []byte, v any) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		return json.Unmarshal(data, v)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	case ".toml":
		_, err := toml.Decode(string(data), v)
		return err
	default:
		return fmt.Errorf("unsupported file format %q", ext)
	}
}
