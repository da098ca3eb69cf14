// Package config holds the typed simulation configuration record.
package config

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsim/internal/simerr"
)

// NoneSentinel is the literal marking a disabled file reference.
const NoneSentinel = "(None)"

// FileRef is either a reference to an external file or Disabled.
type FileRef struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Dir  string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Disabled is the FileRef of a feature switched off.
var Disabled = FileRef{}

// Ref builds an enabled reference; "(None)" names yield Disabled.
func Ref(name, dir string) FileRef {
	name, dir = strings.TrimSpace(name), strings.TrimSpace(dir)
	if name == "" || name == NoneSentinel {
		return Disabled
	}
	if dir == NoneSentinel {
		dir = ""
	}
	return FileRef{Name: name, Dir: dir}
}

// Enabled reports whether the reference names a file.
func (f FileRef) Enabled() bool { return f.Name != "" }

// Path joins directory and name.
func (f FileRef) Path() string {
	if !f.Enabled() {
		return ""
	}
	return filepath.Join(f.Dir, f.Name)
}

func (f FileRef) String() string {
	if !f.Enabled() {
		return NoneSentinel
	}
	return f.Path()
}

// Files lists the eight external file references of a run.
type Files struct {
	Climate     FileRef `json:"climate" yaml:"climate"`
	Crop        FileRef `json:"crop" yaml:"crop"`
	Irrigation  FileRef `json:"irrigation" yaml:"irrigation"`
	Management  FileRef `json:"management" yaml:"management"`
	Soil        FileRef `json:"soil" yaml:"soil"`
	Groundwater FileRef `json:"groundwater" yaml:"groundwater"`
	Initial     FileRef `json:"initial" yaml:"initial"`
	OffSeason   FileRef `json:"off_season" yaml:"off_season"`
}

// Features are the feature flags resolved from the file references.
type Features struct {
	CapillaryRise bool
	InitialSeeded bool
	OffSeason     bool
	Irrigation    bool
	Management    bool
	CustomSoil    bool
}

// Resolve turns the file references into feature flags.
func (f Files) Resolve() Features {
	return Features{
		CapillaryRise: f.Groundwater.Enabled(),
		InitialSeeded: f.Initial.Enabled(),
		OffSeason:     f.OffSeason.Enabled(),
		Irrigation:    f.Irrigation.Enabled(),
		Management:    f.Management.Enabled(),
		CustomSoil:    f.Soil.Enabled(),
	}
}

// InDir returns the references with every enabled directory replaced by dir.
func (f Files) InDir(dir string) Files {
	for _, ref := range []*FileRef{&f.Climate, &f.Crop, &f.Irrigation, &f.Management, &f.Soil, &f.Groundwater, &f.Initial, &f.OffSeason} {
		if ref.Enabled() {
			ref.Dir = dir
		}
	}
	return f
}

// SimulationConfig is the immutable parameter record of one run.
type SimulationConfig struct {
	Version string `json:"version" yaml:"version"`

	SimulationStart entities.DayNumber `json:"simulation_start" yaml:"simulation_start"`
	SimulationEnd   entities.DayNumber `json:"simulation_end" yaml:"simulation_end"`
	CropStart       entities.DayNumber `json:"crop_start" yaml:"crop_start"`
	CropEnd         entities.DayNumber `json:"crop_end" yaml:"crop_end"`

	EvapDeclineFactor  float64 `json:"evap_decline_factor" yaml:"evap_decline_factor"`     // fwcc
	KeX                float64 `json:"kex" yaml:"kex"`                                     // soil evaporation coefficient, wet bare soil
	CCThresholdHI      float64 `json:"cc_threshold_hi_pct" yaml:"cc_threshold_hi_pct"`     // %
	RootStartPct       float64 `json:"root_start_pct" yaml:"root_start_pct"`               // % of Zmin
	MaxRootRate        float64 `json:"max_root_rate_cm_day" yaml:"max_root_rate_cm_day"`   // cm/day
	RootStressShape    float64 `json:"root_stress_shape" yaml:"root_stress_shape"`         // negative = concave
	GerminationTAWPct  float64 `json:"germination_taw_pct" yaml:"germination_taw_pct"`     // % TAW
	PAdjustETo         float64 `json:"p_adjust_eto" yaml:"p_adjust_eto"`                   // factor on the ETo adjustment of p
	AerationDays       int     `json:"aeration_days" yaml:"aeration_days"`                 // days to full effect
	SenescenceExponent float64 `json:"senescence_exponent" yaml:"senescence_exponent"`     // decline of photosynthetic activity
	PSenDecreasePct    float64 `json:"p_sen_decrease_pct" yaml:"p_sen_decrease_pct"`       // %
	GerminationDepth   float64 `json:"germination_depth_cm" yaml:"germination_depth_cm"`   // cm
	EvapZMax           float64 `json:"evap_zmax_cm" yaml:"evap_zmax_cm"`                   // cm
	CNDepth            float64 `json:"cn_depth_m" yaml:"cn_depth_m"`                       // m
	AdjustCNToAMC      bool    `json:"adjust_cn_amc" yaml:"adjust_cn_amc"`
	SaltDiffusionPct   float64 `json:"salt_diffusion_pct" yaml:"salt_diffusion_pct"`       // %
	SaltSolubility     float64 `json:"salt_solubility_g_l" yaml:"salt_solubility_g_l"`     // g/L
	CapRiseShape       float64 `json:"cap_rise_shape" yaml:"cap_rise_shape"`
	DefaultTmin        float64 `json:"default_tmin" yaml:"default_tmin"` // °C
	DefaultTmax        float64 `json:"default_tmax" yaml:"default_tmax"` // °C
	GDDMethod          int     `json:"gdd_method" yaml:"gdd_method"`

	Files Files `json:"files" yaml:"files"`
}

// Default returns the reference configuration.
func Default() SimulationConfig {
	return SimulationConfig{
		Version:            "7.1",
		SimulationStart:    31167,
		SimulationEnd:      31283,
		CropStart:          31167,
		CropEnd:            31283,
		EvapDeclineFactor:  4,
		KeX:                1.10,
		CCThresholdHI:      5,
		RootStartPct:       70,
		MaxRootRate:        5.00,
		RootStressShape:    -6,
		GerminationTAWPct:  20,
		PAdjustETo:         1.0,
		AerationDays:       3,
		SenescenceExponent: 1.00,
		PSenDecreasePct:    12,
		GerminationDepth:   10,
		EvapZMax:           30,
		CNDepth:            0.30,
		AdjustCNToAMC:      true,
		SaltDiffusionPct:   20,
		SaltSolubility:     100,
		CapRiseShape:       16,
		DefaultTmin:        12.0,
		DefaultTmax:        28.0,
		GDDMethod:          3,
	}
}

// Validate checks bounds and coefficients, returning a *simerr.ConfigurationError.
func (c SimulationConfig) Validate() error {
	bad := func(field, format string, args ...any) error {
		return &simerr.ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	if c.SimulationEnd < c.SimulationStart {
		return bad("simulation_end", "last day %d before first day %d", c.SimulationEnd, c.SimulationStart)
	}
	if c.CropEnd < c.CropStart {
		return bad("crop_end", "last crop day %d before first crop day %d", c.CropEnd, c.CropStart)
	}
	if c.CropStart < c.SimulationStart {
		return bad("crop_start", "first crop day %d before first simulation day %d", c.CropStart, c.SimulationStart)
	}
	if c.CropEnd > c.SimulationEnd {
		return bad("crop_end", "last crop day %d after last simulation day %d", c.CropEnd, c.SimulationEnd)
	}

	positive := []struct {
		name string
		v    float64
	}{
		{"evap_decline_factor", c.EvapDeclineFactor},
		{"kex", c.KeX},
		{"max_root_rate_cm_day", c.MaxRootRate},
		{"germination_depth_cm", c.GerminationDepth},
		{"evap_zmax_cm", c.EvapZMax},
		{"cn_depth_m", c.CNDepth},
		{"salt_solubility_g_l", c.SaltSolubility},
		{"cap_rise_shape", c.CapRiseShape},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return bad(p.name, "must be positive, got %v", p.v)
		}
	}

	percents := []struct {
		name string
		v    float64
	}{
		{"cc_threshold_hi_pct", c.CCThresholdHI},
		{"root_start_pct", c.RootStartPct},
		{"germination_taw_pct", c.GerminationTAWPct},
		{"p_sen_decrease_pct", c.PSenDecreasePct},
		{"salt_diffusion_pct", c.SaltDiffusionPct},
	}
	for _, p := range percents {
		if p.v < 0 || p.v > 100 || math.IsNaN(p.v) {
			return bad(p.name, "must be within 0..100, got %v", p.v)
		}
	}

	if c.RootStressShape == 0 {
		return bad("root_stress_shape", "must be non-zero")
	}
	if c.PAdjustETo < 0 {
		return bad("p_adjust_eto", "must not be negative, got %v", c.PAdjustETo)
	}
	if c.AerationDays < 0 {
		return bad("aeration_days", "must not be negative, got %d", c.AerationDays)
	}
	if c.SenescenceExponent < 0 {
		return bad("senescence_exponent", "must not be negative, got %v", c.SenescenceExponent)
	}
	if c.DefaultTmax < c.DefaultTmin {
		return bad("default_tmax", "%v below default_tmin %v", c.DefaultTmax, c.DefaultTmin)
	}
	if c.GDDMethod < 1 || c.GDDMethod > 3 {
		return bad("gdd_method", "unknown method %d", c.GDDMethod)
	}
	if c.EvapZMax/100 < 0.15 {
		return bad("evap_zmax_cm", "evaporation layer thinner than 15 cm")
	}
	return nil
}

// Days returns the number of simulated days.
func (c SimulationConfig) Days() int {
	return int(c.SimulationEnd-c.SimulationStart) + 1
}

// InCropPeriod reports whether day d is within the cropping period.
func (c SimulationConfig) InCropPeriod(d entities.DayNumber) bool {
	return d >= c.CropStart && d <= c.CropEnd
}
