package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"

	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsim/internal/simerr"
)

// fileSections are the labels of the eight file-reference sections, in file order.
var fileSections = []string{
	"climate",
	"crop",
	"irrigation management",
	"field management",
	"soil profile",
	"groundwater table",
	"initial conditions",
	"off-season conditions",
}

type param struct {
	desc string
	get  func(c *SimulationConfig) any
	set  func(c *SimulationConfig, raw string) error
}

func floatParam(desc string, field func(c *SimulationConfig) *float64) param {
	return param{
		desc: desc,
		get:  func(c *SimulationConfig) any { return *field(c) },
		set: func(c *SimulationConfig, raw string) error {
			v, err := cast.ToFloat64E(raw)
			if err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
	}
}

func intParam(desc string, field func(c *SimulationConfig) *int) param {
	return param{
		desc: desc,
		get:  func(c *SimulationConfig) any { return *field(c) },
		set: func(c *SimulationConfig, raw string) error {
			v, err := cast.ToIntE(raw)
			if err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
	}
}

func dayParam(desc string, field func(c *SimulationConfig) *entities.DayNumber) param {
	return param{
		desc: desc,
		get:  func(c *SimulationConfig) any { return int(*field(c)) },
		set: func(c *SimulationConfig, raw string) error {
			v, err := cast.ToIntE(raw)
			if err != nil {
				return err
			}
			*field(c) = entities.DayNumber(v)
			return nil
		},
	}
}

// layout is the positional order of the parameter record.
var layout = []param{
	{
		desc: "AquaCrop version",
		get:  func(c *SimulationConfig) any { return c.Version },
		set: func(c *SimulationConfig, raw string) error {
			c.Version = raw
			return nil
		},
	},
	dayParam("First day of simulation period", func(c *SimulationConfig) *entities.DayNumber { return &c.SimulationStart }),
	dayParam("Last day of simulation period", func(c *SimulationConfig) *entities.DayNumber { return &c.SimulationEnd }),
	dayParam("First day of cropping period", func(c *SimulationConfig) *entities.DayNumber { return &c.CropStart }),
	dayParam("Last day of cropping period", func(c *SimulationConfig) *entities.DayNumber { return &c.CropEnd }),
	floatParam("Evaporation decline factor for stage II", func(c *SimulationConfig) *float64 { return &c.EvapDeclineFactor }),
	floatParam("Ke(x) Soil evaporation coefficient for fully wet and non-shaded soil surface", func(c *SimulationConfig) *float64 { return &c.KeX }),
	floatParam("Threshold for green CC below which HI can no longer increase (% cover)", func(c *SimulationConfig) *float64 { return &c.CCThresholdHI }),
	floatParam("Starting depth of root zone expansion curve (% of Zmin)", func(c *SimulationConfig) *float64 { return &c.RootStartPct }),
	floatParam("Maximum allowable root zone expansion (fixed at 5 cm/day)", func(c *SimulationConfig) *float64 { return &c.MaxRootRate }),
	floatParam("Shape factor for effect water stress on root zone expansion", func(c *SimulationConfig) *float64 { return &c.RootStressShape }),
	floatParam("Required soil water content in top soil for germination (% TAW)", func(c *SimulationConfig) *float64 { return &c.GerminationTAWPct }),
	floatParam("Adjustment factor for FAO-adjustment soil water depletion (p) by ETo", func(c *SimulationConfig) *float64 { return &c.PAdjustETo }),
	intParam("Number of days after which deficient aeration is fully effective", func(c *SimulationConfig) *int { return &c.AerationDays }),
	floatParam("Exponent of senescence factor adjusting drop in photosynthetic activity of dying crop", func(c *SimulationConfig) *float64 { return &c.SenescenceExponent }),
	floatParam("Decrease of p(sen) once early canopy senescence is triggered (% of p(sen))", func(c *SimulationConfig) *float64 { return &c.PSenDecreasePct }),
	floatParam("Thickness top soil (cm) in which soil water depletion has to be determined", func(c *SimulationConfig) *float64 { return &c.GerminationDepth }),
	floatParam("Depth [cm] of soil profile affected by water extraction by soil evaporation", func(c *SimulationConfig) *float64 { return &c.EvapZMax }),
	floatParam("Considered depth (m) of soil profile for calculation of mean soil water content for CN adjustment", func(c *SimulationConfig) *float64 { return &c.CNDepth }),
	{
		desc: "CN is adjusted to Antecedent Moisture Class",
		get: func(c *SimulationConfig) any {
			if c.AdjustCNToAMC {
				return 1
			}
			return 0
		},
		set: func(c *SimulationConfig, raw string) error {
			v, err := cast.ToBoolE(raw)
			if err != nil {
				return err
			}
			c.AdjustCNToAMC = v
			return nil
		},
	},
	floatParam("Salt diffusion factor (capacity for salt diffusion in micro pores) [%]", func(c *SimulationConfig) *float64 { return &c.SaltDiffusionPct }),
	floatParam("Salt solubility [g/liter]", func(c *SimulationConfig) *float64 { return &c.SaltSolubility }),
	floatParam("Shape factor for effect of soil water content gradient on capillary rise", func(c *SimulationConfig) *float64 { return &c.CapRiseShape }),
	floatParam("Default minimum temperature (°C) if no temperature file is specified", func(c *SimulationConfig) *float64 { return &c.DefaultTmin }),
	floatParam("Default maximum temperature (°C) if no temperature file is specified", func(c *SimulationConfig) *float64 { return &c.DefaultTmax }),
	intParam("Default method for the calculation of growing degree days", func(c *SimulationConfig) *int { return &c.GDDMethod }),
}

func (c *SimulationConfig) fileRefs() []*FileRef {
	f := &c.Files
	return []*FileRef{&f.Climate, &f.Crop, &f.Irrigation, &f.Management, &f.Soil, &f.Groundwater, &f.Initial, &f.OffSeason}
}

// ReadParameterFile parses the positional parameter record: one value per line
// (anything after the first run of whitespace is description), then for each of
// the eight file sections a label line, a file name and a directory.
// The result is validated.
func ReadParameterFile(r io.Reader) (SimulationConfig, error) {
	cfg := Default()
	lines, err := contentLines(r)
	if err != nil {
		return cfg, err
	}

	need := len(layout) + 3*len(fileSections)
	if len(lines) < need {
		return cfg, &simerr.ConfigurationError{
			Field:  "parameter file",
			Reason: fmt.Sprintf("expected %d lines, got %d", need, len(lines)),
		}
	}

	for i, p := range layout {
		raw := firstField(lines[i])
		if err := p.set(&cfg, raw); err != nil {
			return cfg, &simerr.ConfigurationError{
				Field:  p.desc,
				Reason: fmt.Sprintf("line %d: cannot parse %q: %v", i+1, raw, err),
			}
		}
	}

	refs := cfg.fileRefs()
	pos := len(layout)
	for i := range fileSections {
		name := strings.TrimSpace(lines[pos+1])
		dir := strings.TrimSpace(lines[pos+2])
		*refs[i] = Ref(name, dir)
		pos += 3
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WriteParameterFile writes cfg in the positional layout read by ReadParameterFile.
func WriteParameterFile(w io.Writer, cfg SimulationConfig) error {
	bw := bufio.NewWriter(w)
	for _, p := range layout {
		if _, err := fmt.Fprintf(bw, "%-10s: %s\n", cast.ToString(p.get(&cfg)), p.desc); err != nil {
			return err
		}
	}
	for i, ref := range cfg.fileRefs() {
		name, dir := NoneSentinel, NoneSentinel
		if ref.Enabled() {
			name = ref.Name
			if ref.Dir != "" {
				dir = ref.Dir
			}
		}
		if _, err := fmt.Fprintf(bw, "-- %d. %s file\n%s\n%s\n", i+1, fileSections[i], name, dir); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func contentLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read parameter file: %w", err)
	}
	return out, nil
}

func firstField(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.IndexAny(line, " \t:"); i >= 0 {
		return line[:i]
	}
	return line
}
