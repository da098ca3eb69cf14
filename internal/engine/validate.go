package engine

import (
	"fmt"

	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

func validateCrop(c entities.CropParameters) error {
	bad := func(field, reason string) error {
		return &ConfigurationError{Field: "crop." + field, Reason: reason}
	}
	switch {
	case c.CalendarType != entities.CalendarDays && c.CalendarType != entities.CalendarGDD:
		return bad("calendar_type", fmt.Sprintf("unknown calendar type %d", c.CalendarType))
	case c.CCx <= 0 || c.CCx > 1:
		return bad("ccx", "must be in (0, 1]")
	case c.CC0 <= 0 || c.CC0 > c.CCx:
		return bad("cc0", "must be in (0, ccx]")
	case c.CGC <= 0:
		return bad("cgc", "must be positive")
	case c.CDC < 0:
		return bad("cdc", "must not be negative")
	case c.Zmin <= 0 || c.Zmax < c.Zmin:
		return bad("zmin", "need 0 < zmin <= zmax")
	case c.Maturity <= 0:
		return bad("maturity", "must be positive")
	case c.Emergence < 0 || c.Emergence > c.Maturity:
		return bad("emergence", "must be in [0, maturity]")
	case c.MaxCanopy < c.Emergence:
		return bad("max_canopy", "must not precede emergence")
	case c.Senescence < c.Emergence:
		return bad("senescence", "must not precede emergence")
	case c.WP <= 0:
		return bad("wp", "must be positive")
	case c.HI0 < 0 || c.HI0 > 1:
		return bad("hi0", "must be in [0, 1]")
	case c.KcTrx < 0:
		return bad("kc_trx", "must not be negative")
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"p_up_exp", c.PUpExp},
		{"p_lo_exp", c.PLoExp},
		{"p_up_sto", c.PUpSto},
		{"p_up_sen", c.PUpSen},
	} {
		if p.v < 0 || p.v > 1 {
			return bad(p.name, "depletion fraction must be in [0, 1]")
		}
	}
	return nil
}

func validateSoil(s entities.SoilProfile) error {
	if len(s.Layers) == 0 {
		return &ConfigurationError{Field: "soil.layers", Reason: "profile has no layers"}
	}
	for i, l := range s.Layers {
		field := fmt.Sprintf("soil.layers[%d]", i)
		switch {
		case l.Thickness <= 0:
			return &ConfigurationError{Field: field, Reason: "thickness must be positive"}
		case !(0 <= l.ThetaWP && l.ThetaWP < l.ThetaFC && l.ThetaFC < l.ThetaSat && l.ThetaSat <= 1):
			return &ConfigurationError{Field: field, Reason: "need 0 <= wp < fc < sat <= 1"}
		case l.Ksat < 0:
			return &ConfigurationError{Field: field, Reason: "ksat must not be negative"}
		}
	}
	for i, dz := range s.Compartments {
		if dz <= 0 {
			return &ConfigurationError{Field: fmt.Sprintf("soil.compartments[%d]", i), Reason: "thickness must be positive"}
		}
	}
	if s.CN <= 0 || s.CN > 100 {
		return &ConfigurationError{Field: "soil.cn", Reason: "must be in (0, 100]"}
	}
	if s.REW < 0 {
		return &ConfigurationError{Field: "soil.rew_mm", Reason: "must not be negative"}
	}
	return nil
}
