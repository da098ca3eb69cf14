package entities

// ManagementPlan holds the field-management practices of the growing season.
type ManagementPlan struct {
	MulchPct               float64 `json:"mulch_pct" yaml:"mulch_pct" toml:"mulch_pct"`          // surface covered by mulches
	MulchFactor            float64 `json:"mulch_factor" yaml:"mulch_factor" toml:"mulch_factor"` // evaporation reduction per unit cover
	Bunds                  bool    `json:"bunds" yaml:"bunds" toml:"bunds"`
	BundHeight             float64 `json:"bund_height_m" yaml:"bund_height_m" toml:"bund_height_m"`
	CNAdjustPct            float64 `json:"cn_adjust_pct" yaml:"cn_adjust_pct" toml:"cn_adjust_pct"`
	SurfaceRunoffInhibited bool    `json:"sr_inhibited" yaml:"sr_inhibited" toml:"sr_inhibited"`
	WeedCoverPct           float64 `json:"weed_cover_pct" yaml:"weed_cover_pct" toml:"weed_cover_pct"` // share of canopy taken by weeds

	Irrigation IrrigationPolicy `json:"irrigation" yaml:"irrigation" toml:"irrigation"`
}

// DefaultManagementPlan has no practices and a rainfed irrigation policy.
func DefaultManagementPlan() ManagementPlan {
	return ManagementPlan{MulchFactor: 0.5, Irrigation: DefaultIrrigationPolicy()}
}

// BundsActive reports whether bunds are high enough to stop runoff.
func (m ManagementPlan) BundsActive() bool {
	return m.Bunds && m.BundHeight >= 0.001
}

// EvaporationReduction returns the multiplier applied to potential soil evaporation.
func (m ManagementPlan) EvaporationReduction() float64 {
	return mulchReduction(m.MulchPct, m.MulchFactor)
}

// OffSeason holds the conditions applied outside the cropping period.
type OffSeason struct {
	MulchPct    float64               `json:"mulch_pct" yaml:"mulch_pct" toml:"mulch_pct"`
	MulchFactor float64               `json:"mulch_factor" yaml:"mulch_factor" toml:"mulch_factor"`
	Irrigation  []ScheduledIrrigation `json:"irrigation" yaml:"irrigation" toml:"irrigation"`
	ECw         float64               `json:"ecw_ds_m" yaml:"ecw_ds_m" toml:"ecw_ds_m"`
}

// EvaporationReduction returns the multiplier applied to potential soil evaporation.
func (o OffSeason) EvaporationReduction() float64 {
	return mulchReduction(o.MulchPct, o.MulchFactor)
}

// IrrigationOn returns the off-season irrigation depth scheduled for day.
func (o OffSeason) IrrigationOn(day DayNumber) float64 {
	total := 0.0
	for _, e := range o.Irrigation {
		if e.Day == day {
			total += e.Depth
		}
	}
	return total
}

func mulchReduction(pct, factor float64) float64 {
	if pct <= 0 || factor <= 0 {
		return 1
	}
	r := 1 - factor*pct/100
	if r < 0 {
		return 0
	}
	return r
}
