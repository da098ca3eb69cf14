package scenario

import (
	"fmt"
	"time"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsim/internal/simerr"
)

// climateDay is one day of a climate file. Either Day or Date identifies it;
// absent values are left nil.
type climateDay struct {
	Day  int      `json:"day" yaml:"day" toml:"day"`
	Date string   `json:"date" yaml:"date" toml:"date"` // 2006-01-02
	Tmin *float64 `json:"tmin" yaml:"tmin" toml:"tmin"`
	Tmax *float64 `json:"tmax" yaml:"tmax" toml:"tmax"`
	ETo  *float64 `json:"eto" yaml:"eto" toml:"eto"`
	Rain *float64 `json:"rain" yaml:"rain" toml:"rain"`
	CO2  *float64 `json:"co2" yaml:"co2" toml:"co2"`
}

type climateFile struct {
	// Temperature defaults to true when any record carries a temperature.
	Temperature *bool               `json:"temperature" yaml:"temperature" toml:"temperature"`
	CO2         []entities.CO2Point `json:"co2" yaml:"co2" toml:"co2"`
	Days        []climateDay        `json:"days" yaml:"days" toml:"days"`
}

func (l Loader) climate(ref config.FileRef) (*entities.ClimateSeries, error) {
	var cf climateFile
	if err := l.decode(ref, &cf); err != nil {
		return nil, err
	}
	if len(cf.Days) == 0 {
		return nil, &simerr.MissingInputError{Input: "climate", Reason: ref.Name + " holds no days"}
	}
	return cf.series()
}

func (cf climateFile) series() (*entities.ClimateSeries, error) {
	records := make([]entities.ClimateRecord, 0, len(cf.Days))
	seen := make(map[entities.DayNumber]bool, len(cf.Days))
	hasTemp := false
	for i, cd := range cf.Days {
		d, err := cd.dayNumber()
		if err != nil {
			return nil, fmt.Errorf("climate day %d: %w", i, err)
		}
		if seen[d] {
			return nil, fmt.Errorf("climate day %s listed twice", d)
		}
		seen[d] = true
		if cd.Tmin != nil || cd.Tmax != nil {
			hasTemp = true
		}
		records = append(records, entities.ClimateRecord{
			Day:  d,
			Tmin: value(cd.Tmin),
			Tmax: value(cd.Tmax),
			ETo:  value(cd.ETo),
			Rain: value(cd.Rain),
			CO2:  value(cd.CO2),
		})
	}
	if cf.Temperature != nil {
		hasTemp = *cf.Temperature
	}
	return entities.NewClimateSeries(records, hasTemp, cf.CO2), nil
}

func (cd climateDay) dayNumber() (entities.DayNumber, error) {
	if cd.Date != "" {
		t, err := time.Parse(time.DateOnly, cd.Date)
		if err != nil {
			return 0, err
		}
		return entities.DayFromDate(t), nil
	}
	if cd.Day <= 0 {
		return 0, fmt.Errorf("neither day nor date given")
	}
	return entities.DayNumber(cd.Day), nil
}

func value(v *float64) float64 {
	if v == nil {
		return entities.Missing
	}
	return *v
}
