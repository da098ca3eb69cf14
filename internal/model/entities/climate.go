package entities

import (
	"math"
	"sort"
)

// Missing marks an absent daily forcing value.
var Missing = math.NaN()

// IsMissing reports whether v is an absent forcing value.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// ClimateRecord is one day of boundary forcing. Absent values are NaN.
type ClimateRecord struct {
	Day  DayNumber `json:"day"`
	Tmin float64   `json:"tmin"` // °C
	Tmax float64   `json:"tmax"` // °C
	ETo  float64   `json:"eto"`  // mm/day
	Rain float64   `json:"rain"` // mm/day
	CO2  float64   `json:"co2"`  // ppm
}

// CO2Point is an annual mean atmospheric CO2 concentration.
type CO2Point struct {
	Year int     `json:"year" yaml:"year" toml:"year"`
	PPM  float64 `json:"ppm" yaml:"ppm" toml:"ppm"`
}

// ClimateSeries is the ordered daily forcing of a run.
type ClimateSeries struct {
	Records []ClimateRecord
	// HasTemperature is false when no temperature file was supplied.
	HasTemperature bool
	// CO2 is the annual series used when a day has no CO2 value.
	CO2 []CO2Point

	index map[DayNumber]int
}

// NewClimateSeries sorts the records by day and indexes them.
func NewClimateSeries(records []ClimateRecord, hasTemperature bool, co2 []CO2Point) *ClimateSeries {
	rs := make([]ClimateRecord, len(records))
	copy(rs, records)
	sort.Slice(rs, func(i, j int) bool { return rs[i].Day < rs[j].Day })
	pts := make([]CO2Point, len(co2))
	copy(pts, co2)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Year < pts[j].Year })

	s := &ClimateSeries{Records: rs, HasTemperature: hasTemperature, CO2: pts, index: make(map[DayNumber]int, len(rs))}
	for i, r := range rs {
		s.index[r.Day] = i
	}
	return s
}

// On returns the record of day d.
func (s *ClimateSeries) On(d DayNumber) (ClimateRecord, bool) {
	if s == nil {
		return ClimateRecord{}, false
	}
	if s.index == nil {
		for _, r := range s.Records {
			if r.Day == d {
				return r, true
			}
		}
		return ClimateRecord{}, false
	}
	i, ok := s.index[d]
	if !ok {
		return ClimateRecord{}, false
	}
	return s.Records[i], true
}
