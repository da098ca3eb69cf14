// Package forcing turns the climate series into the daily boundary forcing of a run.
package forcing

import "math"

// GDD methods.
const (
	GDDMethodMean    = 1 // mean temperature capped at Tupp
	GDDMethodClamped = 2 // both extremes clamped to [Tbase, Tupp]
	GDDMethodMaxOnly = 3 // Tmax clamped, Tmin capped at Tupp, mean floored at Tbase
)

// DailyGDD returns the growing degree days of one day.
func DailyGDD(method int, tmin, tmax, tbase, tupp float64) float64 {
	switch method {
	case GDDMethodMean:
		tmean := math.Min((tmax+tmin)/2, tupp)
		return math.Max(0, tmean-tbase)
	case GDDMethodClamped:
		tmax = clamp(tmax, tbase, tupp)
		tmin = clamp(tmin, tbase, tupp)
		return (tmax+tmin)/2 - tbase
	default:
		tmax = clamp(tmax, tbase, tupp)
		tmin = math.Min(tmin, tupp)
		tmean := math.Max((tmax+tmin)/2, tbase)
		return tmean - tbase
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
