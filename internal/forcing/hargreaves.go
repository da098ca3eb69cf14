package forcing

import "math"

// solarConstant in MJ m-2 min-1.
const solarConstant = 0.0820

// ExtraterrestrialRadiation returns Ra (MJ m-2 day-1) at latitude lat (degrees)
// on day of year doy.
func ExtraterrestrialRadiation(lat float64, doy int) float64 {
	phi := lat * math.Pi / 180
	j := float64(doy)
	dr := 1 + 0.033*math.Cos(2*math.Pi/365*j)
	delta := 0.409 * math.Sin(2*math.Pi/365*j-1.39)
	x := clamp(-math.Tan(phi)*math.Tan(delta), -1, 1)
	ws := math.Acos(x)
	ra := 24 * 60 / math.Pi * solarConstant * dr *
		(ws*math.Sin(phi)*math.Sin(delta) + math.Cos(phi)*math.Cos(delta)*math.Sin(ws))
	return math.Max(ra, 0)
}

// Hargreaves estimates reference evapotranspiration (mm/day) from the daily
// temperature extremes and Ra given in MJ m-2 day-1.
func Hargreaves(tmin, tmax, ra float64) float64 {
	tmean := (tmin + tmax) / 2.0
	eto := 0.0023 * (tmean + 17.8) * math.Sqrt(math.Max(tmax-tmin, 0)) * 0.408 * ra
	return math.Max(eto, 0)
}
