package entities

import "sort"

// GroundwaterPoint is the water table depth and salinity observed on a day.
type GroundwaterPoint struct {
	Day   DayNumber `json:"day" yaml:"day" toml:"day"`
	Depth float64   `json:"depth_m" yaml:"depth_m" toml:"depth_m"` // below surface, m
	EC    float64   `json:"ec_ds_m" yaml:"ec_ds_m" toml:"ec_ds_m"`
}

// Groundwater describes a shallow water table, either constant or varying in time.
type Groundwater struct {
	Points []GroundwaterPoint `json:"points" yaml:"points" toml:"points"`
}

// On returns the water table depth and EC at day d, linearly interpolated between
// points and held constant outside them.
func (g Groundwater) On(d DayNumber) (depth, ec float64, ok bool) {
	if len(g.Points) == 0 {
		return 0, 0, false
	}
	pts := g.Points
	if !sort.SliceIsSorted(pts, func(i, j int) bool { return pts[i].Day < pts[j].Day }) {
		pts = append([]GroundwaterPoint(nil), g.Points...)
		sort.Slice(pts, func(i, j int) bool { return pts[i].Day < pts[j].Day })
	}
	if d <= pts[0].Day {
		return pts[0].Depth, pts[0].EC, true
	}
	last := pts[len(pts)-1]
	if d >= last.Day {
		return last.Depth, last.EC, true
	}
	for i := 1; i < len(pts); i++ {
		if d <= pts[i].Day {
			a, b := pts[i-1], pts[i]
			f := float64(d-a.Day) / float64(b.Day-a.Day)
			return a.Depth + f*(b.Depth-a.Depth), a.EC + f*(b.EC-a.EC), true
		}
	}
	return last.Depth, last.EC, true
}
