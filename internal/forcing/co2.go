package forcing

import (
	"time"

	"gonum.org/v1/gonum/interp"

	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

// ReferenceCO2 is the atmospheric CO2 concentration (ppm) of the reference year 2000.
const ReferenceCO2 = 369.41

// CO2Curve interpolates an annual CO2 series at mid-year points.
type CO2Curve struct {
	fit   *interp.PiecewiseLinear
	value float64
}

// NewCO2Curve fits the annual series. An empty series yields the reference value.
func NewCO2Curve(points []entities.CO2Point) (*CO2Curve, error) {
	switch len(points) {
	case 0:
		return &CO2Curve{value: ReferenceCO2}, nil
	case 1:
		return &CO2Curve{value: points[0].PPM}, nil
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.Year) + 0.5
		ys[i] = p.PPM
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	return &CO2Curve{fit: &pl}, nil
}

// At returns the CO2 concentration of day d, held constant outside the series.
func (c *CO2Curve) At(d entities.DayNumber) float64 {
	if c == nil {
		return ReferenceCO2
	}
	if c.fit == nil {
		return c.value
	}
	return c.fit.Predict(fractionalYear(d.Date()))
}

func fractionalYear(t time.Time) float64 {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return float64(t.Year()) + t.Sub(start).Hours()/end.Sub(start).Hours()
}
