package forcing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsim/internal/simerr"
)

func TestDailyGDDMethods(t *testing.T) {
	cases := []struct {
		method     int
		tmin, tmax float64
		want       float64
	}{
		{GDDMethodMaxOnly, 12, 28, 12},
		{GDDMethodMaxOnly, 2, 6, 0},
		{GDDMethodMaxOnly, 4, 20, 4},
		{GDDMethodMaxOnly, 20, 36, 17},
		{GDDMethodMean, 12, 28, 12},
		{GDDMethodMean, 2, 6, 0},
		{GDDMethodMean, 28, 40, 22},
		{GDDMethodClamped, 4, 20, 6},
		{GDDMethodClamped, 25, 36, 19.5},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("m%d_%v_%v", tc.method, tc.tmin, tc.tmax), func(t *testing.T) {
			assert.InDelta(t, tc.want, DailyGDD(tc.method, tc.tmin, tc.tmax, 8, 30), 1e-9)
		})
	}
}

func TestHargreaves(t *testing.T) {
	ra := ExtraterrestrialRadiation(45, 172)
	assert.InDelta(t, 41.6, ra, 0.5)
	eto := Hargreaves(15, 30, ra)
	assert.Greater(t, eto, 4.0)
	assert.Less(t, eto, 8.0)
	assert.Zero(t, Hargreaves(10, 10, ra))
	assert.Zero(t, ExtraterrestrialRadiation(80, 355))
}

func TestCO2Curve(t *testing.T) {
	c, err := NewCO2Curve(nil)
	require.NoError(t, err)
	assert.Equal(t, ReferenceCO2, c.At(40000))

	c, err = NewCO2Curve([]entities.CO2Point{{Year: 2000, PPM: 369.41}, {Year: 2010, PPM: 389.41}})
	require.NoError(t, err)
	mid := entities.DayFromDate(time.Date(2005, time.July, 2, 0, 0, 0, 0, time.UTC))
	assert.InDelta(t, 379.41, c.At(mid), 0.1)
	early := entities.DayFromDate(time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 369.41, c.At(early))
}

func TestResolverDefaultsTemperatureWithoutSeries(t *testing.T) {
	series := entities.NewClimateSeries([]entities.ClimateRecord{
		{Day: 100, Tmin: entities.Missing, Tmax: entities.Missing, ETo: 4, Rain: 2, CO2: entities.Missing},
	}, false, nil)
	r, err := NewResolver(series, DefaultGapPolicy(), 12, 28)
	require.NoError(t, err)

	f, err := r.Day(100)
	require.NoError(t, err)
	assert.Equal(t, 12.0, f.Tmin)
	assert.Equal(t, 28.0, f.Tmax)
	assert.Equal(t, 4.0, f.ETo)
	assert.Equal(t, ReferenceCO2, f.CO2)
	assert.Empty(t, f.Substituted)
}

func TestResolverGapPolicy(t *testing.T) {
	series := entities.NewClimateSeries([]entities.ClimateRecord{
		{Day: 100, Tmin: 10, Tmax: 25, ETo: 4, Rain: 0, CO2: 400},
	}, true, nil)

	r, err := NewResolver(series, DefaultGapPolicy(), 12, 28)
	require.NoError(t, err)
	_, err = r.Day(101)
	var gap *simerr.ForcingGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, 101, gap.Day)
	assert.Equal(t, "ETo", gap.Variable)

	r, err = NewResolver(series, GapPolicy{EToFromTemperature: true, CO2Baseline: true, Latitude: 45}, 12, 28)
	require.NoError(t, err)
	_, err = r.Day(101)
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "rain", gap.Variable)

	r, err = NewResolver(series, GapPolicy{EToFromTemperature: true, RainMissingIsZero: true, CO2Baseline: true, Latitude: 45}, 12, 28)
	require.NoError(t, err)
	f, err := r.Day(101)
	require.NoError(t, err)
	assert.Equal(t, []string{"temperature", "ETo", "rain"}, f.Substituted)
	assert.Greater(t, f.ETo, 0.0)
	assert.Zero(t, f.Rain)

	f, err = r.Day(100)
	require.NoError(t, err)
	assert.Equal(t, 400.0, f.CO2)
	assert.Equal(t, 10.0, f.Tmin)

	r, err = NewResolver(series, GapPolicy{EToFromTemperature: true, RainMissingIsZero: true}, 12, 28)
	require.NoError(t, err)
	_, err = r.Day(101)
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "CO2", gap.Variable)
}

func TestOpenWeatherDaily(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "k", r.URL.Query().Get("appid"))
		_, _ = w.Write([]byte(`{"daily":[
			{"dt":1719835200,"temp":{"min":14,"max":29},"rain":3.5},
			{"dt":1719748800,"temp":{"min":12,"max":27}}]}`))
	}))
	defer srv.Close()

	ow := NewOpenWeather("k").WithBaseURL(srv.URL)
	recs, err := ow.Daily(context.Background(), 45, 11)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Less(t, recs[0].Day, recs[1].Day)
	assert.Equal(t, 3.5, recs[1].Rain)
	assert.Greater(t, recs[0].ETo, 0.0)
	assert.True(t, entities.IsMissing(recs[0].CO2))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestOpenWeatherRejectsMissingKey(t *testing.T) {
	_, err := NewOpenWeather("").Daily(context.Background(), 45, 11)
	require.Error(t, err)
}

func TestExtendKeepsObservedDays(t *testing.T) {
	s := entities.NewClimateSeries([]entities.ClimateRecord{{Day: 10, ETo: 3, Rain: 1}}, true, nil)
	out := Extend(s, []entities.ClimateRecord{{Day: 10, ETo: 9}, {Day: 11, ETo: 5}})
	require.Len(t, out.Records, 2)
	r, ok := out.On(10)
	require.True(t, ok)
	assert.Equal(t, 3.0, r.ETo)
	r, ok = out.On(11)
	require.True(t, ok)
	assert.Equal(t, 5.0, r.ETo)
}
