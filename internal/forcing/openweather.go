package forcing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

const defaultOWMBaseURL = "https://api.openweathermap.org/data/3.0/onecall"

type owmDaily struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
	Rain float64 `json:"rain"`
}

type owmResp struct {
	Daily []owmDaily `json:"daily"`
}

// OpenWeather fetches the daily forecast of a location and converts it to
// climate records with Hargreaves ETo.
type OpenWeather struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	retries uint64
}

// NewOpenWeather returns a forecast source behind a circuit breaker.
func NewOpenWeather(apiKey string) *OpenWeather {
	return &OpenWeather{
		apiKey:  apiKey,
		baseURL: defaultOWMBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		retries: 3,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "openweather",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

// WithBaseURL points the client at another endpoint.
func (c *OpenWeather) WithBaseURL(u string) *OpenWeather {
	c.baseURL = u
	return c
}

// Daily returns the forecast days as climate records, sorted by day.
func (c *OpenWeather) Daily(ctx context.Context, lat, lon float64) ([]entities.ClimateRecord, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("missing api key")
	}
	res, err := c.cb.Execute(func() (any, error) {
		var out owmResp
		op := func() error {
			r, err := c.fetch(ctx, lat, lon)
			if err != nil {
				return err
			}
			out = r
			return nil
		}
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
		if err := backoff.Retry(op, b); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("openweather forecast: %w", err)
	}
	resp := res.(owmResp)
	if len(resp.Daily) == 0 {
		return nil, fmt.Errorf("openweather forecast: no daily data")
	}

	out := make([]entities.ClimateRecord, 0, len(resp.Daily))
	for _, d := range resp.Daily {
		day := entities.DayFromDate(time.Unix(d.Dt, 0).UTC())
		ra := ExtraterrestrialRadiation(lat, day.Date().YearDay())
		out = append(out, entities.ClimateRecord{
			Day:  day,
			Tmin: d.Temp.Min,
			Tmax: d.Temp.Max,
			ETo:  Hargreaves(d.Temp.Min, d.Temp.Max, ra),
			Rain: d.Rain,
			CO2:  entities.Missing,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (c *OpenWeather) fetch(ctx context.Context, lat, lon float64) (owmResp, error) {
	url := fmt.Sprintf("%s?lat=%f&lon=%f&exclude=current,minutely,hourly,alerts&units=metric&appid=%s", c.baseURL, lat, lon, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return owmResp{}, backoff.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return owmResp{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		err := fmt.Errorf("owm status %d: %s", resp.StatusCode, string(b))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return owmResp{}, backoff.Permanent(err)
		}
		return owmResp{}, err
	}
	var out owmResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return owmResp{}, backoff.Permanent(err)
	}
	return out, nil
}

// Extend returns a series holding the records of s plus the days of extra that s
// does not cover. CO2 and the temperature flag of s are kept.
func Extend(s *entities.ClimateSeries, extra []entities.ClimateRecord) *entities.ClimateSeries {
	if s == nil {
		return entities.NewClimateSeries(extra, len(extra) > 0, nil)
	}
	records := append([]entities.ClimateRecord(nil), s.Records...)
	for _, r := range extra {
		if _, ok := s.On(r.Day); !ok {
			records = append(records, r)
		}
	}
	return entities.NewClimateSeries(records, s.HasTemperature || len(extra) > 0, s.CO2)
}

// ErrNoLocation is returned when a forecast is asked for a field without coordinates.
var ErrNoLocation = errors.New("field has no location")
