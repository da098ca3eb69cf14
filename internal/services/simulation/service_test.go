package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	simpb "github.com/LeonardoBeccarini/cropsim/grpc/simulation"
	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/model"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsim/pkg/rabbitmq"
	"github.com/LeonardoBeccarini/cropsim/pkg/rabbitmq/rabbitmqtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const seasonDays = 30

// writeScenario lays out a parameter file, a climate file and a crop file under
// a fresh root. The irrigation file is referenced only when irrigate is set.
func writeScenario(t *testing.T, irrigate bool) string {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.SimulationEnd = cfg.SimulationStart + seasonDays - 1
	cfg.CropEnd = cfg.SimulationEnd
	cfg.Files.Climate = config.Ref("climate.json", "")
	cfg.Files.Crop = config.Ref("maize.json", "")
	if irrigate {
		cfg.Files.Irrigation = config.Ref("irrigation.json", "")
	}
	var params strings.Builder
	require.NoError(t, config.WriteParameterFile(&params, cfg))
	writeFile(t, root, "season.par", params.String())

	var days []string
	for d := cfg.SimulationStart; d <= cfg.SimulationEnd; d++ {
		rain := 0.0
		if int(d-cfg.SimulationStart)%7 == 0 {
			rain = 15
		}
		days = append(days, fmt.Sprintf(`{"day": %d, "eto": 4, "rain": %g}`, d, rain))
	}
	writeFile(t, root, "climate.json", `{"days": [`+strings.Join(days, ",")+`]}`)

	crop, err := json.Marshal(entities.MaizeGDD())
	require.NoError(t, err)
	writeFile(t, root, "maize.json", string(crop))
	writeFile(t, root, "irrigation.json", `{"method": 5, "depth_mm": 2, "app_eff_pct": 100}`)
	return root
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func newTestService(t *testing.T, root string, opts Options) (*Service, *rabbitmqtest.Client) {
	t.Helper()
	client := rabbitmqtest.NewClient()
	log, _ := test.NewNullLogger()
	opts.ScenarioDir = root
	opts.Logger = log
	svc := NewService(rabbitmq.NewPublisher(client, time.Second), opts)
	ids := 0
	svc.newID = func() string {
		ids++
		return fmt.Sprintf("run-%d", ids)
	}
	t.Cleanup(svc.Close)
	return svc, client
}

func decode[T any](t *testing.T, msgs []*rabbitmqtest.Message) []T {
	t.Helper()
	out := make([]T, 0, len(msgs))
	for _, m := range msgs {
		var v T
		require.NoError(t, json.Unmarshal(m.Body, &v), "topic %s", m.TopicName)
		out = append(out, v)
	}
	return out
}

func TestExecutePublishesDailyRecordsAndResult(t *testing.T) {
	svc, client := newTestService(t, writeScenario(t, true), Options{})

	ev, err := svc.Execute(context.Background(), model.RunRequest{FieldID: "f1", ParameterFile: "season.par", Publish: true})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, ev.Status)
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, seasonDays, ev.Days)
	assert.Equal(t, int(config.Default().SimulationStart)+seasonDays-1, ev.LastDay)

	daily := decode[model.DailyRecordEvent](t, client.Published("sim/daily/f1/run-1"))
	require.Len(t, daily, seasonDays)
	for i := 1; i < len(daily); i++ {
		assert.Equal(t, daily[i-1].Day+1, daily[i].Day)
	}
	assert.Equal(t, byte(1), client.Published("sim/daily/")[0].QoS)

	stages := decode[model.StageChangeEvent](t, client.Published("event/stageChange/f1/run-1"))
	require.NotEmpty(t, stages)
	assert.Equal(t, string(entities.StageInitial), stages[0].OldStage)
	assert.Equal(t, string(entities.StageCanopyDevelopment), stages[0].NewStage)

	irr := decode[model.IrrigationDecisionEvent](t, client.Published("event/irrigationDecision/f1/run-1"))
	require.NotEmpty(t, irr)
	for i, e := range irr {
		assert.Equal(t, int(entities.IrrigationConstantDepth), e.Method)
		assert.InDelta(t, 2.0, e.GrossMM, 1e-9)
		assert.InDelta(t, 2.0*float64(i+1), e.SeasonMM, 1e-9)
	}

	results := decode[model.RunResultEvent](t, client.Published("event/runResult/f1/run-1"))
	require.Len(t, results, 1)
	assert.Equal(t, ev.Biomass, results[0].Biomass)
	assert.InDelta(t, daily[len(daily)-1].Biomass, ev.Biomass, 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.runs.WithLabelValues(model.StatusOK)))
	assert.Equal(t, float64(seasonDays), testutil.ToFloat64(svc.metrics.days))
	assert.Zero(t, testutil.ToFloat64(svc.metrics.inFlight))
}

func TestExecuteWithoutPublishSendsOnlyResult(t *testing.T) {
	svc, client := newTestService(t, writeScenario(t, false), Options{})

	_, err := svc.Execute(context.Background(), model.RunRequest{FieldID: "f1", ParameterFile: "season.par"})
	require.NoError(t, err)
	assert.Empty(t, client.Published("sim/daily/"))
	assert.Empty(t, client.Published("event/stageChange/"))
	assert.Len(t, client.Published("event/runResult/"), 1)
}

func TestExecuteFailures(t *testing.T) {
	root := writeScenario(t, false)
	cases := []struct {
		name   string
		req    model.RunRequest
		reason string
	}{
		{"no parameter file", model.RunRequest{FieldID: "f1"}, "missing input parameter file"},
		{"absent parameter file", model.RunRequest{FieldID: "f1", ParameterFile: "other.par"}, "missing input parameter file"},
		{"escaping parameter file", model.RunRequest{FieldID: "f1", ParameterFile: "../season.par"}, "parameter_file"},
		{"escaping scenario dir", model.RunRequest{FieldID: "f1", ParameterFile: "season.par", ScenarioDir: "/etc"}, "scenario_dir"},
		{"empty scenario dir", model.RunRequest{FieldID: "f1", ParameterFile: "season.par", ScenarioDir: "elsewhere"}, "missing input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, client := newTestService(t, root, Options{})
			ev, err := svc.Execute(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, model.StatusFail, ev.Status)
			assert.Contains(t, ev.Reason, tc.reason)

			results := decode[model.RunResultEvent](t, client.Published("event/runResult/f1/"))
			require.Len(t, results, 1)
			assert.Equal(t, model.StatusFail, results[0].Status)
		})
	}
}

func TestExecuteScenarioDirOverride(t *testing.T) {
	root := writeScenario(t, false)
	for _, name := range []string{"climate.json", "maize.json"} {
		body, err := os.ReadFile(filepath.Join(root, name))
		require.NoError(t, err)
		writeFile(t, root, filepath.Join("plot7", name), string(body))
	}
	require.NoError(t, os.Remove(filepath.Join(root, "climate.json")))

	svc, _ := newTestService(t, root, Options{})
	ev, err := svc.Execute(context.Background(), model.RunRequest{FieldID: "f1", ParameterFile: "season.par", ScenarioDir: "plot7"})
	require.NoError(t, err)
	assert.Equal(t, seasonDays, ev.Days)
}

func TestExecuteCancelled(t *testing.T) {
	svc, _ := newTestService(t, writeScenario(t, false), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev, err := svc.Execute(ctx, model.RunRequest{FieldID: "f1", ParameterFile: "season.par"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.StatusCancelled, ev.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.runs.WithLabelValues(model.StatusCancelled)))
}

func TestPublishFailureStopsRun(t *testing.T) {
	svc, client := newTestService(t, writeScenario(t, false), Options{})
	client.PublishErr = errors.New("broker gone")

	ev, err := svc.Execute(context.Background(), model.RunRequest{FieldID: "f1", ParameterFile: "season.par", Publish: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish daily record")
	assert.Equal(t, model.StatusFail, ev.Status)
	assert.Equal(t, 1, ev.Days)
}

type stubForecast struct {
	days []entities.ClimateRecord
	err  error
	lat  float64
}

func (s *stubForecast) Daily(_ context.Context, lat, _ float64) ([]entities.ClimateRecord, error) {
	s.lat = lat
	return s.days, s.err
}

func TestForecastExtendsClimate(t *testing.T) {
	root := writeScenario(t, false)
	cfg := config.Default()
	// The climate file stops five days short; the forecast covers the rest.
	var days []string
	for d := cfg.SimulationStart; d < cfg.SimulationStart+seasonDays-5; d++ {
		days = append(days, fmt.Sprintf(`{"day": %d, "eto": 4, "rain": 10}`, d))
	}
	writeFile(t, root, "climate.json", `{"days": [`+strings.Join(days, ",")+`]}`)

	var forecast []entities.ClimateRecord
	for d := cfg.SimulationStart + seasonDays - 5; d < cfg.SimulationStart+seasonDays; d++ {
		forecast = append(forecast, entities.ClimateRecord{Day: d, Tmin: 12, Tmax: 28, ETo: 5, Rain: 0, CO2: entities.Missing})
	}
	fc := &stubForecast{days: forecast}
	svc, _ := newTestService(t, root, Options{Forecast: fc})

	req := model.RunRequest{FieldID: "f1", ParameterFile: "season.par", Forecast: true, Latitude: 45.4, Longitude: 11.9}
	ev, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, seasonDays, ev.Days)
	assert.Equal(t, 45.4, fc.lat)

	// Without a location the forecast is skipped and the gap is fatal.
	req.Latitude, req.Longitude = 0, 0
	ev, err = svc.Execute(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, model.StatusFail, ev.Status)
	assert.Contains(t, ev.Reason, "forcing gap")
}

func TestHandleRequestRunsOnceAndDropsRedelivery(t *testing.T) {
	svc, client := newTestService(t, writeScenario(t, false), Options{MaxParallel: 2})
	consumer := rabbitmq.NewConsumer(client, []string{"sim/run/request/#"}, svc.HandleRequest, logrus.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.ConsumeMessage(ctx) }()
	require.Eventually(t, func() bool { return client.Subscribed("sim/run/request/#") }, time.Second, 5*time.Millisecond)

	body := []byte(`{"request_id": "req-1", "parameter_file": "season.par"}`)
	client.Deliver("sim/run/request/north", body)
	client.Deliver("sim/run/request/north", body)

	require.Eventually(t, func() bool {
		return len(client.Published("event/runResult/north/")) == 1 && svc.InFlight() == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	svc.Close()
	assert.Len(t, client.Published("event/runResult/"), 1)
}

func TestHandleRequestRejectsBadPayload(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir(), Options{})
	assert.Error(t, svc.HandleRequest("sim/run/request/f1", &rabbitmqtest.Message{Body: []byte("{")}))
	assert.Error(t, svc.HandleRequest("other/topic", &rabbitmqtest.Message{Body: []byte(`{}`)}))
}

func TestHandleRequestAfterCloseIsRefused(t *testing.T) {
	svc, client := newTestService(t, writeScenario(t, false), Options{})
	svc.Close()

	body := []byte(`{"request_id": "late", "parameter_file": "season.par"}`)
	err := svc.HandleRequest("sim/run/request/north", &rabbitmqtest.Message{Body: body})
	require.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, svc.InFlight())
	assert.Empty(t, client.Published("event/runResult/"))
}

func TestHandleRequestRacingClose(t *testing.T) {
	svc, _ := newTestService(t, writeScenario(t, false), Options{MaxParallel: 4})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := []byte(fmt.Sprintf(`{"request_id": "req-%d", "parameter_file": "season.par"}`, i))
			err := svc.HandleRequest("sim/run/request/north", &rabbitmqtest.Message{Body: body})
			if err != nil {
				assert.ErrorIs(t, err, ErrClosed)
			}
		}(i)
	}
	svc.Close()
	wg.Wait()
	assert.Zero(t, svc.InFlight())
}

func TestFieldFromTopic(t *testing.T) {
	assert.Equal(t, "north", fieldFromTopic("sim/run/request/north"))
	assert.Empty(t, fieldFromTopic("sim/daily/north/r1"))
}

func dialBufconn(t *testing.T, svc *Service) simpb.SimulationServiceClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	simpb.RegisterSimulationServiceServer(srv, NewGrpcHandler(svc))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return simpb.NewSimulationServiceClient(conn)
}

func TestGrpcRun(t *testing.T) {
	svc, _ := newTestService(t, writeScenario(t, false), Options{})
	client := dialBufconn(t, svc)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in, err := simpb.Encode(model.RunRequest{FieldID: "f1", ParameterFile: "season.par"})
	require.NoError(t, err)

	_, err = client.Run(ctx, in)
	assert.Equal(t, codes.Unavailable, status.Code(err))

	svc.SetReady(true)
	out, err := client.Run(ctx, in)
	require.NoError(t, err)
	var ev model.RunResultEvent
	require.NoError(t, simpb.Decode(out, &ev))
	assert.Equal(t, model.StatusOK, ev.Status)
	assert.Equal(t, seasonDays, ev.Days)

	bad, err := simpb.Encode(model.RunRequest{FieldID: " "})
	require.NoError(t, err)
	_, err = client.Run(ctx, bad)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	missing, err := simpb.Encode(model.RunRequest{FieldID: "f1", ParameterFile: "nope.par"})
	require.NoError(t, err)
	_, err = client.Run(ctx, missing)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

type connState bool

func (c connState) IsConnectionOpen() bool { return bool(c) }

func TestHTTPMux(t *testing.T) {
	svc, _ := newTestService(t, t.TempDir(), Options{})

	get := func(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	mux := NewHTTPMux(svc, connState(true))
	assert.Equal(t, http.StatusServiceUnavailable, get(mux, "/readyz").Code)
	assert.Contains(t, get(mux, "/healthz").Body.String(), `"status":"down"`)

	svc.SetReady(true)
	assert.Equal(t, http.StatusOK, get(mux, "/readyz").Code)
	assert.Contains(t, get(mux, "/healthz").Body.String(), `"status":"ok"`)

	degraded := NewHTTPMux(svc, connState(false))
	assert.Contains(t, get(degraded, "/healthz").Body.String(), `"status":"degraded"`)
	assert.Equal(t, http.StatusServiceUnavailable, get(degraded, "/readyz").Code)

	metrics := get(mux, "/metrics")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "cropsim_runs_in_flight")
}
