// Package simulation runs crop simulations on request and streams their records
// on the broker. Requests arrive on MQTT or gRPC.
package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/engine"
	"github.com/LeonardoBeccarini/cropsim/internal/forcing"
	"github.com/LeonardoBeccarini/cropsim/internal/model"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsim/internal/scenario"
	"github.com/LeonardoBeccarini/cropsim/internal/simerr"
	"github.com/LeonardoBeccarini/cropsim/pkg/dedup"
	"github.com/LeonardoBeccarini/cropsim/pkg/rabbitmq"
)

// Forecaster supplies forecast climate records for a location.
type Forecaster interface {
	Daily(ctx context.Context, lat, lon float64) ([]entities.ClimateRecord, error)
}

// Options configure a Service. Zero values select the defaults.
type Options struct {
	ScenarioDir string
	MaxParallel int
	// Forecast is consulted by requests asking for a forecast extension.
	Forecast Forecaster
	Metrics  *Metrics
	Logger   logrus.FieldLogger
}

// Service executes run requests, at most MaxParallel at a time.
type Service struct {
	opts    Options
	pub     rabbitmq.IPublisher
	dedup   *dedup.Deduper
	sem     *semaphore.Weighted
	metrics *Metrics
	log     logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  atomic.Bool

	mu     sync.Mutex // guards closed and wg.Add against Close
	closed bool

	inFlight atomic.Int64
	newID    func() string
	now      func() time.Time
}

func NewService(pub rabbitmq.IPublisher, opts Options) *Service {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		opts:    opts,
		pub:     pub,
		dedup:   dedup.New(10*time.Minute, 10000),
		sem:     semaphore.NewWeighted(int64(opts.MaxParallel)),
		metrics: opts.Metrics,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		newID:   func() string { return uuid.New().String() },
		now:     time.Now,
	}
}

// SetReady marks the service as able to take requests.
func (s *Service) SetReady(v bool) { s.ready.Store(v) }

func (s *Service) Ready() bool { return s.ready.Load() }

// InFlight returns the number of runs executing.
func (s *Service) InFlight() int64 { return s.inFlight.Load() }

// Metrics returns the collectors of the service.
func (s *Service) Metrics() *Metrics { return s.metrics }

// ErrClosed is returned for requests arriving after Close.
var ErrClosed = errors.New("simulation service closed")

// Close cancels the asynchronous runs and waits for them to publish their result.
// Requests handled afterwards are refused with ErrClosed.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.SetReady(false)
	s.cancel()
	s.wg.Wait()
}

// track registers an asynchronous run unless the service is closed.
func (s *Service) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// HandleRequest is the MQTT handler of the run request topic. Runs are executed
// asynchronously; redelivered requests are dropped.
func (s *Service) HandleRequest(topic string, msg mqtt.Message) error {
	var req model.RunRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		return fmt.Errorf("decode run request on %s: %w", topic, err)
	}
	if req.FieldID == "" {
		req.FieldID = fieldFromTopic(topic)
	}
	if req.FieldID == "" {
		return fmt.Errorf("run request on %s: missing field id", topic)
	}
	key := req.RequestID
	if key == "" {
		key = dedup.KeyOf(msg.Payload())
	}
	if !s.dedup.ShouldProcess(key) {
		s.log.WithFields(logrus.Fields{"topic": topic, "request": key}).Debug("duplicate run request dropped")
		return nil
	}

	if !s.track() {
		return fmt.Errorf("run request %s on %s: %w", key, topic, ErrClosed)
	}
	go func() {
		defer s.wg.Done()
		if _, err := s.Execute(s.ctx, req); err != nil {
			s.log.WithError(err).WithField("field", req.FieldID).Warn("run request failed")
		}
	}()
	return nil
}

// fieldFromTopic extracts {field} from sim/run/request/{field}.
func fieldFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 4 && parts[0] == "sim" && parts[1] == "run" && parts[2] == "request" {
		return parts[3]
	}
	return ""
}

// Execute runs req to completion and publishes its result. The returned event
// is filled even when the run fails.
func (s *Service) Execute(ctx context.Context, req model.RunRequest) (model.RunResultEvent, error) {
	runID := s.newID()
	started := s.now()
	log := s.log.WithFields(logrus.Fields{"run": runID, "field": req.FieldID})

	if err := s.sem.Acquire(ctx, 1); err != nil {
		ev := model.RunResultEvent{RunID: runID, FieldID: req.FieldID, StartedAt: started}
		return s.finish(log, ev, fmt.Errorf("waiting for a run slot: %w", err)), err
	}
	defer s.sem.Release(1)
	s.inFlight.Add(1)
	s.metrics.inFlight.Inc()
	defer func() {
		s.inFlight.Add(-1)
		s.metrics.inFlight.Dec()
	}()

	res, err := s.simulate(ctx, runID, req, log)
	ev := resultEvent(runID, req.FieldID, res, started, s.now())
	return s.finish(log, ev, err), err
}

// finish sets the outcome of ev, records it and publishes it.
func (s *Service) finish(log logrus.FieldLogger, ev model.RunResultEvent, err error) model.RunResultEvent {
	switch {
	case err == nil:
		ev.Status = model.StatusOK
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		ev.Status = model.StatusCancelled
		ev.Reason = err.Error()
	default:
		ev.Status = model.StatusFail
		ev.Reason = err.Error()
	}
	ev.Timestamp = s.now()
	s.metrics.observe(ev.Status, ev.Days, ev.Timestamp.Sub(ev.StartedAt).Seconds())

	if perr := s.pub.Publish(formatTopic(ResultTopic, ev.FieldID, ev.RunID), ev); perr != nil {
		log.WithError(perr).Error("publish run result failed")
	}
	log.WithFields(logrus.Fields{"status": ev.Status, "days": ev.Days, "yield": ev.Yield}).Info("run finished")
	return ev
}

func (s *Service) simulate(ctx context.Context, runID string, req model.RunRequest, log logrus.FieldLogger) (engine.Result, error) {
	cfg, in, err := s.load(ctx, req, log)
	if err != nil {
		return engine.Result{}, err
	}
	in.Logger = log
	if req.Publish {
		in.OnDay = s.streamer(runID, req.FieldID, in.Irrigation)
	}
	return engine.Run(ctx, cfg, in)
}

// load reads the parameter record and the scenario files of req.
func (s *Service) load(ctx context.Context, req model.RunRequest, log logrus.FieldLogger) (config.SimulationConfig, engine.Inputs, error) {
	var in engine.Inputs
	if req.ParameterFile == "" {
		return config.SimulationConfig{}, in, &simerr.MissingInputError{Input: "parameter file", Reason: "request names no parameter file"}
	}
	path, err := s.local(req.ParameterFile)
	if err != nil {
		return config.SimulationConfig{}, in, err
	}
	f, err := os.Open(path)
	if err != nil {
		return config.SimulationConfig{}, in, &simerr.MissingInputError{Input: "parameter file", Reason: err.Error()}
	}
	defer f.Close()
	cfg, err := config.ReadParameterFile(f)
	if err != nil {
		return cfg, in, fmt.Errorf("parameter file %s: %w", req.ParameterFile, err)
	}
	if req.ScenarioDir != "" {
		if !filepath.IsLocal(req.ScenarioDir) {
			return cfg, in, &simerr.ConfigurationError{Field: "scenario_dir", Reason: "must be a relative path inside the scenario root"}
		}
		cfg.Files = cfg.Files.InDir(req.ScenarioDir)
	}

	in, err = scenario.Loader{Root: s.opts.ScenarioDir}.Load(cfg)
	if err != nil {
		return cfg, in, err
	}
	in.Field = entities.Field{ID: req.FieldID, Latitude: req.Latitude, Longitude: req.Longitude}

	if req.Forecast {
		if err := s.extend(ctx, &in); err != nil {
			log.WithError(err).Warn("forecast unavailable, running on the climate file only")
		}
	}
	return cfg, in, nil
}

func (s *Service) extend(ctx context.Context, in *engine.Inputs) error {
	if s.opts.Forecast == nil {
		return errors.New("no forecast source configured")
	}
	if !in.Field.HasLocation() {
		return forcing.ErrNoLocation
	}
	days, err := s.opts.Forecast.Daily(ctx, in.Field.Latitude, in.Field.Longitude)
	if err != nil {
		return err
	}
	in.Climate = forcing.Extend(in.Climate, days)
	return nil
}

func (s *Service) local(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", &simerr.ConfigurationError{Field: "parameter_file", Reason: "must be a relative path inside the scenario root"}
	}
	return filepath.Join(s.opts.ScenarioDir, name), nil
}

// streamer publishes the daily record of every committed day plus the stage and
// irrigation events it implies. A failed publish stops the run.
func (s *Service) streamer(runID, fieldID string, policy *entities.IrrigationPolicy) func(engine.DailyRecord) error {
	tr := &tracker{runID: runID, fieldID: fieldID}
	if policy != nil {
		tr.method = policy.Method
	}
	return func(rec engine.DailyRecord) error {
		now := s.now()
		if err := s.pub.Publish(formatTopic(DailyTopic, fieldID, runID), dailyEvent(runID, fieldID, rec, now)); err != nil {
			return fmt.Errorf("publish daily record: %w", err)
		}
		if ev, ok := tr.stageChange(rec, now); ok {
			if err := s.pub.Publish(formatTopic(StageTopic, fieldID, runID), ev); err != nil {
				return fmt.Errorf("publish stage change: %w", err)
			}
		}
		if ev, ok := tr.irrigation(rec, now); ok {
			if err := s.pub.Publish(formatTopic(IrrigationTopic, fieldID, runID), ev); err != nil {
				return fmt.Errorf("publish irrigation decision: %w", err)
			}
		}
		return nil
	}
}
