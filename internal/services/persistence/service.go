// Package persistence stores the records and events of simulation runs in
// InfluxDB and serves them back over HTTP.
package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/LeonardoBeccarini/cropsim/pkg/dedup"
	"github.com/LeonardoBeccarini/cropsim/pkg/rabbitmq"
)

// Topics consumed by default.
var Topics = []string{"sim/daily/#", "event/stageChange/#", "event/irrigationDecision/#", "event/runResult/#"}

// Service writes every decoded message to Influx and to the in-memory cache.
type Service struct {
	decoder Decoder
	writer  *Writer
	store   Store
	cache   *Cache
	dedup   *dedup.Deduper
	log     logrus.FieldLogger
	timeout time.Duration
}

// NewService wires the writer and the query store. store may be nil, in which
// case the API answers from the cache only.
func NewService(measurement string, writer *Writer, store Store, log logrus.FieldLogger) *Service {
	if measurement == "" {
		measurement = "daily_record"
	}
	return &Service{
		decoder: Decoder{DailyMeasurement: sanitizeMeasurement(measurement)},
		writer:  writer,
		store:   store,
		cache:   NewCache(200),
		dedup:   dedup.New(10*time.Minute, 20000),
		log:     log,
		timeout: 5 * time.Second,
	}
}

// Handle is the MQTT handler of the simulation topics. Redeliveries of QoS1
// messages are dropped by payload hash.
func (s *Service) Handle(topic string, msg mqtt.Message) error {
	payload := msg.Payload()
	if rabbitmq.QosFor(topic) > 0 && !s.dedup.ShouldProcess(dedup.KeyOf(payload)) {
		return nil
	}
	rec, err := s.decoder.Decode(topic, payload)
	if errors.Is(err, ErrUnknownTopic) {
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case rec.daily != nil:
		s.cache.AddRecord(*rec.daily)
	case rec.result != nil:
		s.cache.AddResult(*rec.result)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.writer.Write(ctx, rec); err != nil {
		return err
	}
	if rec.result != nil {
		s.log.WithFields(logrus.Fields{
			"field":  rec.FieldID,
			"run":    rec.RunID,
			"status": rec.result.Status,
		}).Info("run result stored")
	}
	return nil
}

// Start consumes the simulation topics until ctx is done.
func (s *Service) Start(ctx context.Context, consumer rabbitmq.IConsumer) error {
	consumer.SetHandler(s.Handle)
	return consumer.ConsumeMessage(ctx)
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
