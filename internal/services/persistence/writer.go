package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

// AsyncWriter is the part of api.WriteAPI the Writer uses.
type AsyncWriter interface {
	WritePoint(point *write.Point)
	Flush()
	Errors() <-chan error
}

// BlockingWriter is the part of api.WriteAPIBlocking the Writer uses.
type BlockingWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Writer sends points to Influx and tracks the last write error for /healthz
// and /readyz. Daily records go through the batching writer; run results are
// written synchronously with retries.
type Writer struct {
	async    AsyncWriter
	blocking BlockingWriter
	log      logrus.FieldLogger
	retries  uint64
	backoff  func() backoff.BackOff

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
	done    chan struct{}
}

// NewWriter starts the listener of the asynchronous write errors. It returns
// when the error channel of async is closed.
func NewWriter(async AsyncWriter, blocking BlockingWriter, log logrus.FieldLogger) *Writer {
	w := &Writer{
		async:    async,
		blocking: blocking,
		log:      log,
		retries:  3,
		backoff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		lastErr:  time.Now().Add(-24 * time.Hour),
		counts:   make(map[string]int64),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		for err := range async.Errors() {
			if err != nil {
				w.markError()
				log.WithError(err).Error("influx write error")
			}
		}
	}()
	return w
}

// Write queues r, or writes it at once when it is a run result.
func (w *Writer) Write(ctx context.Context, r Record) error {
	p := r.Point()
	if r.result == nil || w.blocking == nil {
		w.async.WritePoint(p)
		w.MarkIngest(r.Measurement)
		return nil
	}
	op := func() error { return w.blocking.WritePoint(ctx, p) }
	b := backoff.WithContext(backoff.WithMaxRetries(w.backoff(), w.retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		w.markError()
		return err
	}
	w.MarkIngest(r.Measurement)
	return nil
}

// Flush forces the queued points out.
func (w *Writer) Flush() { w.async.Flush() }

// Wait blocks until the error listener has stopped.
func (w *Writer) Wait() { <-w.done }

func (w *Writer) markError() {
	w.mu.Lock()
	w.lastErr = time.Now()
	w.mu.Unlock()
}

// LastErrorAge returns the time since the last write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// MarkIngest counts a stored record of the given measurement.
func (w *Writer) MarkIngest(measurement string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.counts[measurement]++
	w.mu.Unlock()
}

// Count returns the records stored for a measurement.
func (w *Writer) Count(measurement string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	c := w.counts[measurement]
	w.mu.RUnlock()
	return c
}
