// Package worker provides an asynchronous worker pool that persists assembled
// chat turns with a storage.Driver and announces them with an
// eventstream.Publisher.
//
// The pool decouples storage operations from the proxy's HTTP hot path so that
// the client-proxy-upstream interaction is fully transparent.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/eventstream"
	"github.com/papercomputeco/ssechat/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Record *storage.Record

	// HTTPStatus is the upstream status code, carried into the published
	// event.
	HTTPStatus int
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting records.
	Driver storage.Driver

	// Publisher is the optional event stream for stored turns.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Record == nil {
		p.logger.Error("job not queued, nil record")
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("turn_id", job.Record.ID),
			zap.String("source", job.Record.Source),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("turn_id", job.Record.ID),
			zap.String("source", job.Record.Source),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the proxy HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", zap.Uint("worker_id", id))
}

// processJob stores the turn and, when it was newly inserted, publishes it.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	rec := job.Record

	isNew, err := p.config.Driver.Put(ctx, rec)
	if err != nil {
		p.logger.Error("async turn storage failed",
			zap.String("turn_id", rec.ID),
			zap.Error(err),
		)
		return
	}

	fields := []zap.Field{
		zap.String("turn_id", rec.ID),
		zap.String("source", rec.Source),
		zap.Bool("is_new", isNew),
	}
	if rec.Turn != nil {
		fields = append(fields,
			zap.String("model", rec.Turn.Model),
			zap.String("finish_reason", rec.Turn.FinishReason),
			zap.Bool("terminated_early", rec.Turn.TerminatedEarly),
			zap.Int("tool_calls", len(rec.Turn.ToolCalls)),
		)
	}
	p.logger.Info("turn stored", fields...)

	if !isNew || p.config.Publisher == nil {
		return
	}

	event := eventstream.NewTurnAssembledEvent(rec, job.HTTPStatus)
	if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
		p.logger.Warn("failed to publish turn event",
			zap.String("turn_id", rec.ID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("published turn event",
		zap.String("turn_id", rec.ID),
		zap.String("event_id", event.EventID),
	)
}
