package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"foerderscout/internal/metrics"
	"foerderscout/internal/model"
	"foerderscout/internal/platform/rabbitmq"
)

var ErrUnknownJob = errors.New("unknown job type")

// HandlerFunc processes the raw payload of one job.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Decode adapts a typed handler to a HandlerFunc.
func Decode[T any](fn func(ctx context.Context, payload T) error) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) error {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("decode job payload failed: %w", err)
		}
		return fn(ctx, payload)
	}
}

// JobWorker consumes the jobs queue one delivery at a time and routes each
// job to the handler registered for its type.
type JobWorker struct {
	conn      *amqp.Connection
	queueName string
	logger    *zap.Logger
	handlers  map[model.JobType]HandlerFunc

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewJobWorker(conn *amqp.Connection, queueName string, logger *zap.Logger) *JobWorker {
	return &JobWorker{
		conn:      conn,
		queueName: queueName,
		logger:    logger,
		handlers:  make(map[model.JobType]HandlerFunc),
	}
}

// Handle registers h for jobType. Call before Start.
func (w *JobWorker) Handle(jobType model.JobType, h HandlerFunc) {
	w.handlers[jobType] = h
}

func (w *JobWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if _, err := rabbitmq.DeclareJobsQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker prefetch failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.logger.Warn("job deliveries channel closed")
					return
				}
				if err := w.Dispatch(workerCtx, d.Body); err != nil {
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.logger.Info("job worker started", zap.String("queue", w.queueName))
	return nil
}

// Dispatch decodes one job envelope and runs its handler.
func (w *JobWorker) Dispatch(ctx context.Context, body []byte) error {
	var job model.Job
	if err := json.Unmarshal(body, &job); err != nil {
		w.logger.Error("decode job failed", zap.Error(err))
		return fmt.Errorf("decode job failed: %w", err)
	}

	handler, ok := w.handlers[job.Type]
	if !ok {
		w.logger.Error("no handler for job", zap.String("job_type", string(job.Type)))
		metrics.JobsFailed.WithLabelValues(string(job.Type)).Inc()
		return fmt.Errorf("%w: %s", ErrUnknownJob, job.Type)
	}

	start := time.Now()
	err := handler(ctx, job.Payload)
	elapsed := time.Since(start)
	metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(elapsed.Seconds())

	if err != nil {
		metrics.JobsFailed.WithLabelValues(string(job.Type)).Inc()
		w.logger.Error("job failed",
			zap.String("job_type", string(job.Type)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}
	metrics.JobsCompleted.WithLabelValues(string(job.Type)).Inc()
	w.logger.Info("job completed",
		zap.String("job_type", string(job.Type)),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func (w *JobWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
