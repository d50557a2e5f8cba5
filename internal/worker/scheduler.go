package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"foerderscout/internal/model"
)

type JobQueue interface {
	Enqueue(ctx context.Context, jobType model.JobType, payload any) error
}

// Scheduler enqueues a payload-less job on a fixed interval.
type Scheduler struct {
	jobs     JobQueue
	jobType  model.JobType
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(jobs JobQueue, jobType model.JobType, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		jobType:  jobType,
		interval: interval,
		logger:   logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil || s.interval <= 0 {
		return
	}
	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-schedCtx.Done():
				return
			case <-ticker.C:
				if err := s.jobs.Enqueue(schedCtx, s.jobType, struct{}{}); err != nil {
					s.logger.Warn("schedule job failed", zap.String("job_type", string(s.jobType)), zap.Error(err))
					continue
				}
				s.logger.Info("job scheduled", zap.String("job_type", string(s.jobType)))
			}
		}
	}()
}

func (s *Scheduler) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
