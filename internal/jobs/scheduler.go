// Package jobs queues pipeline requests and runs them one at a time.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/internal/selector"
	"github.com/rpkwiecinski/giftcard-engine/internal/store"
	"go.uber.org/zap"
)

// ErrRejected marks a request the scheduler refuses to queue.
var ErrRejected = errors.New("job rejected")

// Request is what the submission boundary accepts.
type Request struct {
	JobName       string `json:"jobName" validate:"required,max=128"`
	CataloguePath string `json:"cataloguePath" validate:"required"`
	Workers       int    `json:"workers" validate:"gte=0,lte=1000"`
	DailyLimit    int    `json:"dailyLimit" validate:"gte=0,lte=100000"`
}

// Ack acknowledges a queued job.
type Ack struct {
	ID          string    `json:"id"`
	JobName     string    `json:"jobName"`
	QueueDepth  int       `json:"queueDepth"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Status is a consistent snapshot of the consumer.
type Status struct {
	Running        bool                             `json:"running"`
	QueueDepth     int                              `json:"queueDepth"`
	JobsDone       int                              `json:"jobsDone"`
	BestStrategies []string                         `json:"bestStrategies"`
	Stats          map[string]selector.StrategyStat `json:"stats"`
	LastRun        *time.Time                       `json:"lastRunTimestamp,omitempty"`
	LastResult     *store.Record                    `json:"lastResult,omitempty"`
}

// Runner executes one pipeline.
type Runner interface {
	Run(ctx context.Context, items catalogue.Catalogue, workers, dailyLimit int) (*engine.Result, error)
}

// Loader resolves a catalogue path into a private catalogue.
type Loader interface {
	Load(path string) (catalogue.Catalogue, error)
}

type queued struct {
	job   store.Job
	items catalogue.Catalogue
}

// Scheduler is an unbounded FIFO in front of a single serial consumer.
type Scheduler struct {
	logger   *zap.Logger
	runner   Runner
	loader   Loader
	results  *store.ResultRepository
	scorer   *Scorer
	validate *validator.Validate
	now      func() time.Time

	mu     sync.Mutex
	queue  []queued
	wake   chan struct{}
	status Status
}

// NewScheduler wires a scheduler. results may be nil for an in-memory
// repository with the default history size.
func NewScheduler(logger *zap.Logger, runner Runner, loader Loader, results *store.ResultRepository) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if loader == nil {
		return nil, fmt.Errorf("catalogue loader cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if results == nil {
		results = store.NewResultRepository(logger, 0, "", false)
	}
	return &Scheduler{
		logger:   logger,
		runner:   runner,
		loader:   loader,
		results:  results,
		scorer:   NewScorer(),
		validate: validator.New(),
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}, nil
}

// Submit validates req, loads its catalogue and queues it. It never blocks on
// a running job.
func (s *Scheduler) Submit(req Request) (Ack, error) {
	if err := s.validate.Struct(req); err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	items, err := s.loader.Load(req.CataloguePath)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if len(items) == 0 {
		return Ack{}, fmt.Errorf("%w: catalogue %s is empty", ErrRejected, req.CataloguePath)
	}

	job := store.Job{
		ID:            uuid.NewString(),
		Name:          req.JobName,
		CataloguePath: req.CataloguePath,
		Workers:       req.Workers,
		DailyLimit:    req.DailyLimit,
		SubmittedAt:   s.now().UTC(),
	}

	s.mu.Lock()
	s.queue = append(s.queue, queued{job: job, items: items})
	depth := len(s.queue)
	s.status.QueueDepth = depth
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	s.logger.Info("job queued",
		zap.String("op", "jobs.Submit"),
		zap.String("job", job.ID),
		zap.String("name", job.Name),
		zap.Int("queueDepth", depth),
	)
	return Ack{ID: job.ID, JobName: job.Name, QueueDepth: depth, SubmittedAt: job.SubmittedAt}, nil
}

// Run consumes the queue until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next, ok := s.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		s.execute(ctx, next)
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Scheduler) pop() (queued, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return queued{}, false
	}
	next := s.queue[0]
	s.queue[0] = queued{}
	s.queue = s.queue[1:]
	s.status.QueueDepth = len(s.queue)
	s.status.Running = true
	return next, true
}

func (s *Scheduler) execute(ctx context.Context, q queued) {
	s.logger.Info("job started",
		zap.String("op", "jobs.execute"),
		zap.String("job", q.job.ID),
		zap.String("name", q.job.Name),
	)

	res, err := s.runner.Run(ctx, q.items, q.job.Workers, q.job.DailyLimit)
	rec := store.Record{Job: q.job, FinishedAt: s.now().UTC(), Result: res}
	if err != nil {
		rec.Error = err.Error()
		s.logger.Error("job failed",
			zap.String("op", "jobs.execute"),
			zap.String("job", q.job.ID),
			zap.Error(err),
		)
	} else {
		s.scorer.Add(res.Scoring)
	}
	s.results.Add(rec)

	s.mu.Lock()
	s.status.Running = false
	s.status.JobsDone++
	finished := rec.FinishedAt
	s.status.LastRun = &finished
	s.status.LastResult = &rec
	if res != nil {
		s.status.Stats = res.Stats
	}
	s.mu.Unlock()

	if res != nil {
		s.logger.Info("job finished",
			zap.String("op", "jobs.execute"),
			zap.String("job", q.job.ID),
			zap.String("bestStrategy", res.BestStrategy),
			zap.Float64("profit", res.Profit),
			zap.Int("baskets", len(res.Baskets)),
		)
	}
}

// Status returns a snapshot that never reflects a half-finished job.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	st.BestStrategies = s.scorer.BestStrategies()
	return st
}

// Results returns up to n finished jobs, newest first.
func (s *Scheduler) Results(n int) []store.Record {
	return s.results.Latest(n)
}

// Scorer exposes the cumulative strategy scorer.
func (s *Scheduler) Scorer() *Scorer {
	return s.scorer
}
