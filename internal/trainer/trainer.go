// Package trainer keeps the strategy statistics warm by running the pipeline
// over a fixed catalogue in a loop.
package trainer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/internal/jobs"
	"go.uber.org/zap"
)

// Snapshot is one completed trainer run.
type Snapshot struct {
	Run        int            `json:"run"`
	FinishedAt time.Time      `json:"finishedAt"`
	Result     *engine.Result `json:"result"`
}

// Holder is a single slot that always holds the latest complete snapshot.
type Holder struct {
	p atomic.Pointer[Snapshot]
}

// Set replaces the held snapshot.
func (h *Holder) Set(s *Snapshot) {
	h.p.Store(s)
}

// Get returns the latest snapshot, or nil before the first run.
func (h *Holder) Get() *Snapshot {
	if h == nil {
		return nil
	}
	return h.p.Load()
}

// Trainer runs the pipeline over one catalogue at a fixed interval.
type Trainer struct {
	logger   *zap.Logger
	runner   jobs.Runner
	loader   jobs.Loader
	path     string
	interval time.Duration
	holder   *Holder
	runs     int
}

// New creates a trainer publishing into holder.
func New(logger *zap.Logger, runner jobs.Runner, loader jobs.Loader, cataloguePath string, interval time.Duration, holder *Holder) (*Trainer, error) {
	if runner == nil || loader == nil {
		return nil, fmt.Errorf("runner and catalogue loader are required")
	}
	if cataloguePath == "" {
		return nil, fmt.Errorf("catalogue path cannot be empty")
	}
	if holder == nil {
		return nil, fmt.Errorf("holder cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		logger:   logger,
		runner:   runner,
		loader:   loader,
		path:     cataloguePath,
		interval: interval,
		holder:   holder,
	}, nil
}

// Run loops until ctx is done. A failed run is logged and the loop goes on.
func (t *Trainer) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := t.once(ctx); err != nil {
			t.logger.Error("trainer run failed",
				zap.String("op", "trainer.Run"),
				zap.String("catalogue", t.path),
				zap.Error(err),
			)
		}
		timer.Reset(t.interval)
	}
}

func (t *Trainer) once(ctx context.Context) error {
	items, err := t.loader.Load(t.path)
	if err != nil {
		return err
	}
	res, err := t.runner.Run(ctx, items, 0, 0)
	if err != nil {
		return err
	}
	if res.Cancelled {
		return nil
	}
	t.runs++
	t.holder.Set(&Snapshot{Run: t.runs, FinishedAt: time.Now().UTC(), Result: res})
	t.logger.Debug("trainer run published",
		zap.String("op", "trainer.Run"),
		zap.Int("run", t.runs),
		zap.String("bestStrategy", res.BestStrategy),
		zap.Float64("profit", res.Profit),
	)
	return nil
}
