package trainer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loaderFunc func(path string) (catalogue.Catalogue, error)

func (f loaderFunc) Load(path string) (catalogue.Catalogue, error) { return f(path) }

type countingRunner struct {
	mu      sync.Mutex
	runs    int
	active  int32
	overlap bool
}

func (r *countingRunner) Run(ctx context.Context, items catalogue.Catalogue, workers, dailyLimit int) (*engine.Result, error) {
	if atomic.AddInt32(&r.active, 1) > 1 {
		r.mu.Lock()
		r.overlap = true
		r.mu.Unlock()
	}
	defer atomic.AddInt32(&r.active, -1)
	r.mu.Lock()
	r.runs++
	n := r.runs
	r.mu.Unlock()
	return &engine.Result{Profit: float64(n), BestStrategy: "Profit"}, nil
}

func sample(string) (catalogue.Catalogue, error) {
	return testutil.SampleCatalogue(), nil
}

func TestHolderStartsEmpty(t *testing.T) {
	var h Holder
	assert.Nil(t, h.Get())
	h.Set(&Snapshot{Run: 1})
	assert.Equal(t, 1, h.Get().Run)
}

func TestTrainerPublishesLatestRun(t *testing.T) {
	runner := &countingRunner{}
	holder := &Holder{}
	tr, err := New(nil, runner, loaderFunc(sample), "catalogue.json", time.Millisecond, holder)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		s := holder.Get()
		return s != nil && s.Run >= 3
	}, 2*time.Second, time.Millisecond)
	cancel()
	<-done

	s := holder.Get()
	assert.InDelta(t, float64(s.Run), s.Result.Profit, 1e-9)
	assert.False(t, runner.overlap)
}

func TestTrainerSurvivesLoadFailures(t *testing.T) {
	var calls int32
	loader := loaderFunc(func(p string) (catalogue.Catalogue, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return nil, errors.New("disk on fire")
		}
		return sample(p)
	})
	holder := &Holder{}
	tr, err := New(nil, &countingRunner{}, loader, "catalogue.json", time.Millisecond, holder)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	require.Eventually(t, func() bool { return holder.Get() != nil }, 2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, nil, loaderFunc(sample), "c.json", time.Second, &Holder{})
	assert.Error(t, err)
	_, err = New(nil, &countingRunner{}, loaderFunc(sample), "", time.Second, &Holder{})
	assert.Error(t, err)
	_, err = New(nil, &countingRunner{}, loaderFunc(sample), "c.json", time.Second, nil)
	assert.Error(t, err)
}
