package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogueJSON = `{"items": [
  {"Title": "Saga I", "Price": 19.99, "Required": 3, "ProfitPct": 0.2, "PromoFrom": "2024-01-01", "PromoTo": "2099-01-01", "Rating": 4},
  {"title": "Saga II", "price": 29.5, "required": 2, "profitPct": 0.3, "promoFrom": "2024-01-01", "promoTo": "2099-01-01", "rating": 5}
]}`

func writeCatalogue(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogue.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []int
	active  int
	overlap bool
	gate    chan struct{}
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, items catalogue.Catalogue, workers, dailyLimit int) (*engine.Result, error) {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.calls = append(f.calls, workers)
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &engine.Result{
		Profit:       float64(len(items)),
		BestStrategy: "Profit",
		Scoring:      map[string]int{"Profit": 3, "Rating": 1},
		Stats:        map[string]selector.StrategyStat{"Profit": {Strategy: "Profit", Runs: 1}},
	}, nil
}

func (f *fakeRunner) workers() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

func newScheduler(t *testing.T, r Runner) *Scheduler {
	t.Helper()
	s, err := NewScheduler(nil, r, NewCatalogueCache(time.Minute, 1.5), nil)
	require.NoError(t, err)
	return s
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	s := newScheduler(t, &fakeRunner{})
	path := writeCatalogue(t, catalogueJSON)
	bad := writeCatalogue(t, `[{"title": "x"}]`)

	cases := []struct {
		name string
		req  Request
	}{
		{"missing name", Request{CataloguePath: path}},
		{"missing path", Request{JobName: "a"}},
		{"negative workers", Request{JobName: "a", CataloguePath: path, Workers: -1}},
		{"unreadable catalogue", Request{JobName: "a", CataloguePath: filepath.Join(t.TempDir(), "nope.json")}},
		{"malformed catalogue", Request{JobName: "a", CataloguePath: bad}},
		{"empty catalogue", Request{JobName: "a", CataloguePath: writeCatalogue(t, `[]`)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Submit(tc.req)
			assert.ErrorIs(t, err, ErrRejected)
		})
	}
	assert.Equal(t, 0, s.Status().QueueDepth)
}

func TestJobsRunSeriallyInOrder(t *testing.T) {
	runner := &fakeRunner{gate: make(chan struct{})}
	s := newScheduler(t, runner)
	path := writeCatalogue(t, catalogueJSON)

	for i := 1; i <= 3; i++ {
		ack, err := s.Submit(Request{JobName: "job", CataloguePath: path, Workers: i})
		require.NoError(t, err)
		assert.NotEmpty(t, ack.ID)
		assert.Equal(t, i, ack.QueueDepth)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Status().Running }, time.Second, 5*time.Millisecond)
	st := s.Status()
	assert.Equal(t, 2, st.QueueDepth)
	assert.Equal(t, 0, st.JobsDone)

	for i := 0; i < 3; i++ {
		runner.gate <- struct{}{}
	}
	require.Eventually(t, func() bool { return s.Status().JobsDone == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []int{1, 2, 3}, runner.workers())
	assert.False(t, runner.overlap)

	st = s.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 0, st.QueueDepth)
	require.NotNil(t, st.LastRun)
	require.NotNil(t, st.LastResult)
	assert.Equal(t, 3, st.LastResult.Job.Workers)
	assert.Equal(t, []string{"Profit", "Rating"}, st.BestStrategies)
	assert.Contains(t, st.Stats, "Profit")

	results := s.Results(2)
	require.Len(t, results, 2)
	assert.Equal(t, 3, results[0].Job.Workers)
	assert.InDelta(t, 2.0, results[0].Result.Profit, 1e-9)
}

func TestFailedJobIsRecorded(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	s := newScheduler(t, runner)
	_, err := s.Submit(Request{JobName: "bad", CataloguePath: writeCatalogue(t, catalogueJSON)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return s.Status().JobsDone == 1 }, time.Second, 5*time.Millisecond)
	rec := s.Results(1)[0]
	assert.Equal(t, "boom", rec.Error)
	assert.Nil(t, rec.Result)
	assert.Empty(t, s.Status().BestStrategies)
}

func TestScorerAccumulatesAndRanks(t *testing.T) {
	sc := NewScorer()
	sc.Add(map[string]int{"A": 2, "B": 5})
	sc.Add(map[string]int{"A": 4, "C": 4})
	sc.Add(nil)

	assert.Equal(t, 6, sc.Points("A"))
	assert.Equal(t, []string{"A", "B", "C"}, sc.BestStrategies())
	assert.Equal(t, []string{"B", "A"}, sc.Winners())

	for i := 0; i < 10; i++ {
		sc.Add(map[string]int{string(rune('D' + i)): 100})
	}
	assert.Len(t, sc.BestStrategies(), 5)
}

func TestScorerWinnerRingWraps(t *testing.T) {
	sc := NewScorer()
	for i := 0; i < winnerHistory+3; i++ {
		name := "old"
		if i >= winnerHistory {
			name = "new"
		}
		sc.Add(map[string]int{name: 1})
	}
	w := sc.Winners()
	require.Len(t, w, winnerHistory)
	assert.Equal(t, "old", w[0])
	assert.Equal(t, []string{"new", "new", "new"}, w[winnerHistory-3:])
}

func TestCatalogueCacheReturnsClones(t *testing.T) {
	c := NewCatalogueCache(time.Minute, 1.5)
	loads := 0
	c.load = func(path string, f float64) (catalogue.Catalogue, error) {
		loads++
		return catalogue.Load(path, f)
	}
	path := writeCatalogue(t, catalogueJSON)

	first, err := c.Load(path)
	require.NoError(t, err)
	first[0].Remaining = 0

	second, err := c.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 3, second[0].Remaining)

	c.Forget()
	_, err = c.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}
