package selector

import (
	"sort"
	"sync"

	"github.com/rpkwiecinski/giftcard-engine/pkg/mathutil"
)

// StrategyStat is the persisted performance record of one strategy. Profit and
// waste are in the profit currency.
type StrategyStat struct {
	Strategy    string  `json:"strategy"`
	Runs        int     `json:"runs"`
	SuccessRuns int     `json:"successRuns"`
	AvgProfit   float64 `json:"avgProfit"`
	BestProfit  float64 `json:"bestProfit"`
	AvgWaste    float64 `json:"avgWaste"`
	MinWaste    float64 `json:"minWaste"`
	MaxWaste    float64 `json:"maxWaste"`
}

// Record folds one trial into the stat.
func (s *StrategyStat) Record(profit, waste float64) {
	if s.Runs == 0 {
		s.BestProfit = profit
		s.MinWaste = waste
		s.MaxWaste = waste
	}
	s.Runs++
	s.AvgProfit = mathutil.IncrementalMean(s.AvgProfit, s.Runs, profit)
	s.AvgWaste = mathutil.IncrementalMean(s.AvgWaste, s.Runs, waste)
	if profit > s.BestProfit {
		s.BestProfit = profit
	}
	if waste < s.MinWaste {
		s.MinWaste = waste
	}
	if waste > s.MaxWaste {
		s.MaxWaste = waste
	}
	if profit > 0 {
		s.SuccessRuns++
	}
}

// Table is the strategy statistics table. It is safe for concurrent use so
// status readers can snapshot it while a pipeline updates it.
type Table struct {
	mu    sync.RWMutex
	stats map[string]*StrategyStat
}

// NewTable creates a table seeded with previously persisted stats.
func NewTable(seed map[string]StrategyStat) *Table {
	t := &Table{stats: make(map[string]*StrategyStat, len(seed))}
	for name, st := range seed {
		st := st
		if st.Strategy == "" {
			st.Strategy = name
		}
		t.stats[name] = &st
	}
	return t
}

// Update records one trial for the named strategy, creating its entry on
// first use.
func (t *Table) Update(name string, profit, waste float64) StrategyStat {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.stats[name]
	if !ok {
		st = &StrategyStat{Strategy: name}
		t.stats[name] = st
	}
	st.Record(profit, waste)
	return *st
}

// Get returns a copy of one entry.
func (t *Table) Get(name string) (StrategyStat, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.stats[name]
	if !ok {
		return StrategyStat{}, false
	}
	return *st, true
}

// Snapshot copies the whole table.
func (t *Table) Snapshot() map[string]StrategyStat {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]StrategyStat, len(t.stats))
	for name, st := range t.stats {
		out[name] = *st
	}
	return out
}

// Len is the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.stats)
}

// TotalRuns sums runs over all entries.
func (t *Table) TotalRuns() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, st := range t.stats {
		total += st.Runs
	}
	return total
}

// Trim evicts entries until at most window remain, lowest run count first and
// by name among equal counts. It returns the evicted names.
func (t *Table) Trim(window int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if window < 0 || len(t.stats) <= window {
		return nil
	}
	names := make([]string, 0, len(t.stats))
	for name := range t.stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := t.stats[names[i]].Runs, t.stats[names[j]].Runs
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	removed := names[:len(names)-window]
	for _, name := range removed {
		delete(t.stats, name)
	}
	return removed
}
