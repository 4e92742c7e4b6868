package jobs

import (
	"sort"
	"sync"
)

const (
	winnerHistory  = 100
	bestStrategies = 5
)

// Scorer accumulates per-run strategy points across jobs.
type Scorer struct {
	mu      sync.Mutex
	points  map[string]int
	winners []string
	next    int
}

// NewScorer creates an empty scorer.
func NewScorer() *Scorer {
	return &Scorer{points: make(map[string]int)}
}

// Add folds one run's scoring in and remembers its winner.
func (s *Scorer) Add(scoring map[string]int) {
	if len(scoring) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	winner, top := "", -1
	for name, pts := range scoring {
		s.points[name] += pts
		if pts > top || (pts == top && name < winner) {
			winner, top = name, pts
		}
	}
	if len(s.winners) < winnerHistory {
		s.winners = append(s.winners, winner)
		return
	}
	s.winners[s.next] = winner
	s.next = (s.next + 1) % winnerHistory
}

// BestStrategies returns the top strategies by cumulative points.
func (s *Scorer) BestStrategies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.points))
	for name := range s.points {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := s.points[names[i]], s.points[names[j]]
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	if len(names) > bestStrategies {
		names = names[:bestStrategies]
	}
	return names
}

// Winners returns the remembered round winners, oldest first.
func (s *Scorer) Winners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.winners) < winnerHistory {
		return append([]string(nil), s.winners...)
	}
	out := make([]string, 0, winnerHistory)
	out = append(out, s.winners[s.next:]...)
	return append(out, s.winners[:s.next]...)
}

// Points returns the cumulative points of name.
func (s *Scorer) Points(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points[name]
}
