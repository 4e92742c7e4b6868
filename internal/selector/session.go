package selector

import (
	"sort"
	"time"
)

// TrialLog is one line of the session log.
type TrialLog struct {
	Timestamp time.Time `json:"ts"`
	Strategy  int       `json:"stratIdx"`
	Profit    float64   `json:"profit"`
	Waste     float64   `json:"waste"`
	Baskets   int       `json:"basketCount"`
}

// Session is the write-once record of one selector run.
type Session struct {
	StrategyNames []string   `json:"stratNames"`
	Usage         []int      `json:"usage"`
	Log           []TrialLog `json:"log"`
	BestProfit    float64    `json:"bestProfit"`
}

// roundScorer awards points after every trial: among the most recent round
// of trials (one per strategy slot) the most profitable earns 2 and the
// runner-up 1.
type roundScorer struct {
	size   int
	recent []TrialLog
	points []int
}

func newRoundScorer(strategies int) *roundScorer {
	return &roundScorer{size: strategies, points: make([]int, strategies)}
}

func (r *roundScorer) add(t TrialLog) {
	r.recent = append(r.recent, t)
	if len(r.recent) > r.size {
		r.recent = r.recent[len(r.recent)-r.size:]
	}
	round := make([]TrialLog, len(r.recent))
	copy(round, r.recent)
	sort.SliceStable(round, func(i, j int) bool { return round[i].Profit > round[j].Profit })
	for pos, tr := range round {
		switch pos {
		case 0:
			r.points[tr.Strategy] += 2
		case 1:
			r.points[tr.Strategy]++
		}
	}
}

func (r *roundScorer) scoring(names []string) map[string]int {
	out := make(map[string]int, len(names))
	for i, name := range names {
		out[name] = r.points[i]
	}
	return out
}
