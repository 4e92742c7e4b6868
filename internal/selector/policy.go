package selector

import (
	"math"
	"math/rand/v2"

	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
)

// Policy picks the index of the next strategy to run.
type Policy interface {
	Choose(names []string, table *Table, epsilon float64, rng *rand.Rand) int
}

// UCB1 scores each strategy by its average profit plus a confidence bonus.
// Strategies never run score UnseenBonus. With probability epsilon every score
// also gets uniform noise in [0, Noise). Refiner offspring are recorded in the
// same table but are not a selectable arm, so their runs stay out of the total.
type UCB1 struct {
	C           float64
	UnseenBonus float64
	Noise       float64
}

// Choose implements Policy.
func (u UCB1) Choose(names []string, table *Table, epsilon float64, rng *rand.Rand) int {
	total := table.TotalRuns()
	if evolved, ok := table.Get(constants.EvolvedStrategy); ok {
		total -= evolved.Runs
	}
	noisy := rng.Float64() < epsilon

	best, bestScore := 0, math.Inf(-1)
	for i, name := range names {
		var score float64
		st, ok := table.Get(name)
		if !ok || st.Runs == 0 {
			score = u.UnseenBonus
		} else {
			score = st.AvgProfit + u.C*math.Sqrt(math.Log(float64(total+1))/float64(st.Runs))
		}
		if noisy {
			score += rng.Float64() * u.Noise
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// EpsilonGreedy explores uniformly with probability epsilon and otherwise
// exploits the best average profit. Unseen strategies are tried first.
type EpsilonGreedy struct{}

// Choose implements Policy.
func (EpsilonGreedy) Choose(names []string, table *Table, epsilon float64, rng *rand.Rand) int {
	if rng.Float64() < epsilon {
		return rng.IntN(len(names))
	}
	best, bestAvg := -1, math.Inf(-1)
	for i, name := range names {
		st, ok := table.Get(name)
		if !ok || st.Runs == 0 {
			return i
		}
		if st.AvgProfit > bestAvg {
			best, bestAvg = i, st.AvgProfit
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// NewPolicy builds the configured policy.
func NewPolicy(cfg config.SelectorConfig) Policy {
	if config.CanonicalPolicy(cfg.Policy) == constants.PolicyEpsilonGreedy {
		return EpsilonGreedy{}
	}
	return UCB1{C: cfg.UCBC, UnseenBonus: cfg.UnseenBonus, Noise: cfg.ExplorationNoise}
}

// Epsilon is the exploration rate at iteration iter.
func Epsilon(cfg config.SelectorConfig, iter int) float64 {
	return math.Max(cfg.EpsilonMin, cfg.EpsilonStart*math.Pow(cfg.EpsilonDecay, float64(iter)))
}
