package selector

import (
	"sort"
	"sync"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
)

// ElitePool keeps the most profitable distinct baskets seen across trials.
// Baskets are deduplicated by identity and stored as independent clones.
// Identities sharing a hash live side by side in one bucket.
type ElitePool struct {
	mu       sync.Mutex
	capacity int
	size     int
	byHash   map[uint64][]*basket.Basket
}

// NewElitePool creates a pool that retains at most capacity baskets.
func NewElitePool(capacity int) *ElitePool {
	if capacity < 1 {
		capacity = 1
	}
	return &ElitePool{capacity: capacity, byHash: make(map[uint64][]*basket.Basket)}
}

// Offer adds baskets that are not already held, then drops the least
// profitable ones beyond capacity.
func (p *ElitePool) Offer(baskets ...*basket.Basket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range baskets {
		p.offer(b.Hash(), b)
	}
	if p.size <= p.capacity {
		return
	}
	p.evict(rank(p.values())[p.capacity:])
}

func (p *ElitePool) offer(h uint64, b *basket.Basket) {
	key := b.Key()
	for _, held := range p.byHash[h] {
		if held.Key() == key {
			return
		}
	}
	p.byHash[h] = append(p.byHash[h], b.Clone())
	p.size++
}

func (p *ElitePool) evict(losers []*basket.Basket) {
	drop := make(map[string]bool, len(losers))
	for _, b := range losers {
		drop[b.Key()] = true
	}
	for h, bucket := range p.byHash {
		kept := bucket[:0]
		for _, held := range bucket {
			if drop[held.Key()] {
				p.size--
				continue
			}
			kept = append(kept, held)
		}
		if len(kept) == 0 {
			delete(p.byHash, h)
			continue
		}
		p.byHash[h] = kept
	}
}

// Top returns up to k baskets by net profit descending, as clones.
func (p *ElitePool) Top(k int) []*basket.Basket {
	p.mu.Lock()
	defer p.mu.Unlock()
	ranked := rank(p.values())
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return basket.CloneAll(ranked)
}

// Len is the number of held baskets.
func (p *ElitePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

func (p *ElitePool) values() []*basket.Basket {
	out := make([]*basket.Basket, 0, p.size)
	for _, bucket := range p.byHash {
		out = append(out, bucket...)
	}
	return out
}

// rank sorts baskets by net profit descending, ties by key.
func rank(baskets []*basket.Basket) []*basket.Basket {
	sort.Slice(baskets, func(i, j int) bool {
		pi, pj := baskets[i].NetProfit(), baskets[j].NetProfit()
		if pi != pj {
			return pi > pj
		}
		return baskets[i].Key() < baskets[j].Key()
	})
	return baskets
}

// Rank sorts baskets in place by net profit descending and returns them.
func Rank(baskets []*basket.Basket) []*basket.Basket {
	return rank(baskets)
}

// Dedup drops baskets whose identity was already seen, keeping the first.
func Dedup(baskets []*basket.Basket) []*basket.Basket {
	seen := make(map[string]bool, len(baskets))
	out := baskets[:0:0]
	for _, b := range baskets {
		k := b.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, b)
	}
	return out
}
