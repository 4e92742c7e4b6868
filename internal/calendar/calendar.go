// Package calendar assigns baskets to days under a daily item capacity and the
// promo windows of the items they contain.
package calendar

import (
	"sort"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/pkg/datetime"
)

// DayPlan is what gets processed on one day.
type DayPlan struct {
	Date    time.Time        `json:"date"`
	Baskets []*basket.Basket `json:"baskets"`
	Items   map[string]int   `json:"items"`
}

// Units is the number of item units planned for the day.
func (d DayPlan) Units() int {
	n := 0
	for _, c := range d.Items {
		n += c
	}
	return n
}

// ScheduleResult is the full calendar.
type ScheduleResult struct {
	Days       []DayPlan      `json:"days"`
	Workers    int            `json:"workers"`
	DailyLimit int            `json:"dailyLimit"`
	Demand     map[string]int `json:"demand"`
	Unplaced   int            `json:"unplaced"`
}

// Capacity is the number of item units that fit in one day.
func (s *ScheduleResult) Capacity() int {
	return s.Workers * s.DailyLimit
}

// Scheduled counts baskets across all days.
func (s *ScheduleResult) Scheduled() int {
	n := 0
	for _, d := range s.Days {
		n += len(d.Baskets)
	}
	return n
}

// Build schedules baskets starting today.
func Build(baskets []*basket.Basket, workers, dailyLimit int) *ScheduleResult {
	return BuildFrom(datetime.Today(), baskets, workers, dailyLimit)
}

// BuildFrom schedules baskets starting at start. Baskets are taken in net
// profit order from a rotating queue: a basket whose items are not all on
// promo that day goes to the back, at most once per queued basket per day; a
// basket that does not fit the capacity left ends the day. Scheduling stops
// when the queue empties or the day passes every remaining promo window.
// Days without baskets are omitted.
func BuildFrom(start time.Time, baskets []*basket.Basket, workers, dailyLimit int) *ScheduleResult {
	res := &ScheduleResult{
		Workers:    workers,
		DailyLimit: dailyLimit,
		Demand:     make(map[string]int),
	}
	if len(baskets) == 0 {
		return res
	}

	queue := make([]*basket.Basket, len(baskets))
	copy(queue, baskets)
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].NetProfit() > queue[j].NetProfit() })

	capacity := workers * dailyLimit
	for day := datetime.Day(start); len(queue) > 0 && !day.After(lastPromo(queue)); day = day.AddDate(0, 0, 1) {
		plan := DayPlan{Date: day, Items: make(map[string]int)}
		left := capacity

		for guard := len(queue); len(queue) > 0 && left > 0 && guard > 0; guard-- {
			head := queue[0]
			if !onPromo(head, day) {
				queue = append(queue[1:], head)
				continue
			}
			if head.Len() > left {
				break
			}
			queue = queue[1:]
			plan.Baskets = append(plan.Baskets, head)
			left -= head.Len()
			for _, it := range head.Items {
				plan.Items[it.Title]++
			}
		}

		if len(plan.Baskets) > 0 {
			res.Days = append(res.Days, plan)
		}
	}
	res.Unplaced = len(queue)

	for _, d := range res.Days {
		for _, b := range d.Baskets {
			for _, it := range b.Items {
				res.Demand[it.Title] = it.Required
			}
		}
	}
	return res
}

func onPromo(b *basket.Basket, day time.Time) bool {
	for _, it := range b.Items {
		if !it.OnPromo(day) {
			return false
		}
	}
	return true
}

func lastPromo(queue []*basket.Basket) time.Time {
	var last time.Time
	for _, b := range queue {
		for _, it := range b.Items {
			if it.PromoTo.After(last) {
				last = it.PromoTo
			}
		}
	}
	return last
}
