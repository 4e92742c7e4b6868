// Package output renders pipeline results as text, CSV or JSON.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rpkwiecinski/giftcard-engine/internal/basket"
	"github.com/rpkwiecinski/giftcard-engine/internal/calendar"
	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
	"github.com/rpkwiecinski/giftcard-engine/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Write renders res in the named format.
func Write(w io.Writer, outputFormat string, res *engine.Result) error {
	switch outputFormat {
	case constants.OutputFormatCSV:
		return CSV(w, res.Schedule)
	case constants.OutputFormatJSON:
		return JSON(w, res)
	case constants.OutputFormatPretty, "":
		return Pretty(w, res)
	default:
		return fmt.Errorf("unsupported output format %q", outputFormat)
	}
}

// Pretty writes a human-readable summary followed by the calendar.
func Pretty(w io.Writer, res *engine.Result) error {
	p := message.NewPrinter(language.English)
	s := res.Summary

	lines := []string{
		fmt.Sprintf("--- Best strategy %s (%d trials, %d failed) ---", res.BestStrategy, res.Trials, res.Failures),
		p.Sprintf("Baskets: %d  Units: %d  Fill rate: %s%%", s.Baskets, s.Units, s.FillRate.Shift(2).StringFixed(1)),
		fmt.Sprintf("Net profit: %s  Waste: %s", format.Currency(res.Profit, ""), format.Currency(res.Waste, "")),
	}
	if res.Refinement.Generations > 0 {
		lines = append(lines, fmt.Sprintf("Refiner: %d generations, %d offspring, %d improvements",
			res.Refinement.Generations, res.Refinement.Offspring, res.Refinement.Improvements))
	}
	if res.Cancelled {
		lines = append(lines, "Run was cancelled, showing the best result found so far")
	}
	for _, warn := range res.Warnings {
		lines = append(lines, "warning: "+warn)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	sched := res.Schedule
	if sched == nil {
		return nil
	}
	if _, err := p.Fprintf(w, "\nCalendar (%d workers x %d per day)\n", sched.Workers, sched.DailyLimit); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Date       | Card | Items                                    | Net profit\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "__________ | ____ | ________________________________________ | __________\n"); err != nil {
		return err
	}
	for _, day := range sched.Days {
		date := day.Date.Format(constants.DateLayout)
		for _, b := range day.Baskets {
			if _, err := p.Fprintf(w, "%s | %4d | %-40s | %10s\n", date, b.Card, titles(b), format.NumericCurrency(b.NetProfit())); err != nil {
				return err
			}
			date = strings.Repeat(" ", len(date))
		}
	}
	if sched.Unplaced > 0 {
		if _, err := p.Fprintf(w, "%d baskets could not be scheduled inside their promo windows\n", sched.Unplaced); err != nil {
			return err
		}
	}
	return nil
}

// CSV writes one row per scheduled basket.
func CSV(w io.Writer, sched *calendar.ScheduleResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "card", "items", "total", "waste", "netProfit"}); err != nil {
		return err
	}
	if sched != nil {
		for _, day := range sched.Days {
			date := day.Date.Format(constants.DateLayout)
			for _, b := range day.Baskets {
				row := []string{
					date,
					strconv.Itoa(b.Card),
					titles(b),
					strconv.FormatFloat(b.Total(), 'f', 2, 64),
					strconv.FormatFloat(b.Waste(), 'f', 2, 64),
					strconv.FormatFloat(b.NetProfit(), 'f', 2, 64),
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSON writes the full result.
func JSON(w io.Writer, res *engine.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func titles(b *basket.Basket) string {
	names := make([]string, len(b.Items))
	for i, it := range b.Items {
		names[i] = it.Title
	}
	sort.Strings(names)
	return strings.Join(names, "; ")
}
