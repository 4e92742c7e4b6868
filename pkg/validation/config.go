// Package validation provides catalogue validation utilities.
package validation

import (
	"fmt"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/catalogue"
	"github.com/rpkwiecinski/giftcard-engine/internal/config"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
)

// ValidatePrice reports an item that no denomination can hold.
func ValidatePrice(title string, price float64, largest int) string {
	if price > float64(largest) {
		return fmt.Sprintf("Item '%s' costs %.2f, more than the largest card %d - it will never be packed",
			title, price, largest)
	}
	return ""
}

// ValidatePromo reports promo windows that are over before the given day.
func ValidatePromo(title string, to, today time.Time) string {
	if to.Before(today) {
		return fmt.Sprintf("Item '%s' promo ended on %s - it will never be scheduled",
			title, to.Format(constants.DateLayout))
	}
	return ""
}

// CatalogueValidator collects non-fatal warnings about a catalogue.
type CatalogueValidator struct {
	Items catalogue.Catalogue
	Rules config.EngineConfig
	Today time.Time
}

// ValidateAll validates the entire catalogue and returns warnings.
func (cv *CatalogueValidator) ValidateAll() []string {
	var warnings []string

	desc := cv.Rules.Descending()
	largest := 0
	if len(desc) > 0 {
		largest = desc[0]
	}

	for _, it := range cv.Items {
		if w := ValidatePrice(it.Title, it.Price, largest); w != "" {
			warnings = append(warnings, w)
		}
		if !cv.Today.IsZero() {
			if w := ValidatePromo(it.Title, it.PromoTo, cv.Today); w != "" {
				warnings = append(warnings, w)
			}
		}
		if it.Required == 0 {
			warnings = append(warnings, fmt.Sprintf("Item '%s' has no required units - it is only used as filler", it.Title))
		}
	}

	return warnings
}
