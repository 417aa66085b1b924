package warrant

import (
	"strings"

	"github.com/13g7895123/stock.warrant/models"
)

// outOfMoneyMarker is the moneyness prefix the site prints for OTM warrants.
const outOfMoneyMarker = "價外"

// IsOutOfMoney reports whether a moneyness cell describes an out-of-the-money
// warrant, e.g. "價外 10.65%". Signed numbers without the marker do not count.
func IsOutOfMoney(moneyness string) bool {
	return strings.Contains(moneyness, outOfMoneyMarker)
}

// Apply returns the records that pass the name and moneyness filters, in
// their original order. MaxPages is ignored here. The input is not modified.
func Apply(records []models.Warrant, f models.FilterSpec) []models.Warrant {
	out := make([]models.Warrant, 0, len(records))
	for _, w := range records {
		if f.NameContains != "" && !strings.Contains(w.Name, f.NameContains) {
			continue
		}
		if f.OutOfMoneyOnly && !IsOutOfMoney(w.Moneyness) {
			continue
		}
		out = append(out, w)
	}
	return out
}
