package services

import (
	"math"

	"github.com/moneypots/backend/internal/models"
)

// Allocate distributes total across jars according to split, rounding each
// jar's share half-up. Jars with a zero allocation are omitted so no
// zero-amount transactions get created.
//
// The per-jar rounded shares are NOT reconciled back onto the total: when the
// total is not evenly divisible the sum of allocations can drift from it by a
// point or two (Allocate(7, 50/50) yields 4+4). Callers that need exact
// conservation must pass evenly divisible amounts.
//
// Allocate does not validate the split; callers validate with
// SplitConfig.Validate before invoking.
func Allocate(total int64, split models.SplitConfig) map[models.Jar]int64 {
	out := make(map[models.Jar]int64)
	for _, jar := range models.Jars {
		pct := split.Percent(jar)
		if pct <= 0 {
			continue
		}
		share := int64(math.Round(float64(total) * float64(pct) / 100))
		if share > 0 {
			out[jar] = share
		}
	}
	return out
}
