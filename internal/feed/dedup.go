package feed

import (
	"sort"
	"time"

	"github.com/rewired-gh/skyfeed/internal/logger"
	"github.com/rewired-gh/skyfeed/internal/models"
)

// DefaultDedupWindow is the span within which same-category point events are
// duplicates.
const DefaultDedupWindow = 24 * time.Hour

// Dedup drops point events that follow a kept event of the same category by
// less than window. The result is ordered by instant; ties keep input order.
// Period events pass through, their pieces are merged by Assemble.
func Dedup(events []models.Event, window time.Duration) []models.Event {
	if window <= 0 {
		window = DefaultDedupWindow
	}

	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Instant().Before(sorted[j].Instant())
	})

	kept := make(map[string]time.Time)
	result := make([]models.Event, 0, len(sorted))
	var dropped int

	for _, e := range sorted {
		if _, ok := e.Period(); ok {
			result = append(result, e)
			continue
		}

		key := e.Category().String()
		at := models.Minute(e.Instant())
		if last, exists := kept[key]; exists && at.Sub(last) < window {
			dropped++
			continue
		}

		kept[key] = at
		result = append(result, e)
	}

	if dropped > 0 {
		logger.Debug("Dedup dropped %d of %d events (window %v)", dropped, len(events), window)
	}
	return result
}
