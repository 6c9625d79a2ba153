package feed

import (
	"sort"
	"time"

	"github.com/rewired-gh/skyfeed/internal/models"
)

type entry struct {
	description string
	at          time.Time
	end         time.Time
	period      bool
}

func (e entry) record() Record {
	if !e.period {
		return Record{Type: TypePoint, DateTime: FormatDateTime(e.at), Description: e.description}
	}
	r := Record{
		Type:          TypePeriod,
		DateTime:      FormatDateTime(e.at),
		DateTimeStart: FormatDateTime(e.at),
		Description:   e.description,
	}
	if !e.end.IsZero() {
		r.DateTimeEnd = FormatDateTime(e.end)
	}
	return r
}

// Assemble merges event streams into one feed ordered by primary instant,
// ties broken by description. Period events with the same description whose
// spans touch are merged into one record.
func Assemble(streams ...[]models.Event) []Record {
	var (
		points  []entry
		periods = make(map[string][]entry)
		seen    = make(map[string]bool)
	)

	for _, stream := range streams {
		for _, e := range stream {
			desc := e.Description()
			if span, ok := e.Period(); ok {
				periods[desc] = append(periods[desc], entry{
					description: desc,
					at:          models.Minute(span.Start),
					end:         minuteOrZero(span.End),
					period:      true,
				})
				continue
			}

			at := models.Minute(e.Instant())
			key := desc + "@" + FormatDateTime(at)
			if seen[key] {
				continue
			}
			seen[key] = true
			points = append(points, entry{description: desc, at: at})
		}
	}

	all := points
	for _, group := range periods {
		all = append(all, mergePeriods(group)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].at.Equal(all[j].at) {
			return all[i].at.Before(all[j].at)
		}
		if all[i].description != all[j].description {
			return all[i].description < all[j].description
		}
		return all[i].end.Before(all[j].end)
	})

	records := make([]Record, len(all))
	for i, e := range all {
		records[i] = e.record()
	}
	return records
}

// mergePeriods sorts spans of one description by start and joins each pair
// where one ends exactly where the next begins, until no pair touches.
func mergePeriods(spans []entry) []entry {
	merged := make([]entry, len(spans))
	copy(merged, spans)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].at.Before(merged[j].at) })

	for changed := true; changed; {
		changed = false
		out := merged[:0:0]
		for _, s := range merged {
			if n := len(out); n > 0 && !out[n-1].end.IsZero() && out[n-1].end.Equal(s.at) {
				out[n-1].end = s.end
				changed = true
				continue
			}
			out = append(out, s)
		}
		merged = out
	}
	return merged
}

func minuteOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return models.Minute(t)
}
