package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/rewired-gh/skyfeed/internal/models"
	"github.com/rewired-gh/skyfeed/internal/search"
)

// Quarter returns the lunar quarter index 0..3 for an elongation.
func Quarter(elongation float64) int {
	q := int(elongation / 90)
	if q < 0 {
		q = 0
	}
	return q % 4
}

// LunarDayNumber returns the lunar day 1..30 for an elongation. The waxing
// and waning halves each span fifteen days.
func LunarDayNumber(elongation float64) int {
	var n int
	if elongation < 180 {
		n = 1 + int(elongation*15/180)
	} else {
		n = 16 + int((elongation-180)*15/180)
	}
	switch {
	case n < 1:
		return 1
	case n > 30:
		return 30
	}
	return n
}

// MoonPhases finds the first minute of each lunar quarter within r.
func (d *Detector) MoonPhases(ctx context.Context, r search.Range) ([]models.Event, error) {
	elong := d.elongation(ctx)
	quarter := func(t time.Time) (int, error) {
		e, err := elong(t)
		if err != nil {
			return 0, err
		}
		return Quarter(e), nil
	}

	hits, err := search.Scan(quarter, search.StateChanged[int](), r, d.settings.PhaseStep)
	if err != nil {
		return nil, fmt.Errorf("scan moon phases: %w", err)
	}

	var events []models.Event
	for _, h := range hits {
		at, q, err := search.LocateChange(quarter, h.Before, h.After, d.settings.Precision)
		if err != nil {
			return nil, fmt.Errorf("locate moon phase: %w", err)
		}
		if !inRange(r, at) {
			continue
		}
		events = append(events, models.MoonPhase{Phase: models.PhaseNames[q], At: at})
	}
	return events, nil
}

// LunarDays covers every UTC calendar day touched by r with lunar day
// periods. A lunar day spanning midnight is split into one period per
// calendar day.
func (d *Detector) LunarDays(ctx context.Context, r search.Range) ([]models.Event, error) {
	elong := d.elongation(ctx)
	day := func(t time.Time) (int, error) {
		e, err := elong(t)
		if err != nil {
			return 0, err
		}
		return LunarDayNumber(e), nil
	}

	span := search.Range{Start: dayStart(r.Start), End: dayStart(r.End).Add(24 * time.Hour)}
	hits, err := search.Scan(day, search.StateChanged[int](), span, d.settings.LunarDayStep)
	if err != nil {
		return nil, fmt.Errorf("scan lunar days: %w", err)
	}

	current, err := day(span.Start)
	if err != nil {
		return nil, err
	}
	start := span.Start

	var days []models.LunarDay
	for _, h := range hits {
		at, next, err := search.LocateChange(day, h.Before, h.After, d.settings.Precision)
		if err != nil {
			return nil, fmt.Errorf("locate lunar day: %w", err)
		}
		if at.After(start) {
			days = append(days, models.LunarDay{Number: current, Span: models.Interval{Start: start, End: at}})
			start = at
		}
		current = next
	}
	days = append(days, models.LunarDay{Number: current, Span: models.Interval{Start: start, End: span.End}})

	var events []models.Event
	for _, ld := range days {
		for _, piece := range splitByDay(ld.Span) {
			events = append(events, models.LunarDay{Number: ld.Number, Span: piece})
		}
	}
	return events, nil
}

// splitByDay cuts a closed interval at every UTC midnight inside it.
func splitByDay(iv models.Interval) []models.Interval {
	var pieces []models.Interval
	for s := iv.Start; s.Before(iv.End); {
		e := dayStart(s).Add(24 * time.Hour)
		if e.After(iv.End) {
			e = iv.End
		}
		pieces = append(pieces, models.Interval{Start: s, End: e})
		s = e
	}
	return pieces
}
