// Package calendar runs the enabled detectors over a date range and merges
// their results into one feed.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/rewired-gh/skyfeed/internal/detect"
	"github.com/rewired-gh/skyfeed/internal/feed"
	"github.com/rewired-gh/skyfeed/internal/logger"
	"github.com/rewired-gh/skyfeed/internal/metrics"
	"github.com/rewired-gh/skyfeed/internal/models"
	"github.com/rewired-gh/skyfeed/internal/search"
)

// Category selects a group of detections.
type Category string

const (
	Signs       Category = "signs"
	Aspects     Category = "aspects"
	Stations    Category = "stations"
	MoonSigns   Category = "moon_signs"
	MoonAspects Category = "moon_aspects"
	MoonPhases  Category = "moon_phases"
	LunarDays   Category = "lunar_days"
)

// AllCategories lists every category in output stream order.
var AllCategories = []Category{Signs, Aspects, Stations, MoonSigns, MoonAspects, MoonPhases, LunarDays}

// ParseCategory validates a config name.
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Options configures a Calendar.
type Options struct {
	Bodies      []models.Body
	Categories  []Category
	Workers     int
	DedupWindow time.Duration
}

// Calendar aggregates detectors into a feed.
type Calendar struct {
	detector *detect.Detector
	opts     Options
	metrics  *metrics.Metrics
}

// New returns a Calendar. Empty Bodies or Categories select the defaults.
func New(d *detect.Detector, opts Options, m *metrics.Metrics) *Calendar {
	if len(opts.Bodies) == 0 {
		opts.Bodies = models.Planets
	}
	if len(opts.Categories) == 0 {
		opts.Categories = AllCategories
	}
	seen := make(map[Category]bool)
	var cats []Category
	for _, cat := range opts.Categories {
		if !seen[cat] {
			seen[cat] = true
			cats = append(cats, cat)
		}
	}
	opts.Categories = cats
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = feed.DefaultDedupWindow
	}
	return &Calendar{detector: d, opts: opts, metrics: m}
}

type task struct {
	category Category
	label    string
	run      func(ctx context.Context) ([]models.Event, error)
}

func (c *Calendar) tasks(r search.Range) []task {
	d := c.detector
	var planets []models.Body
	for _, b := range c.opts.Bodies {
		if b != models.Moon {
			planets = append(planets, b)
		}
	}

	var tasks []task
	for _, cat := range c.opts.Categories {
		switch cat {
		case Signs:
			for _, b := range planets {
				tasks = append(tasks, task{cat, string(b), func(ctx context.Context) ([]models.Event, error) {
					return d.Signs(ctx, b, r)
				}})
			}
		case Aspects:
			for i := range planets {
				for j := i + 1; j < len(planets); j++ {
					b1, b2 := planets[i], planets[j]
					tasks = append(tasks, task{cat, string(b1) + "-" + string(b2), func(ctx context.Context) ([]models.Event, error) {
						return d.Aspects(ctx, b1, b2, r, d.Settings().AspectOrb)
					}})
				}
			}
		case Stations:
			for _, b := range planets {
				tasks = append(tasks, task{cat, string(b), func(ctx context.Context) ([]models.Event, error) {
					return d.Stations(ctx, b, r)
				}})
			}
		case MoonSigns:
			tasks = append(tasks, task{cat, string(models.Moon), func(ctx context.Context) ([]models.Event, error) {
				return d.Signs(ctx, models.Moon, r)
			}})
		case MoonAspects:
			for _, b := range planets {
				tasks = append(tasks, task{cat, "moon-" + string(b), func(ctx context.Context) ([]models.Event, error) {
					return d.Aspects(ctx, models.Moon, b, r, d.Settings().MoonAspectOrb)
				}})
			}
		case MoonPhases:
			tasks = append(tasks, task{cat, string(models.Moon), func(ctx context.Context) ([]models.Event, error) {
				return d.MoonPhases(ctx, r)
			}})
		case LunarDays:
			tasks = append(tasks, task{cat, string(models.Moon), func(ctx context.Context) ([]models.Event, error) {
				return d.LunarDays(ctx, r)
			}})
		}
	}
	return tasks
}

// Detect runs every task and returns the deduplicated events per category.
func (c *Calendar) Detect(ctx context.Context, start, end time.Time) (map[Category][]models.Event, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("range end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	r := search.Range{Start: start.UTC(), End: end.UTC()}
	tasks := c.tasks(r)
	results := make([][]models.Event, len(tasks))

	logger.Info("Running %d detection tasks over %s – %s with %d workers",
		len(tasks), feed.FormatDateTime(r.Start), feed.FormatDateTime(r.End), c.opts.Workers)

	p := pool.New().WithContext(ctx).WithMaxGoroutines(c.opts.Workers).WithCancelOnError().WithFirstError()
	for i, t := range tasks {
		p.Go(func(ctx context.Context) error {
			began := time.Now()
			events, err := t.run(ctx)
			if err != nil {
				return fmt.Errorf("%s %s: %w", t.category, t.label, err)
			}
			results[i] = events
			c.metrics.ObserveTask(string(t.category), time.Since(began))
			logger.Debug("Task %s %s found %d events in %v", t.category, t.label, len(events), time.Since(began))
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	byCategory := make(map[Category][]models.Event)
	for i, t := range tasks {
		byCategory[t.category] = append(byCategory[t.category], results[i]...)
	}
	for cat, events := range byCategory {
		events = c.validated(cat, events)
		c.metrics.Detected(string(cat), len(events))
		byCategory[cat] = feed.Dedup(events, c.opts.DedupWindow)
	}
	return byCategory, nil
}

// validated drops events that break the shared event invariants.
func (c *Calendar) validated(cat Category, events []models.Event) []models.Event {
	kept := events[:0]
	for _, e := range events {
		if err := models.Validate(e); err != nil {
			logger.Warn("Dropping invalid %s event %v: %v", cat, e, err)
			c.metrics.Rejected(string(cat), "invalid")
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// Build returns the deduplicated events of every enabled category, in
// category order.
func (c *Calendar) Build(ctx context.Context, start, end time.Time) ([]models.Event, error) {
	byCategory, err := c.Detect(ctx, start, end)
	if err != nil {
		return nil, err
	}
	var events []models.Event
	for _, cat := range c.opts.Categories {
		logger.Info("Category %s: %d events", cat, len(byCategory[cat]))
		events = append(events, byCategory[cat]...)
	}
	return events, nil
}

// Feed builds the events and assembles them into output records.
func (c *Calendar) Feed(ctx context.Context, start, end time.Time) ([]feed.Record, error) {
	events, err := c.Build(ctx, start, end)
	if err != nil {
		return nil, err
	}

	records := feed.Assemble(events)
	c.metrics.Finish(time.Now())
	return records, nil
}
