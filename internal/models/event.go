// Package models defines the core domain entities: bodies, zodiac signs,
// aspects and the detected event kinds that make up a feed.
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind names an event category independent of the bodies involved.
type Kind string

const (
	KindSignChange Kind = "sign_change"
	KindAspect     Kind = "aspect"
	KindStation    Kind = "station"
	KindMoonPhase  Kind = "moon_phase"
	KindLunarDay   Kind = "lunar_day"
)

// Category is the dedup key of an event: kind and bodies, plus the aspect,
// phase or direction name where one applies.
type Category struct {
	Kind   Kind
	Bodies string
	Detail string
}

func (c Category) String() string {
	if c.Detail == "" {
		return string(c.Kind) + ":" + c.Bodies
	}
	return string(c.Kind) + ":" + c.Bodies + ":" + c.Detail
}

// Interval is a half-open [Start, End) span. A zero End means the interval
// continues into the next period.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Open reports whether the interval has no end.
func (i Interval) Open() bool {
	return i.End.IsZero()
}

// Minute truncates t to minute resolution in UTC.
func Minute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// Event is a detected occurrence. Implementations are SignChange, Aspect,
// Station, MoonPhase and LunarDay.
type Event interface {
	Category() Category
	// Instant is the primary time; for periods it is the start.
	Instant() time.Time
	// Period returns the event span for interval events.
	Period() (Interval, bool)
	Description() string
	event()
}

// Signs lists the zodiac signs in ecliptic order, 30 degrees each.
var Signs = [12]string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

// SignIndex returns the sign index (0..11) of an ecliptic longitude.
func SignIndex(longitude float64) int {
	lon := math.Mod(longitude, 360)
	if lon < 0 {
		lon += 360
	}
	idx := int(lon / 30)
	if idx > 11 {
		idx = 11
	}
	return idx
}

// AspectDef is a named target separation.
type AspectDef struct {
	Angle float64 `mapstructure:"angle"`
	Name  string  `mapstructure:"name"`
}

// MajorAspects are the aspects detected by default.
var MajorAspects = []AspectDef{
	{Angle: 0, Name: "Conjunction"},
	{Angle: 60, Name: "Sextile"},
	{Angle: 90, Name: "Square"},
	{Angle: 120, Name: "Trine"},
	{Angle: 180, Name: "Opposition"},
}

// AspectName returns the nearest major aspect name within one degree, or a
// generic "<angle>° Aspect" label.
func AspectName(angle float64) string {
	best := MajorAspects[0]
	for _, a := range MajorAspects[1:] {
		if math.Abs(a.Angle-angle) < math.Abs(best.Angle-angle) {
			best = a
		}
	}
	if math.Abs(best.Angle-angle) <= 1 {
		return best.Name
	}
	return fmt.Sprintf("%g° Aspect", angle)
}

// SignChange is a body entering a new zodiac sign.
type SignChange struct {
	Body    Body
	At      time.Time
	OldSign string
	NewSign string
}

func (e SignChange) Category() Category {
	return Category{Kind: KindSignChange, Bodies: string(e.Body)}
}
func (e SignChange) Instant() time.Time       { return e.At }
func (e SignChange) Period() (Interval, bool) { return Interval{}, false }
func (e SignChange) Description() string {
	return fmt.Sprintf("%s enters %s", e.Body.Title(), e.NewSign)
}
func (SignChange) event() {}

// Aspect is the exact moment two bodies reach a target separation. Window
// is the in-orb span the exact time was found in.
type Aspect struct {
	Body1  Body
	Body2  Body
	Name   string
	Angle  float64
	Exact  time.Time
	Window Interval
}

func (e Aspect) Category() Category {
	return Category{Kind: KindAspect, Bodies: string(e.Body1) + "-" + string(e.Body2), Detail: e.Name}
}
func (e Aspect) Instant() time.Time       { return e.Exact }
func (e Aspect) Period() (Interval, bool) { return Interval{}, false }
func (e Aspect) Description() string {
	return fmt.Sprintf("%s in %s with %s", e.Body1.Title(), e.Name, e.Body2.Title())
}
func (Aspect) event() {}

// Motion is the direction a body turns at a station.
type Motion string

const (
	TurnsRetrograde Motion = "retrograde"
	TurnsDirect     Motion = "direct"
)

// Station is the instant a body's apparent velocity crosses zero.
type Station struct {
	Body     Body
	At       time.Time
	Turns    Motion
	Velocity float64
}

func (e Station) Category() Category {
	return Category{Kind: KindStation, Bodies: string(e.Body), Detail: string(e.Turns)}
}
func (e Station) Instant() time.Time       { return e.At }
func (e Station) Period() (Interval, bool) { return Interval{}, false }
func (e Station) Description() string {
	return fmt.Sprintf("%s turns %s", e.Body.Title(), e.Turns)
}
func (Station) event() {}

// PhaseNames are the lunar quarters indexed by floor(elongation/90).
var PhaseNames = [4]string{"New Moon", "First Quarter", "Full Moon", "Last Quarter"}

// MoonPhase is the start of a lunar quarter.
type MoonPhase struct {
	Phase string
	At    time.Time
}

func (e MoonPhase) Category() Category {
	return Category{Kind: KindMoonPhase, Bodies: string(Moon), Detail: e.Phase}
}
func (e MoonPhase) Instant() time.Time       { return e.At }
func (e MoonPhase) Period() (Interval, bool) { return Interval{}, false }
func (e MoonPhase) Description() string      { return "Moon is " + e.Phase }
func (MoonPhase) event()                     {}

// LunarDay is a span during which the lunar day number is constant.
type LunarDay struct {
	Number int
	Span   Interval
}

func (e LunarDay) Category() Category {
	return Category{Kind: KindLunarDay, Bodies: string(Moon), Detail: fmt.Sprint(e.Number)}
}
func (e LunarDay) Instant() time.Time       { return e.Span.Start }
func (e LunarDay) Period() (Interval, bool) { return e.Span, true }
func (e LunarDay) Description() string      { return fmt.Sprintf("%d Moon day", e.Number) }
func (LunarDay) event()                     {}

// Validate checks the invariants shared by all events.
func Validate(e Event) error {
	if e == nil {
		return errors.New("event must not be nil")
	}
	if e.Instant().IsZero() {
		return errors.New("event instant must be set")
	}
	if strings.TrimSpace(e.Description()) == "" {
		return errors.New("event description must not be empty")
	}
	if span, ok := e.Period(); ok && !span.Open() && !span.End.After(span.Start) {
		return errors.New("period end must be after start")
	}
	if ld, ok := e.(LunarDay); ok && (ld.Number < 1 || ld.Number > 30) {
		return errors.New("lunar day must be between 1 and 30")
	}
	return nil
}
