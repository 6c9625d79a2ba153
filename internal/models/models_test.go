package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	at := time.Date(2024, 3, 20, 3, 6, 0, 0, time.UTC)

	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{
			name:  "valid sign change",
			event: SignChange{Body: Sun, At: at, OldSign: "Pisces", NewSign: "Aries"},
		},
		{
			name:    "nil event",
			event:   nil,
			wantErr: true,
		},
		{
			name:    "missing instant",
			event:   MoonPhase{Phase: "Full Moon"},
			wantErr: true,
		},
		{
			name:  "open lunar day",
			event: LunarDay{Number: 3, Span: Interval{Start: at}},
		},
		{
			name:    "inverted period",
			event:   LunarDay{Number: 3, Span: Interval{Start: at, End: at.Add(-time.Hour)}},
			wantErr: true,
		},
		{
			name:    "lunar day out of range",
			event:   LunarDay{Number: 31, Span: Interval{Start: at, End: at.Add(time.Hour)}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.event)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDescriptions(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "Mars enters Leo", SignChange{Body: Mars, At: at, NewSign: "Leo"}.Description())
	assert.Equal(t, "Venus in Square with Saturn", Aspect{Body1: Venus, Body2: Saturn, Name: "Square", Exact: at}.Description())
	assert.Equal(t, "Mercury turns retrograde", Station{Body: Mercury, At: at, Turns: TurnsRetrograde}.Description())
	assert.Equal(t, "Moon is Full Moon", MoonPhase{Phase: "Full Moon", At: at}.Description())
	assert.Equal(t, "14 Moon day", LunarDay{Number: 14, Span: Interval{Start: at}}.Description())
}

func TestCategoryIgnoresAngle(t *testing.T) {
	a := Aspect{Body1: Moon, Body2: Sun, Name: "Conjunction", Angle: 0}
	b := Aspect{Body1: Moon, Body2: Sun, Name: "Conjunction", Angle: 0.4}
	assert.Equal(t, a.Category(), b.Category())

	c := Aspect{Body1: Moon, Body2: Sun, Name: "Square", Angle: 90}
	assert.NotEqual(t, a.Category(), c.Category())
}

func TestSignIndex(t *testing.T) {
	tests := []struct {
		lon  float64
		want int
	}{
		{0, 0},
		{29.999, 0},
		{30, 1},
		{359.9, 11},
		{360, 0},
		{-0.5, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SignIndex(tt.lon), "lon=%v", tt.lon)
	}
}

func TestAspectName(t *testing.T) {
	assert.Equal(t, "Square", AspectName(90))
	assert.Equal(t, "Trine", AspectName(120.8))
	assert.Equal(t, "45° Aspect", AspectName(45))
}

func TestProfilesLookup(t *testing.T) {
	p := DefaultProfiles()
	assert.Equal(t, 6*time.Hour, p.Lookup(Moon).SignStep)
	assert.False(t, p.Lookup(Sun).Retrogrades)
	assert.Equal(t, DefaultProfile, p.Lookup(Body("vulcan")))

	for body, prof := range p {
		assert.NoError(t, prof.Validate(), "profile %s", body)
	}
}

func TestBodyTitle(t *testing.T) {
	assert.Equal(t, "Jupiter", Jupiter.Title())
}
