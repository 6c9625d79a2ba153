package models

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Body identifies a celestial body known to the ephemeris oracle.
type Body string

const (
	Sun     Body = "sun"
	Moon    Body = "moon"
	Mercury Body = "mercury"
	Venus   Body = "venus"
	Mars    Body = "mars"
	Jupiter Body = "jupiter"
	Saturn  Body = "saturn"
	Uranus  Body = "uranus"
	Neptune Body = "neptune"
	Pluto   Body = "pluto"
)

// Planets is the default body list for sign, aspect and station detection.
// The Moon is handled by its own categories.
var Planets = []Body{Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto, Sun}

// Title returns the capitalised display name used in descriptions.
// A Caser holds state, so each call gets its own.
func (b Body) Title() string {
	return cases.Title(language.English).String(string(b))
}

// Profile holds the per-body scan steps and velocity thresholds.
type Profile struct {
	// SignStep is the coarse scan step for sign ingress detection.
	SignStep time.Duration `mapstructure:"sign_step"`
	// StationStep is the coarse scan step for velocity sign changes.
	StationStep time.Duration `mapstructure:"station_step"`
	// Stationary is the |velocity| (deg/day) under which a body counts as
	// stationary. Exact is the tighter bound for a clean station.
	Stationary float64 `mapstructure:"stationary"`
	Exact      float64 `mapstructure:"exact"`
	// Retrogrades is false for bodies that never reverse apparent motion.
	Retrogrades bool `mapstructure:"retrogrades"`
}

// Profiles maps bodies to their profile. Lookups fall back to DefaultProfile.
type Profiles map[Body]Profile

// DefaultProfile applies to bodies missing from a Profiles table.
var DefaultProfile = Profile{
	SignStep:    24 * time.Hour,
	StationStep: 30 * 24 * time.Hour,
	Stationary:  0.1,
	Exact:       0.01,
	Retrogrades: true,
}

const day = 24 * time.Hour

// DefaultProfiles returns a fresh copy of the built-in profile table.
func DefaultProfiles() Profiles {
	return Profiles{
		Sun:     {SignStep: day, StationStep: 30 * day, Stationary: 0.1, Exact: 0.01, Retrogrades: false},
		Moon:    {SignStep: 6 * time.Hour, StationStep: 3 * day, Stationary: 0.3, Exact: 0.03, Retrogrades: false},
		Mercury: {SignStep: day, StationStep: 10 * day, Stationary: 0.05, Exact: 0.005, Retrogrades: true},
		Venus:   {SignStep: 2 * day, StationStep: 30 * day, Stationary: 0.04, Exact: 0.004, Retrogrades: true},
		Mars:    {SignStep: 5 * day, StationStep: 30 * day, Stationary: 0.03, Exact: 0.003, Retrogrades: true},
		Jupiter: {SignStep: 30 * day, StationStep: 60 * day, Stationary: 0.02, Exact: 0.002, Retrogrades: true},
		Saturn:  {SignStep: 60 * day, StationStep: 90 * day, Stationary: 0.015, Exact: 0.0015, Retrogrades: true},
		Uranus:  {SignStep: 120 * day, StationStep: 120 * day, Stationary: 0.01, Exact: 0.001, Retrogrades: true},
		Neptune: {SignStep: 180 * day, StationStep: 150 * day, Stationary: 0.008, Exact: 0.0008, Retrogrades: true},
		Pluto:   {SignStep: 240 * day, StationStep: 180 * day, Stationary: 0.006, Exact: 0.0006, Retrogrades: true},
	}
}

// Lookup returns the profile for b or DefaultProfile.
func (p Profiles) Lookup(b Body) Profile {
	if prof, ok := p[b]; ok {
		return prof
	}
	return DefaultProfile
}

// Validate checks profile constraints.
func (p Profile) Validate() error {
	if p.SignStep <= 0 {
		return fmt.Errorf("sign step must be positive")
	}
	if p.StationStep <= 0 {
		return fmt.Errorf("station step must be positive")
	}
	if p.Stationary < 0 || p.Exact < 0 {
		return fmt.Errorf("velocity thresholds must not be negative")
	}
	if p.Exact > p.Stationary {
		return fmt.Errorf("exact threshold must not exceed stationary threshold")
	}
	return nil
}
