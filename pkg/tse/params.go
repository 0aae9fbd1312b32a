// Package tse builds the single-shot Turbo Spin Echo sequence used for the
// artifact figure: an optional inversion preparation, one excitation and a
// train of refocusing pulses with one phase-encoded readout per echo.
package tse

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid TSE parameters")

// Ordering is the phase-encode ordering of the echo train.
type Ordering string

const (
	OrderingLinear  Ordering = "linear"
	OrderingCentric Ordering = "centric"
)

// ADCPhaseMode selects how the receiver phase evolves over the echo train.
type ADCPhaseMode string

const (
	// ADCPhaseSameAsExcitation keeps the receiver at the excitation phase
	ADCPhaseSameAsExcitation ADCPhaseMode = "same-as-excitation"

	// ADCPhaseAlternating adds pi to the receiver phase before every readout
	ADCPhaseAlternating ADCPhaseMode = "alternating"
)

// Params is the full configuration of one sequence variant.
// Angles are in degrees, times in seconds, lengths in metres.
type Params struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`

	Resolution int     `yaml:"resolution"`
	TE         float64 `yaml:"te"`
	TI         float64 `yaml:"ti"`

	ExcitationFlip  float64 `yaml:"excitationFlip"`
	ExcitationPhase float64 `yaml:"excitationPhase"`
	RefocusingFlip  float64 `yaml:"refocusingFlip"`
	RefocusingPhase float64 `yaml:"refocusingPhase"`

	ADCPhase     ADCPhaseMode `yaml:"adcPhase"`
	SpoilerRatio float64      `yaml:"spoilerRatio"`
	Ordering     Ordering     `yaml:"ordering"`

	PhaseEncodeOn bool `yaml:"phaseEncodeOn"`
	ReadoutOn     bool `yaml:"readoutOn"`

	FOV            float64 `yaml:"fov"`
	SliceThickness float64 `yaml:"sliceThickness"`
	Dwell          float64 `yaml:"dwell"`
}

// DefaultParams returns the reference-correct acquisition: CPMG phases,
// readout spoilers on and linear ordering at 64x64.
func DefaultParams() Params {
	return Params{
		Name:            "correct",
		Label:           "e)",
		Resolution:      64,
		TE:              10e-3,
		TI:              4,
		ExcitationFlip:  50,
		ExcitationPhase: 90,
		RefocusingFlip:  100,
		RefocusingPhase: 0,
		ADCPhase:        ADCPhaseSameAsExcitation,
		SpoilerRatio:    1,
		Ordering:        OrderingLinear,
		PhaseEncodeOn:   true,
		ReadoutOn:       true,
		FOV:             200e-3,
		SliceThickness:  50e-3,
		Dwell:           100e-6,
	}
}

// FigureVariants returns the five variants of the artifact figure in
// panel order.
func FigureVariants() []Params {
	base := DefaultParams()

	a := base
	a.Name, a.Label = "no-rf-phase", "a)"
	a.ExcitationFlip, a.ExcitationPhase = 90, 0
	a.RefocusingFlip, a.RefocusingPhase = 180, 0

	b := a
	b.Name, b.Label = "alternating-adc", "b)"
	b.ADCPhase = ADCPhaseAlternating

	c := base
	c.Name, c.Label = "no-readout-spoiler", "c)"
	c.SpoilerRatio = 0

	d := base
	d.Name, d.Label = "centric", "d)"
	d.Ordering = OrderingCentric

	e := base

	return []Params{a, b, c, d, e}
}

// Validate checks the parameters for values the builder cannot handle.
func (p Params) Validate() error {
	switch {
	case p.Resolution < 2 || p.Resolution%2 != 0:
		return fmt.Errorf("%w: resolution %d must be even and at least 2", ErrInvalidParams, p.Resolution)
	case p.TE < 0:
		return fmt.Errorf("%w: negative echo time %g", ErrInvalidParams, p.TE)
	case p.TI < 0:
		return fmt.Errorf("%w: negative inversion time %g", ErrInvalidParams, p.TI)
	case p.FOV <= 0:
		return fmt.Errorf("%w: field of view %g", ErrInvalidParams, p.FOV)
	case p.SliceThickness <= 0:
		return fmt.Errorf("%w: slice thickness %g", ErrInvalidParams, p.SliceThickness)
	case p.Dwell <= 0:
		return fmt.Errorf("%w: dwell %g", ErrInvalidParams, p.Dwell)
	case p.SpoilerRatio < 0:
		return fmt.Errorf("%w: negative spoiler ratio %g", ErrInvalidParams, p.SpoilerRatio)
	}
	switch p.Ordering {
	case OrderingLinear, OrderingCentric:
	default:
		return fmt.Errorf("%w: unknown ordering %q", ErrInvalidParams, p.Ordering)
	}
	switch p.ADCPhase {
	case ADCPhaseSameAsExcitation, ADCPhaseAlternating:
	default:
		return fmt.Errorf("%w: unknown ADC phase mode %q", ErrInvalidParams, p.ADCPhase)
	}
	return nil
}
