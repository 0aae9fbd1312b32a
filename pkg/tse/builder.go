package tse

import (
	"fmt"
	"math"

	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/sequence"
)

const (
	rfDuration          = 1e-3
	phaseEncodeDuration = 1e-3
	preSpoilerDuration  = 1.5e-3
	prewinderDuration   = 1e-3
)

// Result is an assembled TSE sequence with the information needed to
// reconstruct and report on it.
type Result struct {
	Sequence *sequence.Sequence

	// Schedule holds the signed phase-encode index of every echo
	Schedule []int

	Timing EchoTiming

	// Violations lists timing-check failures; they do not stop the run
	Violations []sequence.TimingViolation
}

// Build assembles the TSE sequence for p.
func Build(p Params, lim sequence.Limits) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.Resolution
	fov := p.FOV
	readFlag, peFlag := boolToFloat(p.ReadoutOn), boolToFloat(p.PhaseEncodeOn)

	rf1, gz1, gzr1, err := sequence.MakeSincPulse(deg2rad(p.ExcitationFlip), lim,
		sequence.WithPhaseOffset(deg2rad(p.ExcitationPhase)),
		sequence.WithPulseDuration(rfDuration),
		sequence.WithSliceThickness(p.SliceThickness))
	if err != nil {
		return nil, fmt.Errorf("excitation pulse: %w", err)
	}
	rf2, gz2, _, err := sequence.MakeSincPulse(deg2rad(p.RefocusingFlip), lim,
		sequence.WithPhaseOffset(deg2rad(p.RefocusingPhase)),
		sequence.WithPulseDuration(rfDuration),
		sequence.WithSliceThickness(p.SliceThickness))
	if err != nil {
		return nil, fmt.Errorf("refocusing pulse: %w", err)
	}

	gx, err := sequence.MakeTrapezoid(sequence.ChannelX, lim,
		sequence.WithRiseTime(0.5*p.Dwell),
		sequence.WithFlatArea(float64(n)/fov*readFlag),
		sequence.WithFlatTime(float64(n)*p.Dwell))
	if err != nil {
		return nil, fmt.Errorf("readout gradient: %w", err)
	}
	adc, err := sequence.MakeADC(n, float64(n)*p.Dwell, lim, sequence.WithADCPhase(rf1.PhaseOffset))
	if err != nil {
		return nil, fmt.Errorf("adc: %w", err)
	}
	gxPre0, err := sequence.MakeTrapezoid(sequence.ChannelX, lim,
		sequence.WithArea((1+p.SpoilerRatio)*gx.Area/2), sequence.WithDuration(preSpoilerDuration))
	if err != nil {
		return nil, fmt.Errorf("readout pre-spoiler: %w", err)
	}
	gxPrewinder, err := sequence.MakeTrapezoid(sequence.ChannelX, lim,
		sequence.WithArea(p.SpoilerRatio*gx.Area/2), sequence.WithDuration(prewinderDuration))
	if err != nil {
		return nil, fmt.Errorf("readout prewinder: %w", err)
	}
	gpZero, err := sequence.MakeTrapezoid(sequence.ChannelY, lim,
		sequence.WithArea(0), sequence.WithDuration(phaseEncodeDuration))
	if err != nil {
		return nil, fmt.Errorf("phase encode gradient: %w", err)
	}

	schedule := PhaseEncodeSchedule(n, p.Ordering)

	timing := ComputeEchoTiming(p.TE,
		sequence.CalcDuration(gz2), sequence.CalcDuration(gx), sequence.CalcDuration(gpZero))

	seq := sequence.NewSequence(lim)

	if p.TI > 0 {
		rfPrep, err := sequence.MakeBlockPulse(math.Pi, rfDuration, lim)
		if err != nil {
			return nil, fmt.Errorf("inversion pulse: %w", err)
		}
		ti, err := sequence.MakeDelay(p.TI)
		if err != nil {
			return nil, fmt.Errorf("inversion delay: %w", err)
		}
		if err := addBlocks(seq, []sequence.Event{rfPrep}, []sequence.Event{gxPre0}, []sequence.Event{ti}); err != nil {
			return nil, err
		}
	}

	if err := addBlocks(seq, []sequence.Event{rf1, gz1}, []sequence.Event{gxPre0, gzr1}); err != nil {
		return nil, err
	}

	// The excitation and pre-spoiler already cover part of the first TE/2.
	fill, err := sequence.MakeDelay(timing.MinHalfTE + timing.Delay -
		sequence.CalcDuration(gz1) - sequence.CalcDuration(gxPre0))
	if err != nil {
		return nil, fmt.Errorf("excitation to refocusing fill: %w", err)
	}
	if err := addDelay(seq, fill); err != nil {
		return nil, err
	}

	teDelay := sequence.Delay(timing.Delay)
	for i, encoding := range schedule {
		area := float64(encoding) / fov * peFlag
		gp, err := sequence.MakeTrapezoid(sequence.ChannelY, lim,
			sequence.WithArea(area), sequence.WithDuration(phaseEncodeDuration))
		if err != nil {
			return nil, fmt.Errorf("phase encode %d: %w", i, err)
		}
		gpRewind, err := sequence.MakeTrapezoid(sequence.ChannelY, lim,
			sequence.WithArea(-area), sequence.WithDuration(phaseEncodeDuration))
		if err != nil {
			return nil, fmt.Errorf("phase rewind %d: %w", i, err)
		}

		if err := seq.AddBlock(rf2, gz2); err != nil {
			return nil, err
		}
		if err := addDelay(seq, teDelay); err != nil {
			return nil, err
		}
		if err := seq.AddBlock(gxPrewinder, gp); err != nil {
			return nil, err
		}
		if p.ADCPhase == ADCPhaseAlternating {
			adc.PhaseOffset += math.Pi
		}
		if err := seq.AddBlock(adc, gx); err != nil {
			return nil, err
		}
		if err := seq.AddBlock(gxPrewinder, gpRewind); err != nil {
			return nil, err
		}
		if err := addDelay(seq, teDelay); err != nil {
			return nil, err
		}
	}

	return &Result{
		Sequence:   seq,
		Schedule:   schedule,
		Timing:     timing,
		Violations: seq.CheckTiming(),
	}, nil
}

func addBlocks(seq *sequence.Sequence, blocks ...[]sequence.Event) error {
	for _, b := range blocks {
		if err := seq.AddBlock(b...); err != nil {
			return err
		}
	}
	return nil
}

// addDelay skips zero-length delays.
func addDelay(seq *sequence.Sequence, d sequence.Delay) error {
	if d <= 0 {
		return nil
	}
	return seq.AddBlock(d)
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
