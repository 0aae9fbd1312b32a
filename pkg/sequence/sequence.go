package sequence

import (
	"fmt"
)

// Sequence is an ordered list of blocks played out back to back.
type Sequence struct {
	limits Limits
	blocks []*Block
}

// NewSequence creates an empty sequence for the given system limits.
func NewSequence(lim Limits) *Sequence {
	return &Sequence{limits: lim}
}

// AddBlock appends a block made of events. The events are copied, so a
// caller may keep modifying an event (for instance the ADC phase) after
// adding it.
func (s *Sequence) AddBlock(events ...Event) error {
	b, err := newBlock(events)
	if err != nil {
		return fmt.Errorf("block %d: %w", len(s.blocks), err)
	}
	s.blocks = append(s.blocks, b)
	return nil
}

// Blocks returns the blocks in play-out order.
func (s *Sequence) Blocks() []*Block {
	return s.blocks
}

// Duration returns the total sequence duration.
func (s *Sequence) Duration() float64 {
	var d float64
	for _, b := range s.blocks {
		d += b.Duration()
	}
	return d
}

// NumSamples returns the total number of ADC samples.
func (s *Sequence) NumSamples() int {
	var n int
	for _, b := range s.blocks {
		if b.ADC != nil {
			n += b.ADC.NumSamples
		}
	}
	return n
}

// TimingViolation describes one timing problem found by CheckTiming.
type TimingViolation struct {
	Block   int
	Event   string
	Message string
}

func (v TimingViolation) String() string {
	return fmt.Sprintf("block %d (%s): %s", v.Block, v.Event, v.Message)
}

// CheckTiming verifies that every block and event is aligned to the
// hardware rasters and that RF and ADC events respect their dead times.
// Ringdown and ADC dead time always fit since CalcDuration includes them.
// Events built by hand rather than by the Make functions are checked the
// same way. An empty result means the sequence passed.
func (s *Sequence) CheckTiming() []TimingViolation {
	var out []TimingViolation
	lim := s.limits
	add := func(block int, event, format string, args ...any) {
		out = append(out, TimingViolation{Block: block, Event: event, Message: fmt.Sprintf(format, args...)})
	}

	for i, b := range s.blocks {
		dur := b.Duration()
		if !onRaster(dur, lim.BlockDurationRaster) {
			add(i, "block", "duration %.2f us is not on the %.2f us block raster", dur*1e6, lim.BlockDurationRaster*1e6)
		}

		if rf := b.RF; rf != nil {
			if rf.Delay+1e-12 < rf.DeadTime {
				add(i, "rf", "delay %.2f us is shorter than the dead time %.2f us", rf.Delay*1e6, rf.DeadTime*1e6)
			}
			if !onRaster(rf.Delay, lim.RFRasterTime) {
				add(i, "rf", "delay %.2f us is not on the RF raster", rf.Delay*1e6)
			}
		}

		for _, g := range b.Gradients() {
			ev := "g" + string(g.Channel)
			for _, t := range []struct {
				name string
				v    float64
			}{{"delay", g.Delay}, {"rise time", g.RiseTime}, {"flat time", g.FlatTime}, {"fall time", g.FallTime}} {
				if !onRaster(t.v, lim.GradRasterTime) {
					add(i, ev, "%s %.2f us is not on the gradient raster", t.name, t.v*1e6)
				}
			}
		}

		if a := b.ADC; a != nil {
			if a.Delay+1e-12 < a.DeadTime {
				add(i, "adc", "delay %.2f us is shorter than the dead time %.2f us", a.Delay*1e6, a.DeadTime*1e6)
			}
			if !onRaster(a.Dwell, lim.ADCRasterTime) {
				add(i, "adc", "dwell %.4f us is not on the ADC raster", a.Dwell*1e6)
			}
		}
	}
	return out
}
