package sequence

import (
	"fmt"
	"math"
)

// Event is one of *RF, *Trapezoid, *ADC or Delay.
type Event interface {
	isEvent()
}

// ADC is an analog-to-digital conversion window.
type ADC struct {
	NumSamples  int
	Dwell       float64
	Delay       float64
	PhaseOffset float64
	DeadTime    float64
}

func (*ADC) isEvent() {}

// SampleTime returns the time of sample i measured from the block start.
func (a *ADC) SampleTime(i int) float64 {
	return a.Delay + (float64(i)+0.5)*a.Dwell
}

func (a *ADC) end() float64 {
	return a.Delay + float64(a.NumSamples)*a.Dwell + a.DeadTime
}

// ADCOption configures MakeADC.
type ADCOption func(*ADC)

// WithADCPhase sets the receiver phase in radians.
func WithADCPhase(p float64) ADCOption {
	return func(a *ADC) { a.PhaseOffset = p }
}

// WithADCDelay sets the ADC delay; it is raised to the dead time if shorter.
func WithADCDelay(d float64) ADCOption {
	return func(a *ADC) { a.Delay = d }
}

// MakeADC returns an ADC window of n samples spread over duration.
func MakeADC(n int, duration float64, lim Limits, opts ...ADCOption) (*ADC, error) {
	if n <= 0 || duration <= 0 {
		return nil, fmt.Errorf("%w: adc needs samples and duration, got %d / %g", ErrInvalidEvent, n, duration)
	}
	a := &ADC{
		NumSamples: n,
		Dwell:      duration / float64(n),
		DeadTime:   lim.ADCDeadTime,
	}
	for _, o := range opts {
		o(a)
	}
	if a.Delay < a.DeadTime {
		a.Delay = a.DeadTime
	}
	return a, nil
}

// Delay is a pure wait.
type Delay float64

func (Delay) isEvent() {}

// MakeDelay returns a delay event of d seconds.
func MakeDelay(d float64) (Delay, error) {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0, fmt.Errorf("%w: %g s", ErrInvalidDelay, d)
	}
	return Delay(d), nil
}

// CalcDuration returns the duration of a block made of events.
func CalcDuration(events ...Event) float64 {
	var d float64
	for _, e := range events {
		var end float64
		switch ev := e.(type) {
		case *RF:
			end = ev.end()
		case *Trapezoid:
			end = ev.Duration()
		case *ADC:
			end = ev.end()
		case Delay:
			end = float64(ev)
		}
		d = math.Max(d, end)
	}
	return d
}

// Block is a set of events played out simultaneously.
type Block struct {
	RF    *RF
	GX    *Trapezoid
	GY    *Trapezoid
	GZ    *Trapezoid
	ADC   *ADC
	Delay Delay
}

// Gradients returns the non-nil gradients of the block.
func (b *Block) Gradients() []*Trapezoid {
	var gs []*Trapezoid
	for _, g := range []*Trapezoid{b.GX, b.GY, b.GZ} {
		if g != nil {
			gs = append(gs, g)
		}
	}
	return gs
}

// Duration returns the block duration.
func (b *Block) Duration() float64 {
	return CalcDuration(b.events()...)
}

func (b *Block) events() []Event {
	var es []Event
	if b.RF != nil {
		es = append(es, b.RF)
	}
	for _, g := range b.Gradients() {
		es = append(es, g)
	}
	if b.ADC != nil {
		es = append(es, b.ADC)
	}
	if b.Delay > 0 {
		es = append(es, b.Delay)
	}
	return es
}

// newBlock copies the events into a block.
func newBlock(events []Event) (*Block, error) {
	b := &Block{}
	for _, e := range events {
		switch ev := e.(type) {
		case *RF:
			if ev == nil {
				continue
			}
			if b.RF != nil {
				return nil, fmt.Errorf("%w: two RF events in one block", ErrInvalidEvent)
			}
			c := *ev
			b.RF = &c
		case *Trapezoid:
			if ev == nil {
				continue
			}
			c := *ev
			switch ev.Channel {
			case ChannelX:
				if b.GX != nil {
					return nil, fmt.Errorf("%w: two gradients on x", ErrInvalidEvent)
				}
				b.GX = &c
			case ChannelY:
				if b.GY != nil {
					return nil, fmt.Errorf("%w: two gradients on y", ErrInvalidEvent)
				}
				b.GY = &c
			case ChannelZ:
				if b.GZ != nil {
					return nil, fmt.Errorf("%w: two gradients on z", ErrInvalidEvent)
				}
				b.GZ = &c
			default:
				return nil, fmt.Errorf("%w: unknown channel %q", ErrInvalidEvent, ev.Channel)
			}
		case *ADC:
			if ev == nil {
				continue
			}
			if b.ADC != nil {
				return nil, fmt.Errorf("%w: two ADC events in one block", ErrInvalidEvent)
			}
			c := *ev
			b.ADC = &c
		case Delay:
			if ev > b.Delay {
				b.Delay = ev
			}
		case nil:
			return nil, fmt.Errorf("%w: nil event", ErrInvalidEvent)
		}
	}
	return b, nil
}
