// Package sim advances blocks through time with explicit first-order Euler
// steps.
//
// [Forward] is the integration step itself. [Run] drives a block along a
// [timeline.Regular]: for every sample t it advances the block by the
// timeline's own step and reports the state reached at t + step to an
// [Observer]. The step size always comes from the timeline, so the
// integration increment and the time axis cannot disagree.
package sim

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/rodysim/rody/pkg/block"
	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/timeline"
)

// Forward advances b by one explicit Euler step: position += dt * velocity.
// Velocity is constant since no forces act on the block.
func Forward(b *block.Block, dt float64) {
	b.Position.AddIn(dt, b.Velocity)
}

// Sample is the state of the block at one point of the timeline.
type Sample struct {
	// Index counts emitted samples. The initial state, when requested, has
	// index 0; the state after the k-th step has index k.
	Index int
	// Time is the simulated time of the state.
	Time float64
	// Block is a copy of the block state at Time.
	Block block.Block
}

// Observer receives samples as the simulation progresses. Returning an error
// stops the run.
type Observer interface {
	Observe(s Sample) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(s Sample) error

// Observe calls f(s).
func (f ObserverFunc) Observe(s Sample) error { return f(s) }

// Multi fans samples out to several observers in order. Nil observers are
// skipped.
func Multi(obs ...Observer) Observer {
	return ObserverFunc(func(s Sample) error {
		for _, o := range obs {
			if o == nil {
				continue
			}
			if err := o.Observe(s); err != nil {
				return err
			}
		}
		return nil
	})
}

// Summary describes a completed run.
type Summary struct {
	Steps    int         `json:"steps"`
	Start    float64     `json:"start"`
	End      float64     `json:"end"`
	Step     float64     `json:"step"`
	Distance float64     `json:"distance"`
	Final    block.Block `json:"-" bson:"-"`
}

type config struct {
	initial bool
	logger  *log.Logger
}

// Option configures Run.
type Option func(*config)

// WithInitial also emits the state at the first timeline sample, before any
// step is taken.
func WithInitial() Option {
	return func(c *config) { c.initial = true }
}

// WithLogger logs every step at debug level.
func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Run integrates b along tl, consuming the timeline. b is updated in place
// and ends in the final state. ctx is checked between samples; on
// cancellation the error carries errors.ErrCodeCanceled and wraps ctx.Err().
func Run(ctx context.Context, b *block.Block, tl *timeline.Regular, obs Observer, opts ...Option) (Summary, error) {
	cfg := config{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if obs == nil {
		obs = ObserverFunc(func(Sample) error { return nil })
	}

	dt := tl.Step()
	origin := b.Position
	sum := Summary{Start: tl.Current(), End: tl.Current(), Step: dt}

	if cfg.initial && !tl.Done() {
		if err := obs.Observe(Sample{Index: 0, Time: tl.Current(), Block: *b}); err != nil {
			return sum, err
		}
	}

	// ctx is checked before each sample is taken, so a canceled run leaves
	// the timeline on the first sample it did not integrate.
	for !tl.Done() {
		if err := ctx.Err(); err != nil {
			sum.Final = *b
			return sum, errors.Wrap(errors.ErrCodeCanceled, err, "simulation stopped at t=%g", tl.Current())
		}
		t, _ := tl.Next()

		Forward(b, dt)
		sum.Steps++
		sum.End = t + dt

		cfg.logger.Debug("step", "k", sum.Steps, "t", sum.End, "position", b.Position)
		if err := obs.Observe(Sample{Index: sum.Steps, Time: sum.End, Block: *b}); err != nil {
			sum.Final = *b
			return sum, err
		}
	}

	sum.Final = *b
	sum.Distance = b.Position.Distance(origin)
	return sum, nil
}
