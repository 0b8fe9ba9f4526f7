// Package timeline provides iterators over discretized time intervals.
//
// A [Regular] timeline yields nstep evenly spaced samples over the half-open
// interval [min, max): min is always the first sample (when min < max) and
// max is never yielded. Each sample is computed as min + k*step from its
// index k rather than by repeated addition, so rounding does not accumulate
// into an extra or missing sample near max.
//
// Timelines are one-shot: once exhausted they stay exhausted, and a new
// timeline must be built to iterate again.
//
//	tl, err := timeline.New(0, 1, 10)
//	if err != nil {
//	    return err
//	}
//	for t := range tl.All() {
//	    sim.Forward(&b, tl.Step())
//	    fmt.Println(t)
//	}
package timeline

import (
	"iter"

	"github.com/rodysim/rody/pkg/errors"
)

// Regular is a one-shot cursor over evenly spaced time samples.
type Regular struct {
	min   float64
	max   float64
	step  float64
	nstep int
	k     int // index of the next sample
}

// New builds a timeline from min towards max in nstep steps. When
// min >= max the step is zero and the timeline is empty from the start.
//
// nstep must be positive; a zero or negative step count is rejected with
// errors.ErrCodeInvalidTimeline rather than producing a non-finite step.
func New(min, max float64, nstep int) (*Regular, error) {
	if err := errors.ValidateTimeline(min, max, nstep); err != nil {
		return nil, err
	}
	var dt float64
	if min < max {
		dt = (max - min) / float64(nstep)
		// a step lost to rounding would yield the same sample repeatedly
		if min+dt == min {
			return nil, errors.New(errors.ErrCodeInvalidTimeline,
				"step %g is too small to advance from %g", dt, min)
		}
	}
	return &Regular{min: min, max: max, step: dt, nstep: nstep}, nil
}

// MustNew is like New but panics on invalid input. Intended for tests and
// fixed literals.
func MustNew(min, max float64, nstep int) *Regular {
	tl, err := New(min, max, nstep)
	if err != nil {
		panic(err)
	}
	return tl
}

// Next returns the current sample and advances the cursor by one step. ok is
// false once the cursor has reached max.
func (r *Regular) Next() (t float64, ok bool) {
	if r.Done() {
		return 0, false
	}
	t = r.Current()
	r.k++
	return t, true
}

// All returns an iterator over the remaining samples. It shares the cursor
// with Next: ranging a second time yields nothing.
func (r *Regular) All() iter.Seq[float64] {
	return func(yield func(float64) bool) {
		for {
			t, ok := r.Next()
			if !ok || !yield(t) {
				return
			}
		}
	}
}

// Step returns the fixed increment between samples. It never changes.
func (r *Regular) Step() float64 { return r.step }

// Min returns the first sample of the timeline.
func (r *Regular) Min() float64 { return r.min }

// Max returns the exclusive upper bound.
func (r *Regular) Max() float64 { return r.max }

// Current returns the sample Next would yield. Once the timeline is
// exhausted it is at least Max (or min when the timeline was empty).
func (r *Regular) Current() float64 {
	return r.min + float64(r.k)*r.step
}

// Done reports whether the timeline is exhausted.
func (r *Regular) Done() bool {
	return r.k >= r.nstep || !(r.Current() < r.max)
}

// Len returns the number of samples left.
func (r *Regular) Len() int {
	if r.Done() {
		return 0
	}
	return r.nstep - r.k
}
