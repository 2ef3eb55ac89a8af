// Package timestep picks the next time step from the work the nonlinear or
// linear solver needed for the last one.
package timestep

import (
	"errors"
	"fmt"
)

var (
	ErrTimestepTooSmall = errors.New("time step is too small, terminating")
	ErrBadParameters    = errors.New("invalid time step controller parameters")
)

// Failed is the iteration count reported for a failed step
const Failed = -1

type Config struct {
	MaxIterations   int     `json:"maxIterations"`
	MinIterations   int     `json:"minIterations"`
	ReductionFactor float64 `json:"reductionFactor"`
	IncreaseFactor  float64 `json:"increaseFactor"`
	MaxDT           float64 `json:"maxDT"`
	MinDT           float64 `json:"minDT"`
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:   100,
		MinIterations:   10,
		ReductionFactor: 0.5,
		IncreaseFactor:  1.25,
		MaxDT:           1.e10,
		MinDT:           1.e-10,
	}
}

// Standard shrinks the step after a failure or an expensive step and grows
// it after a cheap one, within [MinDT, MaxDT]
type Standard struct {
	Config
}

func NewStandard(cfg Config) (c *Standard, err error) {
	switch {
	case cfg.MinIterations < 0 || cfg.MaxIterations <= cfg.MinIterations:
		err = fmt.Errorf("%w: iterations must satisfy 0 <= min (%d) < max (%d)",
			ErrBadParameters, cfg.MinIterations, cfg.MaxIterations)
	case cfg.ReductionFactor < 0 || cfg.ReductionFactor > 1:
		err = fmt.Errorf("%w: reduction factor %g outside [0, 1]", ErrBadParameters, cfg.ReductionFactor)
	case cfg.IncreaseFactor < 1:
		err = fmt.Errorf("%w: increase factor %g below 1", ErrBadParameters, cfg.IncreaseFactor)
	case cfg.MinDT <= 0 || cfg.MaxDT < cfg.MinDT:
		err = fmt.Errorf("%w: step bounds [%g, %g]", ErrBadParameters, cfg.MinDT, cfg.MaxDT)
	}
	if err != nil {
		return
	}
	c = &Standard{Config: cfg}
	return
}

// NextStep returns the step to try after a step dt that took iterations,
// Failed for a failed step. A failed step must shrink and stay above MinDT.
func (c *Standard) NextStep(dt float64, iterations int) (next float64, err error) {
	next = dt
	switch {
	case iterations < 0 || iterations > c.MaxIterations:
		next = dt * c.ReductionFactor
	case iterations < c.MinIterations:
		next = dt * c.IncreaseFactor
	}
	if next > c.MaxDT {
		next = c.MaxDT
	}
	if next < c.MinDT {
		if iterations < 0 {
			err = fmt.Errorf("%w: %g below %g", ErrTimestepTooSmall, next, c.MinDT)
			return
		}
		next = c.MinDT
	}
	if iterations < 0 && dt-next < 1.e-10 {
		err = fmt.Errorf("%w: step %g did not decrease", ErrTimestepTooSmall, dt)
	}
	return
}

// Limit adjusts dt so that stepping from t lands on tEnd without leaving a
// sliver: the remainder is taken whole, or halved when dt covers most of it
func Limit(t, dt, tEnd float64) (limited float64, err error) {
	remaining := tEnd - t
	switch {
	case remaining < 0:
		err = fmt.Errorf("%w: end %g precedes time %g", ErrBadParameters, tEnd, t)
	case dt >= remaining:
		limited = remaining
	case dt > 0.75*remaining:
		limited = 0.5 * remaining
	default:
		limited = dt
	}
	return
}
