package flow

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/interp"
)

var ErrBadFunction = errors.New("invalid time function")

// TimeFunction gives a boundary or source value at a time
type TimeFunction interface {
	Value(t float64) float64
}

// Constant is a time independent value
type Constant float64

func (c Constant) Value(float64) float64 { return float64(c) }

// PiecewiseLinear interpolates between (Times, Values) pairs and holds the
// end values outside the table. A single pair is a constant.
type PiecewiseLinear struct {
	Times, Values []float64
	fit           interp.PiecewiseLinear
}

func NewPiecewiseLinear(times, values []float64) (pl *PiecewiseLinear, err error) {
	if len(times) == 0 || len(times) != len(values) {
		err = fmt.Errorf("%w: %d times and %d values", ErrBadFunction, len(times), len(values))
		return
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			err = fmt.Errorf("%w: times must increase, %g follows %g", ErrBadFunction, times[i], times[i-1])
			return
		}
	}
	pl = &PiecewiseLinear{Times: times, Values: values}
	if len(times) > 1 {
		if err = pl.fit.Fit(times, values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadFunction, err)
		}
	}
	return
}

func (pl *PiecewiseLinear) Value(t float64) float64 {
	if len(pl.Times) == 1 {
		return pl.Values[0]
	}
	return pl.fit.Predict(t)
}
