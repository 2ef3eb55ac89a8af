package timestep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandard(t *testing.T) {
	cfg := Config{
		MaxIterations:   20,
		MinIterations:   5,
		ReductionFactor: 0.5,
		IncreaseFactor:  2,
		MaxDT:           10,
		MinDT:           0.1,
	}
	c, err := NewStandard(cfg)
	require.NoError(t, err)
	{ // Test growth, shrink and bounds
		next, err := c.NextStep(1, 2)
		require.NoError(t, err)
		assert.Equal(t, 2., next)
		next, _ = c.NextStep(1, 10)
		assert.Equal(t, 1., next)
		next, _ = c.NextStep(1, 30)
		assert.Equal(t, 0.5, next)
		next, _ = c.NextStep(8, 1)
		assert.Equal(t, 10., next)
		next, _ = c.NextStep(0.15, 30)
		assert.Equal(t, 0.1, next)
	}
	{ // Test failures shrink until the minimum step
		next, err := c.NextStep(1, Failed)
		require.NoError(t, err)
		assert.Equal(t, 0.5, next)
		_, err = c.NextStep(0.15, Failed)
		assert.ErrorIs(t, err, ErrTimestepTooSmall)
	}
	{ // Test parameter validation
		for _, bad := range []Config{
			{MaxIterations: 5, MinIterations: 5, ReductionFactor: 0.5, IncreaseFactor: 2, MaxDT: 1, MinDT: 0.1},
			{MaxIterations: 9, MinIterations: 5, ReductionFactor: 1.5, IncreaseFactor: 2, MaxDT: 1, MinDT: 0.1},
			{MaxIterations: 9, MinIterations: 5, ReductionFactor: 0.5, IncreaseFactor: 0.9, MaxDT: 1, MinDT: 0.1},
			{MaxIterations: 9, MinIterations: 5, ReductionFactor: 0.5, IncreaseFactor: 2, MaxDT: 0.01, MinDT: 0.1},
		} {
			_, err := NewStandard(bad)
			assert.ErrorIs(t, err, ErrBadParameters)
		}
		_, err := NewStandard(DefaultConfig())
		assert.NoError(t, err)
	}
}

func TestLimit(t *testing.T) {
	dt, err := Limit(0, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1., dt)
	dt, _ = Limit(9, 2, 10)
	assert.Equal(t, 1., dt)
	dt, _ = Limit(8, 1.8, 10)
	assert.Equal(t, 1., dt)
	_, err = Limit(11, 1, 10)
	assert.ErrorIs(t, err, ErrBadParameters)
}
