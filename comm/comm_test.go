package comm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectives(t *testing.T) {
	{ // Test reductions agree on every rank
		w := NewWorld(4)
		sums := make([]float64, 4)
		maxes := make([]float64, 4)
		mins := make([]float64, 4)
		err := w.Run(func(c *Comm) error {
			v := float64(c.Rank() + 1)
			sums[c.Rank()] = c.SumAll(v)
			maxes[c.Rank()] = c.MaxAll(v)
			mins[c.Rank()] = c.MinAll(v)
			c.Barrier()
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []float64{10, 10, 10, 10}, sums)
		assert.Equal(t, []float64{4, 4, 4, 4}, maxes)
		assert.Equal(t, []float64{1, 1, 1, 1}, mins)
	}
	{ // Test all to all delivery by source
		w := NewWorld(3)
		got := make([][][]int, 3)
		err := w.Run(func(c *Comm) error {
			out := make([][]int, c.Size())
			for dst := range out {
				out[dst] = []int{c.Rank(), dst}
			}
			got[c.Rank()] = c.AllToAllInts(out)
			return nil
		})
		require.NoError(t, err)
		for me := 0; me < 3; me++ {
			for src := 0; src < 3; src++ {
				assert.Equal(t, []int{src, me}, got[me][src])
			}
		}
	}
	{ // Test errors and panics surface from the lowest rank
		w := NewWorld(2)
		sentinel := errors.New("rank failure")
		err := w.Run(func(c *Comm) error {
			if c.Rank() == 1 {
				return sentinel
			}
			return nil
		})
		assert.True(t, errors.Is(err, sentinel))
		err = w.Run(func(c *Comm) error {
			panic("boom")
		})
		assert.Error(t, err)
	}
	{ // Test single rank shortcuts
		c := Self()
		assert.Equal(t, 2.5, c.SumAll(2.5))
		assert.Equal(t, 3, c.MaxAllInt(3))
	}
}

func TestExchanger(t *testing.T) {
	// Two ranks, each owns entities 0,1 and ghosts the other's entity 1 in slot 2
	w := NewWorld(2)
	results := make([][]float64, 2)
	gathered := make([][]float64, 2)
	markers := make([][]int, 2)
	err := w.Run(func(c *Comm) error {
		other := 1 - c.Rank()
		ex := NewExchanger(c,
			map[int][]int{other: {1}},
			map[int][]int{other: {2}},
		)
		vals := []float64{float64(10 * (c.Rank() + 1)), float64(10*(c.Rank()+1) + 1), -1}
		ex.Scatter(vals)
		results[c.Rank()] = append([]float64{}, vals...)
		vals[2] = 100
		ex.Gather(vals)
		gathered[c.Rank()] = vals
		ints := []int{c.Rank(), 7 * (c.Rank() + 1), 0}
		ex.ScatterInts(ints)
		markers[c.Rank()] = ints
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 21}, results[0])
	assert.Equal(t, []float64{20, 21, 11}, results[1])
	assert.Equal(t, []float64{10, 111, 100}, gathered[0])
	assert.Equal(t, []float64{20, 121, 100}, gathered[1])
	assert.Equal(t, []int{0, 7, 14}, markers[0])
	assert.Equal(t, []int{1, 14, 7}, markers[1])
}
