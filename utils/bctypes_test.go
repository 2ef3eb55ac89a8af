package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBCTypes(t *testing.T) {
	{ // Test name parsing
		bc, err := ParseBCName("  Static_Head ")
		require.NoError(t, err)
		assert.Equal(t, BCHead, bc)
		bc, err = ParseBCName("SEEPAGE")
		require.NoError(t, err)
		assert.Equal(t, BCSeepage, bc)
		_, err = ParseBCName("wall")
		assert.Error(t, err)
	}
	{ // Test essential classification
		assert.True(t, BCPressure.IsEssential())
		assert.True(t, BCHead.IsEssential())
		assert.False(t, BCFlux.IsEssential())
		assert.False(t, BCSeepage.IsEssential())
		assert.False(t, BCNone.IsEssential())
		assert.Equal(t, "Flux", BCFlux.String())
		assert.Equal(t, "Unknown", BCType(200).String())
	}
	{ // Test marker reset
		bc := NewBCMarkers(3)
		bc.Model[1] = BCPressure
		bc.Values[1] = 2.5
		bc.Reset()
		assert.Equal(t, []BCType{BCNone, BCNone, BCNone}, bc.Model)
		assert.Equal(t, []float64{0, 0, 0}, bc.Values)
		assert.Equal(t, 3, bc.Len())
	}
}
