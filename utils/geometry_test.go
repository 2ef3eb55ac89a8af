package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeometry(t *testing.T) {
	{ // Test scaled vector length
		assert.InDelta(t, 5., VectorLength([]float64{3, -4}), 1.e-14)
		assert.InDelta(t, 3., VectorLength([]float64{1, 2, -2}), 1.e-14)
		assert.InDelta(t, 2., VectorLength([]float64{1, 1, 1, 1}), 1.e-14)
		assert.Equal(t, 0., VectorLength([]float64{0, 0, 0}))
		big := 1.e200
		assert.InDelta(t, math.Sqrt(2)*big, VectorLength([]float64{big, big}), 1.e186)
	}
	{ // Test products
		assert.Equal(t, []float64{0, 0, 1}, Cross([]float64{1, 0, 0}, []float64{0, 1, 0}))
		assert.Equal(t, 1., TripleProduct([]float64{1, 0, 0}, []float64{0, 1, 0}, []float64{0, 0, 1}))
		assert.Equal(t, 32., Dot([]float64{1, 2, 3}, []float64{4, 5, 6}))
	}
	{ // Test quad normal and tet volume
		x1 := []float64{0, 0, 0}
		x2 := []float64{2, 0, 0}
		x3 := []float64{2, 3, 0}
		x4 := []float64{0, 3, 0}
		assert.InDeltaSlice(t, []float64{0, 0, 6}, QuadFaceNormal(x1, x2, x3, x4), 1.e-14)
		assert.InDelta(t, 6., QuadFaceArea(x1, x2, x3, x4), 1.e-14)
		assert.InDelta(t, 1./6, TetVolume(x1, []float64{1, 0, 0}, []float64{0, 1, 0}, []float64{0, 0, 1}), 1.e-15)
	}
	{ // Test polygon area and centroid
		area, c := PolygonAreaCentroid([][]float64{{0, 0}, {2, 0}, {2, 1}, {0, 1}})
		assert.InDelta(t, 2., area, 1.e-14)
		assert.InDeltaSlice(t, []float64{1, 0.5}, c, 1.e-14)
	}
	{ // Test sorted set intersection
		assert.Equal(t, []int{2, 5}, SetIntersection([]int{1, 2, 5, 7}, []int{2, 3, 5, 8}))
		assert.Nil(t, SetIntersection([]int{1, 3}, []int{2, 4}))
	}
}
