package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	{ // Test bucket sizes are balanced to within one
		histo := func(K, Np int) (h map[int]int) {
			pm := NewPartitionMap(Np, K)
			h = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				h[pm.Size(np)]++
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, histo(2, 32))
		assert.Equal(t, map[int]int{1: 32}, histo(32, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, histo(287, 32))
		for n := 64; n < 2000; n++ {
			var total int
			for size, count := range histo(n, 7) {
				assert.True(t, size == n/7 || size == n/7+1)
				total += size * count
			}
			assert.Equal(t, n, total)
		}
	}
	{ // Test the owner lookup agrees with the ranges in at most one step
		for maxIndex := 10; maxIndex < 500; maxIndex++ {
			pm := NewPartitionMap(5, maxIndex)
			for k := 0; k < maxIndex; k++ {
				bn, tries := pm.owner(k)
				kMin, kMax := pm.Range(bn)
				assert.True(t, k >= kMin && k < kMax && tries <= 1)
			}
			assert.Equal(t, -1, pm.Owner(maxIndex))
		}
	}
}
