package mesh

import (
	"fmt"
	"math"
)

// EdgeKey packs the global ids of two nodes, smaller first, so an edge
// compares equal whichever face or rank found it
type EdgeKey uint64

func NewEdgeKey(v1, v2 int) EdgeKey {
	if v1 < 0 || v2 < 0 || v1 > math.MaxUint32 || v2 > math.MaxUint32 {
		panic(fmt.Errorf("unable to pack node ids %d and %d into an edge key", v1, v2))
	}
	if v1 > v2 {
		v1, v2 = v2, v1
	}
	return EdgeKey(uint64(v1) | uint64(v2)<<32)
}

// Nodes returns the packed ids in ascending order
func (ek EdgeKey) Nodes() (v1, v2 int) {
	return int(ek & math.MaxUint32), int(ek >> 32)
}
