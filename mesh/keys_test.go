package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdgeKey(t *testing.T) {
	assert.Equal(t, NewEdgeKey(4, 0), NewEdgeKey(0, 4))
	v1, v2 := NewEdgeKey(70000, 3).Nodes()
	assert.Equal(t, 3, v1)
	assert.Equal(t, 70000, v2)
	v1, v2 = NewEdgeKey(9, 9).Nodes()
	assert.Equal(t, [2]int{9, 9}, [2]int{v1, v2})
	assert.NotEqual(t, NewEdgeKey(1, 2), NewEdgeKey(2, 3))
	assert.Panics(t, func() { NewEdgeKey(-1, 2) })
}
