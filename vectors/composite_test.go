package vectors

import (
	"testing"

	"github.com/notargets/subflow/comm"
	"github.com/notargets/subflow/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeVector(t *testing.T) {
	m, err := mesh.NewStructured(mesh.Box{Dim: 2, N: [3]int{3, 2}, High: [3]float64{3, 2}}, nil)
	require.NoError(t, err)
	{ // Test layout and algebra
		x := NewCompositeVector(m, mesh.Face, mesh.Cell, mesh.Face)
		assert.Equal(t, []mesh.EntityKind{mesh.Face, mesh.Cell}, x.Kinds())
		assert.Equal(t, 17+6, x.OwnedSize())
		x.PutScalar(2)
		y := x.Clone()
		y.Update(1, x, 3) // y = x + 3y = 8
		assert.Equal(t, 8., y.ViewComponent(mesh.Cell, false)[0])
		assert.InDelta(t, 16.*23, x.Dot(y), 1.e-12)
		assert.InDelta(t, 8., y.NormInf(), 0)
		y.Scale(0.5)
		z := x.CloneShape()
		z.ElementWiseMultiply(x, y)
		assert.Equal(t, 8., z.ViewComponent(mesh.Face, false)[5])
		assert.False(t, z.HasComponent(mesh.Node))
		assert.Panics(t, func() { z.ViewComponent(mesh.Node, true) })
	}
}

func TestCompositeVectorExchange(t *testing.T) {
	w := comm.NewWorld(2)
	err := w.Run(func(c *comm.Comm) error {
		m, err := mesh.NewStructured(mesh.Box{Dim: 2, N: [3]int{4, 1}, High: [3]float64{4, 1}}, c)
		if err != nil {
			return err
		}
		x := NewCompositeVector(m, mesh.Cell, mesh.Node)
		x.PutScalar(1)
		x.PutScalarGhosted(0)
		x.ScatterMasterToGhosted()
		for _, v := range x.ViewComponent(mesh.Cell, true) {
			assert.Equal(t, 1., v)
		}
		// every rank adds 1 to all ghosts, owners see the ghost count
		x.PutScalar(0)
		x.PutScalarGhosted(1)
		x.GatherGhostedToMaster()
		owned := 0.
		for _, v := range x.ViewComponent(mesh.Cell, false) {
			owned += v
		}
		nghost := m.NumEntities(mesh.Cell, mesh.Used) - m.NumEntities(mesh.Cell, mesh.Owned)
		assert.Equal(t, 2., c.SumAll(owned))
		assert.Equal(t, 2, c.SumAllInt(nghost))
		assert.InDelta(t, 8., x.Norm2()*x.Norm2(), 1.e-12)
		return nil
	})
	require.NoError(t, err)
}
