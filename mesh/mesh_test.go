package mesh

import (
	"errors"
	"testing"

	"github.com/notargets/subflow/comm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitSquare(n int) Box {
	return Box{Dim: 2, N: [3]int{n, n}, High: [3]float64{1, 1}}
}

func TestStructured2D(t *testing.T) {
	m, err := NewStructured(unitSquare(4), nil)
	require.NoError(t, err)
	{ // Test counts
		assert.Equal(t, 16, m.NumEntities(Cell, Owned))
		assert.Equal(t, 40, m.NumEntities(Face, Used))
		assert.Equal(t, 25, m.NumEntities(Node, Owned))
		assert.Equal(t, 40, m.NumEntitiesGlobal(Edge))
	}
	{ // Test geometry closes: volumes sum, outward normals cancel per cell
		vol := 0.
		for c := 0; c < 16; c++ {
			vol += m.CellVolume(c)
			faces, dirs := m.CellFaces(c)
			sum := []float64{0, 0}
			for n, f := range faces {
				nrm := m.FaceNormal(f)
				for d := range sum {
					sum[d] += float64(dirs[n]) * nrm[d]
				}
				assert.InDelta(t, 0.25, m.FaceArea(f), 1.e-14)
			}
			assert.InDeltaSlice(t, []float64{0, 0}, sum, 1.e-14)
		}
		assert.InDelta(t, 1., vol, 1.e-13)
		assert.InDeltaSlice(t, []float64{0.125, 0.125}, m.CellCentroid(0), 1.e-14)
	}
	{ // Test outward normal helper and boundary detection
		faces, _ := m.CellFaces(0)
		assert.InDeltaSlice(t, []float64{0, -0.25}, FaceNormalFromCell(m, faces[0], 0), 1.e-14)
		assert.True(t, m.IsBoundaryFace(faces[0]))
		assert.False(t, m.IsBoundaryFace(faces[1]))
		assert.Len(t, m.FaceCells(faces[1], Used), 2)
	}
	{ // Test regions
		left, err := m.RegionEntities("XMin", Face, Owned)
		require.NoError(t, err)
		assert.Len(t, left, 4)
		for _, f := range left {
			assert.InDelta(t, 0., m.FaceCentroid(f)[0], 1.e-14)
		}
		nodes, err := m.RegionEntities("Top", Node, Used)
		require.NoError(t, err)
		assert.Len(t, nodes, 5)
		require.NoError(t, m.AddBoxRegion("LowerLeft", []float64{0, 0}, []float64{0.5, 0.5}))
		cells, err := m.RegionEntities("LowerLeft", Cell, Owned)
		require.NoError(t, err)
		assert.Len(t, cells, 4)
		bfaces, err := m.RegionEntities("LowerLeft", Face, Owned)
		require.NoError(t, err)
		assert.Len(t, bfaces, 4)
		_, err = m.RegionEntities("Nowhere", Cell, Owned)
		assert.True(t, errors.Is(err, ErrUnknownRegion))
		assert.Error(t, m.AddBoxRegion("All", []float64{0, 0}, []float64{1, 1}))
	}
	{ // Test invalid specifications
		_, err := NewStructured(Box{Dim: 1}, nil)
		assert.True(t, errors.Is(err, ErrBadBox))
		_, err = NewStructured(Box{Dim: 2, N: [3]int{2, 0}, High: [3]float64{1, 1}}, nil)
		assert.True(t, errors.Is(err, ErrBadBox))
	}
}

func TestStructured3D(t *testing.T) {
	b := Box{Dim: 3, N: [3]int{2, 3, 2}, High: [3]float64{2, 3, 1},
		Top: func(x, y float64) float64 { return 1 + 0.1*x + 0.05*y }}
	m, err := NewStructured(b, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, m.NumEntities(Cell, Owned))
	assert.Equal(t, 3*3*2+2*4*2+2*3*3, m.NumEntitiesGlobal(Face))
	assert.Equal(t, 3*4*3, m.NumEntitiesGlobal(Node))
	assert.Equal(t, 2*4*3+3*3*3+3*4*2, m.NumEntitiesGlobal(Edge))
	{ // Test closure and the identity sum_f (x_f - x_c) n_f^T = |c| I
		vol := 0.
		for c := 0; c < m.NumEntities(Cell, Owned); c++ {
			vol += m.CellVolume(c)
			faces, dirs := m.CellFaces(c)
			xc := m.CellCentroid(c)
			var id [3][3]float64
			for n, f := range faces {
				nrm, xf := m.FaceNormal(f), m.FaceCentroid(f)
				for i := 0; i < 3; i++ {
					for j := 0; j < 3; j++ {
						id[i][j] += float64(dirs[n]) * nrm[i] * (xf[j] - xc[j])
					}
				}
			}
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					want := 0.
					if i == j {
						want = m.CellVolume(c)
					}
					assert.InDelta(t, want, id[i][j], 1.e-12)
				}
			}
			assert.Len(t, m.CellEdges(c), 12)
			assert.Len(t, m.CellNodes(c), 8)
		}
		// Planar top: exact prism volume
		assert.InDelta(t, 2*3*(1+0.1*1+0.05*1.5), vol, 1.e-12)
	}
}

func TestStructuredPartitioned(t *testing.T) {
	const np = 3
	w := comm.NewWorld(np)
	owned := make([][4]int, np)
	err := w.Run(func(c *comm.Comm) error {
		m, err := NewStructured(Box{Dim: 3, N: [3]int{3, 2, 3}, High: [3]float64{1, 1, 1}}, c)
		if err != nil {
			return err
		}
		for _, kind := range []EntityKind{Cell, Face, Node, Edge} {
			owned[c.Rank()][kind] = m.NumEntities(kind, Owned)
			vals := make([]float64, m.NumEntities(kind, Used))
			for i := 0; i < m.NumEntities(kind, Owned); i++ {
				vals[i] = float64(m.GID(kind, i))
			}
			for i := m.NumEntities(kind, Owned); i < len(vals); i++ {
				vals[i] = -1
				assert.NotEqual(t, c.Rank(), m.Owner(kind, i))
			}
			m.Exchanger(kind).Scatter(vals)
			for i := range vals {
				assert.Equal(t, float64(m.GID(kind, i)), vals[i])
				lid, ok := m.LID(kind, m.GID(kind, i))
				assert.True(t, ok)
				assert.Equal(t, i, lid)
			}
		}
		// owned faces carry every adjacent cell locally
		for f := 0; f < m.NumEntities(Face, Owned); f++ {
			if !m.IsBoundaryFace(f) {
				assert.Len(t, m.FaceCells(f, Used), 2)
			}
		}
		return nil
	})
	require.NoError(t, err)
	var total [4]int
	for r := 0; r < np; r++ {
		for k := range total {
			total[k] += owned[r][k]
		}
	}
	assert.Equal(t, 18, total[Cell])
	assert.Equal(t, 4*2*3+3*3*3+3*2*4, total[Face])
	assert.Equal(t, 4*3*4, total[Node])
	assert.Equal(t, 3*3*4+4*2*4+4*3*3, total[Edge])
}
