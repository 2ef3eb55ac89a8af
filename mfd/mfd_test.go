package mfd

import (
	"testing"

	"github.com/notargets/subflow/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sloped2D(t *testing.T) *mesh.Structured {
	m, err := mesh.NewStructured(mesh.Box{Dim: 2, N: [3]int{3, 2}, High: [3]float64{3, 1},
		Top: func(x, y float64) float64 { return 1 + 0.2*x }}, nil)
	require.NoError(t, err)
	return m
}

func TestTensor(t *testing.T) {
	{ // Test isotropic collapses to scalar
		K := NewPermeability(3, 2, 2)
		assert.Equal(t, 1, K.Rank)
		assert.Equal(t, []float64{4, 6, 8}, K.Apply([]float64{2, 3, 4}))
	}
	{ // Test anisotropic diagonal and scaling
		K := NewPermeability(2, 3, 1).Scale(2)
		assert.Equal(t, 2, K.Rank)
		assert.Equal(t, []float64{6, 2}, K.Apply([]float64{1, 1}))
		assert.Equal(t, 6., K.Dense().At(0, 0))
		assert.Equal(t, 0., K.Dense().At(0, 1))
		assert.Panics(t, func() { K.Apply([]float64{1}) })
	}
}

func TestDarcyMassInverse(t *testing.T) {
	for _, m := range []*mesh.Structured{sloped2D(t)} {
		dim := m.SpaceDimension()
		K := NewPermeability(dim, 2, 0.5)
		for c := 0; c < m.NumEntities(mesh.Cell, mesh.Owned); c++ {
			W, err := DarcyMassInverse(m, c, K)
			require.NoError(t, err)
			faces, dirs := m.CellFaces(c)
			xc := m.CellCentroid(c)
			// consistency W X = N K
			for d := 0; d < dim; d++ {
				g := make([]float64, dim)
				g[d] = 1
				Kg := K.Apply(g)
				for i := range faces {
					lhs := 0.
					for j, f := range faces {
						lhs += W.At(i, j) * (m.FaceCentroid(f)[d] - xc[d])
					}
					rhs := 0.
					nrm := m.FaceNormal(faces[i])
					for k := 0; k < dim; k++ {
						rhs += float64(dirs[i]) * nrm[k] * Kg[k]
					}
					assert.InDelta(t, rhs, lhs, 1.e-12)
				}
			}
			assert.True(t, mat.Equal(W, W.T()) || mat.EqualApprox(W, W.T(), 1.e-14))
			var chol mat.Cholesky
			assert.True(t, chol.Factorize(mat.NewSymDense(len(faces), W.RawMatrix().Data)))
			A := DarcyStiffness(W)
			n, _ := A.Dims()
			for i := 0; i < n; i++ {
				row := 0.
				for j := 0; j < n; j++ {
					row += A.At(i, j)
				}
				assert.InDelta(t, 0., row, 1.e-12)
			}
		}
	}
}

func TestNodalStiffness(t *testing.T) {
	m3, err := mesh.NewStructured(mesh.Box{Dim: 3, N: [3]int{1, 1, 1}, High: [3]float64{1, 2, 0.5}}, nil)
	require.NoError(t, err)
	for _, m := range []mesh.Mesh{sloped2D(t), m3} {
		dim := m.SpaceDimension()
		K := NewPermeability(dim, 1, 3)
		A, err := NodalStiffness(m, 0, K)
		require.NoError(t, err)
		nodes := m.CellNodes(0)
		nn := len(nodes)
		// constants in the kernel, linear fields give the boundary flux moments
		ones := mat.NewVecDense(nn, nil)
		for i := 0; i < nn; i++ {
			ones.SetVec(i, 1)
		}
		var r mat.VecDense
		r.MulVec(A, ones)
		for i := 0; i < nn; i++ {
			assert.InDelta(t, 0., r.AtVec(i), 1.e-12)
		}
		assert.True(t, mat.EqualApprox(A, A.T(), 1.e-13))
	}
}

func TestTPFATransmissibility(t *testing.T) {
	m, err := mesh.NewStructured(mesh.Box{Dim: 2, N: [3]int{2, 1}, High: [3]float64{2, 1}}, nil)
	require.NoError(t, err)
	K := func(c int) Tensor { return NewScalarTensor(2, float64(c+1)) }
	faces, _ := m.CellFaces(0)
	{ // Test interior face between k=1 and k=2, half distances 0.5
		A, err := TPFATransmissibility(m, faces[1], K)
		require.NoError(t, err)
		T := 2. * 4. / (2. + 4.)
		assert.InDelta(t, T, A.At(0, 0), 1.e-14)
		assert.InDelta(t, -T, A.At(0, 1), 1.e-14)
	}
	{ // Test boundary face
		A, err := TPFATransmissibility(m, faces[3], K)
		require.NoError(t, err)
		r, c := A.Dims()
		assert.Equal(t, [2]int{1, 1}, [2]int{r, c})
		assert.InDelta(t, 2., A.At(0, 0), 1.e-14)
	}
}
