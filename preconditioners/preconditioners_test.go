package preconditioners

import (
	"math"
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func laplacian1D(n int) *sparse.CSR {
	d := sparse.NewDOK(n, n)
	for i := 0; i < n; i++ {
		d.Set(i, i, 2)
		if i > 0 {
			d.Set(i, i-1, -1)
		}
		if i < n-1 {
			d.Set(i, i+1, -1)
		}
	}
	return SortedCSR(d)
}

func energy(A *sparse.CSR, e []float64) (r float64) {
	Ae := make([]float64, len(e))
	A.MulVecTo(Ae, false, e)
	for i := range e {
		r += e[i] * Ae[i]
	}
	return
}

func TestSortedCSR(t *testing.T) {
	d := sparse.NewDOK(3, 4)
	for _, j := range []int{3, 0, 2} {
		d.Set(1, j, float64(j+1))
	}
	d.Set(0, 0, 0)
	AddTo(d, 1, 2, 10)
	AddTo(d, 2, 1, -1)
	A := SortedCSR(d)
	raw := A.RawMatrix()
	assert.Equal(t, []int{0, 1, 4, 5}, raw.Indptr)
	assert.Equal(t, []int{0, 0, 2, 3, 1}, raw.Ind)
	assert.Equal(t, []float64{0, 1, 13, 4, -1}, raw.Data)
	{ // Test the product and the residual go through the sparse kernels
		x := []float64{1, 1, 1, 1}
		y := make([]float64, 3)
		A.MulVecTo(y, false, x)
		assert.Equal(t, []float64{0, 18, -1}, y)
		r := make([]float64, 3)
		residual(raw, x, []float64{1, 1, 1}, r)
		assert.Equal(t, []float64{1, -17, 2}, r)
	}
}

func TestFactory(t *testing.T) {
	{ // Test type selection
		for name, want := range map[string]Preconditioner{
			"":         &Identity{},
			"Jacobi":   &Jacobi{},
			"ssor":     &SSOR{},
			"direct":   &Direct{},
			"amg":      &AMG{},
			"schur":    &Schur{},
			"identity": &Identity{},
		} {
			pc, err := New(Config{Type: name}, BlockLayout{})
			require.NoError(t, err)
			assert.IsType(t, want, pc)
		}
	}
	{ // Test bad types
		_, err := New(Config{Type: "ilu7"}, BlockLayout{})
		assert.ErrorIs(t, err, ErrUnknownType)
		_, err = New(Config{Type: "schur", Inner: &Config{Type: "schur"}}, BlockLayout{})
		assert.ErrorIs(t, err, ErrUnknownType)
	}
	{ // Test use before update
		y := make([]float64, 2)
		for _, pc := range []Preconditioner{&Jacobi{}, &SSOR{}, &Direct{}, NewAMG(Config{}), &Schur{}} {
			assert.ErrorIs(t, pc.ApplyInverse([]float64{1, 1}, y), ErrNotUpdated)
		}
	}
}

func TestSimplePreconditioners(t *testing.T) {
	A := laplacian1D(5)
	x := []float64{1, 2, 3, 4, 5}
	y := make([]float64, 5)
	{ // Test identity
		pc := &Identity{}
		require.NoError(t, pc.Update(A))
		require.NoError(t, pc.ApplyInverse(x, y))
		assert.Equal(t, x, y)
	}
	{ // Test jacobi
		pc := &Jacobi{}
		require.NoError(t, pc.Update(A))
		require.NoError(t, pc.ApplyInverse(x, y))
		assert.Equal(t, []float64{0.5, 1, 1.5, 2, 2.5}, y)
	}
	{ // Test direct solves exactly
		pc := &Direct{}
		require.NoError(t, pc.Update(A))
		require.NoError(t, pc.ApplyInverse(x, y))
		Ay := make([]float64, 5)
		A.MulVecTo(Ay, false, y)
		assert.InDeltaSlice(t, x, Ay, 1.e-12)
	}
	{ // Test ssor reduces the energy error
		exact := make([]float64, 5)
		d := &Direct{}
		require.NoError(t, d.Update(A))
		require.NoError(t, d.ApplyInverse(x, exact))
		pc := &SSOR{Sweeps: 2, Omega: 1.2}
		require.NoError(t, pc.Update(A))
		require.NoError(t, pc.ApplyInverse(x, y))
		e := make([]float64, 5)
		for i := range e {
			e[i] = exact[i] - y[i]
		}
		assert.Less(t, energy(A, e), energy(A, exact))
	}
}

func TestAMG(t *testing.T) {
	n := 200
	A := laplacian1D(n)
	b := make([]float64, n)
	for i := range b {
		b[i] = math.Sin(float64(i) / 7)
	}
	exact := make([]float64, n)
	d := &Direct{}
	require.NoError(t, d.Update(A))
	require.NoError(t, d.ApplyInverse(b, exact))

	errAfter := func(cycles int, smoother string) float64 {
		pc := NewAMG(Config{AggregationThreshold: 0.25, Cycles: cycles, MaxCoarseSize: 10, Smoother: smoother})
		require.NoError(t, pc.Update(A))
		assert.Greater(t, pc.NumLevels(), 2)
		y := make([]float64, n)
		require.NoError(t, pc.ApplyInverse(b, y))
		e := make([]float64, n)
		for i := range e {
			e[i] = exact[i] - y[i]
		}
		return energy(A, e)
	}
	e0 := energy(A, exact)
	for _, sm := range []string{"gauss-seidel", "jacobi"} {
		e1 := errAfter(1, sm)
		e5 := errAfter(5, sm)
		assert.Less(t, e1, e0)
		assert.Less(t, e5, e1)
	}
	{ // Test a small matrix is solved on the coarsest level
		A := laplacian1D(6)
		pc := NewAMG(Config{})
		require.NoError(t, pc.Update(A))
		assert.Equal(t, 1, pc.NumLevels())
		y := make([]float64, 6)
		x := []float64{1, 0, 0, 0, 0, 1}
		require.NoError(t, pc.ApplyInverse(x, y))
		assert.InDeltaSlice(t, []float64{1, 1, 1, 1, 1, 1}, y, 1.e-12)
	}
}

func TestSchur(t *testing.T) {
	// two faces, one cell, one decoupled extra dof
	d := sparse.NewDOK(4, 4)
	for _, e := range [][3]float64{
		{0, 0, 3}, {0, 2, -1},
		{1, 1, 3}, {1, 2, -1},
		{2, 0, -1}, {2, 1, -1}, {2, 2, 4},
		{3, 3, 5},
	} {
		d.Set(int(e[0]), int(e[1]), e[2])
	}
	A := SortedCSR(d)
	pc, err := New(Config{Type: "schur", Inner: &Config{Type: "direct"}}, BlockLayout{NumFaces: 2, NumCells: 1})
	require.NoError(t, err)
	require.NoError(t, pc.Update(A))
	x := []float64{1, 2, 3, 10}
	y := make([]float64, 4)
	require.NoError(t, pc.ApplyInverse(x, y))
	Ay := make([]float64, 4)
	A.MulVecTo(Ay, false, y)
	assert.InDeltaSlice(t, x, Ay, 1.e-12)

	{ // Test the layout must fit the matrix
		bad := &Schur{Layout: BlockLayout{NumFaces: 4, NumCells: 1}, Inner: &Identity{}}
		assert.Error(t, bad.Update(A))
	}
}
