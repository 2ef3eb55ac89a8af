package solvers

import (
	"errors"
	"testing"

	"github.com/notargets/subflow/comm"
	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/mfd"
	"github.com/notargets/subflow/operators"
	"github.com/notargets/subflow/preconditioners"
	"github.com/notargets/subflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// poisson is a two point flux problem on an n x n square with p = 1 on the
// left, p = 0 on the right and a unit source
func poisson(c *comm.Comm, n int, pc string) (o *operators.Operator, err error) {
	m, err := mesh.NewStructured(mesh.Box{Dim: 2, N: [3]int{n, n}, High: [3]float64{1, 1}}, c)
	if err != nil {
		return
	}
	o = operators.NewOperator(m, []mesh.EntityKind{mesh.Cell}, nil)
	op := operators.NewOp(operators.OpFaceCell, m)
	K := func(c int) mfd.Tensor { return mfd.NewScalarTensor(2, 1+m.CellCentroid(c)[1]) }
	for f := range op.Matrices {
		if op.Matrices[f], err = mfd.TPFATransmissibility(m, f, K); err != nil {
			return
		}
	}
	if err = o.AddOp(op); err != nil {
		return
	}
	rhs := o.Rhs().ViewComponent(mesh.Cell, false)
	for c := range rhs {
		rhs[c] = m.CellVolume(c)
	}
	bc := utils.NewBCMarkers(m.NumEntities(mesh.Face, mesh.Used))
	for region, p := range map[string]float64{"XMin": 1, "XMax": 0} {
		faces, _ := m.RegionEntities(region, mesh.Face, mesh.Used)
		for _, f := range faces {
			bc.Model[f], bc.Values[f] = utils.BCPressure, p
		}
	}
	if err = o.ApplyBCs(operators.BCSet{Faces: bc}); err != nil {
		return
	}
	if err = o.AssembleMatrix(operators.OpFaceCell.Schema()); err != nil {
		return
	}
	if err = o.InitPreconditioner(preconditioners.Config{Type: pc}); err != nil {
		return
	}
	err = o.UpdatePreconditioner()
	return
}

func TestKrylov(t *testing.T) {
	o, err := poisson(comm.Self(), 8, "direct")
	require.NoError(t, err)
	exact := o.NewVector()
	require.NoError(t, o.ApplyInverse(o.Rhs(), exact))
	for _, method := range []string{"pcg", "gmres"} {
		for _, pc := range []string{"identity", "jacobi", "ssor", "amg"} {
			o, err := poisson(comm.Self(), 8, pc)
			require.NoError(t, err)
			x := o.NewVector()
			res, err := Solve(o, o.Rhs(), x, Config{Method: method, Tolerance: 1.e-12, MaxIterations: 400, KrylovSize: 20}, nil)
			require.NoError(t, err, "%s/%s", method, pc)
			assert.LessOrEqual(t, res.Residual, 1.e-11)
			assert.Greater(t, res.Iterations, 0)
			assert.InDeltaSlice(t, exact.ViewComponent(mesh.Cell, false), x.ViewComponent(mesh.Cell, false), 1.e-9,
				"%s/%s", method, pc)
		}
	}
}

func TestKrylovPartitioned(t *testing.T) {
	sums := make([]float64, 2)
	for i, np := range []int{1, 3} {
		require.NoError(t, comm.NewWorld(np).Run(func(c *comm.Comm) (err error) {
			o, err := poisson(c, 6, "jacobi")
			if err != nil {
				return
			}
			x := o.NewVector()
			if _, err = PCG(o, o.Rhs(), x, Config{Tolerance: 1.e-12, MaxIterations: 300}); err != nil {
				return
			}
			one := o.NewVector()
			one.PutScalar(1)
			if s := x.Dot(one); c.Rank() == 0 {
				sums[i] = s
			}
			return
		}))
	}
	assert.InDelta(t, sums[0], sums[1], 1.e-9)
}

func TestSolverErrors(t *testing.T) {
	o, err := poisson(comm.Self(), 8, "identity")
	require.NoError(t, err)
	{ // Test non convergence is typed
		x := o.NewVector()
		_, err := PCG(o, o.Rhs(), x, Config{Tolerance: 1.e-14, MaxIterations: 2})
		var cerr *ConvergenceError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, 2, cerr.Iterations)
		assert.Greater(t, cerr.Residual, 0.)
		_, err = GMRES(o, o.Rhs(), x, Config{Tolerance: 1.e-14, MaxIterations: 3, KrylovSize: 2})
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, "gmres", cerr.Method)
	}
	{ // Test unknown method and zero right hand side
		x := o.NewVector()
		_, err := Solve(o, o.Rhs(), x, Config{Method: "bicgstab"}, nil)
		assert.ErrorIs(t, err, ErrUnknownMethod)
		x.PutScalar(3)
		res, err := PCG(o, o.NewVector(), x, Config{})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Iterations)
		assert.Equal(t, 0., x.NormInf())
	}
}
