package preconditioners

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/notargets/subflow/utils"
)

// Direct factors the local block densely, for small problems and checks
type Direct struct {
	lu *utils.LUSolver
}

func (p *Direct) Update(A *sparse.CSR) (err error) {
	raw := A.RawMatrix()
	n := raw.I
	dense := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			dense[i*n+raw.Ind[k]] += raw.Data[k]
		}
	}
	lu := utils.NewLUSolver(n)
	if err = lu.Decompose(dense); err != nil {
		err = fmt.Errorf("direct preconditioner: %w", err)
		return
	}
	p.lu = lu
	return
}

func (p *Direct) ApplyInverse(x, y []float64) (err error) {
	if p.lu == nil {
		return ErrNotUpdated
	}
	copy(y, x)
	p.lu.BackSolve(y)
	return
}
