package preconditioners

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
)

// Schur eliminates the cell block of a face first hybrid system. The cell
// block is taken to be diagonal, the face Schur complement
// S = Aff - Afc Acc^-1 Acf is handed to the inner preconditioner. Rows past
// the cell block get Jacobi.
type Schur struct {
	Layout BlockLayout
	Inner  Preconditioner
	raw    *blas.SparseMatrix
	nf, nc int
	invDia []float64
	work   []float64
	sf     []float64
}

func (p *Schur) Update(A *sparse.CSR) (err error) {
	raw := A.RawMatrix()
	p.raw = raw
	p.nf, p.nc = p.Layout.NumFaces, p.Layout.NumCells
	if p.nf+p.nc > raw.I {
		return fmt.Errorf("schur layout %d+%d exceeds matrix size %d", p.nf, p.nc, raw.I)
	}
	if p.nf == 0 && p.nc == 0 {
		p.nf = raw.I
	}
	p.invDia = inverseDiagonal(raw)

	S := sparse.NewDOK(p.nf, p.nf)
	for i := 0; i < p.nf; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			j := raw.Ind[k]
			switch {
			case j < p.nf:
				AddTo(S, i, j, raw.Data[k])
			case j < p.nf+p.nc:
				// - Afc(i,c) Acc^-1(c) Acf(c,:)
				c := j
				w := raw.Data[k] * p.invDia[c]
				for kk := raw.Indptr[c]; kk < raw.Indptr[c+1]; kk++ {
					if jj := raw.Ind[kk]; jj < p.nf {
						AddTo(S, i, jj, -w*raw.Data[kk])
					}
				}
			}
		}
	}
	if err = p.Inner.Update(SortedCSR(S)); err != nil {
		return
	}
	p.work = make([]float64, p.nf)
	p.sf = make([]float64, p.nf)
	return
}

func (p *Schur) ApplyInverse(x, y []float64) (err error) {
	if p.raw == nil {
		return ErrNotUpdated
	}
	var (
		raw = p.raw
		nf  = p.nf
		nc  = p.nc
	)
	// reduced face right hand side
	for i := 0; i < nf; i++ {
		s := x[i]
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			if j := raw.Ind[k]; j >= nf && j < nf+nc {
				s -= raw.Data[k] * p.invDia[j] * x[j]
			}
		}
		p.work[i] = s
	}
	if err = p.Inner.ApplyInverse(p.work, p.sf); err != nil {
		return
	}
	copy(y[:nf], p.sf)
	// back substitute the cells
	for c := nf; c < nf+nc; c++ {
		s := x[c]
		for k := raw.Indptr[c]; k < raw.Indptr[c+1]; k++ {
			if j := raw.Ind[k]; j < nf {
				s -= raw.Data[k] * p.sf[j]
			}
		}
		y[c] = p.invDia[c] * s
	}
	for i := nf + nc; i < raw.I; i++ {
		y[i] = p.invDia[i] * x[i]
	}
	return
}
