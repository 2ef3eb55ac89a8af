// Package preconditioners approximates the inverse of the rank local block
// of an assembled operator. All variants are symmetric when the block is.
package preconditioners

import (
	"errors"
	"fmt"
	"strings"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
)

var (
	ErrUnknownType = errors.New("unknown preconditioner type")
	ErrNotUpdated  = errors.New("preconditioner used before update")
)

type Preconditioner interface {
	// Update rebuilds the preconditioner from a square local matrix
	Update(A *sparse.CSR) error
	// ApplyInverse sets y to the approximate solution of A y = x
	ApplyInverse(x, y []float64) error
}

// Config selects and tunes a preconditioner
type Config struct {
	Type                 string  `json:"type"`
	Sweeps               int     `json:"sweeps"`
	Omega                float64 `json:"omega"`
	Smoother             string  `json:"smoother"`
	AggregationThreshold float64 `json:"aggregationThreshold"`
	Cycles               int     `json:"cycles"`
	MaxLevels            int     `json:"maxLevels"`
	MaxCoarseSize        int     `json:"maxCoarseSize"`
	Inner                *Config `json:"inner,omitempty"`
}

// BlockLayout gives the leading face and cell ranges of the local ordering
type BlockLayout struct {
	NumFaces, NumCells int
}

func DefaultConfig() Config {
	return Config{Type: "jacobi"}
}

// New returns an un-updated preconditioner for the configuration
func New(cfg Config, layout BlockLayout) (pc Preconditioner, err error) {
	switch strings.ToLower(cfg.Type) {
	case "", "identity", "none":
		pc = &Identity{}
	case "jacobi", "diagonal":
		pc = &Jacobi{}
	case "ssor", "gauss-seidel", "symmetric gauss-seidel":
		pc = &SSOR{Sweeps: cfg.Sweeps, Omega: cfg.Omega}
	case "amg", "aggregation":
		pc = NewAMG(cfg)
	case "direct", "lu":
		pc = &Direct{}
	case "schur":
		inner := DefaultConfig()
		if cfg.Inner != nil {
			inner = *cfg.Inner
		}
		if strings.EqualFold(inner.Type, "schur") {
			err = fmt.Errorf("%w: schur cannot nest schur", ErrUnknownType)
			return
		}
		var ipc Preconditioner
		if ipc, err = New(inner, BlockLayout{}); err != nil {
			return
		}
		pc = &Schur{Layout: layout, Inner: ipc}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
	return
}

// Identity leaves the vector unchanged
type Identity struct{}

func (p *Identity) Update(A *sparse.CSR) error { return nil }
func (p *Identity) ApplyInverse(x, y []float64) error {
	copy(y, x)
	return nil
}

// Jacobi scales by the inverse diagonal. Zero diagonal entries pass through.
type Jacobi struct {
	invDiag []float64
}

func (p *Jacobi) Update(A *sparse.CSR) (err error) {
	p.invDiag = inverseDiagonal(A.RawMatrix())
	return
}

func (p *Jacobi) ApplyInverse(x, y []float64) (err error) {
	if p.invDiag == nil {
		return ErrNotUpdated
	}
	for i := range x {
		y[i] = p.invDiag[i] * x[i]
	}
	return
}

func inverseDiagonal(raw *blas.SparseMatrix) (inv []float64) {
	inv = make([]float64, raw.I)
	for i := 0; i < raw.I; i++ {
		inv[i] = 1
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			if raw.Ind[k] == i && raw.Data[k] != 0 {
				inv[i] = 1 / raw.Data[k]
			}
		}
	}
	return
}

// residual sets r = b - A x
func residual(raw *blas.SparseMatrix, x, b, r []float64) {
	copy(r, b)
	blas.Dusmv(false, -1, raw, x, 1, r, 1)
}

// gaussSeidel performs one relaxed sweep over the rows, backward when reverse
func gaussSeidel(raw *blas.SparseMatrix, invDiag, x, b []float64, omega float64, reverse bool) {
	row := func(i int) {
		s := b[i]
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			if j := raw.Ind[k]; j != i {
				s -= raw.Data[k] * x[j]
			}
		}
		x[i] = (1-omega)*x[i] + omega*invDiag[i]*s
	}
	if reverse {
		for i := raw.I - 1; i >= 0; i-- {
			row(i)
		}
		return
	}
	for i := 0; i < raw.I; i++ {
		row(i)
	}
}

// SSOR applies symmetric successive over-relaxation sweeps from a zero guess
type SSOR struct {
	Sweeps  int
	Omega   float64
	raw     *blas.SparseMatrix
	invDiag []float64
}

func (p *SSOR) Update(A *sparse.CSR) (err error) {
	if p.Sweeps <= 0 {
		p.Sweeps = 1
	}
	if p.Omega <= 0 || p.Omega >= 2 {
		p.Omega = 1
	}
	p.raw = A.RawMatrix()
	p.invDiag = inverseDiagonal(p.raw)
	return
}

func (p *SSOR) ApplyInverse(x, y []float64) (err error) {
	if p.raw == nil {
		return ErrNotUpdated
	}
	for i := range y {
		y[i] = 0
	}
	for s := 0; s < p.Sweeps; s++ {
		gaussSeidel(p.raw, p.invDiag, y, x, p.Omega, false)
		gaussSeidel(p.raw, p.invDiag, y, x, p.Omega, true)
	}
	return
}
