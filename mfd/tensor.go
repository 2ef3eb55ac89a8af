// Package mfd builds the small dense elemental matrices of the mimetic and
// two-point discretizations and the permeability tensors they consume.
package mfd

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a scalar (rank 1) or full dim x dim (rank 2) coefficient
type Tensor struct {
	Dim, Rank int
	Data      []float64 // row major for rank 2
}

func NewScalarTensor(dim int, k float64) Tensor {
	return Tensor{Dim: dim, Rank: 1, Data: []float64{k}}
}

// NewDiagonalTensor returns a rank 2 tensor with the given diagonal
func NewDiagonalTensor(diag []float64) (t Tensor) {
	dim := len(diag)
	t = Tensor{Dim: dim, Rank: 2, Data: make([]float64, dim*dim)}
	for i, k := range diag {
		t.Data[i*dim+i] = k
	}
	return
}

// NewPermeability is scalar when kv == kh, otherwise diagonal with kh in
// the horizontal directions and kv along the last axis
func NewPermeability(dim int, kh, kv float64) Tensor {
	if kv == kh {
		return NewScalarTensor(dim, kh)
	}
	diag := make([]float64, dim)
	for i := 0; i < dim-1; i++ {
		diag[i] = kh
	}
	diag[dim-1] = kv
	return NewDiagonalTensor(diag)
}

// Scale multiplies the tensor in place
func (t Tensor) Scale(s float64) Tensor {
	for i := range t.Data {
		t.Data[i] *= s
	}
	return t
}

// Apply returns K v
func (t Tensor) Apply(v []float64) (r []float64) {
	if len(v) != t.Dim {
		panic(fmt.Errorf("tensor of dimension %d applied to vector of length %d", t.Dim, len(v)))
	}
	r = make([]float64, t.Dim)
	if t.Rank == 1 {
		for i := range v {
			r[i] = t.Data[0] * v[i]
		}
		return
	}
	for i := 0; i < t.Dim; i++ {
		for j := 0; j < t.Dim; j++ {
			r[i] += t.Data[i*t.Dim+j] * v[j]
		}
	}
	return
}

// Dense expands the tensor to a dim x dim matrix
func (t Tensor) Dense() (K *mat.Dense) {
	K = mat.NewDense(t.Dim, t.Dim, nil)
	for i := 0; i < t.Dim; i++ {
		for j := 0; j < t.Dim; j++ {
			switch {
			case t.Rank == 1 && i == j:
				K.Set(i, j, t.Data[0])
			case t.Rank == 2:
				K.Set(i, j, t.Data[i*t.Dim+j])
			}
		}
	}
	return
}
