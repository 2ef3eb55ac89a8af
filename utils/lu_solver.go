package utils

import (
	"errors"
	"fmt"
	"math"
)

// DefaultSmallPivot replaces an exactly zero pivot during decomposition
const DefaultSmallPivot = 1.e-20

var ErrSingularMatrix = errors.New("singular matrix")

// LUSolver is a row-scaled, partial pivoting LU solver (Crout's method) for
// small dense systems. The matrix is factored in place, row major, as
// A[i][j] = a[i*n+j].
type LUSolver struct {
	n          int
	a          []float64
	pivot      []int
	rowScaling []float64
	parity     float64
	// SmallPivot substitutes for an exactly zero pivot. The factorization
	// proceeds and the substitution is counted, never reported as an error.
	SmallPivot    float64
	substitutions int
}

func NewLUSolver(n int) (lu *LUSolver) {
	lu = &LUSolver{SmallPivot: DefaultSmallPivot}
	lu.Initialize(n)
	return
}

// Initialize fixes the system size and allocates work storage
func (lu *LUSolver) Initialize(n int) {
	lu.n = n
	lu.a = make([]float64, n*n)
	lu.pivot = make([]int, n)
	lu.rowScaling = make([]float64, n)
	lu.parity = 1
	lu.substitutions = 0
	if lu.SmallPivot == 0 {
		lu.SmallPivot = DefaultSmallPivot
	}
}

func (lu *LUSolver) Size() int { return lu.n }

// Parity is +1 or -1 depending on the number of row interchanges
func (lu *LUSolver) Parity() float64 { return lu.parity }

// PivotSubstitutions is the number of zero pivots replaced by SmallPivot
// during the last decomposition.
func (lu *LUSolver) PivotSubstitutions() int { return lu.substitutions }

// Decompose copies the row major matrix a and factors it in place
func (lu *LUSolver) Decompose(a []float64) (err error) {
	var (
		n = lu.n
		A = lu.a
	)
	if len(a) != n*n {
		err = fmt.Errorf("LU decompose: matrix length %d does not match size %d", len(a), n)
		return
	}
	copy(A, a)
	lu.parity = 1
	lu.substitutions = 0

	for i := 0; i < n; i++ {
		big := 0.
		for j := 0; j < n; j++ {
			if tmp := math.Abs(A[i*n+j]); tmp > big {
				big = tmp
			}
		}
		if big == 0 {
			err = fmt.Errorf("LU decompose: row %d: %w", i, ErrSingularMatrix)
			return
		}
		lu.rowScaling[i] = 1 / big
	}

	for j := 0; j < n; j++ {
		for i := 0; i < j; i++ {
			sum := A[i*n+j]
			for k := 0; k < i; k++ {
				sum -= A[i*n+k] * A[k*n+j]
			}
			A[i*n+j] = sum
		}

		var (
			big  = 0.
			imax = j
		)
		for i := j; i < n; i++ {
			sum := A[i*n+j]
			for k := 0; k < j; k++ {
				sum -= A[i*n+k] * A[k*n+j]
			}
			A[i*n+j] = sum
			if tmp := lu.rowScaling[i] * math.Abs(sum); tmp >= big {
				big = tmp
				imax = i
			}
		}

		if j != imax {
			for k := 0; k < n; k++ {
				A[imax*n+k], A[j*n+k] = A[j*n+k], A[imax*n+k]
			}
			lu.parity = -lu.parity
			lu.rowScaling[imax] = lu.rowScaling[j]
		}
		lu.pivot[j] = imax

		if A[j*n+j] == 0 {
			A[j*n+j] = lu.SmallPivot
			lu.substitutions++
		}

		if j != n-1 {
			tmp := 1 / A[j*n+j]
			for i := j + 1; i < n; i++ {
				A[i*n+j] *= tmp
			}
		}
	}
	return
}

// BackSolve overwrites b with the solution of the decomposed system
func (lu *LUSolver) BackSolve(b []float64) {
	var (
		n  = lu.n
		A  = lu.a
		ii = 0
	)
	if len(b) != n {
		panic(fmt.Errorf("LU backsolve: rhs length %d does not match size %d", len(b), n))
	}
	for i := 0; i < n; i++ {
		ip := lu.pivot[i]
		sum := b[ip]
		b[ip] = b[i]
		if ii != 0 {
			for j := ii - 1; j < i; j++ {
				sum -= A[i*n+j] * b[j]
			}
		} else if sum != 0 {
			ii = i + 1
		}
		b[i] = sum
	}

	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for j := i + 1; j < n; j++ {
			sum -= A[i*n+j] * b[j]
		}
		b[i] = sum / A[i*n+i]
	}
}

// Solve decomposes a and overwrites b with the solution
func (lu *LUSolver) Solve(a, b []float64) (err error) {
	if err = lu.Decompose(a); err != nil {
		return
	}
	lu.BackSolve(b)
	return
}
