package mfd

import (
	"errors"
	"fmt"

	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/utils"
	"gonum.org/v1/gonum/mat"
)

var ErrDegenerateCell = errors.New("degenerate cell geometry")

// DarcyMassInverse returns the inverse mass matrix W mapping cell minus face
// pressures to outward face fluxes. It satisfies W X = N K where row n of X
// is x_f - x_c and row n of N is the outward area weighted normal. The
// stability term scales the projector onto the complement of range(X).
func DarcyMassInverse(m mesh.Mesh, c int, K Tensor) (W *mat.Dense, err error) {
	var (
		dim         = m.SpaceDimension()
		faces, dirs = m.CellFaces(c)
		nf          = len(faces)
		vol         = m.CellVolume(c)
		xc          = m.CellCentroid(c)
		N           = mat.NewDense(nf, dim, nil)
		X           = mat.NewDense(nf, dim, nil)
	)
	if vol <= 0 {
		err = fmt.Errorf("cell %d volume %g: %w", c, vol, ErrDegenerateCell)
		return
	}
	for n, f := range faces {
		normal, xf := m.FaceNormal(f), m.FaceCentroid(f)
		for d := 0; d < dim; d++ {
			N.Set(n, d, normal[d]*float64(dirs[n]))
			X.Set(n, d, xf[d]-xc[d])
		}
	}
	var NK mat.Dense
	NK.Mul(N, K.Dense())
	W = mat.NewDense(nf, nf, nil)
	W.Mul(&NK, N.T())
	W.Scale(1/vol, W)

	var P *mat.Dense
	if P, err = complementProjector(X); err != nil {
		err = fmt.Errorf("cell %d: %w", c, err)
		return
	}
	stab := mat.Trace(W) / float64(nf)
	W.Add(W, scaled(stab, P))
	return
}

// DarcyStiffness expands the face inverse mass matrix into the face plus
// cell hybrid matrix [W, -W1; -1'W, 1'W1]. Faces come first, the cell last.
func DarcyStiffness(W *mat.Dense) (A *mat.Dense) {
	nf, _ := W.Dims()
	A = mat.NewDense(nf+1, nf+1, nil)
	total := 0.
	for i := 0; i < nf; i++ {
		rowsum := 0.
		for j := 0; j < nf; j++ {
			A.Set(i, j, W.At(i, j))
			rowsum += W.At(i, j)
		}
		A.Set(i, nf, -rowsum)
		A.Set(nf, i, -rowsum)
		total += rowsum
	}
	A.Set(nf, nf, total)
	return
}

// NodalStiffness is the mimetic diffusion stiffness on the cell nodes. It is
// exact for linear fields and has constants in its kernel.
func NodalStiffness(m mesh.Mesh, c int, K Tensor) (A *mat.Dense, err error) {
	var (
		dim         = m.SpaceDimension()
		nodes       = m.CellNodes(c)
		nn          = len(nodes)
		faces, dirs = m.CellFaces(c)
		vol         = m.CellVolume(c)
		xc          = m.CellCentroid(c)
		R           = mat.NewDense(nn, dim, nil)
		Y           = mat.NewDense(nn, dim+1, nil)
		pos         = make(map[int]int, nn)
	)
	if vol <= 0 {
		err = fmt.Errorf("cell %d volume %g: %w", c, vol, ErrDegenerateCell)
		return
	}
	for i, v := range nodes {
		pos[v] = i
		x := m.NodeCoordinates(v)
		Y.Set(i, 0, 1)
		for d := 0; d < dim; d++ {
			Y.Set(i, d+1, x[d]-xc[d])
		}
	}
	for n, f := range faces {
		var (
			fnodes = m.FaceNodes(f)
			normal = m.FaceNormal(f)
			w      = float64(dirs[n]) / float64(len(fnodes))
		)
		for _, v := range fnodes {
			i := pos[v]
			for d := 0; d < dim; d++ {
				R.Set(i, d, R.At(i, d)+w*normal[d])
			}
		}
	}
	var RK mat.Dense
	RK.Mul(R, K.Dense())
	A = mat.NewDense(nn, nn, nil)
	A.Mul(&RK, R.T())
	A.Scale(1/vol, A)

	var P *mat.Dense
	if P, err = complementProjector(Y); err != nil {
		err = fmt.Errorf("cell %d: %w", c, err)
		return
	}
	A.Add(A, scaled(mat.Trace(A)/float64(nn), P))
	return
}

// TPFATransmissibility returns the local matrix of face f coupling its
// cells: 1x1 [T] on a boundary face, T [1 -1; -1 1] on an interior face.
// Cell permeabilities are looked up by local cell id.
func TPFATransmissibility(m mesh.Mesh, f int, K func(c int) Tensor) (A *mat.Dense, err error) {
	var (
		cells = m.FaceCells(f, mesh.Used)
		xf    = m.FaceCentroid(f)
		trans = make([]float64, len(cells))
	)
	for i, c := range cells {
		var (
			normal = mesh.FaceNormalFromCell(m, f, c)
			xc     = m.CellCentroid(c)
			d      = utils.Sub(xf, xc)
			d2     = utils.Dot(d, d)
		)
		if d2 == 0 {
			err = fmt.Errorf("face %d coincides with centroid of cell %d: %w", f, c, ErrDegenerateCell)
			return
		}
		// the area weighted normal folds the face area in
		trans[i] = utils.Dot(K(c).Apply(d), normal) / d2
		if trans[i] <= 0 {
			err = fmt.Errorf("face %d: non-positive half transmissibility %g: %w", f, trans[i], ErrDegenerateCell)
			return
		}
	}
	switch len(cells) {
	case 1:
		A = mat.NewDense(1, 1, []float64{trans[0]})
	case 2:
		T := trans[0] * trans[1] / (trans[0] + trans[1])
		A = mat.NewDense(2, 2, []float64{T, -T, -T, T})
	default:
		err = fmt.Errorf("face %d has %d local cells", f, len(cells))
	}
	return
}

// complementProjector returns I - Y (Y'Y)^-1 Y'
func complementProjector(Y *mat.Dense) (P *mat.Dense, err error) {
	var (
		nr, nc = Y.Dims()
		YtY    mat.Dense
		lu     = utils.NewLUSolver(nc)
	)
	YtY.Mul(Y.T(), Y)
	if err = lu.Decompose(YtY.RawMatrix().Data); err != nil {
		err = fmt.Errorf("%w: %v", ErrDegenerateCell, err)
		return
	}
	// Z = (Y'Y)^-1 Y', one column of Y' at a time
	Z := mat.NewDense(nc, nr, nil)
	col := make([]float64, nc)
	for j := 0; j < nr; j++ {
		for i := 0; i < nc; i++ {
			col[i] = Y.At(j, i)
		}
		lu.BackSolve(col)
		for i := 0; i < nc; i++ {
			Z.Set(i, j, col[i])
		}
	}
	P = mat.NewDense(nr, nr, nil)
	P.Mul(Y, Z)
	P.Scale(-1, P)
	for i := 0; i < nr; i++ {
		P.Set(i, i, P.At(i, i)+1)
	}
	return
}

func scaled(s float64, a *mat.Dense) *mat.Dense {
	var r mat.Dense
	r.Scale(s, a)
	return &r
}
