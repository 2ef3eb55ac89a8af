package operators

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/preconditioners"
	"github.com/notargets/subflow/vectors"
)

// exportPlan moves ghost row contributions to the owning ranks. Positions
// index the Data arrays of the satellite and the owned matrices.
type exportPlan struct {
	sendPos [][]int // per destination rank, positions in aOff
	recvPos [][]int // per source rank, positions in A
}

// activeOps returns the blocks taking part in the schema and checks their
// DOFs are laid out
func (o *Operator) activeOps(schema Schema, lay *layout) (ops []*Op, err error) {
	for _, op := range o.OpsMatching(schema, MatchSubset) {
		for _, kind := range op.Schema.DofKinds() {
			if !lay.has(kind) {
				err = fmt.Errorf("%w: block %s needs %v DOFs absent from %s",
					ErrSchemaMismatch, op.SchemaString, kind, schema)
				return
			}
		}
		ops = append(ops, op)
	}
	return
}

// SymbolicAssembleMatrix builds the sparsity graph of the schema. Every pair
// of DOFs of a local block is coupled. Rows owned elsewhere are collected
// in a satellite graph and shipped to their owners once here; the positions
// found are reused by every numeric assembly.
func (o *Operator) SymbolicAssembleMatrix(schema Schema) (err error) {
	if err = schema.Validate(); err != nil {
		return
	}
	for _, kind := range schema.DofKinds() {
		if !o.hasKind(kind) {
			return fmt.Errorf("%w: %s needs %v DOFs", ErrSchemaMismatch, schema, kind)
		}
	}
	var (
		m   = o.mesh
		c   = m.Comm()
		lay = newLayout(m, schema)
		ops []*Op
	)
	if ops, err = o.activeOps(schema, lay); err != nil {
		return
	}
	var (
		graph      = sparse.NewDOK(lay.nOwned, lay.nUsed)
		ghostGraph = sparse.NewDOK(lay.nUsed-lay.nOwned, lay.nUsed)
	)
	for r := 0; r < lay.nOwned; r++ {
		graph.Set(r, r, 0)
	}
	for _, op := range ops {
		for a := range op.Matrices {
			ds := op.dofs(a)
			loc := make([]int, len(ds))
			for i, d := range ds {
				loc[i] = lay.local(d.kind, d.lid)
			}
			for _, r := range loc {
				g, ri := graph, r
				if r >= lay.nOwned {
					g, ri = ghostGraph, r-lay.nOwned
				}
				for _, col := range loc {
					g.Set(ri, col, 0)
				}
			}
		}
	}
	aOff := preconditioners.SortedCSR(ghostGraph)

	// ship each ghost row as [row, ncols, cols...] in global numbering
	var (
		raw     = aOff.RawMatrix()
		out     = make([][]int, c.Size())
		sendPos = make([][]int, c.Size())
	)
	for g := 0; g < raw.I; g++ {
		lo, hi := raw.Indptr[g], raw.Indptr[g+1]
		if lo == hi {
			continue
		}
		kind, lid := lay.entity(lay.nOwned + g)
		q := m.Owner(kind, lid)
		out[q] = append(out[q], lay.global(m, kind, lid), hi-lo)
		for k := lo; k < hi; k++ {
			ck, cl := lay.entity(raw.Ind[k])
			out[q] = append(out[q], lay.global(m, ck, cl))
			sendPos[q] = append(sendPos[q], k)
		}
	}
	in := c.AllToAllInts(out)
	type entry struct{ row, col int }
	received := make([][]entry, c.Size())
	for src, buf := range in {
		for i := 0; i < len(buf); {
			row, ok := lay.fromGlobal(m, buf[i])
			if !ok || row >= lay.nOwned {
				return fmt.Errorf("rank %d sent row %d not owned here", src, buf[i])
			}
			n := buf[i+1]
			for _, gcol := range buf[i+2 : i+2+n] {
				col, ok := lay.fromGlobal(m, gcol)
				if !ok {
					return fmt.Errorf("rank %d sent column %d unknown here", src, gcol)
				}
				graph.Set(row, col, 0)
				received[src] = append(received[src], entry{row, col})
			}
			i += 2 + n
		}
	}
	A := preconditioners.SortedCSR(graph)

	plan := exportPlan{sendPos: sendPos, recvPos: make([][]int, c.Size())}
	for src, es := range received {
		for _, e := range es {
			plan.recvPos[src] = append(plan.recvPos[src], position(A, e.row, e.col))
		}
	}
	diagPos := make([]int, lay.nOwned)
	for r := range diagPos {
		diagPos[r] = position(A, r, r)
	}
	o.lay, o.A, o.aOff, o.export, o.diagPos = lay, A, aOff, plan, diagPos
	o.assembled = false
	o.log.WithField("nnz", A.NNZ()).Debugf("symbolic assembly of %s", schema)
	return
}

// position finds the Data index of (row, col), the column must be present
func position(A *sparse.CSR, row, col int) int {
	raw := A.RawMatrix()
	lo, hi := raw.Indptr[row], raw.Indptr[row+1]
	k := lo + sort.SearchInts(raw.Ind[lo:hi], col)
	if k == hi || raw.Ind[k] != col {
		panic(fmt.Errorf("entry (%d,%d) missing from graph", row, col))
	}
	return k
}

// AssembleMatrix fills the graph of the schema with the block values, adds
// exported ghost rows into their owners and adds the accumulated diagonal.
// A schema differing from the last symbolic one is laid out again first.
func (o *Operator) AssembleMatrix(schema Schema) (err error) {
	if o.lay == nil || o.lay.schema != schema {
		if err = o.SymbolicAssembleMatrix(schema); err != nil {
			return
		}
	}
	var (
		lay    = o.lay
		rawA   = o.A.RawMatrix()
		rawOff = o.aOff.RawMatrix()
		c      = o.mesh.Comm()
		ops    []*Op
	)
	if ops, err = o.activeOps(schema, lay); err != nil {
		return
	}
	for k := range rawA.Data {
		rawA.Data[k] = 0
	}
	for k := range rawOff.Data {
		rawOff.Data[k] = 0
	}
	add := func(r, col int, v float64) {
		if r < lay.nOwned {
			rawA.Data[position(o.A, r, col)] += v
			return
		}
		rawOff.Data[position(o.aOff, r-lay.nOwned, col)] += v
	}
	for _, op := range ops {
		for a, M := range op.Matrices {
			ds := op.dofs(a)
			loc := make([]int, len(ds))
			for i, d := range ds {
				loc[i] = lay.local(d.kind, d.lid)
			}
			if s := op.selfDof(a); s >= 0 && op.Vals[a] != 0 {
				add(loc[s], loc[s], op.Vals[a])
			}
			if M.IsEmpty() {
				continue
			}
			for i, r := range loc {
				for j, col := range loc {
					if v := M.At(i, j); v != 0 {
						add(r, col, v)
					}
				}
			}
		}
	}
	out := make([][]float64, c.Size())
	for q, pos := range o.export.sendPos {
		out[q] = make([]float64, len(pos))
		for i, k := range pos {
			out[q][i] = rawOff.Data[k]
		}
	}
	in := c.AllToAllFloats(out)
	for src, vals := range in {
		for i, k := range o.export.recvPos[src] {
			rawA.Data[k] += vals[i]
		}
	}
	for _, t := range lay.tiers {
		d := o.diag.ViewComponent(t.kind, false)
		for lid, v := range d {
			rawA.Data[o.diagPos[t.offsetMy+lid]] += v
		}
	}
	o.assembled = true
	return
}

// flatten packs the owned values of the laid out components, then the
// ghost values when ghosted is set, in local DOF order
func (o *Operator) flatten(X *vectors.CompositeVector, ghosted bool) (x []float64) {
	n := o.lay.nOwned
	if ghosted {
		n = o.lay.nUsed
	}
	x = make([]float64, n)
	for _, t := range o.lay.tiers {
		v := X.ViewComponent(t.kind, true)
		copy(x[t.offsetMy:t.offsetMy+t.nOwned], v[:t.nOwned])
		if ghosted {
			g := o.lay.nOwned + t.offsetGhost
			copy(x[g:g+t.nUsed-t.nOwned], v[t.nOwned:])
		}
	}
	return
}

// unflatten writes owned values back and zeroes everything else in Y
func (o *Operator) unflatten(y []float64, Y *vectors.CompositeVector) {
	Y.PutScalar(0)
	for _, t := range o.lay.tiers {
		copy(Y.ViewComponent(t.kind, false), y[t.offsetMy:t.offsetMy+t.nOwned])
	}
}

// ApplyAssembled is Y = A X with the assembled matrix
func (o *Operator) ApplyAssembled(X, Y *vectors.CompositeVector) (err error) {
	if !o.assembled {
		return ErrNotAssembled
	}
	X.ScatterMasterToGhosted()
	x := o.flatten(X, true)
	y := make([]float64, o.lay.nOwned)
	o.A.MulVecTo(y, false, x)
	o.unflatten(y, Y)
	return
}

// InitPreconditioner installs a preconditioner for the laid out schema.
// Schur variants see the owned faces followed by the owned cells.
func (o *Operator) InitPreconditioner(cfg preconditioners.Config) (err error) {
	if o.lay == nil {
		return ErrNotAssembled
	}
	var bl preconditioners.BlockLayout
	if ts := o.lay.tiers; len(ts) >= 2 && ts[0].kind == mesh.Face && ts[1].kind == mesh.Cell {
		bl = preconditioners.BlockLayout{NumFaces: ts[0].nOwned, NumCells: ts[1].nOwned}
	}
	o.pc, err = preconditioners.New(cfg, bl)
	return
}

// UpdatePreconditioner rebuilds the preconditioner from the owned block of
// the assembled matrix
func (o *Operator) UpdatePreconditioner() (err error) {
	if !o.assembled || o.pc == nil {
		return ErrNotAssembled
	}
	var (
		n     = o.lay.nOwned
		raw   = o.A.RawMatrix()
		local = sparse.NewDOK(n, n)
	)
	for i := 0; i < n; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			if j := raw.Ind[k]; j < n {
				local.Set(i, j, raw.Data[k])
			}
		}
	}
	return o.pc.Update(preconditioners.SortedCSR(local))
}

// ApplyInverse applies the preconditioner to the owned values of X
func (o *Operator) ApplyInverse(X, Y *vectors.CompositeVector) (err error) {
	if o.pc == nil || o.lay == nil {
		return ErrNotAssembled
	}
	var (
		x = o.flatten(X, false)
		y = make([]float64, len(x))
	)
	if err = o.pc.ApplyInverse(x, y); err != nil {
		return
	}
	o.unflatten(y, Y)
	return
}
