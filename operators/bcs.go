package operators

import (
	"fmt"

	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/utils"
	"github.com/notargets/subflow/vectors"
)

// BCSet holds markers per entity kind over owned and ghost entities. Only
// essential markers and BCFlux act on the matrices, other natural markers
// are zero flux. A nil set is skipped.
type BCSet struct {
	Faces, Nodes, Edges *utils.BCMarkers
}

func (bc BCSet) markers(kind mesh.EntityKind) *utils.BCMarkers {
	switch kind {
	case mesh.Face:
		return bc.Faces
	case mesh.Node:
		return bc.Nodes
	case mesh.Edge:
		return bc.Edges
	}
	return nil
}

// ApplyBCs eliminates essential conditions from every block and moves
// natural fluxes into the right hand side. Ghost contributions are then
// added into their owners and the owned essential rows are set to the
// identity with the prescribed value.
func (o *Operator) ApplyBCs(bc BCSet) (err error) {
	o.rhs.PutScalarGhosted(0)
	o.diag.PutScalarGhosted(0)

	var (
		applied    bool
		eliminated [4]bool
	)
	for _, op := range o.ops {
		var done bool
		switch op.Kind {
		case OpCellFaceCell:
			if bc.Faces == nil {
				continue
			}
			done = o.bcCellFaceCell(op, bc.Faces, applied)
			eliminated[mesh.Face] = true
		case OpCellNode, OpCellEdge:
			kind := op.Schema.DofKinds()[0]
			markers := bc.markers(kind)
			if markers == nil {
				continue
			}
			done = o.bcCellEntity(op, kind, markers)
			eliminated[kind] = true
		case OpFaceCell:
			if bc.Faces == nil {
				continue
			}
			if done, err = o.bcFaceCell(op, bc.Faces, applied); err != nil {
				return
			}
		}
		applied = applied || done
	}

	o.rhs.GatherGhostedToMaster()
	o.diag.GatherGhostedToMaster()
	o.rhs.PutScalarGhosted(0)
	o.diag.PutScalarGhosted(0)

	for _, kind := range []mesh.EntityKind{mesh.Face, mesh.Node, mesh.Edge} {
		markers := bc.markers(kind)
		if !eliminated[kind] || markers == nil || !o.hasKind(kind) {
			continue
		}
		var (
			rhs  = o.rhs.ViewComponent(kind, false)
			diag = o.diag.ViewComponent(kind, false)
		)
		for i := range rhs {
			if markers.Model[i].IsEssential() {
				rhs[i] = markers.Values[i]
				diag[i] = 1
			}
		}
	}
	return
}

// bcCellFaceCell eliminates essential faces from the cell blocks,
// including the coupling with the cell unknown. Face fluxes are added once
// over all blocks.
func (o *Operator) bcCellFaceCell(op *Op, markers *utils.BCMarkers, applied bool) (essential bool) {
	var (
		m       = o.mesh
		rhsFace = o.rhs.ViewComponent(mesh.Face, true)
		rhsCell = o.rhs.ViewComponent(mesh.Cell, true)
	)
	for c, A := range op.Matrices {
		faces, _ := m.CellFaces(c)
		nf := len(faces)
		for n, f := range faces {
			value := markers.Values[f]
			switch {
			case markers.Model[f].IsEssential():
				if A.IsEmpty() {
					continue
				}
				op.capture(c)
				for k := 0; k < nf; k++ {
					rhsFace[faces[k]] -= A.At(k, n) * value
					A.Set(n, k, 0)
					A.Set(k, n, 0)
				}
				rhsCell[c] -= A.At(nf, n) * value
				A.Set(nf, n, 0)
				A.Set(n, nf, 0)
				essential = true
			case markers.Model[f] == utils.BCFlux && !applied:
				rhsFace[f] -= value * m.FaceArea(f)
			}
		}
	}
	return
}

// bcCellEntity eliminates essential nodes or edges from the cell blocks
func (o *Operator) bcCellEntity(op *Op, kind mesh.EntityKind, markers *utils.BCMarkers) (essential bool) {
	rhs := o.rhs.ViewComponent(kind, true)
	for c, A := range op.Matrices {
		if A.IsEmpty() {
			continue
		}
		ds := op.dofs(c)
		for n, d := range ds {
			if !markers.Model[d.lid].IsEssential() {
				continue
			}
			value := markers.Values[d.lid]
			op.capture(c)
			for k := range ds {
				rhs[ds[k].lid] -= A.At(k, n) * value
				A.Set(n, k, 0)
				A.Set(k, n, 0)
			}
			essential = true
		}
	}
	return
}

// bcFaceCell closes boundary faces of two point blocks. An essential face
// keeps its transmissibility and moves T*value to the cell right hand side;
// any other face drops it, a flux face adds its outflow once.
func (o *Operator) bcFaceCell(op *Op, markers *utils.BCMarkers, applied bool) (essential bool, err error) {
	var (
		m       = o.mesh
		rhsCell = o.rhs.ViewComponent(mesh.Cell, true)
	)
	for f, A := range op.Matrices {
		if !m.IsBoundaryFace(f) {
			continue
		}
		cells := m.FaceCells(f, mesh.Used)
		if len(cells) != 1 {
			err = fmt.Errorf("boundary face %d has %d cells", f, len(cells))
			return
		}
		c, value := cells[0], markers.Values[f]
		switch {
		case markers.Model[f].IsEssential():
			if !A.IsEmpty() {
				rhsCell[c] += A.At(0, 0) * value
			}
			essential = true
		default:
			if !A.IsEmpty() {
				op.capture(f)
				A.Zero()
			}
			if markers.Model[f] == utils.BCFlux && !applied {
				rhsCell[c] -= value * m.FaceArea(f)
			}
		}
	}
	return
}

// AddAccumulationTerm adds vol*ss/dT to the diagonal and vol*ss/dT*u0 to
// the right hand side of a cell or node component. Node volumes are the
// cell volumes shared evenly among the cell nodes.
func (o *Operator) AddAccumulationTerm(u0, ss *vectors.CompositeVector, dT float64, kind mesh.EntityKind) (err error) {
	if dT <= 0 {
		return fmt.Errorf("accumulation needs a positive time step, got %g", dT)
	}
	var vol []float64
	if vol, err = o.entityVolumes(kind); err != nil {
		return
	}
	var (
		u   = u0.ViewComponent(kind, false)
		s   = ss.ViewComponent(kind, false)
		d   = o.diag.ViewComponent(kind, false)
		rhs = o.rhs.ViewComponent(kind, false)
	)
	for i := range d {
		factor := vol[i] * s[i] / dT
		d[i] += factor
		rhs[i] += factor * u[i]
	}
	return
}

// AddAccumulationDiagonal adds ss to the diagonal and ss*u0 to the right
// hand side, ss already carrying any volume and time step scaling
func (o *Operator) AddAccumulationDiagonal(u0, ss *vectors.CompositeVector, kind mesh.EntityKind) (err error) {
	if !o.hasKind(kind) {
		return fmt.Errorf("%w: no %v component", ErrSchemaMismatch, kind)
	}
	var (
		u   = u0.ViewComponent(kind, false)
		s   = ss.ViewComponent(kind, false)
		d   = o.diag.ViewComponent(kind, false)
		rhs = o.rhs.ViewComponent(kind, false)
	)
	for i := range d {
		d[i] += s[i]
		rhs[i] += s[i] * u[i]
	}
	return
}

func (o *Operator) entityVolumes(kind mesh.EntityKind) (vol []float64, err error) {
	m := o.mesh
	if !o.hasKind(kind) {
		err = fmt.Errorf("%w: no %v component", ErrSchemaMismatch, kind)
		return
	}
	switch kind {
	case mesh.Cell:
		vol = make([]float64, m.NumEntities(mesh.Cell, mesh.Owned))
		for c := range vol {
			vol[c] = m.CellVolume(c)
		}
	case mesh.Node:
		vol = make([]float64, m.NumEntities(mesh.Node, mesh.Used))
		for c := 0; c < m.NumEntities(mesh.Cell, mesh.Owned); c++ {
			nodes := m.CellNodes(c)
			for _, v := range nodes {
				vol[v] += m.CellVolume(c) / float64(len(nodes))
			}
		}
		m.Exchanger(mesh.Node).Gather(vol)
	default:
		err = fmt.Errorf("%w: accumulation on %v entities", ErrSchemaMismatch, kind)
	}
	return
}
