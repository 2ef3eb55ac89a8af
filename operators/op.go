package operators

import (
	"fmt"

	"github.com/notargets/subflow/mesh"
	"gonum.org/v1/gonum/mat"
)

// OpKind is the closed set of local block layouts
type OpKind uint8

const (
	// OpCellFaceCell is the mixed hybrid cell block over the cell faces
	// followed by the cell itself
	OpCellFaceCell OpKind = iota
	// OpCellNode couples the nodes of a cell
	OpCellNode
	// OpCellEdge couples the edges of a cell
	OpCellEdge
	// OpFaceCell couples the cells sharing a face, one or two of them
	OpFaceCell
)

func (k OpKind) String() string {
	switch k {
	case OpCellFaceCell:
		return "CellFaceCell"
	case OpCellNode:
		return "CellNode"
	case OpCellEdge:
		return "CellEdge"
	case OpFaceCell:
		return "FaceCell"
	}
	return fmt.Sprintf("OpKind(%d)", uint8(k))
}

func (k OpKind) Schema() Schema {
	switch k {
	case OpCellFaceCell:
		return SchemaBaseCell | SchemaDofsFace | SchemaDofsCell
	case OpCellNode:
		return SchemaBaseCell | SchemaDofsNode
	case OpCellEdge:
		return SchemaBaseCell | SchemaDofsEdge
	case OpFaceCell:
		return SchemaBaseFace | SchemaDofsCell
	}
	return 0
}

// anchor is the entity kind owning one matrix
func (k OpKind) anchor() mesh.EntityKind {
	if k == OpFaceCell {
		return mesh.Face
	}
	return mesh.Cell
}

// Op is one discretization term: a dense matrix per owned anchor entity and
// a scalar per anchor added to the anchor's own DOF when it carries one.
// Shadows hold the state captured before boundary elimination.
type Op struct {
	Kind         OpKind
	Schema       Schema
	SchemaString string
	Vals         []float64
	Matrices     []*mat.Dense

	valsShadow     []float64
	matricesShadow []*mat.Dense
	mesh           mesh.Mesh
}

// NewOp allocates an empty block over the owned anchors of m
func NewOp(kind OpKind, m mesh.Mesh) (op *Op) {
	n := m.NumEntities(kind.anchor(), mesh.Owned)
	op = &Op{
		Kind:           kind,
		Schema:         kind.Schema(),
		SchemaString:   kind.Schema().String(),
		Vals:           make([]float64, n),
		Matrices:       make([]*mat.Dense, n),
		valsShadow:     make([]float64, n),
		matricesShadow: make([]*mat.Dense, n),
		mesh:           m,
	}
	op.Init()
	return
}

// Init zeroes the values and replaces every matrix and shadow with an empty
// matrix. Any checkpoint held by the block is lost.
func (op *Op) Init() {
	for i := range op.Vals {
		op.Vals[i] = 0
		op.valsShadow[i] = 0
	}
	for i := range op.Matrices {
		op.Matrices[i] = &mat.Dense{}
		op.matricesShadow[i] = &mat.Dense{}
	}
}

func (op *Op) Matches(query Schema, rule MatchRule) bool {
	return op.Schema.Matches(query, rule)
}

// RestoreCheckPoint puts back every captured matrix and the values
func (op *Op) RestoreCheckPoint() {
	for i, s := range op.matricesShadow {
		if !s.IsEmpty() {
			op.Matrices[i].CloneFrom(s)
		}
	}
	copy(op.Vals, op.valsShadow)
}

// checkPoint snapshots the values and drops captured matrices so the next
// elimination captures the current state
func (op *Op) checkPoint() {
	copy(op.valsShadow, op.Vals)
	for i := range op.matricesShadow {
		op.matricesShadow[i] = &mat.Dense{}
	}
}

func (op *Op) capture(a int) {
	if op.matricesShadow[a].IsEmpty() {
		op.matricesShadow[a] = mat.DenseCopyOf(op.Matrices[a])
	}
}

type dof struct {
	kind mesh.EntityKind
	lid  int
}

// dofs lists the unknowns of anchor a in local matrix order
func (op *Op) dofs(a int) (ds []dof) {
	m := op.mesh
	switch op.Kind {
	case OpCellFaceCell:
		faces, _ := m.CellFaces(a)
		for _, f := range faces {
			ds = append(ds, dof{mesh.Face, f})
		}
		ds = append(ds, dof{mesh.Cell, a})
	case OpCellNode:
		for _, v := range m.CellNodes(a) {
			ds = append(ds, dof{mesh.Node, v})
		}
	case OpCellEdge:
		for _, e := range m.CellEdges(a) {
			ds = append(ds, dof{mesh.Edge, e})
		}
	case OpFaceCell:
		for _, c := range m.FaceCells(a, mesh.Used) {
			ds = append(ds, dof{mesh.Cell, c})
		}
	}
	return
}

// selfDof is the position of the anchor in its own DOF list, -1 if absent
func (op *Op) selfDof(a int) int {
	if op.Kind == OpCellFaceCell {
		faces, _ := op.mesh.CellFaces(a)
		return len(faces)
	}
	return -1
}
