package operators

import (
	"errors"
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/preconditioners"
	"github.com/notargets/subflow/vectors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoCheckPoint   = errors.New("checkpoint restored before one was created")
	ErrNotAssembled   = errors.New("operator is not assembled")
	ErrSchemaMismatch = errors.New("schema does not fit the operator space")
)

// Operator is the global system: a set of blocks plus a diagonal and right
// hand side over a composite space. Once assembled it holds the owned rows
// of the matrix and a preconditioner for them.
type Operator struct {
	mesh  mesh.Mesh
	kinds []mesh.EntityKind
	ops   []*Op
	log   logrus.FieldLogger

	diag, rhs                     *vectors.CompositeVector
	diagCheckPoint, rhsCheckPoint *vectors.CompositeVector

	lay     *layout
	A       *sparse.CSR // owned rows, owned then ghost columns
	aOff    *sparse.CSR // ghost rows headed for their owners
	diagPos []int
	export  exportPlan

	assembled bool
	pc        preconditioners.Preconditioner
}

// NewOperator creates an empty operator over the entity kinds of the space
func NewOperator(m mesh.Mesh, kinds []mesh.EntityKind, log logrus.FieldLogger) (o *Operator) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	o = &Operator{
		mesh: m,
		diag: vectors.NewCompositeVector(m, kinds...),
		rhs:  vectors.NewCompositeVector(m, kinds...),
		log:  log.WithField("rank", m.Comm().Rank()),
	}
	o.kinds = o.diag.Kinds()
	for _, kind := range o.kinds {
		o.log.Debugf("operator %v owned=%d used=%d", kind,
			m.NumEntities(kind, mesh.Owned), m.NumEntities(kind, mesh.Used))
	}
	return
}

func (o *Operator) Mesh() mesh.Mesh                     { return o.mesh }
func (o *Operator) Kinds() []mesh.EntityKind           { return o.kinds }
func (o *Operator) Rhs() *vectors.CompositeVector      { return o.rhs }
func (o *Operator) Diagonal() *vectors.CompositeVector { return o.diag }
func (o *Operator) Ops() []*Op                         { return o.ops }

// Matrix is the assembled matrix over owned rows, nil until assembled
func (o *Operator) Matrix() *sparse.CSR {
	if !o.assembled {
		return nil
	}
	return o.A
}

// NewVector returns a zero vector over the operator space
func (o *Operator) NewVector() *vectors.CompositeVector {
	return vectors.NewCompositeVector(o.mesh, o.kinds...)
}

func (o *Operator) hasKind(kind mesh.EntityKind) bool {
	return o.diag.HasComponent(kind)
}

// AddOp appends a block whose DOFs must lie in the operator space
func (o *Operator) AddOp(op *Op) (err error) {
	for _, kind := range op.Schema.DofKinds() {
		if !o.hasKind(kind) {
			return fmt.Errorf("%w: block %s needs %v DOFs", ErrSchemaMismatch, op.SchemaString, kind)
		}
	}
	o.ops = append(o.ops, op)
	return
}

// OpsMatching returns the blocks matching the schema under the rule
func (o *Operator) OpsMatching(schema Schema, rule MatchRule) (ops []*Op) {
	for _, op := range o.ops {
		if op.Matches(schema, rule) {
			ops = append(ops, op)
		}
	}
	if len(ops) == 0 {
		o.log.Debugf("no block matches schema %s", schema)
	}
	return
}

// Init zeroes the diagonal, right hand side and every block
func (o *Operator) Init() {
	o.diag.PutScalar(0)
	o.rhs.PutScalar(0)
	for _, op := range o.ops {
		op.Init()
	}
}

// CreateCheckPoint snapshots the diagonal, right hand side and block values.
// Matrices are captured lazily by the next boundary elimination.
func (o *Operator) CreateCheckPoint() {
	o.diagCheckPoint = o.diag.Clone()
	o.rhsCheckPoint = o.rhs.Clone()
	for _, op := range o.ops {
		op.checkPoint()
	}
}

func (o *Operator) RestoreCheckPoint() (err error) {
	if o.diagCheckPoint == nil || o.rhsCheckPoint == nil {
		return ErrNoCheckPoint
	}
	o.diag.Assign(o.diagCheckPoint)
	o.rhs.Assign(o.rhsCheckPoint)
	for _, op := range o.ops {
		op.RestoreCheckPoint()
	}
	return
}

// Apply is the matrix free product Y = A X over all blocks
func (o *Operator) Apply(X, Y *vectors.CompositeVector) (err error) {
	for _, op := range o.ops {
		for _, kind := range op.Schema.DofKinds() {
			if !X.HasComponent(kind) || !Y.HasComponent(kind) {
				return fmt.Errorf("%w: block %s needs %v DOFs", ErrSchemaMismatch, op.SchemaString, kind)
			}
		}
	}
	X.ScatterMasterToGhosted()
	Y.PutScalar(0)
	for _, kind := range Y.Kinds() {
		var (
			y = Y.ViewComponent(kind, false)
			x = X.ViewComponent(kind, false)
			d = o.diag.ViewComponent(kind, false)
		)
		for i := range y {
			y[i] = d[i] * x[i]
		}
	}
	for _, op := range o.ops {
		for a, A := range op.Matrices {
			ds := op.dofs(a)
			if s := op.selfDof(a); s >= 0 && op.Vals[a] != 0 {
				self := ds[s]
				Y.ViewComponent(self.kind, true)[self.lid] += op.Vals[a] * X.ViewComponent(self.kind, true)[self.lid]
			}
			if A.IsEmpty() {
				continue
			}
			xl := mat.NewVecDense(len(ds), nil)
			for i, d := range ds {
				xl.SetVec(i, X.ViewComponent(d.kind, true)[d.lid])
			}
			var yl mat.VecDense
			yl.MulVec(A, xl)
			for i, d := range ds {
				Y.ViewComponent(d.kind, true)[d.lid] += yl.AtVec(i)
			}
		}
	}
	Y.GatherGhostedToMaster()
	Y.PutScalarGhosted(0)
	return
}
