// Package vectors holds multi-component distributed vectors with one scalar
// per mesh entity of each component kind.
package vectors

import (
	"fmt"
	"math"

	"github.com/notargets/subflow/mesh"
	"gonum.org/v1/gonum/floats"
)

type component struct {
	kind   mesh.EntityKind
	nOwned int
	data   []float64 // owned then ghost
}

// CompositeVector stores owned and ghost values per component. Components
// are kept in the order they were requested.
type CompositeVector struct {
	mesh  mesh.Mesh
	comps []*component
}

func NewCompositeVector(m mesh.Mesh, kinds ...mesh.EntityKind) (cv *CompositeVector) {
	cv = &CompositeVector{mesh: m}
	for _, kind := range kinds {
		if cv.HasComponent(kind) {
			continue
		}
		cv.comps = append(cv.comps, &component{
			kind:   kind,
			nOwned: m.NumEntities(kind, mesh.Owned),
			data:   make([]float64, m.NumEntities(kind, mesh.Used)),
		})
	}
	return
}

// CloneShape returns a zero vector with the same components
func (cv *CompositeVector) CloneShape() *CompositeVector {
	return NewCompositeVector(cv.mesh, cv.Kinds()...)
}

// Clone returns a deep copy, ghosts included
func (cv *CompositeVector) Clone() (r *CompositeVector) {
	r = cv.CloneShape()
	for i, c := range cv.comps {
		copy(r.comps[i].data, c.data)
	}
	return
}

func (cv *CompositeVector) Mesh() mesh.Mesh { return cv.mesh }

func (cv *CompositeVector) Kinds() (kinds []mesh.EntityKind) {
	for _, c := range cv.comps {
		kinds = append(kinds, c.kind)
	}
	return
}

func (cv *CompositeVector) HasComponent(kind mesh.EntityKind) bool {
	return cv.component(kind) != nil
}

func (cv *CompositeVector) component(kind mesh.EntityKind) *component {
	for _, c := range cv.comps {
		if c.kind == kind {
			return c
		}
	}
	return nil
}

// ViewComponent returns the live storage of a component, the owned prefix
// when ghosted is false. It panics on a missing component.
func (cv *CompositeVector) ViewComponent(kind mesh.EntityKind, ghosted bool) []float64 {
	c := cv.component(kind)
	if c == nil {
		panic(fmt.Errorf("composite vector has no %v component", kind))
	}
	if ghosted {
		return c.data
	}
	return c.data[:c.nOwned]
}

// OwnedSize is the number of owned values over all components
func (cv *CompositeVector) OwnedSize() (n int) {
	for _, c := range cv.comps {
		n += c.nOwned
	}
	return
}

func (cv *CompositeVector) PutScalar(v float64) {
	for _, c := range cv.comps {
		for i := range c.data {
			c.data[i] = v
		}
	}
}

// PutScalarGhosted sets only the ghost values
func (cv *CompositeVector) PutScalarGhosted(v float64) {
	for _, c := range cv.comps {
		for i := c.nOwned; i < len(c.data); i++ {
			c.data[i] = v
		}
	}
}

// ScatterMasterToGhosted fills ghost values from their owners
func (cv *CompositeVector) ScatterMasterToGhosted() {
	for _, c := range cv.comps {
		cv.mesh.Exchanger(c.kind).Scatter(c.data)
	}
}

// GatherGhostedToMaster adds ghost values into their owners
func (cv *CompositeVector) GatherGhostedToMaster() {
	for _, c := range cv.comps {
		cv.mesh.Exchanger(c.kind).Gather(c.data)
	}
}

// Dot is the global inner product over owned values
func (cv *CompositeVector) Dot(other *CompositeVector) float64 {
	local := 0.
	for i, c := range cv.comps {
		o := other.comps[i]
		local += floats.Dot(c.data[:c.nOwned], o.data[:o.nOwned])
	}
	return cv.mesh.Comm().SumAll(local)
}

func (cv *CompositeVector) Norm2() float64 {
	return math.Sqrt(cv.Dot(cv))
}

func (cv *CompositeVector) NormInf() float64 {
	local := 0.
	for _, c := range cv.comps {
		if len(c.data[:c.nOwned]) > 0 {
			local = math.Max(local, floats.Norm(c.data[:c.nOwned], math.Inf(1)))
		}
	}
	return cv.mesh.Comm().MaxAll(local)
}

// Update sets cv = a*x + b*cv on owned values
func (cv *CompositeVector) Update(a float64, x *CompositeVector, b float64) {
	for i, c := range cv.comps {
		xd := x.comps[i].data[:c.nOwned]
		d := c.data[:c.nOwned]
		if b != 1 {
			floats.Scale(b, d)
		}
		floats.AddScaled(d, a, xd)
	}
}

// Scale multiplies owned values by a
func (cv *CompositeVector) Scale(a float64) {
	for _, c := range cv.comps {
		floats.Scale(a, c.data[:c.nOwned])
	}
}

// Assign copies owned and ghost values of x
func (cv *CompositeVector) Assign(x *CompositeVector) {
	for i, c := range cv.comps {
		copy(c.data, x.comps[i].data)
	}
}

// ElementWiseMultiply sets cv = a .* b on owned values
func (cv *CompositeVector) ElementWiseMultiply(a, b *CompositeVector) {
	for i, c := range cv.comps {
		n := c.nOwned
		floats.MulTo(c.data[:n], a.comps[i].data[:n], b.comps[i].data[:n])
	}
}
