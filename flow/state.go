// Package flow is the saturated Darcy flow process kernel: the shared flow
// state, boundary condition processing and the kernel that advances the
// pressure field with the operators framework.
package flow

import (
	"fmt"
	"math"

	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/vectors"
)

// State is the flow view of the shared simulation state. Cell fields carry
// ghost values; writers refresh them with ScatterMasterToGhosted.
type State struct {
	Mesh mesh.Mesh

	Pressure        *vectors.CompositeVector // cells
	Saturation      *vectors.CompositeVector
	PrevSaturation  *vectors.CompositeVector
	Kv, Kh          *vectors.CompositeVector
	Porosity        *vectors.CompositeVector
	SpecificStorage *vectors.CompositeVector
	SpecificYield   *vectors.CompositeVector
	DarcyFlux       *vectors.CompositeVector // faces, volumetric along the face normal
	DarcyVelocity   [][]float64              // owned cells
	PoreVelocity    [][]float64              // owned cells, Darcy velocity over the wetted porosity

	Density, Viscosity float64
	Gravity            []float64
	AtmPressure        float64
	Time               float64
}

// NewState allocates a fully saturated state with water properties, unit
// permeability and gravity along the last axis
func NewState(m mesh.Mesh) (s *State) {
	var (
		dim  = m.SpaceDimension()
		cell = func() *vectors.CompositeVector { return vectors.NewCompositeVector(m, mesh.Cell) }
	)
	s = &State{
		Mesh:            m,
		Pressure:        cell(),
		Saturation:      cell(),
		PrevSaturation:  cell(),
		Kv:              cell(),
		Kh:              cell(),
		Porosity:        cell(),
		SpecificStorage: cell(),
		SpecificYield:   cell(),
		DarcyFlux:       vectors.NewCompositeVector(m, mesh.Face),
		DarcyVelocity:   make([][]float64, m.NumEntities(mesh.Cell, mesh.Owned)),
		PoreVelocity:    make([][]float64, m.NumEntities(mesh.Cell, mesh.Owned)),
		Density:         1000,
		Viscosity:       1.e-3,
		Gravity:         make([]float64, dim),
		AtmPressure:     101325,
	}
	s.Gravity[dim-1] = -9.81
	s.Saturation.PutScalar(1)
	s.PrevSaturation.PutScalar(1)
	s.Kv.PutScalar(1)
	s.Kh.PutScalar(1)
	s.Porosity.PutScalar(0.2)
	for c := range s.DarcyVelocity {
		s.DarcyVelocity[c] = make([]float64, dim)
		s.PoreVelocity[c] = make([]float64, dim)
	}
	return
}

// GravityMagnitude is |g| along the vertical axis
func (s *State) GravityMagnitude() float64 {
	return math.Abs(s.Gravity[len(s.Gravity)-1])
}

// SetGravity points gravity down the last axis with magnitude g
func (s *State) SetGravity(g float64) {
	for i := range s.Gravity {
		s.Gravity[i] = 0
	}
	s.Gravity[len(s.Gravity)-1] = -g
}

// SetPressureHydrostatic sets p = p0 + rho g_z (z - z0) in every cell
func (s *State) SetPressureHydrostatic(z0, p0 float64) {
	var (
		m   = s.Mesh
		dim = m.SpaceDimension()
		p   = s.Pressure.ViewComponent(mesh.Cell, true)
	)
	for c := range p {
		p[c] = p0 + s.Density*s.Gravity[dim-1]*(m.CellCentroid(c)[dim-1]-z0)
	}
}

// SetPermeability sets horizontal and vertical permeability everywhere
func (s *State) SetPermeability(kh, kv float64) {
	s.Kh.PutScalar(kh)
	s.Kv.PutScalar(kv)
}

// SetPermeabilityRegion sets the permeabilities of the cells in a region
func (s *State) SetPermeabilityRegion(kh, kv float64, region string) (err error) {
	if err = s.SetRegion(s.Kh, region, kh); err != nil {
		return
	}
	return s.SetRegion(s.Kv, region, kv)
}

// SetRegion assigns value to the cells of a region in a cell field, ghosts
// included
func (s *State) SetRegion(field *vectors.CompositeVector, region string, value float64) (err error) {
	var cells []int
	if cells, err = s.Mesh.RegionEntities(region, mesh.Cell, mesh.Used); err != nil {
		return fmt.Errorf("cell field: %w", err)
	}
	v := field.ViewComponent(mesh.Cell, true)
	for _, c := range cells {
		v[c] = value
	}
	return
}
