package flow

import (
	"errors"
	"fmt"

	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/utils"
)

var ErrNoEssentialBC = errors.New("no essential boundary condition, the pressure is undetermined")

// BoundaryCondition applies one marker with a time dependent value to the
// boundary faces of the named regions. Values are pressures, hydraulic
// heads or outward mass flux densities depending on Type. A seepage face
// takes its value as the flux used while the adjacent cell is below
// atmospheric pressure.
type BoundaryCondition struct {
	Name    string
	Type    utils.BCType
	Regions []string
	Value   TimeFunction
}

// Source is a volumetric rate per unit volume over the cells of regions,
// positive for injection
type Source struct {
	Name    string
	Regions []string
	Value   TimeFunction
}

// bcOrder is the precedence of condition types, later ones override
var bcOrder = []utils.BCType{utils.BCPressure, utils.BCHead, utils.BCFlux, utils.BCSeepage}

// regionFaces collects the used boundary faces of every condition
func (pk *DarcyPK) regionFaces() (err error) {
	pk.bcFaces = make([][]int, len(pk.cfg.BoundaryConditions))
	for i, bc := range pk.cfg.BoundaryConditions {
		if bc.Value == nil {
			return fmt.Errorf("boundary condition %q has no value", bc.Name)
		}
		switch bc.Type {
		case utils.BCPressure, utils.BCHead, utils.BCFlux, utils.BCSeepage:
		default:
			return fmt.Errorf("boundary condition %q: unsupported type %v", bc.Name, bc.Type)
		}
		seen := make(map[int]bool)
		for _, region := range bc.Regions {
			var faces []int
			if faces, err = pk.m.RegionEntities(region, mesh.Face, mesh.Used); err != nil {
				return fmt.Errorf("boundary condition %q: %w", bc.Name, err)
			}
			for _, f := range faces {
				if pk.m.IsBoundaryFace(f) && !seen[f] {
					seen[f] = true
					pk.bcFaces[i] = append(pk.bcFaces[i], f)
				}
			}
		}
	}
	return
}

// UpdateBoundaryConditions evaluates the conditions at time t into face
// markers. Heads become pressures relative to the face elevation, shifted
// by the water table offset when one was computed. A seepage face holds
// atmospheric pressure once its cell reaches it. Owned boundary faces left
// without a condition get zero flux. The problem must have an essential
// condition on some rank.
func (pk *DarcyPK) UpdateBoundaryConditions(t float64) (err error) {
	var (
		m         = pk.m
		dim       = pk.dim
		s         = pk.S
		bc        = pk.bc
		atm       = s.AtmPressure
		rhoG      = s.Density * s.GravityMagnitude()
		pcell     = pk.cellPressure()
		essential int
		missed    int
	)
	bc.Reset()
	for _, kind := range bcOrder {
		for i, b := range pk.cfg.BoundaryConditions {
			if b.Type != kind {
				continue
			}
			v := b.Value.Value(t)
			for _, f := range pk.bcFaces[i] {
				switch kind {
				case utils.BCPressure:
					bc.Model[f], bc.Values[f] = utils.BCPressure, v
					essential = 1
				case utils.BCHead:
					p := atm + rhoG*(v-m.FaceCentroid(f)[dim-1])
					if pk.shift != nil {
						p += pk.shift[f]
					}
					bc.Model[f], bc.Values[f] = utils.BCHead, p
					essential = 1
				case utils.BCFlux:
					bc.Model[f], bc.Values[f] = utils.BCFlux, v
				case utils.BCSeepage:
					c := m.FaceCells(f, mesh.Used)[0]
					if pcell[c] < atm {
						bc.Model[f], bc.Values[f] = utils.BCFlux, v
					} else {
						bc.Model[f], bc.Values[f] = utils.BCPressure, atm
						essential = 1
					}
				}
			}
		}
	}
	for f := 0; f < m.NumEntities(mesh.Face, mesh.Owned); f++ {
		if bc.Model[f] == utils.BCNone && m.IsBoundaryFace(f) {
			bc.Model[f], bc.Values[f] = utils.BCFlux, 0
			missed++
		}
	}
	if missed > 0 {
		pk.log.Debugf("assigned zero flux to %d boundary faces", missed)
	}
	if m.Comm().MaxAllInt(essential) == 0 {
		return ErrNoEssentialBC
	}
	return
}

// cellPressure returns the ghosted cell pressures of the current solution
func (pk *DarcyPK) cellPressure() []float64 {
	pk.solution.ScatterMasterToGhosted()
	return pk.solution.ViewComponent(mesh.Cell, true)
}
