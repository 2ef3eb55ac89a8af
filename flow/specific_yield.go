package flow

import (
	"errors"

	"github.com/notargets/subflow/mesh"
)

var ErrNegativeYield = errors.New("yield region layout gives non-positive yield interface area")

// UpdateSpecificYield folds the interface area into the specific yield of
// every cell with positive yield. The area is the vertical projection of
// the faces shared with saturated neighbors, those with non-positive yield,
// counted positive when the neighbor lies below. Every rank fails when any
// yield cell ends up with a non-positive area.
func (pk *DarcyPK) UpdateSpecificYield() (err error) {
	var (
		m        = pk.m
		dim      = pk.dim
		sy       = pk.S.SpecificYield
		negative int
	)
	sy.ScatterMasterToGhosted()
	var (
		vals = sy.ViewComponent(mesh.Cell, true)
		raw  = append([]float64{}, vals...)
	)
	for c := 0; c < m.NumEntities(mesh.Cell, mesh.Owned); c++ {
		if raw[c] <= 0 {
			continue
		}
		var (
			faces, dirs = m.CellFaces(c)
			area        float64
		)
		for n, f := range faces {
			cells := m.FaceCells(f, mesh.Used)
			if len(cells) != 2 {
				continue
			}
			c2 := cells[0]
			if c2 == c {
				c2 = cells[1]
			}
			if raw[c2] <= 0 {
				area -= m.FaceNormal(f)[dim-1] * float64(dirs[n])
			}
		}
		vals[c] *= area
		if area <= 0 {
			negative++
		}
	}
	sy.ScatterMasterToGhosted()
	if m.Comm().MaxAllInt(negative) > 0 {
		return ErrNegativeYield
	}
	return
}
