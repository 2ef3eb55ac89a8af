package mesh

import (
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/subflow/utils"
)

var ErrUnknownRegion = errors.New("unknown region")

// RegionAll names every entity of the requested kind
const RegionAll = "All"

// AddBoxRegion labels entities whose centroid lies in [lo, hi]. For faces
// only boundary faces are labeled.
func (m *Structured) AddBoxRegion(name string, lo, hi []float64) (err error) {
	if len(lo) != m.box.Dim || len(hi) != m.box.Dim {
		return fmt.Errorf("region %q: corners must have %d coordinates", name, m.box.Dim)
	}
	if _, ok := m.topo.boundarySets[name]; ok || name == RegionAll {
		return fmt.Errorf("region %q: name is reserved", name)
	}
	var box [2][3]float64
	copy(box[0][:], lo)
	copy(box[1][:], hi)
	m.boxes[name] = box
	m.labels = append(m.labels, name)
	sort.Strings(m.labels)
	return
}

// Regions lists the labeled sets known to the mesh
func (m *Structured) Regions() []string { return m.labels }

func (m *Structured) inBox(box [2][3]float64, x []float64) bool {
	for d := 0; d < m.box.Dim; d++ {
		tol := utils.NODETOL * (m.box.High[d] - m.box.Low[d])
		if x[d] < box[0][d]-tol || x[d] > box[1][d]+tol {
			return false
		}
	}
	return true
}

func (m *Structured) RegionEntities(name string, kind EntityKind, own Ownership) (ents []int, err error) {
	n := m.NumEntities(kind, own)
	if name == RegionAll {
		ents = make([]int, n)
		for i := range ents {
			ents[i] = i
		}
		return
	}
	if set, ok := m.topo.boundarySets[name]; ok {
		return m.boundaryRegion(set, kind, own)
	}
	box, ok := m.boxes[name]
	if !ok {
		err = fmt.Errorf("%w: %q", ErrUnknownRegion, name)
		return
	}
	for i := 0; i < n; i++ {
		var x []float64
		switch kind {
		case Cell:
			x = m.CellCentroid(i)
		case Face:
			if !m.IsBoundaryFace(i) {
				continue
			}
			x = m.FaceCentroid(i)
		case Node:
			x = m.NodeCoordinates(i)
		case Edge:
			x = average(m.coordsOf(m.EdgeNodes(i)))
		}
		if m.inBox(box, x) {
			ents = append(ents, i)
		}
	}
	return
}

func (m *Structured) boundaryRegion(set []int, kind EntityKind, own Ownership) (ents []int, err error) {
	var (
		faces = m.sets[Face]
		n     = m.NumEntities(kind, own)
		seen  = make(map[int]bool)
	)
	for _, gid := range set {
		f, ok := faces.lids[gid]
		if !ok {
			continue
		}
		switch kind {
		case Face:
			if f < n {
				seen[f] = true
			}
		case Node:
			for _, v := range m.faceNodes[f] {
				if v < n {
					seen[v] = true
				}
			}
		default:
			err = fmt.Errorf("%w: boundary set has no %v entities", ErrUnknownRegion, kind)
			return
		}
	}
	for e := range seen {
		ents = append(ents, e)
	}
	sort.Ints(ents)
	return
}
