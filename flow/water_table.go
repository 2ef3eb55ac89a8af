package flow

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/utils"
)

var ErrUnsupportedConfiguration = errors.New("unsupported mesh configuration")

const (
	// verticalTol rejects surface edges whose horizontal extent is
	// negligible, relative to the squared edge length
	verticalTol = 1.e-24
	// projectTol is the relative slack of the edge projection
	projectTol = 1.e-10
)

// CalculateShiftWaterTable computes a pressure offset rho |g| z for every
// boundary face of a region, z being the elevation of the top surface
// above the face centroid. The surface is traced by the non vertical
// edges (nodes in 2D) that the region faces share with other boundary
// faces, gathered from every rank; the highest edge whose horizontal
// projection holds the centroid wins. Two faces sharing more than dim-1
// nodes make the mesh unsupported.
func (pk *DarcyPK) CalculateShiftWaterTable(region string) (err error) {
	var (
		m     = pk.m
		dim   = pk.dim
		faces []int
	)
	if faces, err = m.RegionEntities(region, mesh.Face, mesh.Owned); err != nil {
		return fmt.Errorf("water table: %w", err)
	}
	if pk.shift == nil {
		pk.shift = make([]float64, m.NumEntities(mesh.Face, mesh.Used))
	}
	var (
		edges       []float64 // 2*dim coordinates per edge
		seen        = make(map[mesh.EdgeKey]bool)
		unsupported int
	)
	addEdge := func(v1, v2 int) {
		key := mesh.NewEdgeKey(m.GID(mesh.Node, v1), m.GID(mesh.Node, v2))
		if !seen[key] {
			seen[key] = true
			edges = append(append(edges, m.NodeCoordinates(v1)...), m.NodeCoordinates(v2)...)
		}
	}
	for _, f1 := range faces {
		var (
			c      = m.FaceCells(f1, mesh.Used)[0]
			nodes1 = sortedNodes(m, f1)
			cf, _  = m.CellFaces(c)
		)
		for _, f2 := range cf {
			if f2 == f1 || !m.IsBoundaryFace(f2) {
				continue
			}
			common := utils.SetIntersection(nodes1, sortedNodes(m, f2))
			if len(common) > dim-1 {
				unsupported++
				continue
			}
			switch {
			case dim == 2 && len(common) == 1:
				addEdge(common[0], common[0])
			case dim == 3 && len(common) == 2:
				p3 := utils.Sub(m.NodeCoordinates(common[1]), m.NodeCoordinates(common[0]))
				if p3[0]*p3[0]+p3[1]*p3[1] > verticalTol*utils.Dot(p3, p3) {
					addEdge(common[0], common[1])
				}
			}
		}
	}
	if m.Comm().MaxAllInt(unsupported) > 0 {
		return fmt.Errorf("water table of %q: faces share more than %d nodes: %w",
			region, dim-1, ErrUnsupportedConfiguration)
	}

	// every rank sees the whole surface
	var (
		c   = m.Comm()
		out = make([][]float64, c.Size())
		all []float64
	)
	for q := range out {
		out[q] = edges
	}
	for _, in := range c.AllToAllFloats(out) {
		all = append(all, in...)
	}
	rhoG := -pk.S.Density * pk.S.Gravity[dim-1]
	for _, f := range faces {
		var (
			xf    = m.FaceCentroid(f)
			size  = math.Pow(m.FaceArea(f), 1/float64(dim-1))
			best  float64
			found bool
		)
		for k := 0; k+2*dim <= len(all); k += 2 * dim {
			z, ok := projectOnEdge(xf, all[k:k+dim], all[k+dim:k+2*dim], size)
			if ok && (!found || z > best) {
				best, found = z, true
			}
		}
		if found {
			pk.shift[f] = best * rhoG
		}
	}
	m.Exchanger(mesh.Face).Scatter(pk.shift)
	return
}

// sortedNodes copies the cyclic node list of a face in ascending order
func sortedNodes(m mesh.Mesh, f int) (nodes []int) {
	nodes = append(nodes, m.FaceNodes(f)...)
	sort.Ints(nodes)
	return
}

// projectOnEdge returns the elevation of the edge e0 e1 above the
// horizontal position of x, when x projects inside the edge. In 2D the
// edge is a single node.
func projectOnEdge(x, e0, e1 []float64, size float64) (z float64, ok bool) {
	dim := len(x)
	if dim == 2 {
		if math.Abs(x[0]-e0[0]) <= projectTol*size {
			return e0[1], true
		}
		return
	}
	var (
		p1 = utils.Sub(e1, e0)
		p2 = utils.Sub(x, e0)
		l2 = p1[0]*p1[0] + p1[1]*p1[1]
	)
	if l2 == 0 {
		return
	}
	var (
		a = (p1[0]*p2[0] + p1[1]*p2[1]) / l2
		b = p1[0]*p2[1] - p1[1]*p2[0]
	)
	if math.Abs(b) <= projectTol*size*math.Sqrt(l2) && a > -projectTol && a < 1+projectTol {
		return e0[2] + a*p1[2], true
	}
	return
}
