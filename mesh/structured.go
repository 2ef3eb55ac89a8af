package mesh

import (
	"errors"
	"fmt"
	"sort"
)

var ErrBadBox = errors.New("invalid mesh box")

// Box describes a logically rectangular mesh of quads (2D) or hexes (3D).
// Cells are numbered with i fastest. When Top is set, the vertical node
// columns are stretched between Low[dim-1] and Top(x, y).
type Box struct {
	Dim       int
	N         [3]int
	Low, High [3]float64
	Top       func(x, y float64) float64
}

func (b Box) validate() (err error) {
	if b.Dim != 2 && b.Dim != 3 {
		return fmt.Errorf("%w: dimension %d", ErrBadBox, b.Dim)
	}
	for d := 0; d < b.Dim; d++ {
		if b.N[d] < 1 {
			return fmt.Errorf("%w: %d cells in direction %d", ErrBadBox, b.N[d], d)
		}
		if b.High[d] <= b.Low[d] {
			return fmt.Errorf("%w: empty extent in direction %d", ErrBadBox, d)
		}
	}
	return
}

// topology is the replicated global description every rank derives its
// local view from
type topology struct {
	dim                            int
	nCells, nFaces, nNodes, nEdges int
	cellFaces, cellDirs            [][]int
	cellNodes, cellEdges           [][]int
	faceNodes, edgeNodes           [][]int
	faceCells, nodeCells           [][]int
	edgeCells                      [][]int
	coords                         [][]float64
	boundarySets                   map[string][]int // global face ids
}

func newTopology(b Box) (t *topology) {
	t = &topology{dim: b.Dim, boundarySets: make(map[string][]int)}
	if b.Dim == 2 {
		t.build2D(b)
	} else {
		t.build3D(b)
	}
	t.faceCells = invert(t.cellFaces, t.nFaces)
	t.nodeCells = invert(t.cellNodes, t.nNodes)
	t.edgeCells = invert(t.cellEdges, t.nEdges)
	return
}

// invert builds the ascending entity to cell adjacency
func invert(cellEnt [][]int, n int) (entCells [][]int) {
	entCells = make([][]int, n)
	for c, ents := range cellEnt {
		for _, e := range ents {
			entCells[e] = append(entCells[e], c)
		}
	}
	for _, cells := range entCells {
		sort.Ints(cells)
	}
	return
}

func vertical(b Box, x, y float64, k, nk int) float64 {
	var (
		d   = b.Dim - 1
		low = b.Low[d]
		top = b.High[d]
	)
	if b.Top != nil {
		top = b.Top(x, y)
	}
	return low + (top-low)*float64(k)/float64(nk)
}

func (t *topology) build2D(b Box) {
	var (
		nx, ny = b.N[0], b.N[1]
		hx     = (b.High[0] - b.Low[0]) / float64(nx)
		node   = func(i, j int) int { return i + j*(nx+1) }
		nxf    = (nx + 1) * ny
		xface  = func(i, j int) int { return i + j*(nx+1) }
		yface  = func(i, j int) int { return nxf + i + j*nx }
	)
	t.nNodes = (nx + 1) * (ny + 1)
	t.nCells = nx * ny
	t.nFaces = nxf + nx*(ny+1)
	t.nEdges = t.nFaces
	t.coords = make([][]float64, t.nNodes)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			x := b.Low[0] + float64(i)*hx
			t.coords[node(i, j)] = []float64{x, vertical(b, x, 0, j, ny)}
		}
	}
	t.faceNodes = make([][]int, t.nFaces)
	for j := 0; j < ny; j++ {
		for i := 0; i <= nx; i++ {
			t.faceNodes[xface(i, j)] = []int{node(i, j), node(i, j+1)}
		}
	}
	for j := 0; j <= ny; j++ {
		for i := 0; i < nx; i++ {
			t.faceNodes[yface(i, j)] = []int{node(i+1, j), node(i, j)}
		}
	}
	t.edgeNodes = t.faceNodes
	t.cellFaces = make([][]int, t.nCells)
	t.cellDirs = make([][]int, t.nCells)
	t.cellNodes = make([][]int, t.nCells)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			c := i + j*nx
			t.cellFaces[c] = []int{yface(i, j), xface(i+1, j), yface(i, j+1), xface(i, j)}
			t.cellDirs[c] = []int{-1, 1, 1, -1}
			t.cellNodes[c] = []int{node(i, j), node(i+1, j), node(i+1, j+1), node(i, j+1)}
		}
	}
	t.cellEdges = t.cellFaces
	for j := 0; j < ny; j++ {
		t.boundarySets["XMin"] = append(t.boundarySets["XMin"], xface(0, j))
		t.boundarySets["XMax"] = append(t.boundarySets["XMax"], xface(nx, j))
	}
	for i := 0; i < nx; i++ {
		t.boundarySets["YMin"] = append(t.boundarySets["YMin"], yface(i, 0))
		t.boundarySets["YMax"] = append(t.boundarySets["YMax"], yface(i, ny))
	}
	t.boundarySets["Bottom"] = t.boundarySets["YMin"]
	t.boundarySets["Top"] = t.boundarySets["YMax"]
}

func (t *topology) build3D(b Box) {
	var (
		nx, ny, nz = b.N[0], b.N[1], b.N[2]
		hx         = (b.High[0] - b.Low[0]) / float64(nx)
		hy         = (b.High[1] - b.Low[1]) / float64(ny)
		node       = func(i, j, k int) int { return i + j*(nx+1) + k*(nx+1)*(ny+1) }
		nxf        = (nx + 1) * ny * nz
		nyf        = nx * (ny + 1) * nz
		xface      = func(i, j, k int) int { return i + j*(nx+1) + k*(nx+1)*ny }
		yface      = func(i, j, k int) int { return nxf + i + j*nx + k*nx*(ny+1) }
		zface      = func(i, j, k int) int { return nxf + nyf + i + j*nx + k*nx*ny }
		nxe        = nx * (ny + 1) * (nz + 1)
		nye        = (nx + 1) * ny * (nz + 1)
		xedge      = func(i, j, k int) int { return i + j*nx + k*nx*(ny+1) }
		yedge      = func(i, j, k int) int { return nxe + i + j*(nx+1) + k*(nx+1)*ny }
		zedge      = func(i, j, k int) int { return nxe + nye + i + j*(nx+1) + k*(nx+1)*(ny+1) }
	)
	t.nNodes = (nx + 1) * (ny + 1) * (nz + 1)
	t.nCells = nx * ny * nz
	t.nFaces = nxf + nyf + nx*ny*(nz+1)
	t.nEdges = nxe + nye + (nx+1)*(ny+1)*nz
	t.coords = make([][]float64, t.nNodes)
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				x := b.Low[0] + float64(i)*hx
				y := b.Low[1] + float64(j)*hy
				t.coords[node(i, j, k)] = []float64{x, y, vertical(b, x, y, k, nz)}
			}
		}
	}
	t.faceNodes = make([][]int, t.nFaces)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i <= nx; i++ {
				t.faceNodes[xface(i, j, k)] = []int{node(i, j, k), node(i, j+1, k),
					node(i, j+1, k+1), node(i, j, k+1)}
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i < nx; i++ {
				t.faceNodes[yface(i, j, k)] = []int{node(i, j, k), node(i, j, k+1),
					node(i+1, j, k+1), node(i+1, j, k)}
			}
		}
	}
	for k := 0; k <= nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				t.faceNodes[zface(i, j, k)] = []int{node(i, j, k), node(i+1, j, k),
					node(i+1, j+1, k), node(i, j+1, k)}
			}
		}
	}
	t.edgeNodes = make([][]int, t.nEdges)
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				if i < nx {
					t.edgeNodes[xedge(i, j, k)] = []int{node(i, j, k), node(i+1, j, k)}
				}
				if j < ny {
					t.edgeNodes[yedge(i, j, k)] = []int{node(i, j, k), node(i, j+1, k)}
				}
				if k < nz {
					t.edgeNodes[zedge(i, j, k)] = []int{node(i, j, k), node(i, j, k+1)}
				}
			}
		}
	}
	t.cellFaces = make([][]int, t.nCells)
	t.cellDirs = make([][]int, t.nCells)
	t.cellNodes = make([][]int, t.nCells)
	t.cellEdges = make([][]int, t.nCells)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := i + j*nx + k*nx*ny
				t.cellFaces[c] = []int{xface(i, j, k), xface(i+1, j, k),
					yface(i, j, k), yface(i, j+1, k), zface(i, j, k), zface(i, j, k+1)}
				t.cellDirs[c] = []int{-1, 1, -1, 1, -1, 1}
				t.cellNodes[c] = []int{
					node(i, j, k), node(i+1, j, k), node(i+1, j+1, k), node(i, j+1, k),
					node(i, j, k+1), node(i+1, j, k+1), node(i+1, j+1, k+1), node(i, j+1, k+1),
				}
				t.cellEdges[c] = []int{
					xedge(i, j, k), xedge(i, j+1, k), xedge(i, j, k+1), xedge(i, j+1, k+1),
					yedge(i, j, k), yedge(i+1, j, k), yedge(i, j, k+1), yedge(i+1, j, k+1),
					zedge(i, j, k), zedge(i+1, j, k), zedge(i, j+1, k), zedge(i+1, j+1, k),
				}
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			t.boundarySets["XMin"] = append(t.boundarySets["XMin"], xface(0, j, k))
			t.boundarySets["XMax"] = append(t.boundarySets["XMax"], xface(nx, j, k))
		}
		for i := 0; i < nx; i++ {
			t.boundarySets["YMin"] = append(t.boundarySets["YMin"], yface(i, 0, k))
			t.boundarySets["YMax"] = append(t.boundarySets["YMax"], yface(i, ny, k))
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			t.boundarySets["ZMin"] = append(t.boundarySets["ZMin"], zface(i, j, 0))
			t.boundarySets["ZMax"] = append(t.boundarySets["ZMax"], zface(i, j, nz))
		}
	}
	t.boundarySets["Bottom"] = t.boundarySets["ZMin"]
	t.boundarySets["Top"] = t.boundarySets["ZMax"]
}

// cellsOf returns the global cell adjacency of an entity
func (t *topology) cellsOf(kind EntityKind, gid int) []int {
	switch kind {
	case Cell:
		return []int{gid}
	case Face:
		return t.faceCells[gid]
	case Node:
		return t.nodeCells[gid]
	case Edge:
		return t.edgeCells[gid]
	}
	panic(fmt.Errorf("unknown entity kind %v", kind))
}

func (t *topology) count(kind EntityKind) int {
	switch kind {
	case Cell:
		return t.nCells
	case Face:
		return t.nFaces
	case Node:
		return t.nNodes
	case Edge:
		return t.nEdges
	}
	panic(fmt.Errorf("unknown entity kind %v", kind))
}

func (t *topology) entitiesOfCell(kind EntityKind, c int) []int {
	switch kind {
	case Cell:
		return []int{c}
	case Face:
		return t.cellFaces[c]
	case Node:
		return t.cellNodes[c]
	case Edge:
		return t.cellEdges[c]
	}
	panic(fmt.Errorf("unknown entity kind %v", kind))
}
