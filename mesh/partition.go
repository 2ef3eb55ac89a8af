package mesh

import (
	"fmt"
	"sort"

	"github.com/notargets/subflow/comm"
	"github.com/notargets/subflow/utils"
)

// localSet is one entity kind's local numbering on a rank
type localSet struct {
	gids   []int // owned first, then ghosts, each ascending
	owners []int
	nOwned int
	lids   map[int]int
	ex     *comm.Exchanger
}

// Structured is the rank local view of a partitioned Box mesh
type Structured struct {
	box    Box
	topo   *topology
	comm   *comm.Comm
	pm     *utils.PartitionMap
	sets   [4]*localSet
	boxes  map[string][2][3]float64
	labels []string

	cellFaces, cellDirs  [][]int
	cellNodes, cellEdges [][]int
	faceCells, faceNodes [][]int
	edgeNodes            [][]int

	cellCentroids [][]float64
	cellVolumes   []float64
	faceCentroids [][]float64
	faceNormals   [][]float64
	faceAreas     []float64
}

// NewStructured builds the local view of rank c.Rank(). Cells are split into
// contiguous slabs of global ids; faces, nodes and edges belong to the rank
// owning their lowest numbered adjacent cell. Ghost cells are all cells
// sharing a node with an owned cell; ghost faces, nodes and edges are those
// of owned and ghost cells owned elsewhere.
func NewStructured(b Box, c *comm.Comm) (m *Structured, err error) {
	if err = b.validate(); err != nil {
		return
	}
	if c == nil {
		c = comm.Self()
	}
	m = &Structured{
		box:   b,
		topo:  newTopology(b),
		comm:  c,
		boxes: make(map[string][2][3]float64),
	}
	if m.topo.nCells < c.Size() {
		err = fmt.Errorf("%w: %d cells on %d ranks", ErrBadBox, m.topo.nCells, c.Size())
		return
	}
	m.pm = utils.NewPartitionMap(c.Size(), m.topo.nCells)
	ghostGids := make([][4][]int, c.Size())
	for r := 0; r < c.Size(); r++ {
		ghostGids[r] = m.localGids(r)
	}
	for _, kind := range []EntityKind{Cell, Face, Node, Edge} {
		m.sets[kind] = m.buildSet(kind, ghostGids)
	}
	m.buildConnectivity()
	m.buildGeometry()
	for name := range m.topo.boundarySets {
		m.labels = append(m.labels, name)
	}
	sort.Strings(m.labels)
	return
}

func (m *Structured) cellOwner(gid int) int {
	return m.pm.Owner(gid)
}

func (m *Structured) entityOwner(kind EntityKind, gid int) int {
	return m.cellOwner(m.topo.cellsOf(kind, gid)[0])
}

// localGids returns, per kind, the ascending ghost gids of rank r
func (m *Structured) localGids(r int) (ghosts [4][]int) {
	var (
		t          = m.topo
		kMin, kMax = m.pm.Range(r)
		ghostCells = make(map[int]bool)
	)
	for c := kMin; c < kMax; c++ {
		for _, v := range t.cellNodes[c] {
			for _, cc := range t.nodeCells[v] {
				if cc < kMin || cc >= kMax {
					ghostCells[cc] = true
				}
			}
		}
	}
	for cc := range ghostCells {
		ghosts[Cell] = append(ghosts[Cell], cc)
	}
	sort.Ints(ghosts[Cell])
	for _, kind := range []EntityKind{Face, Node, Edge} {
		seen := make(map[int]bool)
		collect := func(c int) {
			for _, e := range t.entitiesOfCell(kind, c) {
				if !seen[e] && m.entityOwner(kind, e) != r {
					seen[e] = true
					ghosts[kind] = append(ghosts[kind], e)
				}
			}
		}
		for c := kMin; c < kMax; c++ {
			collect(c)
		}
		for _, c := range ghosts[Cell] {
			collect(c)
		}
		sort.Ints(ghosts[kind])
	}
	return
}

func (m *Structured) buildSet(kind EntityKind, ghostGids [][4][]int) (ls *localSet) {
	var (
		me = m.comm.Rank()
		t  = m.topo
	)
	ls = &localSet{lids: make(map[int]int)}
	for gid := 0; gid < t.count(kind); gid++ {
		if m.entityOwner(kind, gid) == me {
			ls.gids = append(ls.gids, gid)
			ls.owners = append(ls.owners, me)
		}
	}
	ls.nOwned = len(ls.gids)
	for _, gid := range ghostGids[me][kind] {
		ls.gids = append(ls.gids, gid)
		ls.owners = append(ls.owners, m.entityOwner(kind, gid))
	}
	for lid, gid := range ls.gids {
		ls.lids[gid] = lid
	}
	var (
		send = make(map[int][]int)
		recv = make(map[int][]int)
	)
	for lid := ls.nOwned; lid < len(ls.gids); lid++ {
		recv[ls.owners[lid]] = append(recv[ls.owners[lid]], lid)
	}
	for r := range ghostGids {
		if r == me {
			continue
		}
		for _, gid := range ghostGids[r][kind] {
			if m.entityOwner(kind, gid) == me {
				send[r] = append(send[r], ls.lids[gid])
			}
		}
	}
	ls.ex = comm.NewExchanger(m.comm, send, recv)
	return
}

func (m *Structured) toLocal(kind EntityKind, gids []int) (lids []int) {
	lids = make([]int, len(gids))
	for i, gid := range gids {
		lid, ok := m.sets[kind].lids[gid]
		if !ok {
			panic(fmt.Errorf("%v gid %d missing on rank %d", kind, gid, m.comm.Rank()))
		}
		lids[i] = lid
	}
	return
}

func (m *Structured) buildConnectivity() {
	var (
		t     = m.topo
		cells = m.sets[Cell]
		faces = m.sets[Face]
		edges = m.sets[Edge]
	)
	nc := len(cells.gids)
	m.cellFaces = make([][]int, nc)
	m.cellDirs = make([][]int, nc)
	m.cellNodes = make([][]int, nc)
	m.cellEdges = make([][]int, nc)
	for c, gid := range cells.gids {
		m.cellFaces[c] = m.toLocal(Face, t.cellFaces[gid])
		m.cellDirs[c] = t.cellDirs[gid]
		m.cellNodes[c] = m.toLocal(Node, t.cellNodes[gid])
		m.cellEdges[c] = m.toLocal(Edge, t.cellEdges[gid])
	}
	m.faceCells = make([][]int, len(faces.gids))
	m.faceNodes = make([][]int, len(faces.gids))
	for f, gid := range faces.gids {
		for _, cg := range t.faceCells[gid] {
			if lid, ok := cells.lids[cg]; ok {
				m.faceCells[f] = append(m.faceCells[f], lid)
			}
		}
		m.faceNodes[f] = m.toLocal(Node, t.faceNodes[gid])
	}
	m.edgeNodes = make([][]int, len(edges.gids))
	for e, gid := range edges.gids {
		m.edgeNodes[e] = m.toLocal(Node, t.edgeNodes[gid])
	}
}

func (m *Structured) SpaceDimension() int { return m.box.Dim }
func (m *Structured) Comm() *comm.Comm    { return m.comm }

func (m *Structured) NumEntities(kind EntityKind, own Ownership) int {
	if own == Owned {
		return m.sets[kind].nOwned
	}
	return len(m.sets[kind].gids)
}

func (m *Structured) NumEntitiesGlobal(kind EntityKind) int { return m.topo.count(kind) }

func (m *Structured) GID(kind EntityKind, lid int) int { return m.sets[kind].gids[lid] }

func (m *Structured) LID(kind EntityKind, gid int) (lid int, ok bool) {
	lid, ok = m.sets[kind].lids[gid]
	return
}

func (m *Structured) Owner(kind EntityKind, lid int) int { return m.sets[kind].owners[lid] }

func (m *Structured) Exchanger(kind EntityKind) *comm.Exchanger { return m.sets[kind].ex }

func (m *Structured) CellFaces(c int) (faces, dirs []int) { return m.cellFaces[c], m.cellDirs[c] }
func (m *Structured) CellNodes(c int) []int               { return m.cellNodes[c] }
func (m *Structured) CellEdges(c int) []int               { return m.cellEdges[c] }
func (m *Structured) FaceNodes(f int) []int               { return m.faceNodes[f] }
func (m *Structured) EdgeNodes(e int) []int               { return m.edgeNodes[e] }

func (m *Structured) FaceCells(f int, own Ownership) (cells []int) {
	if own == Used {
		return m.faceCells[f]
	}
	for _, c := range m.faceCells[f] {
		if c < m.sets[Cell].nOwned {
			cells = append(cells, c)
		}
	}
	return
}

func (m *Structured) IsBoundaryFace(f int) bool {
	return len(m.topo.faceCells[m.sets[Face].gids[f]]) == 1
}

func (m *Structured) NodeCoordinates(v int) []float64 {
	return m.topo.coords[m.sets[Node].gids[v]]
}

func (m *Structured) CellCentroid(c int) []float64 { return m.cellCentroids[c] }
func (m *Structured) CellVolume(c int) float64     { return m.cellVolumes[c] }
func (m *Structured) FaceCentroid(f int) []float64 { return m.faceCentroids[f] }
func (m *Structured) FaceArea(f int) float64       { return m.faceAreas[f] }
func (m *Structured) FaceNormal(f int) []float64   { return m.faceNormals[f] }
