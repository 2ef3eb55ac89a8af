// Package mesh defines the mesh contract consumed by the operators and the
// flow kernel, and a partitioned structured quad/hex mesh implementing it.
package mesh

import (
	"fmt"

	"github.com/notargets/subflow/comm"
)

type EntityKind uint8

const (
	Cell EntityKind = iota
	Face
	Node
	Edge
)

func (k EntityKind) String() string {
	switch k {
	case Cell:
		return "cell"
	case Face:
		return "face"
	case Node:
		return "node"
	case Edge:
		return "edge"
	}
	return fmt.Sprintf("EntityKind(%d)", uint8(k))
}

// Ownership selects the owned range or the owned plus ghost range. Owned
// entities always occupy the leading local indices.
type Ownership uint8

const (
	Owned Ownership = iota
	Used
)

// Mesh is the partitioned mesh as seen from one rank
type Mesh interface {
	SpaceDimension() int
	Comm() *comm.Comm

	NumEntities(kind EntityKind, own Ownership) int
	NumEntitiesGlobal(kind EntityKind) int
	GID(kind EntityKind, lid int) int
	LID(kind EntityKind, gid int) (lid int, ok bool)
	// Owner is the rank that owns the entity
	Owner(kind EntityKind, lid int) int
	Exchanger(kind EntityKind) *comm.Exchanger

	// CellFaces returns faces and orientation signs, +1 when the face normal
	// points out of the cell
	CellFaces(c int) (faces, dirs []int)
	CellNodes(c int) []int
	CellEdges(c int) []int
	// FaceCells returns the adjacent cells present on this rank, ordered by GID
	FaceCells(f int, own Ownership) []int
	FaceNodes(f int) []int
	EdgeNodes(e int) []int
	// IsBoundaryFace is true for faces with one cell in the global mesh
	IsBoundaryFace(f int) bool

	NodeCoordinates(v int) []float64
	CellCentroid(c int) []float64
	CellVolume(c int) float64
	FaceCentroid(f int) []float64
	FaceArea(f int) float64
	// FaceNormal is area weighted with a global orientation
	FaceNormal(f int) []float64

	RegionEntities(name string, kind EntityKind, own Ownership) ([]int, error)
}

// FaceNormalFromCell returns the face normal oriented out of cell c
func FaceNormalFromCell(m Mesh, f, c int) (normal []float64) {
	normal = append([]float64{}, m.FaceNormal(f)...)
	faces, dirs := m.CellFaces(c)
	for n, ff := range faces {
		if ff == f {
			for i := range normal {
				normal[i] *= float64(dirs[n])
			}
			return
		}
	}
	panic(fmt.Errorf("face %d is not a face of cell %d", f, c))
}
