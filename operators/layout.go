package operators

import (
	"github.com/notargets/subflow/mesh"
)

type tier struct {
	kind         mesh.EntityKind
	nOwned       int
	nUsed        int
	offsetGlobal int // first global DOF of the tier
	offsetMy     int // first local owned DOF of the tier
	offsetGhost  int // first ghost DOF of the tier past the owned range
}

// layout numbers the DOFs of an assembled schema. Globally every tier is
// the range of its entity GIDs shifted by the sizes of the earlier tiers.
// Locally the owned DOFs of all tiers come first, then the ghosts.
type layout struct {
	schema        Schema
	tiers         []tier
	byKind        [4]int
	nOwned, nUsed int
	nGlobal       int
}

func newLayout(m mesh.Mesh, schema Schema) (l *layout) {
	l = &layout{schema: schema, byKind: [4]int{-1, -1, -1, -1}}
	for _, kind := range schema.DofKinds() {
		t := tier{
			kind:         kind,
			nOwned:       m.NumEntities(kind, mesh.Owned),
			nUsed:        m.NumEntities(kind, mesh.Used),
			offsetGlobal: l.nGlobal,
			offsetMy:     l.nOwned,
		}
		l.byKind[kind] = len(l.tiers)
		l.tiers = append(l.tiers, t)
		l.nGlobal += m.NumEntitiesGlobal(kind)
		l.nOwned += t.nOwned
	}
	ghost := 0
	for i := range l.tiers {
		l.tiers[i].offsetGhost = ghost
		ghost += l.tiers[i].nUsed - l.tiers[i].nOwned
	}
	l.nUsed = l.nOwned + ghost
	return
}

func (l *layout) has(kind mesh.EntityKind) bool { return l.byKind[kind] >= 0 }

// local maps an entity to its local DOF
func (l *layout) local(kind mesh.EntityKind, lid int) int {
	t := &l.tiers[l.byKind[kind]]
	if lid < t.nOwned {
		return t.offsetMy + lid
	}
	return l.nOwned + t.offsetGhost + lid - t.nOwned
}

// entity inverts local
func (l *layout) entity(ldof int) (kind mesh.EntityKind, lid int) {
	for _, t := range l.tiers {
		if ldof < l.nOwned {
			if ldof < t.offsetMy+t.nOwned {
				return t.kind, ldof - t.offsetMy
			}
			continue
		}
		g := ldof - l.nOwned
		if g < t.offsetGhost+t.nUsed-t.nOwned {
			return t.kind, t.nOwned + g - t.offsetGhost
		}
	}
	panic("local dof out of range")
}

func (l *layout) global(m mesh.Mesh, kind mesh.EntityKind, lid int) int {
	return l.tiers[l.byKind[kind]].offsetGlobal + m.GID(kind, lid)
}

// fromGlobal maps a global DOF to a local one if present on this rank
func (l *layout) fromGlobal(m mesh.Mesh, gdof int) (ldof int, ok bool) {
	for _, t := range l.tiers {
		n := m.NumEntitiesGlobal(t.kind)
		if gdof >= t.offsetGlobal && gdof < t.offsetGlobal+n {
			var lid int
			if lid, ok = m.LID(t.kind, gdof-t.offsetGlobal); ok {
				ldof = l.local(t.kind, lid)
			}
			return
		}
	}
	return
}
