// Package operators assembles and applies discretized operators built from
// blocks of small dense matrices. Each block carries a schema telling which
// mesh entity anchors its matrices and which entities carry its unknowns.
package operators

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/subflow/mesh"
)

type Schema uint32

const (
	SchemaBaseCell Schema = 1 << iota
	SchemaBaseFace
	SchemaBaseNode
	SchemaDofsFace
	SchemaDofsCell
	SchemaDofsNode
	SchemaDofsEdge
)

const (
	schemaBases = SchemaBaseCell | SchemaBaseFace | SchemaBaseNode
	schemaDofs  = SchemaDofsFace | SchemaDofsCell | SchemaDofsNode | SchemaDofsEdge
)

var ErrBadSchema = errors.New("invalid schema")

type MatchRule uint8

const (
	// MatchExact requires every bit of the block schema in the query
	MatchExact MatchRule = iota
	// MatchSubset requires any bit in common
	MatchSubset
)

// Matches tests a block schema s against a query schema
func (s Schema) Matches(query Schema, rule MatchRule) bool {
	switch rule {
	case MatchExact:
		return query&s == s
	case MatchSubset:
		return query&s != 0
	}
	return false
}

// Validate checks for exactly one base tag and at least one DOF tag
func (s Schema) Validate() (err error) {
	switch s & schemaBases {
	case SchemaBaseCell, SchemaBaseFace, SchemaBaseNode:
	default:
		return fmt.Errorf("%w: %s needs exactly one base", ErrBadSchema, s)
	}
	if s&schemaDofs == 0 {
		return fmt.Errorf("%w: %s has no DOFs", ErrBadSchema, s)
	}
	if s&^(schemaBases|schemaDofs) != 0 {
		return fmt.Errorf("%w: unknown bits %#x", ErrBadSchema, uint32(s))
	}
	return
}

// DofKinds lists the entity kinds carrying DOFs in assembly order
func (s Schema) DofKinds() (kinds []mesh.EntityKind) {
	for _, t := range dofTiers {
		if s&t.bit != 0 {
			kinds = append(kinds, t.kind)
		}
	}
	return
}

// SchemaForKinds returns the DOF bits for a set of entity kinds
func SchemaForKinds(kinds ...mesh.EntityKind) (s Schema) {
	for _, kind := range kinds {
		for _, t := range dofTiers {
			if t.kind == kind {
				s |= t.bit
			}
		}
	}
	return
}

// dofTiers fixes the global ordering of DOF ranges
var dofTiers = []struct {
	bit  Schema
	kind mesh.EntityKind
}{
	{SchemaDofsFace, mesh.Face},
	{SchemaDofsCell, mesh.Cell},
	{SchemaDofsNode, mesh.Node},
	{SchemaDofsEdge, mesh.Edge},
}

func (s Schema) String() string {
	var base string
	switch s & schemaBases {
	case SchemaBaseCell:
		base = "CELL"
	case SchemaBaseFace:
		base = "FACE"
	case SchemaBaseNode:
		base = "NODE"
	default:
		base = "?"
	}
	var dofs []string
	for _, t := range dofTiers {
		if s&t.bit != 0 {
			dofs = append(dofs, strings.ToUpper(t.kind.String()))
		}
	}
	return base + "_BASED[" + strings.Join(dofs, "+") + "]"
}
