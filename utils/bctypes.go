package utils

import (
	"fmt"
	"strings"
)

// BCType is the discrete marker attached to a boundary entity
type BCType uint8

const (
	// BCNone marks an interior entity or one without a condition
	BCNone BCType = iota

	// Essential (Dirichlet class) conditions
	BCPressure // Prescribed pressure
	BCHead     // Prescribed hydraulic head, converted to pressure

	// Natural conditions
	BCFlux    // Prescribed outward mass flux density
	BCSeepage // Flux while the adjacent cell is below atmospheric, pressure otherwise
)

var bcNames = map[BCType]string{
	BCNone:     "None",
	BCPressure: "Pressure",
	BCHead:     "Head",
	BCFlux:     "Flux",
	BCSeepage:  "Seepage",
}

// String returns the string representation of a BCType
func (bc BCType) String() string {
	if name, ok := bcNames[bc]; ok {
		return name
	}
	return "Unknown"
}

// IsEssential is true for conditions that fix the primary unknown
func (bc BCType) IsEssential() bool {
	return bc == BCPressure || bc == BCHead
}

// BCNameMap maps input deck names to BCType, keys are lowercase
var BCNameMap = map[string]BCType{
	"pressure":        BCPressure,
	"dirichlet":       BCPressure,
	"static pressure": BCPressure,
	"head":            BCHead,
	"static head":     BCHead,
	"hydraulic head":  BCHead,
	"flux":            BCFlux,
	"mass flux":       BCFlux,
	"neumann":         BCFlux,
	"seepage":         BCSeepage,
	"seepage face":    BCSeepage,
}

// ParseBCName converts a boundary condition name to BCType, case-insensitive
func ParseBCName(name string) (bc BCType, err error) {
	var (
		ok        bool
		lowerName = strings.ToLower(strings.TrimSpace(name))
	)
	lowerName = strings.ReplaceAll(lowerName, "_", " ")
	if bc, ok = BCNameMap[lowerName]; !ok {
		err = fmt.Errorf("unknown boundary condition type: %q", name)
	}
	return
}

// BCMarkers holds one marker and one value per entity of a kind, ghosts included
type BCMarkers struct {
	Model  []BCType
	Values []float64
}

func NewBCMarkers(n int) (bc *BCMarkers) {
	bc = &BCMarkers{
		Model:  make([]BCType, n),
		Values: make([]float64, n),
	}
	return
}

// Reset clears all markers and values
func (bc *BCMarkers) Reset() {
	for i := range bc.Model {
		bc.Model[i] = BCNone
		bc.Values[i] = 0
	}
}

func (bc *BCMarkers) Len() int { return len(bc.Model) }
