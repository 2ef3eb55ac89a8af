package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDarcy(t *testing.T) {
	fileInput := []byte(`
title: Test Case
mesh:
  cells: [1, 6]
  high: [1, 6]
fluid:
  viscosity: 1
materials:
  - specificStorage: 1.e-4
initialPressure:
  type: hydrostatic
  waterTable: 6
boundaryConditions:
  - name: top
    type: pressure
    regions: [Top]
    value: 101325
  - name: bottom
    type: head
    regions: [Bottom]
    times: [0, 4]
    values: [6, 7]
flow:
  discretization: tpfa
  preconditioner:
    type: jacobi
  solver:
    method: gmres
    tolerance: 1.e-10
    maxIterations: 200
timeIntegration:
  mode: initialize to steady
  switch: 1
  end: 4
  steadyInitialDT: 1
  transientInitialDT: 0.5
`)
	dir := t.TempDir()
	deck := filepath.Join(dir, "deck.yaml")
	require.NoError(t, os.WriteFile(deck, fileInput, 0644))
	{ // Test a partitioned run
		assert.NoError(t, RunDarcy(&ModelDarcy{ICFile: deck, Ranks: 2}))
	}
	{ // Test bad invocations
		assert.Error(t, RunDarcy(&ModelDarcy{ICFile: filepath.Join(dir, "missing.yaml")}))
		assert.Error(t, RunDarcy(&ModelDarcy{ICFile: deck, Profile: "gpu"}))
	}
}
