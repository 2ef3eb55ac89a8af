package InputParameters

import (
	"testing"

	"github.com/notargets/subflow/coordinator"
	"github.com/notargets/subflow/flow"
	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var column = []byte(`
title: "Recharge column"
mesh:
  cells: [2, 4]
  high: [2, 4]
  topSlope: [0.1]
  regions:
    - name: Aquitard
      low: [0, 0]
      high: [2, 1]
fluid:
  viscosity: 1
materials:
  - kh: 2
    kv: 1
    specificStorage: 1.e-4
  - regions: [Aquitard]
    kv: 0.01
initialPressure:
  type: hydrostatic
  waterTable: 4
boundaryConditions:
  - name: top
    type: Static Pressure
    regions: [Top]
    value: 101325
  - name: bottom
    type: head
    regions: [Bottom]
    times: [0, 10]
    values: [4, 5]
sources:
  - name: well
    regions: [Aquitard]
    value: -1.e-6
shiftWaterTable: [XMax]
flow:
  discretization: tpfa
  dtFactor: 1.5
  preconditioner:
    type: amg
    smoother: ssor
    aggregationThreshold: 0.05
    cycles: 2
  solver:
    method: gmres
    tolerance: 1.e-10
timeIntegration:
  mode: initialize to steady
  switch: 10
  end: 100
  steadyInitialDT: 5
  transientInitialDT: 1
  resetTimes: [50]
  resetDTs: [0.5]
`)

func TestParse(t *testing.T) {
	var d Deck
	require.NoError(t, d.Parse(column))
	assert.Equal(t, "Recharge column", d.Title)
	assert.Equal(t, 2, d.Mesh.Dimension)
	assert.Equal(t, 1000., d.Fluid.Density)
	assert.Equal(t, 101325., d.Fluid.AtmosphericPressure)
	require.Len(t, d.Materials, 2)
	assert.Nil(t, d.Materials[1].Kh)
	assert.Equal(t, 0.01, *d.Materials[1].Kv)
	assert.Equal(t, "amg", d.Flow.Preconditioner.Type)
	assert.Equal(t, 2, d.Flow.Preconditioner.Cycles)
	require.NotNil(t, d.TimeIntegration.Controller)
	{ // Test the flow configuration
		cfg, err := d.FlowConfig()
		require.NoError(t, err)
		assert.Equal(t, "tpfa", cfg.Discretization)
		assert.Equal(t, 1.5, cfg.DTFactor)
		assert.Equal(t, "gmres", cfg.Solver.Method)
		require.Len(t, cfg.BoundaryConditions, 2)
		assert.Equal(t, utils.BCPressure, cfg.BoundaryConditions[0].Type)
		assert.Equal(t, utils.BCHead, cfg.BoundaryConditions[1].Type)
		assert.InDelta(t, 4.5, cfg.BoundaryConditions[1].Value.Value(5), 1.e-14)
		require.Len(t, cfg.Sources, 1)
		assert.Equal(t, -1.e-6, cfg.Sources[0].Value.Value(3))
		assert.Equal(t, []string{"XMax"}, cfg.ShiftWaterTable)
	}
	{ // Test the time integration configuration
		cfg, err := d.CoordinatorConfig()
		require.NoError(t, err)
		assert.Equal(t, coordinator.InitializeToSteady, cfg.Mode)
		assert.Equal(t, 10., cfg.Switch)
		assert.Equal(t, []float64{50}, cfg.ResetTimes)
		assert.Equal(t, *d.TimeIntegration.Controller, cfg.Controller)
	}
	{ // Test the mesh and the state
		m, err := d.NewMesh(nil)
		require.NoError(t, err)
		assert.Equal(t, 8, m.NumEntities(mesh.Cell, mesh.Owned))
		s, err := d.NewState(m)
		require.NoError(t, err)
		assert.Equal(t, 1., s.Viscosity)
		aquitard, err := m.RegionEntities("Aquitard", mesh.Cell, mesh.Owned)
		require.NoError(t, err)
		assert.Len(t, aquitard, 2)
		var (
			kv = s.Kv.ViewComponent(mesh.Cell, false)
			kh = s.Kh.ViewComponent(mesh.Cell, false)
		)
		for c := range kv {
			assert.Equal(t, 2., kh[c])
			if c < 2 {
				assert.Equal(t, 0.01, kv[c])
			} else {
				assert.Equal(t, 1., kv[c])
			}
		}
		b, err := d.Box()
		require.NoError(t, err)
		assert.InDelta(t, 4.2, b.Top(2, 0), 1.e-14)
		_, err = flow.NewDarcyPK(s, flow.DefaultConfig(), nil)
		assert.NoError(t, err)
	}
}

func TestBadDecks(t *testing.T) {
	{ // Test malformed YAML
		var d Deck
		assert.ErrorIs(t, d.Parse([]byte("mesh: [")), ErrBadDeck)
	}
	{ // Test an unknown boundary type
		var d Deck
		require.NoError(t, d.Parse([]byte(`
boundaryConditions:
  - name: side
    type: robin
    regions: [XMin]
`)))
		_, err := d.FlowConfig()
		assert.ErrorIs(t, err, ErrBadDeck)
	}
	{ // Test a ragged time table
		var d Deck
		require.NoError(t, d.Parse([]byte(`
sources:
  - name: well
    regions: [All]
    times: [0, 1]
    values: [1]
`)))
		_, err := d.FlowConfig()
		assert.ErrorIs(t, err, flow.ErrBadFunction)
	}
	{ // Test mesh corners that do not match the dimension
		var d Deck
		require.NoError(t, d.Parse([]byte("mesh: {cells: [2, 2], high: [1]}")))
		_, err := d.Box()
		assert.ErrorIs(t, err, ErrBadDeck)
	}
	{ // Test an unknown mode
		var d Deck
		require.NoError(t, d.Parse([]byte("timeIntegration: {mode: pseudo}")))
		_, err := d.CoordinatorConfig()
		assert.ErrorIs(t, err, coordinator.ErrBadConfig)
	}
}
