package InputParameters

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/notargets/subflow/comm"
	"github.com/notargets/subflow/coordinator"
	"github.com/notargets/subflow/flow"
	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/preconditioners"
	"github.com/notargets/subflow/solvers"
	"github.com/notargets/subflow/timestep"
	"github.com/notargets/subflow/utils"
	"github.com/notargets/subflow/vectors"
)

var ErrBadDeck = errors.New("invalid input deck")

// Deck is the YAML input file of a flow run
type Deck struct {
	Title           string          `json:"title"`
	Mesh            MeshParameters  `json:"mesh"`
	Fluid           FluidParameters `json:"fluid"`
	Materials       []Material      `json:"materials"`
	InitialPressure InitialPressure `json:"initialPressure"`
	BCs             []Condition     `json:"boundaryConditions"`
	Sources         []Condition     `json:"sources"`
	ShiftWaterTable []string        `json:"shiftWaterTable"`
	Flow            FlowParameters  `json:"flow"`
	TimeIntegration TimeIntegration `json:"timeIntegration"`
}

// MeshParameters describe a structured box. A non zero TopSlope tilts the
// top surface to High[z] + slope . (x - Low[x], y - Low[y]).
type MeshParameters struct {
	Dimension int         `json:"dimension"`
	Cells     []int       `json:"cells"`
	Low       []float64   `json:"low"`
	High      []float64   `json:"high"`
	TopSlope  []float64   `json:"topSlope"`
	Regions   []BoxRegion `json:"regions"`
}

type BoxRegion struct {
	Name string    `json:"name"`
	Low  []float64 `json:"low"`
	High []float64 `json:"high"`
}

type FluidParameters struct {
	Density             float64 `json:"density"`
	Viscosity           float64 `json:"viscosity"`
	Gravity             float64 `json:"gravity"`
	AtmosphericPressure float64 `json:"atmosphericPressure"`
}

// Material sets cell properties over regions, all cells when none are named.
// Unset properties keep their defaults.
type Material struct {
	Regions         []string `json:"regions"`
	Kh              *float64 `json:"kh"`
	Kv              *float64 `json:"kv"`
	Porosity        *float64 `json:"porosity"`
	SpecificStorage *float64 `json:"specificStorage"`
	SpecificYield   *float64 `json:"specificYield"`
}

// InitialPressure is "hydrostatic", with Value at elevation WaterTable, or
// "uniform"
type InitialPressure struct {
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	WaterTable float64 `json:"waterTable"`
}

// Condition is a boundary condition or a source. A time table in Times and
// Values replaces the constant Value.
type Condition struct {
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Regions []string  `json:"regions"`
	Value   float64   `json:"value"`
	Times   []float64 `json:"times"`
	Values  []float64 `json:"values"`
}

type FlowParameters struct {
	Discretization string                 `json:"discretization"`
	DTFactor       float64                `json:"dtFactor"`
	DTMax          float64                `json:"dtMax"`
	Solver         solvers.Config         `json:"solver"`
	Preconditioner preconditioners.Config `json:"preconditioner"`
}

type TimeIntegration struct {
	Mode               string           `json:"mode"`
	Start              float64          `json:"start"`
	Switch             float64          `json:"switch"`
	End                float64          `json:"end"`
	SteadyInitialDT    float64          `json:"steadyInitialDT"`
	TransientInitialDT float64          `json:"transientInitialDT"`
	ResetTimes         []float64        `json:"resetTimes"`
	ResetDTs           []float64        `json:"resetDTs"`
	MaxCycles          int              `json:"maxCycles"`
	Controller         *timestep.Config `json:"controller"`
}

func (d *Deck) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, d); err != nil {
		return fmt.Errorf("%w: %v", ErrBadDeck, err)
	}
	d.setDefaults()
	return
}

func (d *Deck) setDefaults() {
	if d.Mesh.Dimension == 0 {
		d.Mesh.Dimension = len(d.Mesh.Cells)
	}
	if d.Fluid.Density == 0 {
		d.Fluid.Density = 1000
	}
	if d.Fluid.Viscosity == 0 {
		d.Fluid.Viscosity = 1.e-3
	}
	if d.Fluid.AtmosphericPressure == 0 {
		d.Fluid.AtmosphericPressure = 101325
	}
	def := flow.DefaultConfig()
	if d.Flow.Discretization == "" {
		d.Flow.Discretization = def.Discretization
	}
	if d.Flow.Preconditioner.Type == "" {
		d.Flow.Preconditioner = def.Preconditioner
	}
	if d.Flow.Solver.Method == "" {
		d.Flow.Solver = def.Solver
	}
	if d.TimeIntegration.Mode == "" {
		d.TimeIntegration.Mode = "steady"
	}
	if d.TimeIntegration.Controller == nil {
		ctl := timestep.DefaultConfig()
		d.TimeIntegration.Controller = &ctl
	}
}

func (d *Deck) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", d.Title)
	fmt.Printf("%v x %v\t= Mesh cells x upper corner\n", d.Mesh.Cells, d.Mesh.High)
	fmt.Printf("[%s]\t\t\t= Discretization\n", d.Flow.Discretization)
	fmt.Printf("[%s]\t\t= Preconditioner\n", d.Flow.Preconditioner.Type)
	fmt.Printf("[%s]\t\t\t= Linear Solver\n", d.Flow.Solver.Method)
	fmt.Printf("[%s]\t\t= Time Integration Mode\n", d.TimeIntegration.Mode)
	fmt.Printf("%8.5g\t\t= End Time\n", d.TimeIntegration.End)
	bcs := append([]Condition{}, d.BCs...)
	sort.Slice(bcs, func(i, j int) bool { return bcs[i].Name < bcs[j].Name })
	for _, bc := range bcs {
		fmt.Printf("BCs[%s] = %s on %v\n", bc.Name, bc.Type, bc.Regions)
	}
}

// NewMesh builds the labeled structured mesh of the deck on a rank, nil
// for a serial run
func (d *Deck) NewMesh(c *comm.Comm) (m *mesh.Structured, err error) {
	var b mesh.Box
	if b, err = d.Box(); err != nil {
		return
	}
	if m, err = mesh.NewStructured(b, c); err != nil {
		return
	}
	for _, r := range d.Mesh.Regions {
		if err = m.AddBoxRegion(r.Name, r.Low, r.High); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDeck, err)
		}
	}
	return
}

// Box converts the mesh parameters
func (d *Deck) Box() (b mesh.Box, err error) {
	var (
		mp  = d.Mesh
		dim = mp.Dimension
	)
	if len(mp.Cells) != dim || len(mp.High) != dim || (len(mp.Low) != 0 && len(mp.Low) != dim) {
		err = fmt.Errorf("%w: mesh needs %d cell counts and corners", ErrBadDeck, dim)
		return
	}
	b.Dim = dim
	for i := 0; i < dim; i++ {
		b.N[i], b.High[i] = mp.Cells[i], mp.High[i]
		if len(mp.Low) == dim {
			b.Low[i] = mp.Low[i]
		}
	}
	if len(mp.TopSlope) > 0 {
		var (
			slope = make([]float64, 2)
			top   = b.High[dim-1]
			x0    = b.Low
		)
		copy(slope, mp.TopSlope)
		b.Top = func(x, y float64) float64 {
			z := top + slope[0]*(x-x0[0])
			if dim == 3 {
				z += slope[1] * (y - x0[1])
			}
			return z
		}
	}
	return
}

// function is the time dependence of a condition
func (c Condition) function() (fn flow.TimeFunction, err error) {
	if len(c.Times) == 0 && len(c.Values) == 0 {
		return flow.Constant(c.Value), nil
	}
	var pl *flow.PiecewiseLinear
	if pl, err = flow.NewPiecewiseLinear(c.Times, c.Values); err != nil {
		return
	}
	return pl, nil
}

// FlowConfig converts the flow, boundary and source sections
func (d *Deck) FlowConfig() (cfg flow.Config, err error) {
	cfg = flow.DefaultConfig()
	cfg.Discretization = d.Flow.Discretization
	cfg.Solver = d.Flow.Solver
	cfg.Preconditioner = d.Flow.Preconditioner
	if d.Flow.DTFactor > 0 {
		cfg.DTFactor = d.Flow.DTFactor
	}
	if d.Flow.DTMax > 0 {
		cfg.DTMax = d.Flow.DTMax
	}
	cfg.ShiftWaterTable = d.ShiftWaterTable
	for _, c := range d.BCs {
		bc := flow.BoundaryCondition{Name: c.Name, Regions: c.Regions}
		if bc.Type, err = utils.ParseBCName(c.Type); err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrBadDeck, err)
		}
		if bc.Value, err = c.function(); err != nil {
			return cfg, fmt.Errorf("boundary condition %q: %w", c.Name, err)
		}
		cfg.BoundaryConditions = append(cfg.BoundaryConditions, bc)
	}
	for _, c := range d.Sources {
		src := flow.Source{Name: c.Name, Regions: c.Regions}
		if src.Value, err = c.function(); err != nil {
			return cfg, fmt.Errorf("source %q: %w", c.Name, err)
		}
		cfg.Sources = append(cfg.Sources, src)
	}
	return
}

// NewState builds the flow state with the fluid, materials and initial
// pressure of the deck
func (d *Deck) NewState(m mesh.Mesh) (s *flow.State, err error) {
	s = flow.NewState(m)
	s.Density, s.Viscosity = d.Fluid.Density, d.Fluid.Viscosity
	s.AtmPressure = d.Fluid.AtmosphericPressure
	if d.Fluid.Gravity != 0 {
		s.SetGravity(d.Fluid.Gravity)
	}
	for _, mat := range d.Materials {
		regions := mat.Regions
		if len(regions) == 0 {
			regions = []string{mesh.RegionAll}
		}
		for _, region := range regions {
			if err = mat.apply(s, region); err != nil {
				return
			}
		}
	}
	switch strings.ToLower(d.InitialPressure.Type) {
	case "", "hydrostatic":
		p0 := d.InitialPressure.Value
		if p0 == 0 {
			p0 = s.AtmPressure
		}
		s.SetPressureHydrostatic(d.InitialPressure.WaterTable, p0)
	case "uniform":
		s.Pressure.PutScalar(d.InitialPressure.Value)
	default:
		err = fmt.Errorf("%w: initial pressure type %q", ErrBadDeck, d.InitialPressure.Type)
	}
	return
}

func (mat Material) apply(s *flow.State, region string) (err error) {
	for _, p := range []struct {
		val   *float64
		field *vectors.CompositeVector
	}{
		{mat.Kh, s.Kh},
		{mat.Kv, s.Kv},
		{mat.Porosity, s.Porosity},
		{mat.SpecificStorage, s.SpecificStorage},
		{mat.SpecificYield, s.SpecificYield},
	} {
		if p.val == nil {
			continue
		}
		if err = s.SetRegion(p.field, region, *p.val); err != nil {
			return
		}
	}
	return
}

// CoordinatorConfig converts the time integration section
func (d *Deck) CoordinatorConfig() (cfg coordinator.Config, err error) {
	ti := d.TimeIntegration
	if cfg.Mode, err = coordinator.ParseMode(ti.Mode); err != nil {
		return
	}
	cfg.Start, cfg.Switch, cfg.End = ti.Start, ti.Switch, ti.End
	cfg.SteadyInitialDT, cfg.TransientInitialDT = ti.SteadyInitialDT, ti.TransientInitialDT
	cfg.ResetTimes, cfg.ResetDTs = ti.ResetTimes, ti.ResetDTs
	cfg.MaxCycles = ti.MaxCycles
	cfg.Controller = timestep.DefaultConfig()
	if ti.Controller != nil {
		cfg.Controller = *ti.Controller
	}
	return
}
