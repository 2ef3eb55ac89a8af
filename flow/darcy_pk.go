package flow

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/mfd"
	"github.com/notargets/subflow/operators"
	"github.com/notargets/subflow/preconditioners"
	"github.com/notargets/subflow/solvers"
	"github.com/notargets/subflow/utils"
	"github.com/notargets/subflow/vectors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Status is the life cycle of the kernel. Transitions only move forward.
type Status uint8

const (
	StatusNull Status = iota
	StatusInit
	StatusSteadyState
	StatusTransient
)

func (s Status) String() string {
	switch s {
	case StatusNull:
		return "null"
	case StatusInit:
		return "init"
	case StatusSteadyState:
		return "steady state"
	case StatusTransient:
		return "transient"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

var (
	ErrBadStatus = errors.New("operation not allowed in the current kernel state")
	ErrBadConfig = errors.New("invalid flow configuration")
)

// Config holds the discretization, the boundary and source terms and the
// solver choices of the kernel
type Config struct {
	// Discretization is "mfd" for the mixed hybrid face and cell system or
	// "tpfa" for the two point cell system
	Discretization     string
	BoundaryConditions []BoundaryCondition
	Sources            []Source
	// ShiftWaterTable names boundary regions whose heads are measured from
	// the top surface
	ShiftWaterTable []string
	Solver          solvers.Config
	Preconditioner  preconditioners.Config
	// DTFactor grows the desirable step after every transient step, capped
	// by DTMax
	DTFactor, DTMax float64
}

func DefaultConfig() Config {
	return Config{
		Discretization: "mfd",
		Solver:         solvers.DefaultConfig(),
		Preconditioner: preconditioners.Config{Type: "schur", Inner: &preconditioners.Config{Type: "amg"}},
		DTFactor:       1,
		DTMax:          1.e10,
	}
}

// DarcyPK advances the saturated pressure field. It references the shared
// state and owns its solution, operator and permeability tensors.
type DarcyPK struct {
	S   *State
	cfg Config
	log logrus.FieldLogger

	m      mesh.Mesh
	dim    int
	tpfa   bool
	status Status

	op       *operators.Operator
	block    *operators.Op
	schema   operators.Schema
	solution *vectors.CompositeVector
	pdot     *vectors.CompositeVector
	pdotPrev *vectors.CompositeVector

	K     []mfd.Tensor // used cells, scaled by density over viscosity
	mass  []*mat.Dense // owned cells
	trans []*mat.Dense // owned faces

	bc       *utils.BCMarkers
	bcFaces  [][]int
	srcCells [][]int
	shift    []float64

	T, dT, dTDesirable float64
	Iterations         int
	Residual           float64
	NumSteps           int
}

func NewDarcyPK(s *State, cfg Config, log logrus.FieldLogger) (pk *DarcyPK, err error) {
	if s == nil || s.Mesh == nil {
		err = fmt.Errorf("%w: missing state or mesh", ErrBadConfig)
		return
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg.Discretization = strings.ToLower(cfg.Discretization)
	if cfg.Discretization == "" {
		cfg.Discretization = "mfd"
	}
	if cfg.Discretization != "mfd" && cfg.Discretization != "tpfa" {
		err = fmt.Errorf("%w: discretization %q", ErrBadConfig, cfg.Discretization)
		return
	}
	if cfg.DTFactor <= 0 {
		cfg.DTFactor = 1
	}
	if cfg.DTMax <= 0 {
		cfg.DTMax = DefaultConfig().DTMax
	}
	if s.Density <= 0 || s.Viscosity <= 0 {
		err = fmt.Errorf("%w: density %g and viscosity %g must be positive", ErrBadConfig, s.Density, s.Viscosity)
		return
	}
	pk = &DarcyPK{
		S:    s,
		cfg:  cfg,
		m:    s.Mesh,
		dim:  s.Mesh.SpaceDimension(),
		tpfa: cfg.Discretization == "tpfa",
		log: log.WithFields(logrus.Fields{
			"pk":   "darcy",
			"rank": s.Mesh.Comm().Rank(),
		}),
	}
	return
}

func (pk *DarcyPK) Status() Status                           { return pk.status }
func (pk *DarcyPK) Solution() *vectors.CompositeVector       { return pk.solution }
func (pk *DarcyPK) Operator() *operators.Operator            { return pk.op }
func (pk *DarcyPK) BoundaryMarkers() *utils.BCMarkers        { return pk.bc }
func (pk *DarcyPK) TimeDerivative() *vectors.CompositeVector { return pk.pdot }
func (pk *DarcyPK) DTDesirable() float64                     { return pk.dTDesirable }
func (pk *DarcyPK) WaterTableShift() []float64               { return pk.shift }
func (pk *DarcyPK) Permeability() []mfd.Tensor               { return pk.K }
func (pk *DarcyPK) SetDTDesirable(dT float64)                { pk.dTDesirable = dT }

// Initialize lays out the unknowns, the operator and its graph, processes
// the yield and water table geometry and the boundary conditions at the
// state time
func (pk *DarcyPK) Initialize() (err error) {
	if pk.status != StatusNull {
		return fmt.Errorf("%w: initialize from %v", ErrBadStatus, pk.status)
	}
	var (
		m     = pk.m
		kinds = []mesh.EntityKind{mesh.Face, mesh.Cell}
		kind  = operators.OpCellFaceCell
	)
	if pk.tpfa {
		kinds, kind = []mesh.EntityKind{mesh.Cell}, operators.OpFaceCell
	}
	pk.op = operators.NewOperator(m, kinds, pk.log)
	pk.block = operators.NewOp(kind, m)
	pk.schema = kind.Schema()
	if err = pk.op.AddOp(pk.block); err != nil {
		return
	}
	pk.solution = pk.op.NewVector()
	pk.pdot = vectors.NewCompositeVector(m, mesh.Cell)
	pk.pdotPrev = vectors.NewCompositeVector(m, mesh.Cell)
	pk.bc = utils.NewBCMarkers(m.NumEntities(mesh.Face, mesh.Used))
	pk.loadPressure()

	if err = pk.regionFaces(); err != nil {
		return
	}
	pk.srcCells = make([][]int, len(pk.cfg.Sources))
	for i, src := range pk.cfg.Sources {
		if src.Value == nil {
			return fmt.Errorf("source %q has no value", src.Name)
		}
		for _, region := range src.Regions {
			var cells []int
			if cells, err = m.RegionEntities(region, mesh.Cell, mesh.Owned); err != nil {
				return fmt.Errorf("source %q: %w", src.Name, err)
			}
			pk.srcCells[i] = append(pk.srcCells[i], cells...)
		}
	}
	for _, region := range pk.cfg.ShiftWaterTable {
		if err = pk.CalculateShiftWaterTable(region); err != nil {
			return
		}
	}
	if err = pk.UpdateSpecificYield(); err != nil {
		return
	}
	pk.T = pk.S.Time
	if err = pk.UpdateBoundaryConditions(pk.T); err != nil {
		return
	}
	if err = pk.op.SymbolicAssembleMatrix(pk.schema); err != nil {
		return
	}
	if err = pk.op.InitPreconditioner(pk.cfg.Preconditioner); err != nil {
		return
	}
	pk.status = StatusInit
	pk.log.WithField("discretization", pk.cfg.Discretization).Info("darcy kernel initialized")
	return
}

// loadPressure copies the state pressure into the cell unknowns and
// starts the faces from the mean of their cells
func (pk *DarcyPK) loadPressure() {
	var (
		m = pk.m
		p = pk.S.Pressure.ViewComponent(mesh.Cell, false)
	)
	copy(pk.solution.ViewComponent(mesh.Cell, false), p)
	if pk.tpfa {
		return
	}
	pc := pk.cellPressure()
	pf := pk.solution.ViewComponent(mesh.Face, false)
	for f := range pf {
		cells := m.FaceCells(f, mesh.Used)
		pf[f] = 0
		for _, c := range cells {
			pf[f] += pc[c] / float64(len(cells))
		}
	}
}

// InitSteadyState readies a steady solve at T0
func (pk *DarcyPK) InitSteadyState(T0, dT0 float64) (err error) {
	if pk.status < StatusInit || pk.status > StatusSteadyState {
		return fmt.Errorf("%w: steady state from %v", ErrBadStatus, pk.status)
	}
	if err = pk.initTime(T0, dT0); err != nil {
		return
	}
	pk.status = StatusSteadyState
	return
}

// InitTransient readies time stepping from T0 with initial step dT0
func (pk *DarcyPK) InitTransient(T0, dT0 float64) (err error) {
	if pk.status < StatusInit {
		return fmt.Errorf("%w: transient from %v", ErrBadStatus, pk.status)
	}
	if err = pk.initTime(T0, dT0); err != nil {
		return
	}
	pk.log.WithFields(logrus.Fields{"T": T0, "dT": dT0}).Info("initializing transient flow")
	pk.status = StatusTransient
	return
}

func (pk *DarcyPK) initTime(T0, dT0 float64) (err error) {
	if dT0 <= 0 {
		return fmt.Errorf("%w: initial time step %g", ErrBadConfig, dT0)
	}
	pk.T, pk.dT, pk.dTDesirable = T0, dT0, dT0
	pk.NumSteps = 0
	pk.loadPressure()
	return pk.computeTensors()
}

// computeTensors builds the scaled permeability and the local mass or
// transmissibility matrices
func (pk *DarcyPK) computeTensors() (err error) {
	var (
		m     = pk.m
		scale = pk.S.Density / pk.S.Viscosity
	)
	pk.S.Kh.ScatterMasterToGhosted()
	pk.S.Kv.ScatterMasterToGhosted()
	var (
		kh = pk.S.Kh.ViewComponent(mesh.Cell, true)
		kv = pk.S.Kv.ViewComponent(mesh.Cell, true)
	)
	pk.K = make([]mfd.Tensor, len(kh))
	for c := range pk.K {
		pk.K[c] = mfd.NewPermeability(pk.dim, kh[c], kv[c]).Scale(scale)
	}
	perm := func(c int) mfd.Tensor { return pk.K[c] }
	if pk.tpfa {
		pk.trans = make([]*mat.Dense, len(pk.block.Matrices))
		for f := range pk.trans {
			if pk.trans[f], err = mfd.TPFATransmissibility(m, f, perm); err != nil {
				return
			}
		}
		return
	}
	pk.mass = make([]*mat.Dense, len(pk.block.Matrices))
	for c := range pk.mass {
		if pk.mass[c], err = mfd.DarcyMassInverse(m, c, pk.K[c]); err != nil {
			return
		}
	}
	return
}

// InitializeSteadySaturated solves the steady saturated problem at the
// current time
func (pk *DarcyPK) InitializeSteadySaturated() (err error) {
	return pk.AdvanceToSteadyState()
}

// AdvanceToSteadyState is one steady solve without storage terms
func (pk *DarcyPK) AdvanceToSteadyState() (err error) {
	if pk.status != StatusSteadyState {
		return fmt.Errorf("%w: steady solve in %v", ErrBadStatus, pk.status)
	}
	if pk.S.Time >= 0 {
		pk.T = pk.S.Time
	}
	return pk.solve(0, false)
}

// Advance makes one transient step of size dT. The solve is followed by a
// trapezoidal update using the previous committed time derivative. A failed
// solve leaves the solution as it was.
func (pk *DarcyPK) Advance(dT float64) (err error) {
	if pk.status != StatusTransient {
		return fmt.Errorf("%w: advance in %v", ErrBadStatus, pk.status)
	}
	if dT <= 0 {
		return fmt.Errorf("%w: time step %g", ErrBadConfig, dT)
	}
	pk.dT = dT
	if pk.S.Time >= 0 {
		pk.T = pk.S.Time
	}
	backup := pk.solution.Clone()
	if err = pk.solve(dT, true); err != nil {
		pk.solution.Assign(backup)
		return
	}
	var (
		sol      = pk.solution.ViewComponent(mesh.Cell, false)
		prev     = backup.ViewComponent(mesh.Cell, false)
		pdot     = pk.pdot.ViewComponent(mesh.Cell, false)
		pdotPrev = pk.pdotPrev.ViewComponent(mesh.Cell, false)
	)
	for c := range sol {
		pdot[c] = (sol[c] - prev[c]) / dT
		sol[c] = prev[c] + (pdotPrev[c]+pdot[c])*dT/2
	}
	pk.dTDesirable = math.Min(pk.dTDesirable*pk.cfg.DTFactor, pk.cfg.DTMax)
	pk.NumSteps++
	return
}

// solve builds the local matrices and terms, eliminates the boundary
// conditions, assembles and runs the linear solver from the current
// solution
func (pk *DarcyPK) solve(dT float64, transient bool) (err error) {
	if err = pk.UpdateBoundaryConditions(pk.T); err != nil {
		return
	}
	o := pk.op
	o.Init()
	for a := range pk.block.Matrices {
		if pk.tpfa {
			pk.block.Matrices[a] = mat.DenseCopyOf(pk.trans[a])
		} else {
			pk.block.Matrices[a] = mfd.DarcyStiffness(pk.mass[a])
		}
	}
	pk.addGravityFluxes()
	o.Rhs().GatherGhostedToMaster()
	if transient {
		if err = pk.addStorage(dT); err != nil {
			return
		}
	}
	pk.addSources(pk.T)
	o.CreateCheckPoint()
	if err = o.ApplyBCs(operators.BCSet{Faces: pk.bc}); err != nil {
		return
	}
	if err = o.AssembleMatrix(pk.schema); err != nil {
		return
	}
	if err = o.UpdatePreconditioner(); err != nil {
		return
	}
	res, err := solvers.Solve(o, o.Rhs(), pk.solution, pk.cfg.Solver, pk.log)
	pk.Iterations, pk.Residual = res.Iterations, res.Residual
	if err != nil {
		return fmt.Errorf("pressure solve at T=%g: %w", pk.T, err)
	}
	pk.log.WithFields(logrus.Fields{
		"T":          pk.T,
		"dT":         dT,
		"iterations": res.Iterations,
		"residual":   res.Residual,
	}).Debug("pressure solver")
	return
}

// rhoG is the gravity vector times density
func (pk *DarcyPK) rhoG() (g []float64) {
	g = make([]float64, pk.dim)
	for i := range g {
		g[i] = pk.S.Gravity[i] * pk.S.Density
	}
	return
}

// addGravityFluxes moves the gravity driven fluxes into the right hand
// side. Two point blocks only see them on essential boundary faces.
func (pk *DarcyPK) addGravityFluxes() {
	var (
		m    = pk.m
		rhoG = pk.rhoG()
		rhsC = pk.op.Rhs().ViewComponent(mesh.Cell, true)
	)
	if pk.tpfa {
		for f, A := range pk.block.Matrices {
			var (
				cells = m.FaceCells(f, mesh.Used)
				T     = A.At(0, 0)
			)
			switch len(cells) {
			case 2:
				G := T * utils.Dot(rhoG, utils.Sub(m.CellCentroid(cells[1]), m.CellCentroid(cells[0])))
				rhsC[cells[0]] -= G
				rhsC[cells[1]] += G
			case 1:
				if pk.bc.Model[f].IsEssential() {
					rhsC[cells[0]] -= T * utils.Dot(rhoG, utils.Sub(m.FaceCentroid(f), m.CellCentroid(cells[0])))
				}
			}
		}
		return
	}
	rhsF := pk.op.Rhs().ViewComponent(mesh.Face, true)
	for c := range pk.block.Matrices {
		var (
			Kg          = pk.K[c].Apply(rhoG)
			faces, dirs = m.CellFaces(c)
		)
		for n, f := range faces {
			G := utils.Dot(Kg, m.FaceNormal(f)) * float64(dirs[n])
			rhsF[f] += G
			rhsC[c] -= G
		}
	}
}

// addStorage adds the specific storage and specific yield time derivatives.
// Both are per unit head, so they vanish without gravity.
func (pk *DarcyPK) addStorage(dT float64) (err error) {
	g := pk.S.GravityMagnitude()
	if g == 0 {
		return
	}
	if err = pk.op.AddAccumulationTerm(pk.solution, pk.S.SpecificStorage, g*dT, mesh.Cell); err != nil {
		return
	}
	var (
		sy  = pk.S.SpecificYield.ViewComponent(mesh.Cell, false)
		p   = pk.solution.ViewComponent(mesh.Cell, false)
		rhs = pk.op.Rhs().ViewComponent(mesh.Cell, false)
	)
	if pk.tpfa {
		factor := vectors.NewCompositeVector(pk.m, mesh.Cell)
		fv := factor.ViewComponent(mesh.Cell, false)
		for c, v := range sy {
			if v > 0 {
				fv[c] = v / (g * dT)
			}
		}
		return pk.op.AddAccumulationDiagonal(pk.solution, factor, mesh.Cell)
	}
	// the mixed block carries the yield on its cell unknown
	for c, v := range sy {
		if v > 0 {
			factor := v / (g * dT)
			pk.block.Vals[c] = factor
			rhs[c] += factor * p[c]
		}
	}
	return
}

func (pk *DarcyPK) addSources(t float64) {
	rhs := pk.op.Rhs().ViewComponent(mesh.Cell, false)
	for i, src := range pk.cfg.Sources {
		v := src.Value.Value(t)
		for _, c := range pk.srcCells[i] {
			rhs[c] += pk.m.CellVolume(c) * v
		}
	}
}

// CommitState copies the solved pressure into the state, derives the
// volumetric Darcy flux and the cell velocities and keeps the time
// derivative and the saturation for the next step
func (pk *DarcyPK) CommitState() (err error) {
	if pk.status < StatusSteadyState {
		return fmt.Errorf("%w: commit in %v", ErrBadStatus, pk.status)
	}
	s := pk.S
	copy(s.Pressure.ViewComponent(mesh.Cell, false), pk.solution.ViewComponent(mesh.Cell, false))
	s.Pressure.ScatterMasterToGhosted()

	// the flux needs the blocks as they were before boundary elimination
	if err = pk.op.RestoreCheckPoint(); err != nil {
		return fmt.Errorf("commit before any solve: %w", err)
	}
	if pk.tpfa {
		pk.deriveFluxTPFA()
	} else {
		pk.deriveFluxMFD()
	}
	pk.reconstructVelocity()
	pk.pdotPrev.Assign(pk.pdot)
	s.PrevSaturation.Assign(s.Saturation)
	return
}

func (pk *DarcyPK) deriveFluxMFD() {
	var (
		m      = pk.m
		rhoG   = pk.rhoG()
		rho    = pk.S.Density
		flux   = pk.S.DarcyFlux.ViewComponent(mesh.Face, true)
		pc     = pk.cellPressure()
		pf     = pk.solution.ViewComponent(mesh.Face, true)
		nOwned = m.NumEntities(mesh.Face, mesh.Owned)
		done   = make([]bool, nOwned)
	)
	for f := range flux {
		flux[f] = 0
	}
	for c, A := range pk.block.Matrices {
		var (
			faces, dirs = m.CellFaces(c)
			nf          = len(faces)
			x           = mat.NewVecDense(nf+1, nil)
			y           mat.VecDense
			Kg          = pk.K[c].Apply(rhoG)
		)
		for n, f := range faces {
			x.SetVec(n, pf[f])
		}
		x.SetVec(nf, pc[c])
		y.MulVec(A, x)
		for n, f := range faces {
			if f >= nOwned || done[f] {
				continue
			}
			// the face row of the block is minus the outward flux
			flux[f] = (-y.AtVec(n)*float64(dirs[n]) + utils.Dot(Kg, m.FaceNormal(f))) / rho
			done[f] = true
		}
	}
}

func (pk *DarcyPK) deriveFluxTPFA() {
	var (
		m    = pk.m
		rhoG = pk.rhoG()
		rho  = pk.S.Density
		flux = pk.S.DarcyFlux.ViewComponent(mesh.Face, true)
		p    = pk.cellPressure()
	)
	for f := range flux {
		flux[f] = 0
	}
	for f, A := range pk.block.Matrices {
		var (
			cells = m.FaceCells(f, mesh.Used)
			c0    = cells[0]
			T     = A.At(0, 0)
			out   float64 // out of c0
		)
		switch {
		case len(cells) == 2:
			c1 := cells[1]
			out = T * (p[c0] - p[c1] + utils.Dot(rhoG, utils.Sub(m.CellCentroid(c1), m.CellCentroid(c0))))
		case pk.bc.Model[f].IsEssential():
			out = T * (p[c0] - pk.bc.Values[f] + utils.Dot(rhoG, utils.Sub(m.FaceCentroid(f), m.CellCentroid(c0))))
		case pk.bc.Model[f] == utils.BCFlux:
			out = pk.bc.Values[f] * m.FaceArea(f)
		}
		flux[f] = out * faceDir(m, f, c0) / rho
	}
}

// faceDir is +1 when the normal of f points out of c
func faceDir(m mesh.Mesh, f, c int) float64 {
	faces, dirs := m.CellFaces(c)
	for n, ff := range faces {
		if ff == f {
			return float64(dirs[n])
		}
	}
	panic(fmt.Errorf("face %d is not a face of cell %d", f, c))
}

// reconstructVelocity recovers a cell velocity from the face fluxes, exact
// for uniform flow. Cells without wetted pores get no pore velocity.
func (pk *DarcyPK) reconstructVelocity() {
	var (
		m    = pk.m
		s    = pk.S
		flux = s.DarcyFlux.ViewComponent(mesh.Face, true)
		phi  = s.Porosity.ViewComponent(mesh.Cell, false)
		sat  = s.Saturation.ViewComponent(mesh.Cell, false)
	)
	s.DarcyFlux.ScatterMasterToGhosted()
	for c, v := range s.DarcyVelocity {
		var (
			faces, dirs = m.CellFaces(c)
			xc          = m.CellCentroid(c)
			vol         = m.CellVolume(c)
		)
		for d := range v {
			v[d] = 0
		}
		for n, f := range faces {
			var (
				out = flux[f] * float64(dirs[n])
				xf  = m.FaceCentroid(f)
			)
			for d := range v {
				v[d] += out * (xf[d] - xc[d]) / vol
			}
		}
		wet := phi[c] * sat[c]
		for d := range v {
			s.PoreVelocity[c][d] = 0
			if wet > 0 {
				s.PoreVelocity[c][d] = v[d] / wet
			}
		}
	}
}
