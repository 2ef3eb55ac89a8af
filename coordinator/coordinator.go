// Package coordinator drives the flow kernel through simulated time: it
// picks every step, honours the switch, reset and end times and commits the
// kernel state between steps.
package coordinator

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/notargets/subflow/flow"
	"github.com/notargets/subflow/solvers"
	"github.com/notargets/subflow/timestep"
	"github.com/sirupsen/logrus"
)

type Mode uint8

const (
	Steady Mode = iota
	Transient
	InitializeToSteady
)

func (m Mode) String() string {
	switch m {
	case Steady:
		return "steady"
	case Transient:
		return "transient"
	case InitializeToSteady:
		return "initialize to steady"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

var ErrBadConfig = errors.New("invalid time integration configuration")

// eventTol is the relative distance at which the clock lands on an event
const eventTol = 1.e-12

func ParseMode(label string) (m Mode, err error) {
	switch strings.ToLower(strings.NewReplacer("-", " ", "_", " ").Replace(label)) {
	case "steady":
		m = Steady
	case "transient":
		m = Transient
	case "initialize to steady", "init to steady":
		m = InitializeToSteady
	default:
		err = fmt.Errorf("%w: unknown mode %q", ErrBadConfig, label)
	}
	return
}

type Config struct {
	Mode               Mode
	Start, Switch      float64
	End                float64
	SteadyInitialDT    float64
	TransientInitialDT float64
	// ResetTimes restart the transient integration with ResetDTs
	ResetTimes []float64
	ResetDTs   []float64
	// MaxCycles stops the run early when positive
	MaxCycles  int
	Controller timestep.Config
}

// Observer sees the committed state after every cycle
type Observer func(cycle int, s *flow.State)

type Coordinator struct {
	PK    *flow.DarcyPK
	S     *flow.State
	cfg   Config
	ctl   *timestep.Standard
	log   logrus.FieldLogger
	Cycle int
}

func New(pk *flow.DarcyPK, cfg Config, log logrus.FieldLogger) (co *Coordinator, err error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if pk == nil {
		return nil, fmt.Errorf("%w: missing flow kernel", ErrBadConfig)
	}
	switch {
	case cfg.End < cfg.Start:
		err = fmt.Errorf("%w: end %g precedes start %g", ErrBadConfig, cfg.End, cfg.Start)
	case cfg.Mode == InitializeToSteady && (cfg.Switch < cfg.Start || cfg.Switch > cfg.End):
		err = fmt.Errorf("%w: switch %g outside [%g, %g]", ErrBadConfig, cfg.Switch, cfg.Start, cfg.End)
	case cfg.Mode != Transient && cfg.SteadyInitialDT <= 0:
		err = fmt.Errorf("%w: steady initial step %g", ErrBadConfig, cfg.SteadyInitialDT)
	case cfg.Mode != Steady && cfg.TransientInitialDT <= 0:
		err = fmt.Errorf("%w: transient initial step %g", ErrBadConfig, cfg.TransientInitialDT)
	case len(cfg.ResetTimes) != len(cfg.ResetDTs):
		err = fmt.Errorf("%w: %d reset times with %d reset steps", ErrBadConfig,
			len(cfg.ResetTimes), len(cfg.ResetDTs))
	}
	if err != nil {
		return
	}
	for i := range cfg.ResetTimes {
		if cfg.ResetDTs[i] <= 0 || (i > 0 && cfg.ResetTimes[i] <= cfg.ResetTimes[i-1]) {
			return nil, fmt.Errorf("%w: reset times must increase with positive steps", ErrBadConfig)
		}
	}
	co = &Coordinator{
		PK:  pk,
		S:   pk.S,
		cfg: cfg,
		log: log.WithFields(logrus.Fields{
			"pk":   "mpc",
			"rank": pk.S.Mesh.Comm().Rank(),
		}),
	}
	if co.ctl, err = timestep.NewStandard(cfg.Controller); err != nil {
		return nil, err
	}
	return
}

// steady reports whether the step from t is a steady solve
func (co *Coordinator) steady(t float64) bool {
	return co.cfg.Mode == Steady || (co.cfg.Mode == InitializeToSteady && t < co.cfg.Switch)
}

// Run initializes the kernel when needed and cycles to the end time
func (co *Coordinator) Run(observe Observer) (err error) {
	var (
		pk  = co.PK
		cfg = co.cfg
	)
	if pk.Status() == flow.StatusNull {
		if err = pk.Initialize(); err != nil {
			return
		}
	}
	co.S.Time = cfg.Start
	if cfg.Mode == Transient {
		err = pk.InitTransient(cfg.Start, cfg.TransientInitialDT)
	} else {
		err = pk.InitSteadyState(cfg.Start, cfg.SteadyInitialDT)
	}
	if err != nil {
		return
	}
	for co.S.Time < cfg.End && (cfg.MaxCycles <= 0 || co.Cycle < cfg.MaxCycles) {
		if err = co.step(); err != nil {
			return
		}
		if observe != nil {
			observe(co.Cycle, co.S)
		}
	}
	return
}

// landing snaps t onto an event time it reached up to rounding
func (co *Coordinator) landing(t float64) float64 {
	events := append([]float64{co.cfg.End}, co.cfg.ResetTimes...)
	if co.cfg.Mode == InitializeToSteady {
		events = append(events, co.cfg.Switch)
	}
	for _, e := range events {
		if math.Abs(t-e) <= eventTol*math.Max(1, math.Abs(e)) {
			return e
		}
	}
	return t
}

// step takes one cycle: choose the step, advance with retries, commit and
// move the clock
func (co *Coordinator) step() (err error) {
	var (
		pk      = co.PK
		cfg     = co.cfg
		t       = co.S.Time
		steady  = co.steady(t)
		limiter = math.Inf(1)
	)
	if cfg.Mode == InitializeToSteady && !steady && pk.Status() != flow.StatusTransient {
		co.log.Info("steady state computation complete, now running in transient mode")
		if err = pk.InitTransient(t, cfg.TransientInitialDT); err != nil {
			return
		}
	}
	flowDT := pk.DTDesirable()
	limitTo := func(tEnd float64) (err error) {
		var l float64
		if l, err = timestep.Limit(t, flowDT, tEnd); err == nil {
			limiter = math.Min(limiter, l)
		}
		return
	}
	if cfg.Mode == InitializeToSteady && steady && t+flowDT >= cfg.Switch {
		if err = limitTo(cfg.Switch); err != nil {
			return
		}
	}
	if cfg.Mode != Steady {
		for _, rt := range cfg.ResetTimes {
			if t >= rt {
				continue
			}
			if !(cfg.Mode == InitializeToSteady && rt == cfg.Switch) && t+2*flowDT > rt {
				if err = limitTo(rt); err != nil {
					return
				}
			}
			break
		}
	}
	dT := math.Min(flowDT, limiter)
	// the next step grows from the kernel step, not from a clipped one
	base := flowDT
	if !(cfg.Mode == InitializeToSteady && steady) && t+2*dT > cfg.End {
		if dT, err = timestep.Limit(t, dT, cfg.End); err != nil {
			return
		}
	}
	if cfg.Mode != Steady && !steady {
		for i, rt := range cfg.ResetTimes {
			if t == rt {
				dT, base = cfg.ResetDTs[i], cfg.ResetDTs[i]
				if err = pk.InitTransient(t, dT); err != nil {
					return
				}
				break
			}
		}
	}

	// failed transient solves shrink the step and retry, a steady solve
	// does not depend on the step
	for {
		if steady {
			err = pk.AdvanceToSteadyState()
		} else {
			err = pk.Advance(dT)
		}
		if err == nil {
			break
		}
		var cerr *solvers.ConvergenceError
		if !errors.As(err, &cerr) {
			return
		}
		if steady {
			return fmt.Errorf("cycle %d at T=%g: %w", co.Cycle, t, err)
		}
		next, nerr := co.ctl.NextStep(dT, timestep.Failed)
		if nerr != nil {
			return fmt.Errorf("cycle %d at T=%g: %w", co.Cycle, t, errors.Join(nerr, err))
		}
		co.log.WithFields(logrus.Fields{
			"dT":   dT,
			"next": next,
		}).Warn("repeating time step with a smaller dT")
		dT, base = next, next
	}

	co.S.Time = co.landing(t + dT)
	if err = pk.CommitState(); err != nil {
		return
	}
	co.Cycle++

	next, err := co.ctl.NextStep(base, pk.Iterations)
	if err != nil {
		return
	}
	if !steady {
		next = math.Min(next, pk.DTDesirable())
	}
	pk.SetDTDesirable(next)
	mode := "transient"
	if steady {
		mode = "steady"
	}
	co.log.WithFields(logrus.Fields{
		"cycle":      co.Cycle,
		"T":          co.S.Time,
		"dT":         dT,
		"mode":       mode,
		"iterations": pk.Iterations,
	}).Info("cycle complete")
	return
}
