// Package solvers holds preconditioned Krylov methods over composite
// vectors. Inner products are global so every rank takes the same path.
package solvers

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/notargets/subflow/vectors"
	"github.com/sirupsen/logrus"
)

var ErrUnknownMethod = errors.New("unknown linear solver")

// LinearOperator is the matrix and its preconditioner
type LinearOperator interface {
	Apply(X, Y *vectors.CompositeVector) error
	ApplyInverse(X, Y *vectors.CompositeVector) error
}

type Config struct {
	Method        string  `json:"method"`
	Tolerance     float64 `json:"tolerance"`
	MaxIterations int     `json:"maxIterations"`
	KrylovSize    int     `json:"krylovSize"`
}

func DefaultConfig() Config {
	return Config{Method: "pcg", Tolerance: 1.e-12, MaxIterations: 500, KrylovSize: 30}
}

func (cfg *Config) setDefaults() {
	def := DefaultConfig()
	if cfg.Method == "" {
		cfg.Method = def.Method
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.KrylovSize <= 0 {
		cfg.KrylovSize = def.KrylovSize
	}
}

// Result reports the work done and the final relative residual
type Result struct {
	Iterations int
	Residual   float64
}

// ConvergenceError is returned when the tolerance is not reached
type ConvergenceError struct {
	Method     string
	Iterations int
	Residual   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s did not converge: %d iterations, relative residual %.3e",
		e.Method, e.Iterations, e.Residual)
}

// Solve runs the configured method from the initial guess in x
func Solve(A LinearOperator, b, x *vectors.CompositeVector, cfg Config, log logrus.FieldLogger) (res Result, err error) {
	cfg.setDefaults()
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch strings.ToLower(cfg.Method) {
	case "pcg", "cg":
		res, err = PCG(A, b, x, cfg)
	case "gmres":
		res, err = GMRES(A, b, x, cfg)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMethod, cfg.Method)
		return
	}
	log.WithFields(logrus.Fields{
		"method":     cfg.Method,
		"iterations": res.Iterations,
		"residual":   res.Residual,
	}).Debug("linear solve")
	return
}

// PCG is preconditioned conjugate gradients for symmetric positive
// definite operators
func PCG(A LinearOperator, b, x *vectors.CompositeVector, cfg Config) (res Result, err error) {
	cfg.setDefaults()
	bnorm := b.Norm2()
	if bnorm == 0 {
		x.PutScalar(0)
		return
	}
	var (
		r = b.CloneShape()
		z = b.CloneShape()
		p = b.CloneShape()
		q = b.CloneShape()
	)
	if err = A.Apply(x, r); err != nil {
		return
	}
	r.Update(1, b, -1)
	if res.Residual = r.Norm2() / bnorm; res.Residual <= cfg.Tolerance {
		return
	}
	if err = A.ApplyInverse(r, z); err != nil {
		return
	}
	p.Assign(z)
	rz := r.Dot(z)
	for res.Iterations = 1; res.Iterations <= cfg.MaxIterations; res.Iterations++ {
		if err = A.Apply(p, q); err != nil {
			return
		}
		pq := p.Dot(q)
		if pq == 0 {
			break
		}
		alpha := rz / pq
		x.Update(alpha, p, 1)
		r.Update(-alpha, q, 1)
		if res.Residual = r.Norm2() / bnorm; res.Residual <= cfg.Tolerance {
			return
		}
		if err = A.ApplyInverse(r, z); err != nil {
			return
		}
		rzNew := r.Dot(z)
		p.Update(1, z, rzNew/rz)
		rz = rzNew
	}
	if res.Iterations > cfg.MaxIterations {
		res.Iterations = cfg.MaxIterations
	}
	err = &ConvergenceError{Method: "pcg", Iterations: res.Iterations, Residual: res.Residual}
	return
}

// GMRES is restarted, right preconditioned GMRES with Givens rotations
func GMRES(A LinearOperator, b, x *vectors.CompositeVector, cfg Config) (res Result, err error) {
	cfg.setDefaults()
	bnorm := b.Norm2()
	if bnorm == 0 {
		x.PutScalar(0)
		return
	}
	var (
		m  = cfg.KrylovSize
		r  = b.CloneShape()
		w  = b.CloneShape()
		z  = b.CloneShape()
		V  = make([]*vectors.CompositeVector, m+1)
		H  = make([][]float64, m+1)
		cs = make([]float64, m)
		sn = make([]float64, m)
		g  = make([]float64, m+1)
	)
	for i := range H {
		H[i] = make([]float64, m)
	}
	for res.Iterations < cfg.MaxIterations {
		if err = A.Apply(x, r); err != nil {
			return
		}
		r.Update(1, b, -1)
		beta := r.Norm2()
		if res.Residual = beta / bnorm; res.Residual <= cfg.Tolerance {
			return
		}
		V[0] = r.Clone()
		V[0].Scale(1 / beta)
		for i := range g {
			g[i] = 0
		}
		g[0] = beta
		var j int
		for j = 0; j < m && res.Iterations < cfg.MaxIterations; j++ {
			res.Iterations++
			if err = A.ApplyInverse(V[j], z); err != nil {
				return
			}
			if err = A.Apply(z, w); err != nil {
				return
			}
			// modified Gram-Schmidt
			for i := 0; i <= j; i++ {
				H[i][j] = w.Dot(V[i])
				w.Update(-H[i][j], V[i], 1)
			}
			H[j+1][j] = w.Norm2()
			for i := 0; i < j; i++ {
				H[i][j], H[i+1][j] = cs[i]*H[i][j]+sn[i]*H[i+1][j], -sn[i]*H[i][j]+cs[i]*H[i+1][j]
			}
			d := math.Hypot(H[j][j], H[j+1][j])
			if d == 0 {
				// singular Hessenberg column, keep the first j
				break
			}
			cs[j], sn[j] = H[j][j]/d, H[j+1][j]/d
			H[j][j], H[j+1][j] = d, 0
			g[j], g[j+1] = cs[j]*g[j], -sn[j]*g[j]
			res.Residual = math.Abs(g[j+1]) / bnorm
			V[j+1] = w.Clone()
			if nrm := V[j+1].Norm2(); nrm > 0 {
				V[j+1].Scale(1 / nrm)
			}
			if res.Residual <= cfg.Tolerance {
				j++
				break
			}
		}
		// back substitute H y = g and correct x with M^-1 V y
		y := make([]float64, j)
		for i := j - 1; i >= 0; i-- {
			s := g[i]
			for k := i + 1; k < j; k++ {
				s -= H[i][k] * y[k]
			}
			y[i] = s / H[i][i]
		}
		w.PutScalar(0)
		for i := 0; i < j; i++ {
			w.Update(y[i], V[i], 1)
		}
		if err = A.ApplyInverse(w, z); err != nil {
			return
		}
		x.Update(1, z, 1)
		if res.Residual <= cfg.Tolerance {
			// confirm with the true residual
			if err = A.Apply(x, r); err != nil {
				return
			}
			r.Update(1, b, -1)
			if res.Residual = r.Norm2() / bnorm; res.Residual <= cfg.Tolerance*10 {
				return
			}
		}
	}
	err = &ConvergenceError{Method: "gmres", Iterations: res.Iterations, Residual: res.Residual}
	return
}
