package preconditioners

import (
	"math"
	"strings"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"github.com/notargets/subflow/utils"
)

type amgLevel struct {
	raw     *blas.SparseMatrix
	invDiag []float64
	agg     []int // fine row to coarse row, nil on the coarsest level
	nc      int
	// work vectors
	x, b, r []float64
}

// AMG is a plain aggregation multigrid V-cycle. Aggregates are grown from
// strongly connected neighborhoods, the coarse operator is the Galerkin
// product with piecewise constant prolongation and the coarsest level is
// solved with dense LU.
type AMG struct {
	Threshold     float64
	Smoother      string
	Cycles        int
	MaxLevels     int
	MaxCoarseSize int
	levels        []*amgLevel
	coarse        *utils.LUSolver
}

func NewAMG(cfg Config) (p *AMG) {
	p = &AMG{
		Threshold:     cfg.AggregationThreshold,
		Smoother:      strings.ToLower(cfg.Smoother),
		Cycles:        cfg.Cycles,
		MaxLevels:     cfg.MaxLevels,
		MaxCoarseSize: cfg.MaxCoarseSize,
	}
	if p.Cycles <= 0 {
		p.Cycles = 1
	}
	if p.MaxLevels <= 0 {
		p.MaxLevels = 10
	}
	if p.MaxCoarseSize <= 0 {
		p.MaxCoarseSize = 64
	}
	if p.Smoother == "" {
		p.Smoother = "gauss-seidel"
	}
	return
}

func (p *AMG) NumLevels() int { return len(p.levels) }

func (p *AMG) Update(A *sparse.CSR) (err error) {
	p.levels = p.levels[:0]
	raw := A.RawMatrix()
	for {
		lvl := &amgLevel{
			raw:     raw,
			invDiag: inverseDiagonal(raw),
			x:       make([]float64, raw.I),
			b:       make([]float64, raw.I),
			r:       make([]float64, raw.I),
		}
		p.levels = append(p.levels, lvl)
		if raw.I <= p.MaxCoarseSize || len(p.levels) == p.MaxLevels {
			break
		}
		lvl.agg, lvl.nc = aggregate(raw, p.Threshold)
		if float64(lvl.nc) > 0.9*float64(raw.I) {
			lvl.agg = nil
			break
		}
		raw = galerkin(raw, lvl.agg, lvl.nc).RawMatrix()
	}
	last := p.levels[len(p.levels)-1]
	n := last.raw.I
	dense := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for k := last.raw.Indptr[i]; k < last.raw.Indptr[i+1]; k++ {
			dense[i*n+last.raw.Ind[k]] += last.raw.Data[k]
		}
	}
	p.coarse = utils.NewLUSolver(n)
	if err = p.coarse.Decompose(dense); err != nil {
		// fall back to smoothing on the coarsest level
		p.coarse = nil
		err = nil
	}
	return
}

// aggregate returns the aggregate of every row and the aggregate count
func aggregate(raw *blas.SparseMatrix, theta float64) (agg []int, nc int) {
	var (
		n      = raw.I
		diag   = make([]float64, n)
		strong = make([][]int, n)
	)
	for i := 0; i < n; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			if raw.Ind[k] == i {
				diag[i] = math.Abs(raw.Data[k])
			}
		}
	}
	for i := 0; i < n; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			j := raw.Ind[k]
			if j != i && math.Abs(raw.Data[k]) >= theta*math.Sqrt(diag[i]*diag[j]) && raw.Data[k] != 0 {
				strong[i] = append(strong[i], j)
			}
		}
	}
	agg = make([]int, n)
	for i := range agg {
		agg[i] = -1
	}
	// seed aggregates from untouched neighborhoods
	for i := 0; i < n; i++ {
		if agg[i] >= 0 {
			continue
		}
		free := true
		for _, j := range strong[i] {
			if agg[j] >= 0 {
				free = false
				break
			}
		}
		if !free {
			continue
		}
		agg[i] = nc
		for _, j := range strong[i] {
			agg[j] = nc
		}
		nc++
	}
	// attach leftovers to a strong neighbor's aggregate
	for i := 0; i < n; i++ {
		if agg[i] >= 0 {
			continue
		}
		for _, j := range strong[i] {
			if agg[j] >= 0 {
				agg[i] = agg[j]
				break
			}
		}
		if agg[i] < 0 {
			agg[i] = nc
			nc++
		}
	}
	return
}

func galerkin(raw *blas.SparseMatrix, agg []int, nc int) *sparse.CSR {
	coarse := sparse.NewDOK(nc, nc)
	for i := 0; i < raw.I; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			AddTo(coarse, agg[i], agg[raw.Ind[k]], raw.Data[k])
		}
	}
	return SortedCSR(coarse)
}

func (p *AMG) smooth(lvl *amgLevel, reverse bool) {
	if p.Smoother == "jacobi" {
		residual(lvl.raw, lvl.x, lvl.b, lvl.r)
		for i := range lvl.x {
			lvl.x[i] += 2. / 3. * lvl.invDiag[i] * lvl.r[i]
		}
		return
	}
	gaussSeidel(lvl.raw, lvl.invDiag, lvl.x, lvl.b, 1, reverse)
}

func (p *AMG) vcycle(l int) {
	lvl := p.levels[l]
	if l == len(p.levels)-1 {
		if p.coarse != nil {
			copy(lvl.x, lvl.b)
			p.coarse.BackSolve(lvl.x)
			return
		}
		for s := 0; s < 4; s++ {
			p.smooth(lvl, s%2 == 1)
		}
		return
	}
	p.smooth(lvl, false)
	residual(lvl.raw, lvl.x, lvl.b, lvl.r)
	next := p.levels[l+1]
	for i := range next.b {
		next.b[i] = 0
		next.x[i] = 0
	}
	for i, a := range lvl.agg {
		next.b[a] += lvl.r[i]
	}
	p.vcycle(l + 1)
	for i, a := range lvl.agg {
		lvl.x[i] += next.x[a]
	}
	p.smooth(lvl, true)
}

func (p *AMG) ApplyInverse(x, y []float64) (err error) {
	if len(p.levels) == 0 {
		return ErrNotUpdated
	}
	top := p.levels[0]
	copy(top.b, x)
	for i := range top.x {
		top.x[i] = 0
	}
	// each cycle starts from the previous iterate
	for c := 0; c < p.Cycles; c++ {
		p.vcycle(0)
	}
	copy(y, top.x)
	return
}
