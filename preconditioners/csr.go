package preconditioners

import (
	"sort"

	"github.com/james-bowman/sparse"
)

// AddTo sums v into entry (i, j) of a dictionary of keys matrix
func AddTo(d *sparse.DOK, i, j int, v float64) {
	d.Set(i, j, d.At(i, j)+v)
}

// SortedCSR compresses d and orders the columns of every row so row
// entries can be bisected. The compression of a DOK leaves each row in map
// order.
func SortedCSR(d *sparse.DOK) (A *sparse.CSR) {
	A = d.ToCSR()
	raw := A.RawMatrix()
	for i := 0; i < raw.I; i++ {
		lo, hi := raw.Indptr[i], raw.Indptr[i+1]
		sort.Sort(rowEntries{raw.Ind[lo:hi], raw.Data[lo:hi]})
	}
	return
}

type rowEntries struct {
	ind  []int
	data []float64
}

func (r rowEntries) Len() int           { return len(r.ind) }
func (r rowEntries) Less(i, j int) bool { return r.ind[i] < r.ind[j] }
func (r rowEntries) Swap(i, j int) {
	r.ind[i], r.ind[j] = r.ind[j], r.ind[i]
	r.data[i], r.data[j] = r.data[j], r.data[i]
}
