package mesh

import (
	"github.com/notargets/subflow/utils"
)

func (m *Structured) buildGeometry() {
	var (
		nf = len(m.faceNodes)
		nc = len(m.cellNodes)
	)
	m.faceCentroids = make([][]float64, nf)
	m.faceNormals = make([][]float64, nf)
	m.faceAreas = make([]float64, nf)
	m.cellCentroids = make([][]float64, nc)
	m.cellVolumes = make([]float64, nc)
	for f := 0; f < nf; f++ {
		xs := m.coordsOf(m.faceNodes[f])
		if m.box.Dim == 2 {
			a, b := xs[0], xs[1]
			m.faceNormals[f] = []float64{b[1] - a[1], -(b[0] - a[0])}
			m.faceCentroids[f] = []float64{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
		} else {
			m.faceNormals[f] = utils.QuadFaceNormal(xs[0], xs[1], xs[2], xs[3])
			m.faceCentroids[f] = quadCentroid(xs, m.faceNormals[f])
		}
		m.faceAreas[f] = utils.VectorLength(m.faceNormals[f])
	}
	for c := 0; c < nc; c++ {
		if m.box.Dim == 2 {
			xy := m.coordsOf(m.cellNodes[c])
			m.cellVolumes[c], m.cellCentroids[c] = utils.PolygonAreaCentroid(xy)
		} else {
			m.cellVolumes[c], m.cellCentroids[c] = m.hexVolumeCentroid(c)
		}
	}
}

func (m *Structured) coordsOf(nodes []int) (xs [][]float64) {
	xs = make([][]float64, len(nodes))
	for i, v := range nodes {
		xs[i] = m.NodeCoordinates(v)
	}
	return
}

func average(xs [][]float64) (avg []float64) {
	avg = make([]float64, len(xs[0]))
	for _, x := range xs {
		for i := range avg {
			avg[i] += x[i]
		}
	}
	for i := range avg {
		avg[i] /= float64(len(xs))
	}
	return
}

// quadCentroid weights the centroids of the two triangles of the quad by
// their area projected on the quad normal
func quadCentroid(xs [][]float64, normal []float64) (cen []float64) {
	var (
		tris = [2][3]int{{0, 1, 2}, {0, 2, 3}}
		wsum float64
	)
	cen = make([]float64, 3)
	for _, tri := range tris {
		a, b, c := xs[tri[0]], xs[tri[1]], xs[tri[2]]
		w := utils.Dot(utils.Cross(utils.Sub(b, a), utils.Sub(c, a)), normal)
		for i := 0; i < 3; i++ {
			cen[i] += w * (a[i] + b[i] + c[i]) / 3
		}
		wsum += w
	}
	if wsum == 0 {
		return average(xs)
	}
	for i := range cen {
		cen[i] /= wsum
	}
	return
}

// hexVolumeCentroid decomposes the cell into tets built on the vertex
// average, each face's vertex average and the face edges taken outward
func (m *Structured) hexVolumeCentroid(c int) (vol float64, cen []float64) {
	var (
		faces, dirs = m.CellFaces(c)
		x0          = average(m.coordsOf(m.cellNodes[c]))
	)
	cen = make([]float64, 3)
	for n, f := range faces {
		xs := m.coordsOf(m.faceNodes[f])
		if dirs[n] < 0 {
			xs = [][]float64{xs[0], xs[3], xs[2], xs[1]}
		}
		xf := average(xs)
		for i := 0; i < 4; i++ {
			a, b := xs[i], xs[(i+1)%4]
			v := utils.TetVolume(x0, xf, a, b)
			vol += v
			for d := 0; d < 3; d++ {
				cen[d] += v * (x0[d] + xf[d] + a[d] + b[d]) / 4
			}
		}
	}
	for d := range cen {
		cen[d] /= vol
	}
	return
}
