package utils

import "math"

func Dot(a, b []float64) (dp float64) {
	for i := range a {
		dp += a[i] * b[i]
	}
	return
}

// VectorLength is the Euclidean length, scaled by the largest component in
// two and three dimensions to avoid overflow
func VectorLength(x []float64) float64 {
	var a, b, c float64
	switch len(x) {
	case 2:
		a, b = math.Abs(x[0]), math.Abs(x[1])
		if b > a {
			a, b = b, a
		}
		if a == 0 {
			return 0
		}
		return a * math.Sqrt(1+(b/a)*(b/a))
	case 3:
		a, b, c = math.Abs(x[0]), math.Abs(x[1]), math.Abs(x[2])
		if b > a {
			if c > b {
				a, c = c, a
			} else {
				a, b = b, a
			}
		} else if c > a {
			a, c = c, a
		}
		if a == 0 {
			return 0
		}
		return a * math.Sqrt(1+(b/a)*(b/a)+(c/a)*(c/a))
	default:
		for _, v := range x {
			a += v * v
		}
		return math.Sqrt(a)
	}
}

func Cross(a, b []float64) (r []float64) {
	r = []float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
	return
}

func TripleProduct(a, b, c []float64) float64 {
	return a[0]*(b[1]*c[2]-b[2]*c[1]) +
		a[1]*(b[2]*c[0]-b[0]*c[2]) +
		a[2]*(b[0]*c[1]-b[1]*c[0])
}

func Sub(a, b []float64) (r []float64) {
	r = make([]float64, len(a))
	for i := range a {
		r[i] = a[i] - b[i]
	}
	return
}

// QuadFaceNormal is the area weighted normal of the quadrilateral x1..x4,
// half the cross product of its diagonals
func QuadFaceNormal(x1, x2, x3, x4 []float64) (r []float64) {
	r = Cross(Sub(x3, x1), Sub(x4, x2))
	for i := range r {
		r[i] *= 0.5
	}
	return
}

func QuadFaceArea(x1, x2, x3, x4 []float64) float64 {
	return VectorLength(QuadFaceNormal(x1, x2, x3, x4))
}

// TetVolume is signed, positive when x2-x1, x3-x1, x4-x1 are right handed
func TetVolume(x1, x2, x3, x4 []float64) float64 {
	return TripleProduct(Sub(x2, x1), Sub(x3, x1), Sub(x4, x1)) / 6
}

// PolygonAreaCentroid returns the signed area and centroid of a planar
// polygon with vertices in order (x, y)
func PolygonAreaCentroid(xy [][]float64) (area float64, centroid []float64) {
	var (
		n      = len(xy)
		cx, cy float64
	)
	for i := 0; i < n; i++ {
		a, b := xy[i], xy[(i+1)%n]
		cr := a[0]*b[1] - b[0]*a[1]
		area += cr
		cx += (a[0] + b[0]) * cr
		cy += (a[1] + b[1]) * cr
	}
	area *= 0.5
	centroid = []float64{cx / (6 * area), cy / (6 * area)}
	return
}

// SetIntersection merges two ascending sorted integer sets
func SetIntersection(a, b []int) (r []int) {
	var i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case b[j] < a[i]:
			j++
		default:
			r = append(r, a[i])
			i++
			j++
		}
	}
	return
}
