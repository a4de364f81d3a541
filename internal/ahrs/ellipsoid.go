package ahrs

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Ellipsoid is an axis-aligned ellipsoid fitted to a point cloud.
type Ellipsoid struct {
	Center [3]float64
	Radii  [3]float64
}

// FitEllipsoid fits an axis-aligned ellipsoid to the sample points by linear
// least squares on ax² + by² + cz² + dx + ey + fz = 1. At least nine samples
// spread over the surface are needed for the system to be well conditioned;
// magnetometer calibration collects hundreds.
func FitEllipsoid(points [][3]float64) (Ellipsoid, error) {
	n := len(points)
	if n < 9 {
		return Ellipsoid{}, fmt.Errorf("ellipsoid fit needs at least 9 points, got %d", n)
	}

	a := mat.NewDense(n, 6, nil)
	b := mat.NewVecDense(n, nil)
	for i, p := range points {
		x, y, z := p[0], p[1], p[2]
		a.SetRow(i, []float64{x * x, y * y, z * z, x, y, z})
		b.SetVec(i, 1)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return Ellipsoid{}, fmt.Errorf("ellipsoid least squares: %w", err)
	}

	var e Ellipsoid
	g := 1.0
	for i := 0; i < 3; i++ {
		quad := sol.AtVec(i)
		lin := sol.AtVec(i + 3)
		if quad <= 0 {
			return Ellipsoid{}, fmt.Errorf("degenerate ellipsoid fit: non-positive quadratic term on axis %d", i)
		}
		e.Center[i] = -lin / (2 * quad)
		g += lin * lin / (4 * quad)
	}
	if g <= 0 {
		return Ellipsoid{}, fmt.Errorf("degenerate ellipsoid fit: non-positive gauge")
	}
	for i := 0; i < 3; i++ {
		e.Radii[i] = math.Sqrt(g / sol.AtVec(i))
	}
	return e, nil
}
