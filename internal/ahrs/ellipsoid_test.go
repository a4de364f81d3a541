package ahrs

import (
	"math"
	"testing"
)

// spherePoints generates a deterministic spread of points on an ellipsoid
// surface with the given center and radii.
func spherePoints(center, radii [3]float64) [][3]float64 {
	var pts [][3]float64
	for i := 0; i < 12; i++ {
		theta := float64(i) * math.Pi / 12
		for j := 0; j < 12; j++ {
			phi := float64(j) * 2 * math.Pi / 12
			pts = append(pts, [3]float64{
				center[0] + radii[0]*math.Sin(theta)*math.Cos(phi),
				center[1] + radii[1]*math.Sin(theta)*math.Sin(phi),
				center[2] + radii[2]*math.Cos(theta),
			})
		}
	}
	return pts
}

func TestFitEllipsoidRecoversSphere(t *testing.T) {
	center := [3]float64{12.5, -8.0, 3.25}
	radii := [3]float64{45, 45, 45}
	e, err := FitEllipsoid(spherePoints(center, radii))
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if math.Abs(e.Center[i]-center[i]) > 1e-6 {
			t.Errorf("center[%d] = %v, want %v", i, e.Center[i], center[i])
		}
		if math.Abs(e.Radii[i]-radii[i]) > 1e-6 {
			t.Errorf("radii[%d] = %v, want %v", i, e.Radii[i], radii[i])
		}
	}
}

func TestFitEllipsoidRecoversAxes(t *testing.T) {
	center := [3]float64{-20, 5, 60}
	radii := [3]float64{30, 55, 42}
	e, err := FitEllipsoid(spherePoints(center, radii))
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if math.Abs(e.Radii[i]-radii[i]) > 1e-6 {
			t.Errorf("radii[%d] = %v, want %v", i, e.Radii[i], radii[i])
		}
	}
}

func TestFitEllipsoidTooFewPoints(t *testing.T) {
	if _, err := FitEllipsoid([][3]float64{{1, 0, 0}, {0, 1, 0}}); err == nil {
		t.Fatal("expected error for underdetermined fit")
	}
}
