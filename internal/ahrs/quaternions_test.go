package ahrs

import (
	"math"
	"testing"
)

const tol = 1e-9

func TestTaitBryanRoundTrip(t *testing.T) {
	cases := [][3]float64{
		{0, 0, 0},
		{0.3, -0.2, 1.1},
		{-1.0, 0.5, -2.5},
		{0.01, 0.01, 3.0},
	}
	for _, tb := range cases {
		q := FromTaitBryan(tb)
		got := ToTaitBryan(q)
		for i := 0; i < 3; i++ {
			if math.Abs(got[i]-tb[i]) > 1e-9 {
				t.Errorf("round trip %v: axis %d got %v want %v", tb, i, got[i], tb[i])
			}
		}
	}
}

func TestNormalize(t *testing.T) {
	q := [4]float64{2, 0, 0, 0}
	Normalize(&q)
	if math.Abs(q[0]-1) > tol {
		t.Errorf("got w=%v want 1", q[0])
	}

	q = [4]float64{1, 2, 3, 4}
	Normalize(&q)
	m := q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]
	if math.Abs(m-1) > tol {
		t.Errorf("magnitude squared = %v, want 1", m)
	}

	// zero quaternion must not turn into NaN
	q = [4]float64{}
	Normalize(&q)
	if q != ([4]float64{}) {
		t.Errorf("zero quaternion changed to %v", q)
	}
}

func TestTiltCompensateIdentity(t *testing.T) {
	v := [4]float64{0, 1, 2, 3}
	id := [4]float64{1, 0, 0, 0}
	got := TiltCompensate(v, id)
	for i := range v {
		if math.Abs(got[i]-v[i]) > tol {
			t.Fatalf("identity rotation changed vector: %v", got)
		}
	}
}

func TestTiltCompensateLevelsVector(t *testing.T) {
	// A field vector measured in a frame pitched 30° should project back to
	// the horizontal components it had before the tilt.
	pitch := math.Pi / 6
	q := FromTaitBryan([3]float64{pitch, 0, 0})
	// north-pointing field with a downward component, as measured level
	level := [4]float64{0, 0, 20, -40}
	// rotate into the tilted body frame, then compensate back
	tilted := TiltCompensate(level, Conjugate(q))
	back := TiltCompensate(tilted, q)
	for i := range level {
		if math.Abs(back[i]-level[i]) > 1e-9 {
			t.Fatalf("tilt compensation not inverse of tilt: got %v want %v", back, level)
		}
	}
}
