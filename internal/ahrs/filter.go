package ahrs

// FirstOrder is a discrete first-order low-pass or high-pass filter stage.
// A matched low-pass/high-pass pair with the same time constant forms a
// complementary filter: their outputs sum to an approximation of the
// full-bandwidth input.
type FirstOrder struct {
	lowpass bool
	c       float64 // dt / (timeConstant + dt)
	lastIn  float64
	lastOut float64
}

// NewLowPass returns a low-pass stage with step dt and time constant tc,
// both in seconds.
func NewLowPass(dt, tc float64) *FirstOrder {
	return &FirstOrder{lowpass: true, c: dt / (tc + dt)}
}

// NewHighPass returns the matching high-pass stage.
func NewHighPass(dt, tc float64) *FirstOrder {
	return &FirstOrder{lowpass: false, c: dt / (tc + dt)}
}

// Prefill seeds the filter history so the first March calls do not produce a
// startup transient.
func (f *FirstOrder) Prefill(input, output float64) {
	f.lastIn = input
	f.lastOut = output
}

// March advances the filter one step with input u and returns the new output.
func (f *FirstOrder) March(u float64) float64 {
	var y float64
	if f.lowpass {
		y = f.c*u + (1.0-f.c)*f.lastOut
	} else {
		y = (1.0 - f.c) * (f.lastOut + u - f.lastIn)
	}
	f.lastIn = u
	f.lastOut = y
	return y
}
