package device

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
)

// wave is one gaussian component of a beat, positioned in seconds after beat onset.
type wave struct {
	amp   float32
	mu    float32
	sigma float32
}

// ECGSim generates a synthetic (non clinical) ECG trace: P, QRS and T waves
// as gaussians plus slow baseline wander and uniform noise.
type ECGSim struct {
	period float32 // Beat period (s)
	dt     float32 // Sample interval (s)
	noise  float32
	wander float32

	t     float32 // Time since start (s)
	waves []wave
	rng   *rand.Rand
}

// NewECGSim creates a simulator sampled every dt seconds at hrBPM beats per minute.
func NewECGSim(dt, hrBPM, noise, wander float64, seed uint64) *ECGSim {
	period := float32(60 / hrBPM)
	return &ECGSim{
		period: period,
		dt:     float32(dt),
		noise:  float32(noise),
		wander: float32(wander),
		waves: []wave{
			{amp: 0.10, mu: 0.16, sigma: 0.025},              // P
			{amp: -0.12, mu: 0.25, sigma: 0.010},             // Q
			{amp: 1.00, mu: 0.27, sigma: 0.012},              // R
			{amp: -0.25, mu: 0.295, sigma: 0.012},            // S
			{amp: 0.30, mu: 0.27 + 0.25*period, sigma: 0.05}, // T
		},
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Period returns the beat period in seconds.
func (s *ECGSim) Period() float64 {
	return float64(s.period)
}

// Next returns the next sample and advances time by one sample interval.
func (s *ECGSim) Next() float32 {
	phase := math32.Mod(s.t, s.period)

	var v float32
	for _, w := range s.waves {
		v += w.amp * gauss(phase, w.mu, w.sigma)
	}

	v += s.wander * math32.Sin(2*math32.Pi*0.2*s.t)
	if s.noise > 0 {
		v += s.noise * (2*s.rng.Float32() - 1)
	}

	s.t += s.dt
	return v
}

func gauss(x, mu, sigma float32) float32 {
	z := (x - mu) / sigma
	return math32.Exp(-0.5 * z * z)
}
