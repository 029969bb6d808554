package vae

import "math/rand"

// NoiseSource supplies the standard-normal draws for the reparameterization
// step. Injecting it explicitly keeps the model off global random state, so
// tests can substitute deterministic noise.
type NoiseSource interface {
	// Fill writes one independent draw per element of dst.
	Fill(dst []float64)
}

// GaussianNoise draws from a standard normal distribution using its own
// seeded generator.
type GaussianNoise struct {
	rng *rand.Rand
}

// NewGaussianNoise creates a GaussianNoise with the given seed.
func NewGaussianNoise(seed int64) *GaussianNoise {
	return &GaussianNoise{rng: rand.New(rand.NewSource(seed))}
}

// Fill writes standard-normal draws into dst.
func (g *GaussianNoise) Fill(dst []float64) {
	for i := range dst {
		dst[i] = g.rng.NormFloat64()
	}
}

// ZeroNoise writes all zeros, making the latent sample equal the mean
// exactly. Intended for tests and deterministic encoding.
type ZeroNoise struct{}

// Fill zeroes dst.
func (ZeroNoise) Fill(dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
}
