// Package govae re-exports the commonly used types and constructors so
// callers can build and train a VAE from a single import.
package govae

import (
	"math/rand"

	"github.com/nampluskr/govae/internal/loss"
	"github.com/nampluskr/govae/internal/mnist"
	"github.com/nampluskr/govae/internal/opt"
	"github.com/nampluskr/govae/internal/trainer"
	"github.com/nampluskr/govae/internal/vae"
)

// Re-export common types for easier access
type (
	Model       = vae.VAE
	Encoder     = vae.Encoder
	Decoder     = vae.Decoder
	NoiseSource = vae.NoiseSource
	Optimizer   = opt.Optimizer
	Trainer     = trainer.Trainer
	History     = trainer.History
	Dataset     = mnist.Dataset
	Loader      = mnist.Loader
)

// Model construction
func New(encoder Encoder, decoder Decoder, noise NoiseSource) *Model {
	return vae.New(encoder, decoder, noise)
}

func NewPair(variant string, latentDim int, rng *rand.Rand) (Encoder, Decoder, error) {
	return vae.NewPair(variant, latentDim, rng)
}

func Load(filename string, noise NoiseSource) (*Model, error) {
	return vae.Load(filename, noise)
}

// Noise sources
func GaussianNoise(seed int64) NoiseSource { return vae.NewGaussianNoise(seed) }
func ZeroNoise() NoiseSource               { return vae.ZeroNoise{} }

// Optimizers
func SGD(learningRate float64) *opt.SGD   { return opt.NewSGD(learningRate) }
func Adam(learningRate float64) *opt.Adam { return opt.NewAdam(learningRate) }

// Training
func NewTrainer(model *Model, optimizer Optimizer) *Trainer {
	return trainer.New(model, optimizer)
}

// Losses and metrics
var (
	VAELoss        = loss.VAELoss
	BCESum         = loss.BCESum
	KLDiv          = loss.KLDiv
	BinaryAccuracy = loss.BinaryAccuracy
)
