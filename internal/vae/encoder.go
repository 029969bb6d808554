// Package vae implements a variational autoencoder: interchangeable
// encoder/decoder variants, the stochastic reparameterization step that
// joins them, and gob persistence for trained models.
//
// All tensors are flattened row-major float64 slices processed one sample
// at a time, and parameter gradients accumulate across samples until
// ZeroGrad, so a caller sums gradients over a batch before one optimizer
// update.
package vae

import (
	"math/rand"

	"github.com/nampluskr/govae/internal/activations"
	"github.com/nampluskr/govae/internal/layer"
)

// MNIST-sized single-channel input.
const (
	InputHeight = 28
	InputWidth  = 28
	InputSize   = InputHeight * InputWidth

	hiddenSize = 256

	// Two stride-2 stages reduce 28x28 to 7x7.
	convChannels1 = 32
	convChannels2 = 64
	convSpatial   = 7
	convFlatSize  = convChannels2 * convSpatial * convSpatial
)

// Encoder maps an input sample to the parameters of a diagonal Gaussian
// latent distribution. Both variants expose the identical contract so the
// VAE composition is architecture-agnostic.
type Encoder interface {
	// Forward returns (mean, logVar), each of length LatentDim.
	// The returned slices are internal buffers, valid until the next Forward.
	Forward(x []float64) (mean, logVar []float64)

	// Backward propagates the gradients w.r.t. mean and logVar back through
	// the encoder, accumulating parameter gradients.
	Backward(gradMean, gradLogVar []float64) []float64

	// Layers returns the parameterized layers in a stable order.
	Layers() []layer.Layer

	LatentDim() int
	InputSize() int
}

// MLPEncoder is the dense encoder variant:
// flatten -> Dense(784, 256, ReLU) -> two parallel linear heads.
type MLPEncoder struct {
	trunk      *layer.Dense
	meanHead   *layer.Dense
	logVarHead *layer.Dense
	latentDim  int

	gradHBuf []float64
}

// NewMLPEncoder creates a dense encoder producing latentDim-sized
// distribution parameters.
func NewMLPEncoder(latentDim int, rng *rand.Rand) *MLPEncoder {
	if latentDim <= 0 {
		panic("MLPEncoder: latentDim must be positive")
	}
	return &MLPEncoder{
		trunk:      layer.NewDense(InputSize, hiddenSize, activations.ReLU{}, rng),
		meanHead:   layer.NewDense(hiddenSize, latentDim, activations.Linear{}, rng),
		logVarHead: layer.NewDense(hiddenSize, latentDim, activations.Linear{}, rng),
		latentDim:  latentDim,
		gradHBuf:   make([]float64, hiddenSize),
	}
}

// Forward runs the trunk once and both heads on the shared hidden state.
func (e *MLPEncoder) Forward(x []float64) (mean, logVar []float64) {
	h := e.trunk.Forward(x)
	return e.meanHead.Forward(h), e.logVarHead.Forward(h)
}

// Backward sums the two head gradients at the shared hidden state, then
// propagates through the trunk.
func (e *MLPEncoder) Backward(gradMean, gradLogVar []float64) []float64 {
	gm := e.meanHead.Backward(gradMean)
	gl := e.logVarHead.Backward(gradLogVar)
	for i := range e.gradHBuf {
		e.gradHBuf[i] = gm[i] + gl[i]
	}
	return e.trunk.Backward(e.gradHBuf)
}

// Layers returns the trunk and head layers.
func (e *MLPEncoder) Layers() []layer.Layer {
	return []layer.Layer{e.trunk, e.meanHead, e.logVarHead}
}

// LatentDim returns the latent dimensionality.
func (e *MLPEncoder) LatentDim() int { return e.latentDim }

// InputSize returns the flattened input size.
func (e *MLPEncoder) InputSize() int { return InputSize }

// CNNEncoder is the convolutional encoder variant: two stride-2
// convolutions, then the same dense trunk and parallel heads as the
// dense variant.
type CNNEncoder struct {
	conv1      *layer.Conv2D
	conv2      *layer.Conv2D
	trunk      *layer.Dense
	meanHead   *layer.Dense
	logVarHead *layer.Dense
	latentDim  int

	gradHBuf []float64
}

// NewCNNEncoder creates a convolutional encoder producing latentDim-sized
// distribution parameters.
func NewCNNEncoder(latentDim int, rng *rand.Rand) *CNNEncoder {
	if latentDim <= 0 {
		panic("CNNEncoder: latentDim must be positive")
	}
	conv1 := layer.NewConv2D(1, convChannels1, 3, 2, 1,
		InputHeight, InputWidth, activations.ReLU{}, rng)
	h1, w1 := conv1.OutputDims()
	conv2 := layer.NewConv2D(convChannels1, convChannels2, 3, 2, 1,
		h1, w1, activations.ReLU{}, rng)

	return &CNNEncoder{
		conv1:      conv1,
		conv2:      conv2,
		trunk:      layer.NewDense(convFlatSize, hiddenSize, activations.ReLU{}, rng),
		meanHead:   layer.NewDense(hiddenSize, latentDim, activations.Linear{}, rng),
		logVarHead: layer.NewDense(hiddenSize, latentDim, activations.Linear{}, rng),
		latentDim:  latentDim,
		gradHBuf:   make([]float64, hiddenSize),
	}
}

// Forward runs the convolutional stages, flattens implicitly (tensors are
// already flat), then the trunk and both heads.
func (e *CNNEncoder) Forward(x []float64) (mean, logVar []float64) {
	c1 := e.conv1.Forward(x)
	c2 := e.conv2.Forward(c1)
	h := e.trunk.Forward(c2)
	return e.meanHead.Forward(h), e.logVarHead.Forward(h)
}

// Backward mirrors Forward in reverse.
func (e *CNNEncoder) Backward(gradMean, gradLogVar []float64) []float64 {
	gm := e.meanHead.Backward(gradMean)
	gl := e.logVarHead.Backward(gradLogVar)
	for i := range e.gradHBuf {
		e.gradHBuf[i] = gm[i] + gl[i]
	}
	g := e.trunk.Backward(e.gradHBuf)
	g = e.conv2.Backward(g)
	return e.conv1.Backward(g)
}

// Layers returns the convolution, trunk and head layers.
func (e *CNNEncoder) Layers() []layer.Layer {
	return []layer.Layer{e.conv1, e.conv2, e.trunk, e.meanHead, e.logVarHead}
}

// LatentDim returns the latent dimensionality.
func (e *CNNEncoder) LatentDim() int { return e.latentDim }

// InputSize returns the flattened input size.
func (e *CNNEncoder) InputSize() int { return InputSize }
