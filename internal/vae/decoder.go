package vae

import (
	"math/rand"

	"github.com/nampluskr/govae/internal/activations"
	"github.com/nampluskr/govae/internal/layer"
)

// Decoder maps a latent vector back to a reconstruction of the input,
// with every output value in [0, 1] by construction (sigmoid squashing).
type Decoder interface {
	// Forward returns the reconstruction, of length OutputSize.
	// The returned slice is an internal buffer, valid until the next Forward.
	Forward(z []float64) []float64

	// Backward propagates the reconstruction gradient back to the latent
	// input, accumulating parameter gradients.
	Backward(grad []float64) []float64

	// Layers returns the parameterized layers in a stable order.
	Layers() []layer.Layer

	LatentDim() int
	OutputSize() int
}

// MLPDecoder is the dense decoder variant:
// Dense(latent, 256, ReLU) -> Dense(256, 784, Sigmoid) -> reshape 1x28x28.
type MLPDecoder struct {
	hidden    *layer.Dense
	out       *layer.Dense
	latentDim int
}

// NewMLPDecoder creates a dense decoder consuming latentDim-sized vectors.
func NewMLPDecoder(latentDim int, rng *rand.Rand) *MLPDecoder {
	if latentDim <= 0 {
		panic("MLPDecoder: latentDim must be positive")
	}
	return &MLPDecoder{
		hidden:    layer.NewDense(latentDim, hiddenSize, activations.ReLU{}, rng),
		out:       layer.NewDense(hiddenSize, InputSize, activations.Sigmoid{}, rng),
		latentDim: latentDim,
	}
}

// Forward reconstructs an input-shaped sample from a latent vector.
func (d *MLPDecoder) Forward(z []float64) []float64 {
	return d.out.Forward(d.hidden.Forward(z))
}

// Backward propagates the reconstruction gradient to the latent input.
func (d *MLPDecoder) Backward(grad []float64) []float64 {
	return d.hidden.Backward(d.out.Backward(grad))
}

// Layers returns the decoder layers.
func (d *MLPDecoder) Layers() []layer.Layer {
	return []layer.Layer{d.hidden, d.out}
}

// LatentDim returns the latent dimensionality.
func (d *MLPDecoder) LatentDim() int { return d.latentDim }

// OutputSize returns the flattened reconstruction size.
func (d *MLPDecoder) OutputSize() int { return InputSize }

// CNNDecoder is the convolutional decoder variant. It projects the latent
// vector to a 64x7x7 feature map and upsamples through two stride-2
// transposed convolutions, exactly inverting the encoder's reduction:
// 7x7 -> 14x14 -> 28x28, then a stride-1 stage squashes to one channel.
type CNNDecoder struct {
	hidden    *layer.Dense
	project   *layer.Dense
	deconv1   *layer.ConvTranspose2D
	deconv2   *layer.ConvTranspose2D
	deconv3   *layer.ConvTranspose2D
	latentDim int
}

// NewCNNDecoder creates a convolutional decoder consuming latentDim-sized
// vectors.
func NewCNNDecoder(latentDim int, rng *rand.Rand) *CNNDecoder {
	if latentDim <= 0 {
		panic("CNNDecoder: latentDim must be positive")
	}
	deconv1 := layer.NewConvTranspose2D(convChannels2, convChannels2, 4, 2, 1,
		convSpatial, convSpatial, activations.ReLU{}, rng)
	h1, w1 := deconv1.OutputDims()
	deconv2 := layer.NewConvTranspose2D(convChannels2, convChannels1, 4, 2, 1,
		h1, w1, activations.ReLU{}, rng)
	h2, w2 := deconv2.OutputDims()
	deconv3 := layer.NewConvTranspose2D(convChannels1, 1, 3, 1, 1,
		h2, w2, activations.Sigmoid{}, rng)
	if out := deconv3.OutSize(); out != InputSize {
		panic("CNNDecoder: upsampling stages do not reproduce the input shape")
	}

	return &CNNDecoder{
		hidden:    layer.NewDense(latentDim, hiddenSize, activations.ReLU{}, rng),
		project:   layer.NewDense(hiddenSize, convFlatSize, activations.ReLU{}, rng),
		deconv1:   deconv1,
		deconv2:   deconv2,
		deconv3:   deconv3,
		latentDim: latentDim,
	}
}

// Forward reconstructs an input-shaped sample from a latent vector.
func (d *CNNDecoder) Forward(z []float64) []float64 {
	h := d.hidden.Forward(z)
	fm := d.project.Forward(h)
	fm = d.deconv1.Forward(fm)
	fm = d.deconv2.Forward(fm)
	return d.deconv3.Forward(fm)
}

// Backward propagates the reconstruction gradient to the latent input.
func (d *CNNDecoder) Backward(grad []float64) []float64 {
	g := d.deconv3.Backward(grad)
	g = d.deconv2.Backward(g)
	g = d.deconv1.Backward(g)
	g = d.project.Backward(g)
	return d.hidden.Backward(g)
}

// Layers returns the decoder layers.
func (d *CNNDecoder) Layers() []layer.Layer {
	return []layer.Layer{d.hidden, d.project, d.deconv1, d.deconv2, d.deconv3}
}

// LatentDim returns the latent dimensionality.
func (d *CNNDecoder) LatentDim() int { return d.latentDim }

// OutputSize returns the flattened reconstruction size.
func (d *CNNDecoder) OutputSize() int { return InputSize }
