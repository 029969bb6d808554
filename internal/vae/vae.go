package vae

import (
	"math"

	"github.com/nampluskr/govae/internal/layer"
)

// VAE composes an encoder and decoder through the reparameterization trick:
// z = mean + exp(0.5*logVar) * eps, with eps drawn fresh from the noise
// source on every Forward. The composition owns no parameters of its own.
type VAE struct {
	encoder Encoder
	decoder Decoder
	noise   NoiseSource

	// State of the most recent Forward, needed to route gradients
	// through the sampling step.
	mean   []float64
	logVar []float64
	eps    []float64
	z      []float64

	gradMeanBuf   []float64
	gradLogVarBuf []float64
}

// New composes an encoder/decoder pair. Pairing variants whose latent
// dimensions disagree, or a decoder that does not reproduce the encoder's
// input shape, is a fatal configuration error.
func New(encoder Encoder, decoder Decoder, noise NoiseSource) *VAE {
	if encoder.LatentDim() != decoder.LatentDim() {
		panic("vae: encoder and decoder latent dimensions differ")
	}
	if encoder.InputSize() != decoder.OutputSize() {
		panic("vae: decoder output shape does not match encoder input shape")
	}
	n := encoder.LatentDim()
	return &VAE{
		encoder:       encoder,
		decoder:       decoder,
		noise:         noise,
		eps:           make([]float64, n),
		z:             make([]float64, n),
		gradMeanBuf:   make([]float64, n),
		gradLogVarBuf: make([]float64, n),
	}
}

// Forward encodes x, samples the latent with fresh noise, and decodes.
// It returns the reconstruction and both distribution parameters; the
// parameters feed the KL term downstream, not just the sampling.
// The returned slices are internal buffers, valid until the next Forward.
func (v *VAE) Forward(x []float64) (xPred, mean, logVar []float64) {
	mean, logVar = v.encoder.Forward(x)

	// Noise is resampled on every pass; nothing is cached between calls.
	v.noise.Fill(v.eps)
	for i := range v.z {
		v.z[i] = mean[i] + math.Exp(0.5*logVar[i])*v.eps[i]
	}

	v.mean, v.logVar = mean, logVar
	xPred = v.decoder.Forward(v.z)
	return xPred, mean, logVar
}

// Backward propagates one sample's loss gradients through the model,
// accumulating parameter gradients in the encoder and decoder layers.
//
// gradX is dL/d(reconstruction); gradMeanKL and gradLogVarKL are the KL
// term's direct gradients w.r.t. the distribution parameters. The
// reconstruction gradient reaches the parameters through the sampling step:
// dz/dmean = 1 and dz/dlogVar = 0.5*exp(0.5*logVar)*eps.
func (v *VAE) Backward(gradX, gradMeanKL, gradLogVarKL []float64) {
	gradZ := v.decoder.Backward(gradX)
	for i := range gradZ {
		v.gradMeanBuf[i] = gradZ[i] + gradMeanKL[i]
		v.gradLogVarBuf[i] = gradZ[i]*0.5*math.Exp(0.5*v.logVar[i])*v.eps[i] + gradLogVarKL[i]
	}
	v.encoder.Backward(v.gradMeanBuf, v.gradLogVarBuf)
}

// Decode runs only the decoder on a latent vector, for sampling from the
// learned distribution.
func (v *VAE) Decode(z []float64) []float64 {
	if len(z) != v.decoder.LatentDim() {
		panic("vae: latent vector length does not match decoder")
	}
	return v.decoder.Forward(z)
}

// Encoder returns the composed encoder.
func (v *VAE) Encoder() Encoder { return v.encoder }

// Decoder returns the composed decoder.
func (v *VAE) Decoder() Decoder { return v.decoder }

// LatentDim returns the latent dimensionality of the pair.
func (v *VAE) LatentDim() int { return v.encoder.LatentDim() }

// InputSize returns the flattened input size the encoder expects.
func (v *VAE) InputSize() int { return v.encoder.InputSize() }

// Layers returns every parameterized layer of the composition in a stable
// order (encoder first).
func (v *VAE) Layers() []layer.Layer {
	layers := append([]layer.Layer{}, v.encoder.Layers()...)
	return append(layers, v.decoder.Layers()...)
}

// ZeroGrad clears every layer's accumulated gradients.
func (v *VAE) ZeroGrad() {
	for _, l := range v.Layers() {
		l.ZeroGrad()
	}
}

// Params returns all model parameters flattened (copy), encoder layers
// first, in the Layers order.
func (v *VAE) Params() []float64 {
	var params []float64
	for _, l := range v.Layers() {
		params = append(params, l.Params()...)
	}
	return params
}

// SetParams restores parameters from a flat slice in the Layers order.
func (v *VAE) SetParams(params []float64) {
	offset := 0
	for _, l := range v.Layers() {
		n := len(l.Params())
		l.SetParams(params[offset : offset+n])
		offset += n
	}
	if offset != len(params) {
		panic("vae: parameter count does not match model")
	}
}
