package layer

import (
	"math"
	"math/rand"

	"github.com/nampluskr/govae/internal/activations"
)

// ConvTranspose2D implements a transposed (fractionally strided) 2D
// convolution, the upsampling counterpart to Conv2D. With stride s it grows
// the spatial size by roughly s, so stacked stride-2 stages invert the
// reduction performed by stride-2 convolutions on the encoder side.
//
// Output size per axis: (in-1)*stride - 2*padding + kernel.
type ConvTranspose2D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	inputHeight  int
	inputWidth   int
	outputHeight int
	outputWidth  int

	// Weights: [outChannels, inChannels, kernelSize, kernelSize],
	// same contiguous layout as Conv2D.
	weights []float64
	biases  []float64

	act activations.Activation

	inputBuf    []float64
	preActBuf   []float64
	outputBuf   []float64
	gradWeights []float64
	gradBiases  []float64
	gradInBuf   []float64
	dzBuf       []float64
}

// NewConvTranspose2D creates a transposed convolution for inputs of shape
// [inChannels, inputHeight, inputWidth] flattened row-major.
func NewConvTranspose2D(inChannels, outChannels, kernelSize, stride, padding,
	inputHeight, inputWidth int, act activations.Activation, rng *rand.Rand) *ConvTranspose2D {

	outH := (inputHeight-1)*stride - 2*padding + kernelSize
	outW := (inputWidth-1)*stride - 2*padding + kernelSize
	if outH <= 0 || outW <= 0 {
		panic("ConvTranspose2D: kernel/stride/padding produce empty output")
	}

	scale := math.Sqrt(2.0 / float64(inChannels*kernelSize*kernelSize))

	weights := make([]float64, outChannels*inChannels*kernelSize*kernelSize)
	biases := make([]float64, outChannels)
	for i := range weights {
		weights[i] = rng.Float64()*2*scale - scale
	}
	for i := range biases {
		biases[i] = rng.Float64()*0.2 - 0.1
	}

	inSize := inChannels * inputHeight * inputWidth
	outSize := outChannels * outH * outW

	return &ConvTranspose2D{
		inChannels:   inChannels,
		outChannels:  outChannels,
		kernelSize:   kernelSize,
		stride:       stride,
		padding:      padding,
		inputHeight:  inputHeight,
		inputWidth:   inputWidth,
		outputHeight: outH,
		outputWidth:  outW,
		act:          act,

		weights:     weights,
		biases:      biases,
		inputBuf:    make([]float64, inSize),
		preActBuf:   make([]float64, outSize),
		outputBuf:   make([]float64, outSize),
		gradWeights: make([]float64, len(weights)),
		gradBiases:  make([]float64, len(biases)),
		gradInBuf:   make([]float64, inSize),
		dzBuf:       make([]float64, outSize),
	}
}

func (c *ConvTranspose2D) wIndex(o, ch, kh, kw int) int {
	k := c.kernelSize
	return ((o*c.inChannels+ch)*k+kh)*k + kw
}

// Forward performs a forward pass by scattering each input position through
// the kernel into the larger output plane.
// input: flattened [inChannels, inputHeight, inputWidth]
// Returns: flattened [outChannels, outputHeight, outputWidth]
func (c *ConvTranspose2D) Forward(input []float64) []float64 {
	if len(input) != c.inChannels*c.inputHeight*c.inputWidth {
		panic("ConvTranspose2D: input length does not match configured dimensions")
	}
	copy(c.inputBuf, input)

	inH, inW := c.inputHeight, c.inputWidth
	outH, outW := c.outputHeight, c.outputWidth
	k := c.kernelSize

	for o := 0; o < c.outChannels; o++ {
		outBase := o * outH * outW
		for i := 0; i < outH*outW; i++ {
			c.preActBuf[outBase+i] = c.biases[o]
		}
	}

	for ch := 0; ch < c.inChannels; ch++ {
		inBase := ch * inH * inW
		for ih := 0; ih < inH; ih++ {
			for iw := 0; iw < inW; iw++ {
				v := c.inputBuf[inBase+ih*inW+iw]
				if v == 0 {
					continue
				}
				for o := 0; o < c.outChannels; o++ {
					outBase := o * outH * outW
					for kh := 0; kh < k; kh++ {
						oh := ih*c.stride - c.padding + kh
						if oh < 0 || oh >= outH {
							continue
						}
						for kw := 0; kw < k; kw++ {
							ow := iw*c.stride - c.padding + kw
							if ow < 0 || ow >= outW {
								continue
							}
							c.preActBuf[outBase+oh*outW+ow] += c.weights[c.wIndex(o, ch, kh, kw)] * v
						}
					}
				}
			}
		}
	}

	for i := range c.preActBuf {
		c.outputBuf[i] = c.act.Activate(c.preActBuf[i])
	}
	return c.outputBuf
}

// Backward performs backpropagation, accumulating weight and bias gradients
// and returning the input gradient. The input gradient is the forward
// scatter read in reverse: a plain strided correlation of dz with the kernel.
func (c *ConvTranspose2D) Backward(grad []float64) []float64 {
	if len(grad) != c.outChannels*c.outputHeight*c.outputWidth {
		panic("ConvTranspose2D: gradient length does not match output dimensions")
	}

	inH, inW := c.inputHeight, c.inputWidth
	outH, outW := c.outputHeight, c.outputWidth
	k := c.kernelSize

	for i := range c.dzBuf {
		c.dzBuf[i] = grad[i] * c.act.Derivative(c.preActBuf[i])
	}

	for o := 0; o < c.outChannels; o++ {
		outBase := o * outH * outW
		for i := 0; i < outH*outW; i++ {
			c.gradBiases[o] += c.dzBuf[outBase+i]
		}
	}

	for i := range c.gradInBuf {
		c.gradInBuf[i] = 0
	}

	for ch := 0; ch < c.inChannels; ch++ {
		inBase := ch * inH * inW
		for ih := 0; ih < inH; ih++ {
			for iw := 0; iw < inW; iw++ {
				inIdx := inBase + ih*inW + iw
				v := c.inputBuf[inIdx]
				var gradIn float64
				for o := 0; o < c.outChannels; o++ {
					outBase := o * outH * outW
					for kh := 0; kh < k; kh++ {
						oh := ih*c.stride - c.padding + kh
						if oh < 0 || oh >= outH {
							continue
						}
						for kw := 0; kw < k; kw++ {
							ow := iw*c.stride - c.padding + kw
							if ow < 0 || ow >= outW {
								continue
							}
							dzo := c.dzBuf[outBase+oh*outW+ow]
							wIdx := c.wIndex(o, ch, kh, kw)
							c.gradWeights[wIdx] += dzo * v
							gradIn += dzo * c.weights[wIdx]
						}
					}
				}
				c.gradInBuf[inIdx] = gradIn
			}
		}
	}

	return c.gradInBuf
}

// Params returns all layer parameters flattened (copy).
func (c *ConvTranspose2D) Params() []float64 {
	params := make([]float64, 0, len(c.weights)+len(c.biases))
	params = append(params, c.weights...)
	params = append(params, c.biases...)
	return params
}

// SetParams updates weights and biases from a flattened slice (in-place).
func (c *ConvTranspose2D) SetParams(params []float64) {
	copy(c.weights, params[:len(c.weights)])
	copy(c.biases, params[len(c.weights):])
}

// Gradients returns all layer gradients flattened (copy).
func (c *ConvTranspose2D) Gradients() []float64 {
	grads := make([]float64, 0, len(c.gradWeights)+len(c.gradBiases))
	grads = append(grads, c.gradWeights...)
	grads = append(grads, c.gradBiases...)
	return grads
}

// ZeroGrad clears the accumulated weight and bias gradients.
func (c *ConvTranspose2D) ZeroGrad() {
	for i := range c.gradWeights {
		c.gradWeights[i] = 0
	}
	for i := range c.gradBiases {
		c.gradBiases[i] = 0
	}
}

// Tensors returns direct views of the parameter and gradient buffers.
func (c *ConvTranspose2D) Tensors() (params, grads [][]float64) {
	return [][]float64{c.weights, c.biases},
		[][]float64{c.gradWeights, c.gradBiases}
}

// InSize returns the flattened input size of the layer.
func (c *ConvTranspose2D) InSize() int {
	return c.inChannels * c.inputHeight * c.inputWidth
}

// OutSize returns the flattened output size of the layer.
func (c *ConvTranspose2D) OutSize() int {
	return c.outChannels * c.outputHeight * c.outputWidth
}

// OutputDims returns the output spatial dimensions.
func (c *ConvTranspose2D) OutputDims() (height, width int) {
	return c.outputHeight, c.outputWidth
}
