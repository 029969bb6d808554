// Package layer provides neural network layer implementations.
package layer

import (
	"math"
	"math/rand"

	"github.com/nampluskr/govae/internal/activations"
)

// Conv2D implements a 2D convolutional layer.
// Uses direct convolution computation for correctness.
//
// Input spatial dimensions are fixed at construction time. Feeding an input
// of any other size is a fatal configuration error, not something the layer
// reshapes around.
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	inputHeight  int
	inputWidth   int
	outputHeight int
	outputWidth  int

	// Weights: [outChannels, inChannels, kernelSize, kernelSize]
	// Stored as contiguous slice for cache efficiency
	weights []float64
	biases  []float64

	act activations.Activation

	// Pre-allocated buffers
	inputBuf    []float64
	preActBuf   []float64 // Contains pre-activation values (z = w*x + b)
	outputBuf   []float64 // Contains post-activation values (activation(z))
	gradWeights []float64
	gradBiases  []float64
	gradInBuf   []float64
	dzBuf       []float64
}

// NewConv2D creates a new 2D convolutional layer for inputs of shape
// [inChannels, inputHeight, inputWidth] flattened row-major.
func NewConv2D(inChannels, outChannels, kernelSize, stride, padding,
	inputHeight, inputWidth int, act activations.Activation, rng *rand.Rand) *Conv2D {

	// Output size: (input + 2*padding - kernel) / stride + 1
	outH := (inputHeight+2*padding-kernelSize)/stride + 1
	outW := (inputWidth+2*padding-kernelSize)/stride + 1
	if outH <= 0 || outW <= 0 {
		panic("Conv2D: kernel/stride/padding produce empty output")
	}

	// He initialization (better for ReLU)
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

	return &Conv2D{
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

// wIndex returns the flat index of weight [o][c][kh][kw].
func (c *Conv2D) wIndex(o, ch, kh, kw int) int {
	k := c.kernelSize
	return ((o*c.inChannels+ch)*k+kh)*k + kw
}

// Forward performs a forward pass through the convolutional layer.
// input: flattened [inChannels, inputHeight, inputWidth]
// Returns: flattened [outChannels, outputHeight, outputWidth]
// The returned slice is an internal buffer, valid until the next Forward.
func (c *Conv2D) Forward(input []float64) []float64 {
	if len(input) != c.inChannels*c.inputHeight*c.inputWidth {
		panic("Conv2D: input length does not match configured dimensions")
	}
	copy(c.inputBuf, input)

	inH, inW := c.inputHeight, c.inputWidth
	outH, outW := c.outputHeight, c.outputWidth
	k := c.kernelSize

	for o := 0; o < c.outChannels; o++ {
		outBase := o * outH * outW
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				sum := c.biases[o]
				for ch := 0; ch < c.inChannels; ch++ {
					inBase := ch * inH * inW
					for kh := 0; kh < k; kh++ {
						ih := oh*c.stride - c.padding + kh
						if ih < 0 || ih >= inH {
							continue
						}
						for kw := 0; kw < k; kw++ {
							iw := ow*c.stride - c.padding + kw
							if iw < 0 || iw >= inW {
								continue
							}
							sum += c.weights[c.wIndex(o, ch, kh, kw)] * c.inputBuf[inBase+ih*inW+iw]
						}
					}
				}
				idx := outBase + oh*outW + ow
				c.preActBuf[idx] = sum
				c.outputBuf[idx] = c.act.Activate(sum)
			}
		}
	}

	return c.outputBuf
}

// Backward performs backpropagation through the convolutional layer,
// accumulating weight and bias gradients and returning the input gradient.
func (c *Conv2D) Backward(grad []float64) []float64 {
	if len(grad) != c.outChannels*c.outputHeight*c.outputWidth {
		panic("Conv2D: gradient length does not match output dimensions")
	}

	inH, inW := c.inputHeight, c.inputWidth
	outH, outW := c.outputHeight, c.outputWidth
	k := c.kernelSize

	// dz = dL/d(output) * activation'(z)
	for i := range c.dzBuf {
		c.dzBuf[i] = grad[i] * c.act.Derivative(c.preActBuf[i])
	}

	for i := range c.gradInBuf {
		c.gradInBuf[i] = 0
	}

	for o := 0; o < c.outChannels; o++ {
		outBase := o * outH * outW
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				dzo := c.dzBuf[outBase+oh*outW+ow]
				if dzo == 0 {
					continue
				}
				c.gradBiases[o] += dzo
				for ch := 0; ch < c.inChannels; ch++ {
					inBase := ch * inH * inW
					for kh := 0; kh < k; kh++ {
						ih := oh*c.stride - c.padding + kh
						if ih < 0 || ih >= inH {
							continue
						}
						for kw := 0; kw < k; kw++ {
							iw := ow*c.stride - c.padding + kw
							if iw < 0 || iw >= inW {
								continue
							}
							inIdx := inBase + ih*inW + iw
							wIdx := c.wIndex(o, ch, kh, kw)
							c.gradWeights[wIdx] += dzo * c.inputBuf[inIdx]
							c.gradInBuf[inIdx] += dzo * c.weights[wIdx]
						}
					}
				}
			}
		}
	}

	return c.gradInBuf
}

// Params returns all layer parameters flattened (copy).
func (c *Conv2D) Params() []float64 {
	params := make([]float64, 0, len(c.weights)+len(c.biases))
	params = append(params, c.weights...)
	params = append(params, c.biases...)
	return params
}

// SetParams updates weights and biases from a flattened slice (in-place).
func (c *Conv2D) SetParams(params []float64) {
	copy(c.weights, params[:len(c.weights)])
	copy(c.biases, params[len(c.weights):])
}

// Gradients returns all layer gradients flattened (copy).
func (c *Conv2D) Gradients() []float64 {
	grads := make([]float64, 0, len(c.gradWeights)+len(c.gradBiases))
	grads = append(grads, c.gradWeights...)
	grads = append(grads, c.gradBiases...)
	return grads
}

// ZeroGrad clears the accumulated weight and bias gradients.
func (c *Conv2D) ZeroGrad() {
	for i := range c.gradWeights {
		c.gradWeights[i] = 0
	}
	for i := range c.gradBiases {
		c.gradBiases[i] = 0
	}
}

// Tensors returns direct views of the parameter and gradient buffers.
func (c *Conv2D) Tensors() (params, grads [][]float64) {
	return [][]float64{c.weights, c.biases},
		[][]float64{c.gradWeights, c.gradBiases}
}

// InSize returns the flattened input size of the layer.
func (c *Conv2D) InSize() int {
	return c.inChannels * c.inputHeight * c.inputWidth
}

// OutSize returns the flattened output size of the layer.
func (c *Conv2D) OutSize() int {
	return c.outChannels * c.outputHeight * c.outputWidth
}

// OutputDims returns the output spatial dimensions.
func (c *Conv2D) OutputDims() (height, width int) {
	return c.outputHeight, c.outputWidth
}
