// Package layer provides neural network layer implementations.
package layer

import (
	"math"
	"math/rand"

	"github.com/nampluskr/govae/internal/activations"
)

// Layer is a neural network layer.
//
// Backward accumulates parameter gradients, so a caller can run several
// forward/backward pairs per optimization step and apply the summed
// gradients at once. ZeroGrad clears the accumulators between steps.
type Layer interface {
	Forward(x []float64) []float64
	Backward(grad []float64) []float64
	Params() []float64
	SetParams([]float64)
	Gradients() []float64
	ZeroGrad()

	// Tensors returns direct views of the parameter and gradient buffers,
	// paired by index. Optimizers with per-tensor state key on these slices,
	// so the backing arrays must stay stable for the lifetime of the layer.
	Tensors() (params, grads [][]float64)
}

// Dense is a fully connected layer optimized for performance.
// Uses contiguous memory layout with pre-allocated buffers for minimal allocations.
// Uses simple nested loops instead of external matrix libraries for better cache locality.
type Dense struct {
	// Weights stored as row-major contiguous slice for cache efficiency
	// Shape: [out * in] where weight for output i, input j is at weights[i*in + j]
	weights []float64
	biases  []float64
	act     activations.Activation
	outSize int
	inSize  int

	// Reusable buffers for gradient computation
	inputBuf  []float64
	outputBuf []float64
	preActBuf []float64
	gradWBuf  []float64
	gradBBuf  []float64
	gradInBuf []float64
	dzBuf     []float64
}

// NewDense creates a new dense layer with pre-allocated buffers.
// Weights are initialized from the supplied source so construction is
// reproducible without touching global random state.
func NewDense(in, out int, act activations.Activation, rng *rand.Rand) *Dense {
	weights := make([]float64, out*in)
	biases := make([]float64, out)

	// Xavier/Glorot initialization
	scale := math.Sqrt(2.0 / (float64(in) + float64(out)))
	for i := range weights {
		weights[i] = rng.Float64()*2*scale - scale
	}
	for i := range biases {
		biases[i] = rng.Float64()*0.2 - 0.1
	}

	return &Dense{
		weights:   weights,
		biases:    biases,
		act:       act,
		outSize:   out,
		inSize:    in,
		inputBuf:  make([]float64, in),
		outputBuf: make([]float64, out),
		preActBuf: make([]float64, out),
		gradWBuf:  make([]float64, out*in),
		gradBBuf:  make([]float64, out),
		gradInBuf: make([]float64, in),
		dzBuf:     make([]float64, out),
	}
}

// Forward performs a forward pass through the dense layer.
// Uses simple nested loops for optimal cache locality and zero allocations.
// The returned slice is an internal buffer, valid until the next Forward.
func (d *Dense) Forward(x []float64) []float64 {
	if len(x) != d.inSize {
		panic("Dense: input length does not match layer input size")
	}

	// Copy input to reusable buffer (no allocation)
	copy(d.inputBuf, x)

	// Compute Wx + b with pre-allocated buffers
	// W is [outSize, inSize], x is [inSize], result is [outSize]
	outSize := d.outSize
	inSize := d.inSize
	weights := d.weights
	biases := d.biases
	input := d.inputBuf
	preAct := d.preActBuf
	output := d.outputBuf

	// For each output neuron
	for o := 0; o < outSize; o++ {
		// Compute dot product: sum(W[o, :] * x)
		sum := biases[o]
		wBase := o * inSize
		for i := 0; i < inSize; i++ {
			sum += weights[wBase+i] * input[i]
		}
		preAct[o] = sum
		output[o] = d.act.Activate(sum)
	}

	return output[:outSize]
}

// Backward performs backpropagation through the dense layer, using the input
// saved by the most recent Forward. Weight and bias gradients accumulate
// into the layer's gradient buffers.
func (d *Dense) Backward(grad []float64) []float64 {
	if len(grad) != d.outSize {
		panic("Dense: gradient length does not match layer output size")
	}

	outSize := d.outSize
	inSize := d.inSize
	weights := d.weights
	input := d.inputBuf
	dz := d.dzBuf
	gradW := d.gradWBuf
	gradB := d.gradBBuf
	gradIn := d.gradInBuf

	// Step 1: Compute dz = dL/dz = dL/d(output) * activation'(z)
	for o := 0; o < outSize; o++ {
		deriv := d.act.Derivative(d.preActBuf[o])
		dz[o] = grad[o] * deriv
		gradB[o] += dz[o]
	}

	// Step 2: Accumulate weight gradients: dL/dW[o, i] += dz[o] * input[i]
	for o := 0; o < outSize; o++ {
		dzo := dz[o]
		wBase := o * inSize
		for i := 0; i < inSize; i++ {
			gradW[wBase+i] += dzo * input[i]
		}
	}

	// Step 3: Compute input gradients: dL/dx[i] = sum_o(dz[o] * W[o, i])
	for i := 0; i < inSize; i++ {
		sum := 0.0
		for o := 0; o < outSize; o++ {
			sum += dz[o] * weights[o*inSize+i]
		}
		gradIn[i] = sum
	}

	return gradIn[:inSize]
}

// Params returns all dense layer parameters flattened (copy).
func (d *Dense) Params() []float64 {
	total := len(d.weights) + len(d.biases)
	params := make([]float64, 0, total)
	params = append(params, d.weights...)
	params = append(params, d.biases...)
	return params
}

// SetParams updates weights and biases from a flattened slice (in-place).
func (d *Dense) SetParams(params []float64) {
	copy(d.weights, params[:len(d.weights)])
	copy(d.biases, params[len(d.weights):])
}

// Gradients returns all dense layer gradients flattened (copy).
func (d *Dense) Gradients() []float64 {
	total := len(d.gradWBuf) + len(d.gradBBuf)
	gradients := make([]float64, 0, total)
	gradients = append(gradients, d.gradWBuf...)
	gradients = append(gradients, d.gradBBuf...)
	return gradients
}

// ZeroGrad clears the accumulated weight and bias gradients.
func (d *Dense) ZeroGrad() {
	for i := range d.gradWBuf {
		d.gradWBuf[i] = 0
	}
	for i := range d.gradBBuf {
		d.gradBBuf[i] = 0
	}
}

// Tensors returns direct views of the weight/bias parameters and their
// gradient accumulators.
func (d *Dense) Tensors() (params, grads [][]float64) {
	return [][]float64{d.weights, d.biases},
		[][]float64{d.gradWBuf, d.gradBBuf}
}

// GetWeights returns the weights slice directly.
func (d *Dense) GetWeights() []float64 {
	return d.weights
}

// GetBiases returns the biases slice directly.
func (d *Dense) GetBiases() []float64 {
	return d.biases
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int {
	return d.inSize
}

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int {
	return d.outSize
}

// Activation returns the activation function used by this layer.
func (d *Dense) Activation() activations.Activation {
	return d.act
}
