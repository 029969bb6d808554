// Package opt provides optimization algorithms.
package opt

import "math"

// Optimizer updates a parameter tensor in-place from its gradient tensor.
//
// Stateful optimizers key their per-tensor state on the identity of the
// params slice, so callers must pass the same backing arrays on every step
// (layers expose stable buffers through their Tensors method).
type Optimizer interface {
	// StepInPlace updates params in-place from gradients.
	StepInPlace(params, gradients []float64)
}

// LRAdjuster is implemented by optimizers whose learning rate a scheduler
// can read and change between epochs.
type LRAdjuster interface {
	LearningRate() float64
	SetLearningRate(lr float64)
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	Rate float64
}

// NewSGD creates an SGD optimizer with the given learning rate.
func NewSGD(learningRate float64) *SGD {
	return &SGD{Rate: learningRate}
}

// Step computes updated parameters: params - lr * gradients.
// Returns a new slice with updated values.
func (s *SGD) Step(params, gradients []float64) []float64 {
	result := make([]float64, len(params))
	for i := range params {
		result[i] = params[i] - s.Rate*gradients[i]
	}
	return result
}

// StepInPlace updates params in-place: params = params - lr * gradients.
// This avoids allocations for better performance.
func (s *SGD) StepInPlace(params, gradients []float64) {
	for i := range params {
		params[i] -= s.Rate * gradients[i]
	}
}

// LearningRate returns the current learning rate.
func (s *SGD) LearningRate() float64 { return s.Rate }

// SetLearningRate sets the learning rate.
func (s *SGD) SetLearningRate(lr float64) { s.Rate = lr }

// Adam optimizer with bias-corrected first and second moment estimates.
type Adam struct {
	Rate    float64
	Beta1   float64 // Exponential decay rate for first moment
	Beta2   float64 // Exponential decay rate for second moment
	Epsilon float64 // Small constant for numerical stability

	state map[*float64]*adamState
}

// adamState is the per-tensor moment state.
type adamState struct {
	m []float64 // first moment
	v []float64 // second moment
	t int       // step count for bias correction
}

// NewAdam creates a new Adam optimizer with default decay rates.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		Rate:    learningRate,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		state:   make(map[*float64]*adamState),
	}
}

// StepInPlace updates params in-place using Adam. Moment state is created
// lazily per tensor on first use.
func (a *Adam) StepInPlace(params, gradients []float64) {
	if len(params) == 0 {
		return
	}
	if len(params) != len(gradients) {
		panic("Adam: params and gradients must have same length")
	}
	if a.state == nil {
		a.state = make(map[*float64]*adamState)
	}

	key := &params[0]
	st, ok := a.state[key]
	if !ok {
		st = &adamState{
			m: make([]float64, len(params)),
			v: make([]float64, len(params)),
		}
		a.state[key] = st
	}

	st.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(st.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(st.t))

	for i := range params {
		g := gradients[i]
		st.m[i] = a.Beta1*st.m[i] + (1-a.Beta1)*g
		st.v[i] = a.Beta2*st.v[i] + (1-a.Beta2)*g*g

		mHat := st.m[i] / bc1
		vHat := st.v[i] / bc2
		params[i] -= a.Rate * mHat / (math.Sqrt(vHat) + a.Epsilon)
	}
}

// LearningRate returns the current learning rate.
func (a *Adam) LearningRate() float64 { return a.Rate }

// SetLearningRate sets the learning rate.
func (a *Adam) SetLearningRate(lr float64) { a.Rate = lr }
