// Package loss provides the loss terms and metrics for VAE training.
//
// Both the reconstruction term and the KL term are sum-reduced over every
// element rather than averaged. The two terms must share one reduction so
// their relative scale stays fixed, and downstream hyperparameters are tuned
// against the summed magnitude; do not switch these to means.
package loss

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// eps keeps predictions away from 0 and 1 where log() blows up.
const eps = 1e-10

// BCESum computes binary cross entropy summed over all elements:
// -sum(y*log(p) + (1-y)*log(1-p)). Predictions are clipped to (0, 1).
func BCESum(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("BCESum: prediction and target must have same length")
	}

	var sum float64
	for i := 0; i < n; i++ {
		pred := clip(yPred[i])
		sum += yTrue[i]*math.Log(pred) + (1.0-yTrue[i])*math.Log(1.0-pred)
	}
	return -sum
}

// BCESumBackward computes the gradient of BCESum w.r.t. the prediction and
// stores it in the grad slice: dL/dp = (p - y) / (p * (1-p)).
// No batch normalization factor is applied, matching the summed reduction.
func BCESumBackward(yPred, yTrue, grad []float64) {
	n := len(yPred)
	if n != len(yTrue) || n != len(grad) {
		panic("BCESumBackward: slices must have same length")
	}

	for i := 0; i < n; i++ {
		pred := clip(yPred[i])
		grad[i] = (pred - yTrue[i]) / (pred * (1.0 - pred))
	}
}

// KLDiv computes the KL divergence between the diagonal Gaussian given by
// (mean, logVar) and the standard normal, summed over latent dimensions:
// -0.5 * sum(1 + logVar - mean^2 - exp(logVar)).
// It is exactly 0 when mean and logVar are all zero.
func KLDiv(mean, logVar []float64) float64 {
	n := len(mean)
	if n != len(logVar) {
		panic("KLDiv: mean and logVar must have same length")
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += 1 + logVar[i] - mean[i]*mean[i] - math.Exp(logVar[i])
	}
	return -0.5 * sum
}

// KLDivBackward computes the gradients of KLDiv w.r.t. mean and logVar and
// stores them in the grad slices:
// dKL/dmean = mean, dKL/dlogVar = -0.5 * (1 - exp(logVar)).
func KLDivBackward(mean, logVar, gradMean, gradLogVar []float64) {
	n := len(mean)
	if n != len(logVar) || n != len(gradMean) || n != len(gradLogVar) {
		panic("KLDivBackward: slices must have same length")
	}

	for i := 0; i < n; i++ {
		gradMean[i] = mean[i]
		gradLogVar[i] = -0.5 * (1 - math.Exp(logVar[i]))
	}
}

// VAELoss is the total per-sample VAE objective: BCESum + KLDiv.
func VAELoss(xPred, x, mean, logVar []float64) float64 {
	return BCESum(xPred, x) + KLDiv(mean, logVar)
}

// BinaryAccuracy rounds prediction and target to {0, 1} and returns the
// fraction of matching elements. A coarse diagnostic, not a training signal.
func BinaryAccuracy(xPred, xTrue []float64) float64 {
	n := len(xPred)
	if n != len(xTrue) {
		panic("BinaryAccuracy: prediction and target must have same length")
	}
	if n == 0 {
		return 0
	}

	matches := 0
	for i := 0; i < n; i++ {
		if math.Round(xPred[i]) == math.Round(xTrue[i]) {
			matches++
		}
	}
	return float64(matches) / float64(n)
}

// MeanPixel returns the mean reconstruction value, a cheap sanity metric for
// spotting collapsed decoders (all-zero or all-one outputs).
func MeanPixel(xPred, _ []float64) float64 {
	if len(xPred) == 0 {
		return 0
	}
	return floats.Sum(xPred) / float64(len(xPred))
}

func clip(p float64) float64 {
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}
