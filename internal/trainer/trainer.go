// Package trainer drives VAE optimization: the per-batch train/test step
// protocol, the epoch loop, and training callbacks.
package trainer

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/nampluskr/govae/internal/loss"
	"github.com/nampluskr/govae/internal/opt"
	"github.com/nampluskr/govae/internal/vae"
)

// DataLoader supplies batches as (input, label) pairs via a pull-based
// iterator. Labels are carried for interface compatibility with supervised
// loaders; the VAE ignores them.
type DataLoader interface {
	// Next returns the next batch, or ok=false when the pass is exhausted.
	Next() (x [][]float64, y []int, ok bool)

	// Reset rewinds the loader for another pass.
	Reset()
}

// Metric computes a per-sample diagnostic from a reconstruction and its
// input. Metrics are evaluated on the same forward pass as the loss, never
// recomputed with fresh noise.
type Metric func(xPred, x []float64) float64

// Trainer runs the VAE train/evaluate step protocol against an optimizer.
type Trainer struct {
	model     *vae.VAE
	optimizer opt.Optimizer
	metrics   map[string]Metric
	callbacks []Callback
	verbose   bool
	stop      bool

	gradXBuf      []float64
	gradMeanBuf   []float64
	gradLogVarBuf []float64
}

// History holds one value per epoch for every logged quantity
// ("loss", "acc", "val_loss", ...).
type History map[string][]float64

// New creates a Trainer for the given model and optimizer, with binary
// accuracy as the default metric.
func New(model *vae.VAE, optimizer opt.Optimizer) *Trainer {
	n := model.LatentDim()
	return &Trainer{
		model:     model,
		optimizer: optimizer,
		metrics: map[string]Metric{
			"acc": loss.BinaryAccuracy,
		},
		verbose:       true,
		gradXBuf:      make([]float64, model.InputSize()),
		gradMeanBuf:   make([]float64, n),
		gradLogVarBuf: make([]float64, n),
	}
}

// AddMetric registers an extra diagnostic under the given name.
func (t *Trainer) AddMetric(name string, m Metric) {
	t.metrics[name] = m
}

// AddCallback registers a training callback.
func (t *Trainer) AddCallback(cb Callback) {
	t.callbacks = append(t.callbacks, cb)
}

// SetVerbose toggles per-epoch progress output.
func (t *Trainer) SetVerbose(verbose bool) {
	t.verbose = verbose
}

// Model returns the trained model.
func (t *Trainer) Model() *vae.VAE { return t.model }

// Stop requests that Fit ends after the current epoch. Used by callbacks.
func (t *Trainer) Stop() { t.stop = true }

// TrainStep runs one optimization step on a batch: zero gradients, forward
// every sample, accumulate the summed loss and its gradients, then one
// optimizer update. Loss is summed over the batch and all pixels (never
// averaged); metrics are averaged per sample. The label slice is ignored;
// the training signal is reconstruction only.
func (t *Trainer) TrainStep(x [][]float64, y []int) map[string]float64 {
	_ = y
	t.model.ZeroGrad()
	res := t.runBatch(x, true)
	t.applyUpdate()
	return res
}

// TestStep evaluates a batch with no gradient accumulation and no parameter
// update, but otherwise identically to TrainStep (including fresh
// reparameterization noise per sample).
func (t *Trainer) TestStep(x [][]float64, y []int) map[string]float64 {
	_ = y
	return t.runBatch(x, false)
}

func (t *Trainer) runBatch(x [][]float64, train bool) map[string]float64 {
	var total float64
	sums := make(map[string]float64, len(t.metrics))

	for i := range x {
		xPred, mean, logVar := t.model.Forward(x[i])
		total += loss.VAELoss(xPred, x[i], mean, logVar)
		for name, fn := range t.metrics {
			sums[name] += fn(xPred, x[i])
		}
		if train {
			loss.BCESumBackward(xPred, x[i], t.gradXBuf)
			loss.KLDivBackward(mean, logVar, t.gradMeanBuf, t.gradLogVarBuf)
			t.model.Backward(t.gradXBuf, t.gradMeanBuf, t.gradLogVarBuf)
		}
	}

	res := make(map[string]float64, len(sums)+1)
	res["loss"] = total
	if n := float64(len(x)); n > 0 {
		for name, sum := range sums {
			res[name] = sum / n
		}
	}
	return res
}

// applyUpdate walks every layer's parameter tensors and applies one
// optimizer update with the accumulated (summed) gradients.
func (t *Trainer) applyUpdate() {
	for _, l := range t.model.Layers() {
		params, grads := l.Tensors()
		for i := range params {
			t.optimizer.StepInPlace(params[i], grads[i])
		}
	}
}

// Fit trains for the given number of epochs, optionally evaluating a
// validation loader after each one. It returns per-epoch history for every
// metric, with validation entries prefixed "val_".
func (t *Trainer) Fit(train DataLoader, epochs int, valid DataLoader) History {
	hist := make(History)
	t.stop = false

	for _, cb := range t.callbacks {
		cb.OnTrainBegin(t)
	}

	for epoch := 1; epoch <= epochs; epoch++ {
		train.Reset()
		batchVals := make(map[string][]float64)
		for {
			x, y, ok := train.Next()
			if !ok {
				break
			}
			for name, v := range t.TrainStep(x, y) {
				batchVals[name] = append(batchVals[name], v)
			}
		}

		logs := make(map[string]float64, len(batchVals))
		for name, vals := range batchVals {
			logs[name] = stat.Mean(vals, nil)
		}
		if valid != nil {
			for name, v := range t.Evaluate(valid) {
				logs["val_"+name] = v
			}
		}
		for name, v := range logs {
			hist[name] = append(hist[name], v)
		}

		if t.verbose {
			fmt.Printf("epoch %3d/%d: %s\n", epoch, epochs, formatLogs(logs))
		}
		for _, cb := range t.callbacks {
			cb.OnEpochEnd(epoch, logs, t)
		}
		if t.stop {
			break
		}
	}

	for _, cb := range t.callbacks {
		cb.OnTrainEnd(t)
	}
	return hist
}

// Evaluate runs one full no-gradient pass over a loader and returns the
// metrics averaged over its batches.
func (t *Trainer) Evaluate(loader DataLoader) map[string]float64 {
	loader.Reset()
	batchVals := make(map[string][]float64)
	for {
		x, y, ok := loader.Next()
		if !ok {
			break
		}
		for name, v := range t.TestStep(x, y) {
			batchVals[name] = append(batchVals[name], v)
		}
	}

	res := make(map[string]float64, len(batchVals))
	for name, vals := range batchVals {
		res[name] = stat.Mean(vals, nil)
	}
	return res
}

// formatLogs renders a metrics map with deterministic key order,
// loss first.
func formatLogs(logs map[string]float64) string {
	keys := make([]string, 0, len(logs))
	for k := range logs {
		if k != "loss" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := logs["loss"]; ok {
		keys = append([]string{"loss"}, keys...)
	}

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%.4f", k, logs[k])
	}
	return out
}
