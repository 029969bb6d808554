package vae

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/nampluskr/govae/internal/loss"
	"github.com/nampluskr/govae/internal/opt"
)

func newTestModel(t *testing.T, variant string, latentDim int, seed int64, noise NoiseSource) *VAE {
	t.Helper()
	enc, dec, err := NewPair(variant, latentDim, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("NewPair(%q): %v", variant, err)
	}
	return New(enc, dec, noise)
}

func TestNewPanicsOnLatentDimMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	enc := NewMLPEncoder(2, rng)
	dec := NewMLPDecoder(3, rng)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when pairing mismatched latent dimensions")
		}
	}()
	New(enc, dec, ZeroNoise{})
}

func TestForwardShapesAndRange(t *testing.T) {
	for _, variant := range []string{VariantMLP, VariantCNN} {
		t.Run(variant, func(t *testing.T) {
			model := newTestModel(t, variant, 2, 1, NewGaussianNoise(7))

			// A batch of four blank images, processed one sample at a time.
			x := make([]float64, InputSize)
			for b := 0; b < 4; b++ {
				xPred, mean, logVar := model.Forward(x)

				if len(mean) != 2 || len(logVar) != 2 {
					t.Fatalf("distribution parameter lengths = %d/%d, want 2/2",
						len(mean), len(logVar))
				}
				if len(xPred) != InputSize {
					t.Fatalf("reconstruction length = %d, want %d", len(xPred), InputSize)
				}
				for i, v := range xPred {
					if v < 0 || v > 1 {
						t.Fatalf("reconstruction[%d] = %v, outside [0, 1]", i, v)
					}
				}

				l := loss.VAELoss(xPred, x, mean, logVar)
				if math.IsInf(l, 0) || math.IsNaN(l) {
					t.Fatalf("loss = %v, want finite", l)
				}
			}
		})
	}
}

func TestZeroNoiseMakesSampleEqualMean(t *testing.T) {
	model := newTestModel(t, VariantMLP, 2, 2, ZeroNoise{})

	rng := rand.New(rand.NewSource(3))
	x := make([]float64, InputSize)
	for i := range x {
		x[i] = rng.Float64()
	}

	xPred, mean, _ := model.Forward(x)
	got := append([]float64(nil), xPred...)
	meanCopy := append([]float64(nil), mean...)

	// With zero noise the latent sample is exactly the mean, so decoding
	// the mean directly must reproduce the forward reconstruction.
	want := model.Decode(meanCopy)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reconstruction[%d] = %v, want Decode(mean)[%d] = %v",
				i, got[i], i, want[i])
		}
	}
}

func TestNoiseResampledEveryForward(t *testing.T) {
	model := newTestModel(t, VariantMLP, 2, 4, NewGaussianNoise(5))

	rng := rand.New(rand.NewSource(6))
	x := make([]float64, InputSize)
	for i := range x {
		x[i] = rng.Float64()
	}

	first, _, _ := model.Forward(x)
	firstCopy := append([]float64(nil), first...)
	second, _, _ := model.Forward(x)

	same := true
	for i := range second {
		if second[i] != firstCopy[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("two forward passes on the same input produced identical reconstructions; noise was not resampled")
	}
}

func TestDecodePanicsOnWrongLatentLength(t *testing.T) {
	model := newTestModel(t, VariantMLP, 2, 1, ZeroNoise{})

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for wrong latent vector length")
		}
	}()
	model.Decode([]float64{0, 0, 0})
}

func TestBackwardStepReducesLoss(t *testing.T) {
	model := newTestModel(t, VariantMLP, 2, 8, ZeroNoise{})
	sgd := opt.NewSGD(0.001)

	rng := rand.New(rand.NewSource(9))
	x := make([]float64, InputSize)
	for i := range x {
		x[i] = rng.Float64()
	}

	step := func() float64 {
		model.ZeroGrad()
		xPred, mean, logVar := model.Forward(x)
		l := loss.VAELoss(xPred, x, mean, logVar)

		gradX := make([]float64, len(xPred))
		gradMean := make([]float64, len(mean))
		gradLogVar := make([]float64, len(logVar))
		loss.BCESumBackward(xPred, x, gradX)
		loss.KLDivBackward(mean, logVar, gradMean, gradLogVar)
		model.Backward(gradX, gradMean, gradLogVar)

		for _, layer := range model.Layers() {
			params, grads := layer.Tensors()
			for i := range params {
				sgd.StepInPlace(params[i], grads[i])
			}
		}
		return l
	}

	before := step()
	var after float64
	for i := 0; i < 10; i++ {
		after = step()
	}
	if after >= before {
		t.Errorf("loss did not decrease over gradient steps: before=%v after=%v", before, after)
	}
}

func TestVariantName(t *testing.T) {
	mlp := newTestModel(t, VariantMLP, 2, 1, ZeroNoise{})
	if got := mlp.Variant(); got != VariantMLP {
		t.Errorf("Variant() = %q, want %q", got, VariantMLP)
	}
	cnn := newTestModel(t, VariantCNN, 2, 1, ZeroNoise{})
	if got := cnn.Variant(); got != VariantCNN {
		t.Errorf("Variant() = %q, want %q", got, VariantCNN)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	model := newTestModel(t, VariantMLP, 3, 10, ZeroNoise{})

	var buf bytes.Buffer
	if err := model.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	loaded, err := Decode(&buf, ZeroNoise{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if loaded.LatentDim() != 3 {
		t.Fatalf("loaded LatentDim = %d, want 3", loaded.LatentDim())
	}
	if loaded.Variant() != VariantMLP {
		t.Fatalf("loaded Variant = %q, want %q", loaded.Variant(), VariantMLP)
	}

	rng := rand.New(rand.NewSource(11))
	x := make([]float64, InputSize)
	for i := range x {
		x[i] = rng.Float64()
	}

	want, _, _ := model.Forward(x)
	wantCopy := append([]float64(nil), want...)
	got, _, _ := loaded.Forward(x)

	for i := range wantCopy {
		if got[i] != wantCopy[i] {
			t.Fatalf("loaded model output[%d] = %v, want %v", i, got[i], wantCopy[i])
		}
	}
}

func TestSaveLoadFile(t *testing.T) {
	model := newTestModel(t, VariantMLP, 2, 12, ZeroNoise{})

	path := t.TempDir() + "/model.gob"
	if err := model.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, ZeroNoise{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := model.Params()
	got := loaded.Params()
	if len(got) != len(want) {
		t.Fatalf("loaded parameter count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("loaded param[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
