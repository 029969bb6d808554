package vae

import (
	"encoding/gob"
	"fmt"
	"io"
	"math/rand"
	"os"
)

// Variant names persisted in the model header.
const (
	VariantMLP = "mlp"
	VariantCNN = "cnn"
)

// NewPair constructs a matching encoder/decoder pair for the named variant.
func NewPair(variant string, latentDim int, rng *rand.Rand) (Encoder, Decoder, error) {
	switch variant {
	case VariantMLP:
		return NewMLPEncoder(latentDim, rng), NewMLPDecoder(latentDim, rng), nil
	case VariantCNN:
		return NewCNNEncoder(latentDim, rng), NewCNNDecoder(latentDim, rng), nil
	default:
		return nil, nil, fmt.Errorf("unknown model variant: %q", variant)
	}
}

// Variant returns the persisted name of the composed pair.
func (v *VAE) Variant() string {
	switch v.encoder.(type) {
	case *CNNEncoder:
		return VariantCNN
	default:
		return VariantMLP
	}
}

// Save saves the model to a file using gob encoding.
// The optimizer state is not saved.
func (v *VAE) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return v.Encode(file)
}

// Encode writes the model to an io.Writer using gob encoding:
// variant name, latent dimension, then all parameters flattened.
func (v *VAE) Encode(w io.Writer) error {
	encoder := gob.NewEncoder(w)

	if err := encoder.Encode(v.Variant()); err != nil {
		return fmt.Errorf("failed to encode variant: %w", err)
	}
	if err := encoder.Encode(int32(v.LatentDim())); err != nil {
		return fmt.Errorf("failed to encode latent dimension: %w", err)
	}
	if err := encoder.Encode(v.Params()); err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}
	return nil
}

// Load loads a model from a file. The noise source is injected by the
// caller, as it is runtime state rather than part of the model.
func Load(filename string, noise NoiseSource) (*VAE, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Decode(file, noise)
}

// Decode reads a model written by Encode.
func Decode(r io.Reader, noise NoiseSource) (*VAE, error) {
	decoder := gob.NewDecoder(r)

	var variant string
	if err := decoder.Decode(&variant); err != nil {
		return nil, fmt.Errorf("failed to decode variant: %w", err)
	}
	var latentDim int32
	if err := decoder.Decode(&latentDim); err != nil {
		return nil, fmt.Errorf("failed to decode latent dimension: %w", err)
	}
	var params []float64
	if err := decoder.Decode(&params); err != nil {
		return nil, fmt.Errorf("failed to decode params: %w", err)
	}

	// Layer shapes come from the variant; the init RNG seed is irrelevant
	// because every parameter is overwritten below.
	enc, dec, err := NewPair(variant, int(latentDim), rand.New(rand.NewSource(0)))
	if err != nil {
		return nil, err
	}
	model := New(enc, dec, noise)
	if got := len(model.Params()); got != len(params) {
		return nil, fmt.Errorf("parameter count mismatch: file has %d, model wants %d", len(params), got)
	}
	model.SetParams(params)
	return model, nil
}
