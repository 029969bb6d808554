package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/nampluskr/govae/imaging"
	"github.com/nampluskr/govae/internal/vae"
)

func newSampleCmd() *cobra.Command {
	var (
		modelFile string
		outFile   string
		count     int
		cols      int
		seed      int64
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Decode random latent vectors from a trained VAE into a PNG grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := vae.Load(modelFile, vae.ZeroNoise{})
			if err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(seed))
			z := make([]float64, model.LatentDim())

			tiles := make([]imaging.Image, 0, count)
			for i := 0; i < count; i++ {
				for j := range z {
					z[j] = rng.NormFloat64()
				}
				xPred := model.Decode(z)
				tiles = append(tiles, imaging.New(append([]float64(nil), xPred...),
					vae.InputHeight, vae.InputWidth))
			}

			grid := imaging.Grid(tiles, cols)
			if err := grid.SavePNG(outFile); err != nil {
				return err
			}
			fmt.Printf("wrote %d samples to %s\n", count, outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelFile, "model-file", "vae.gob", "trained model file")
	cmd.Flags().StringVar(&outFile, "out", "samples.png", "output PNG grid")
	cmd.Flags().IntVar(&count, "count", 16, "number of samples")
	cmd.Flags().IntVar(&cols, "cols", 4, "grid columns")
	cmd.Flags().Int64Var(&seed, "seed", 0, "latent sampling seed")
	return cmd
}
