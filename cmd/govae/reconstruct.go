package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nampluskr/govae/imaging"
	"github.com/nampluskr/govae/internal/vae"
)

func newReconstructCmd() *cobra.Command {
	var (
		modelFile string
		outFile   string
	)

	cmd := &cobra.Command{
		Use:   "reconstruct [images...]",
		Short: "Run images through a trained VAE and save an input/output grid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Zero noise makes the reconstruction the decoded mean, so the
			// output is deterministic for a given model and input.
			model, err := vae.Load(modelFile, vae.ZeroNoise{})
			if err != nil {
				return err
			}

			tiles := make([]imaging.Image, 0, 2*len(args))
			for _, path := range args {
				im, err := imaging.Load(path)
				if err != nil {
					return err
				}
				im = im.Resize(vae.InputHeight, vae.InputWidth)

				xPred, _, _ := model.Forward(im.Data)
				recon := imaging.New(append([]float64(nil), xPred...),
					vae.InputHeight, vae.InputWidth)

				tiles = append(tiles, im, recon)
			}

			grid := imaging.Grid(tiles, 2)
			if err := grid.SavePNG(outFile); err != nil {
				return err
			}
			fmt.Printf("wrote %d reconstructions to %s\n", len(args), outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelFile, "model-file", "vae.gob", "trained model file")
	cmd.Flags().StringVar(&outFile, "out", "reconstruction.png", "output PNG grid")
	return cmd
}
