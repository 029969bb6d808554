package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/nampluskr/govae/internal/loss"
	"github.com/nampluskr/govae/internal/mnist"
	"github.com/nampluskr/govae/internal/opt"
	"github.com/nampluskr/govae/internal/trainer"
	"github.com/nampluskr/govae/internal/vae"
)

func newTrainCmd() *cobra.Command {
	var (
		dataDir   string
		variant   string
		latentDim int
		epochs    int
		batchSize int
		lr        float64
		seed      int64
		outFile   string
		histFile  string
		lrStep    int
		lrGamma   float64
		patience  int
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a VAE and save the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			var train, test *mnist.Dataset
			var err error
			if dataDir != "" {
				train, test, err = mnist.Load(dataDir)
				if err != nil {
					return err
				}
			} else {
				fmt.Println("no --data directory given, using synthetic blobs")
				rng := rand.New(rand.NewSource(seed))
				train = mnist.Synthetic(2000, vae.InputHeight, vae.InputWidth, rng)
				test = mnist.Synthetic(400, vae.InputHeight, vae.InputWidth, rng)
			}

			initRNG := rand.New(rand.NewSource(seed))
			encoder, decoder, err := vae.NewPair(variant, latentDim, initRNG)
			if err != nil {
				return err
			}
			model := vae.New(encoder, decoder, vae.NewGaussianNoise(seed))

			fmt.Printf("model=%s latent_dim=%d params=%d train=%d test=%d\n",
				variant, latentDim, len(model.Params()), train.Len(), test.Len())

			optimizer := opt.NewAdam(lr)
			t := trainer.New(model, optimizer)
			// Flags a collapsed decoder (all-zero or all-one outputs) early.
			t.AddMetric("mean_pixel", loss.MeanPixel)
			if histFile != "" {
				t.AddCallback(trainer.NewCSVLogger(histFile, false))
			}
			if lrStep > 0 {
				t.AddCallback(trainer.NewSchedulerCallback(
					opt.NewStepLR(optimizer, lrStep, lrGamma), "loss"))
			}
			if patience > 0 {
				t.AddCallback(trainer.NewEarlyStopping("val_loss", patience, 0))
			}

			shuffleRNG := rand.New(rand.NewSource(seed + 1))
			trainLoader := mnist.NewLoader(train, batchSize, true, shuffleRNG)
			testLoader := mnist.NewLoader(test, batchSize, false, nil)

			t.Fit(trainLoader, epochs, testLoader)

			res := t.Evaluate(testLoader)
			fmt.Printf("evaluation: loss=%.3f acc=%.3f mean_pixel=%.3f\n",
				res["loss"], res["acc"], res["mean_pixel"])

			if err := model.Save(outFile); err != nil {
				return err
			}
			fmt.Println("model saved to", outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", "", "directory with MNIST idx files (empty: synthetic data)")
	cmd.Flags().StringVar(&variant, "model", vae.VariantMLP, "model variant: mlp or cnn")
	cmd.Flags().IntVar(&latentDim, "latent-dim", 2, "latent dimensionality")
	cmd.Flags().IntVar(&epochs, "epochs", 10, "training epochs")
	cmd.Flags().IntVar(&batchSize, "batch-size", 64, "batch size")
	cmd.Flags().Float64Var(&lr, "lr", 0.001, "Adam learning rate")
	cmd.Flags().Int64Var(&seed, "seed", 42, "seed for init, shuffling and noise")
	cmd.Flags().StringVar(&outFile, "out", "vae.gob", "output model file")
	cmd.Flags().StringVar(&histFile, "history", "", "CSV file for per-epoch metrics")
	cmd.Flags().IntVar(&lrStep, "lr-step", 0, "decay the learning rate every N epochs (0: off)")
	cmd.Flags().Float64Var(&lrGamma, "lr-gamma", 0.5, "learning rate decay factor")
	cmd.Flags().IntVar(&patience, "patience", 0, "early-stopping patience on val_loss (0: off)")
	return cmd
}
