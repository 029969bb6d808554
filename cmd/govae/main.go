// Command govae trains a variational autoencoder on an MNIST-style dataset
// and renders reconstructions and samples from a trained model.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "govae",
		Short:         "Train and run a variational autoencoder on MNIST-style images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTrainCmd(), newReconstructCmd(), newSampleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
