package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Retrain the model from the current knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		snap, stats, err := a.svc.Retrain(cmd.Context())
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Trained model %s: %d subjects, %d questions, %d nodes, depth %d (%s)\n",
			snap.Version, stats.Classes, stats.Features, stats.Nodes, stats.Depth, stats.Duration.Round(time.Millisecond))
		return nil
	},
}
