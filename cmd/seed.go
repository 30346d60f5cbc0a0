package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/predinator/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the bundled sample characters and questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		ctx := cmd.Context()

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := seed.Sample()
		if err != nil {
			return err
		}
		res, err := seed.Apply(ctx, d, a.catalog, a.store.Matrix(), force)
		if errors.Is(err, seed.ErrAlreadySeeded) {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Seeded %d questions and %d subjects into %s\n", res.Questions, res.Subjects, cfg.Data.Dir)

		snap, _, err := a.svc.Retrain(ctx)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		fmt.Fprintf(out, "Trained model %s\n", snap.Version)
		return nil
	},
}

func init() {
	seedCmd.Flags().Bool("force", false, "Replace an existing catalog and matrix")
}
