package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/predinator/internal/logging"
	"github.com/abhisek/predinator/internal/tui"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a guessing game",
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		return runPlay(cmd, plain)
	},
}

func init() {
	playCmd.Flags().Bool("plain", false, "Use a line-based prompt instead of the full-screen UI")
}

func runPlay(cmd *cobra.Command, plain bool) error {
	ctx := cmd.Context()
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	a.initModel(ctx)
	if plain {
		return tui.RunPlain(ctx, a.svc, cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return tui.Run(ctx, a.svc, logging.New("tui"))
}
