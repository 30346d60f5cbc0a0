package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/predinator/internal/config"
	"github.com/abhisek/predinator/internal/logging"
)

// cfg is loaded once per invocation by the root PersistentPreRunE.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "predinator",
	Short: "Guess the character you are thinking of",
	Long: "Predinator asks yes/no questions to guess a famous character, and learns " +
		"new characters and questions when it guesses wrong.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := logging.Init(c.Log.Level, c.Log.Format); err != nil {
			return err
		}
		cfg = c
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd, false)
	},
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default ./predinator.yaml or $XDG_CONFIG_HOME/predinator/predinator.yaml)")
	flags.String("db", "", "Path to SQLite database file (overrides PREDINATOR_DB env var)")
	flags.String("data-dir", "", "Data directory (overrides PREDINATOR_DATA_DIR env var)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: console or json")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(subjectsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves configuration with flags taking precedence over the
// environment, the config file and defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	if cmd.Name() == "serve" {
		v.SetDefault("log.level", "info")
	}

	flags := cmd.Flags()
	for key, flag := range map[string]string{
		"data.db_path": "db",
		"data.dir":     "data-dir",
		"log.level":    "log-level",
		"log.format":   "log-format",
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}

	path, _ := flags.GetString("config")
	if err := config.ReadFile(v, path); err != nil {
		return nil, err
	}
	return config.FromViper(v)
}
