package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/predinator/internal/logging"
	"github.com/abhisek/predinator/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the game over a JSON HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		addr, _ := cmd.Flags().GetString("addr")
		watch, _ := cmd.Flags().GetBool("watch")
		if addr == "" {
			addr = cfg.Server.Addr
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.initModel(ctx)

		if watch {
			reloads, err := a.svc.Watch(ctx)
			if err != nil {
				return err
			}
			log := logging.New("watch")
			go func() {
				for r := range reloads {
					if r.Err != nil {
						log.Warn().Err(r.Err).Msg("model reload failed")
						continue
					}
					log.Info().Str("version", r.Version).Msg("model reloaded")
				}
			}()
		}

		srv := server.New(a.svc, a.store.Sessions(), server.Options{
			Addr:       addr,
			SessionTTL: cfg.Server.SessionTTL,
			Logger:     logging.New("server"),
		})
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config server.addr)")
	serveCmd.Flags().Bool("watch", false, "Reload the model when artifacts change on disk")
}
