package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kochabx/studycore/app"
	"github.com/kochabx/studycore/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local server, the offline cache and background sync",
	Long: `Open the store, migrate legacy data once, install the configured cache
generation, start background sync and serve:

  /healthz     store health
  /metrics     prometheus metrics
  /sw/message  offline cache control messages (POST, JSON)
  /sw/ws       control channel websocket
  everything else is answered by the offline cache

With --watch the configuration file is reloaded on change; only the log level
takes effect without a restart.`,
	GroupID: "run",
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().Bool("watch", false, "Reload the configuration file when it changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, err := openService(ctx)
	if err != nil {
		return err
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		loader.OnChange(func() {
			if level, err := zerolog.ParseLevel(settings.Log.Level); err == nil {
				log.SetGlobalLevel(level)
			}
		})
		if err := loader.Watch(); err != nil {
			log.Warn().Err(err).Msg("config watch disabled")
		}
	}

	a := app.New(
		app.WithContext(ctx),
		app.WithLogger(log.G),
		app.WithShutdownTimeout(settings.Server.ShutdownTimeout),
		app.WithServers(svc.Server()),
		app.WithStart("persistence", svc.Start),
		app.WithClose("persistence", func(context.Context) error {
			return svc.Close()
		}, 30*time.Second),
	)
	return a.Start()
}
