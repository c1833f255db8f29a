package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kochabx/studycore/config"
	"github.com/kochabx/studycore/errors"
	"github.com/kochabx/studycore/log"
	"github.com/kochabx/studycore/service"
)

var (
	configFile string
	settings   *config.Settings
	loader     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "studycore",
	Short: "Offline-first persistence and sync core for the study app",
	Long: `studycore keeps the study app's local state in a key-value store, serves
its assets cache-first while offline and pushes snapshots of the local state
to the remote API in the background.

Configuration is read from studycore.yaml in . or /etc/studycore, or from the
file given with --config. Every key can be overridden from the environment,
e.g. STUDYCORE_SERVER_ADDR=:9090.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file")
	rootCmd.AddGroup(
		&cobra.Group{ID: "run", Title: "Running:"},
		&cobra.Group{ID: "maint", Title: "Maintenance:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadSettings(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}

	s, c, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := log.FromConfig(s.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log.SetGlobalLogger(logger)

	settings, loader = s, c
	return nil
}

// openService builds the service for one-shot maintenance commands.
func openService(ctx context.Context) (*service.PersistenceService, error) {
	return service.New(ctx, settings, service.WithLogger(log.G))
}

// openStore opens the store; a partial legacy migration is not an error here.
func openStore(ctx context.Context, svc *service.PersistenceService) error {
	if res := svc.Init(ctx); res.Reason == errors.ReasonStoreUnavailable {
		return res.Err()
	}
	return nil
}
