package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/StardustXR/protostar/apps"
	"github.com/StardustXR/protostar/commands"
	"github.com/StardustXR/protostar/config"
	"github.com/StardustXR/protostar/daemon"
	"github.com/StardustXR/protostar/engine"
	"github.com/StardustXR/protostar/engine/input"
	"github.com/StardustXR/protostar/icons"
	"github.com/StardustXR/protostar/protocol"
	"github.com/StardustXR/protostar/server"
	"github.com/StardustXR/protostar/utils"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the launcher",
	Long:  `Loads the application catalog, connects to the compositor and serves the control plane until stopped.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runDaemon && !daemon.IsChild() {
			_, err := daemon.Daemonize()
			if err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			fmt.Printf("Launcher daemon spawned\n")
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if compositorURL != "" {
			cfg.Compositor.URL = compositorURL
		}
		if listenAddr != "" {
			cfg.Control.Listen = listenAddr
		}
		if enableCORS {
			cfg.Control.EnableCORS = true
		}

		return runLauncher(cmd.Context(), cfg)
	},
}

func runLauncher(parent context.Context, cfg *config.Config) error {
	loader := apps.NewLoader(cfg.Apps.ExtraDirs, cfg.Apps.Limit)
	if err := loader.Refresh(); err != nil {
		return fmt.Errorf("failed to load application catalog: %w", err)
	}
	commands.SetLoader(loader)

	resolver, err := icons.NewResolver("")
	if err != nil {
		return err
	}

	aggregator := input.NewAggregator()
	client := protocol.NewClient(cfg.Compositor.URL, cfg.Compositor.ReconnectBackoff.Std(), aggregator)

	eng := engine.New(cfg, client, nil)
	eng.Seed(loader.Apps(), func(app apps.App) string {
		icon, ok := resolver.Resolve(app.Icon, cfg.Apps.IconSize, true)
		if !ok {
			return ""
		}
		return icon.Path
	})
	commands.SetEngine(eng)

	srv, err := server.New(cfg.Control.Listen, cfg.Control.EnableCORS)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	errCh := make(chan error, 3)
	go func() { errCh <- eng.Run(ctx) }()
	go func() { errCh <- client.Run(ctx, eng) }()
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	case <-srv.ShutdownRequested():
		utils.Info("Shutdown requested over control plane")
		cancel()
	case <-ctx.Done():
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&compositorURL, "compositor", "", "compositor websocket URL (e.g. 'ws://localhost:20000/scene')")
	runCmd.Flags().StringVar(&listenAddr, "listen", "", "control plane address to listen on (e.g. 'localhost:21000')")
	runCmd.Flags().BoolVar(&enableCORS, "cors", false, "enable CORS support on the control plane")
	runCmd.Flags().BoolVarP(&runDaemon, "daemon", "d", false, "run in daemon mode (background)")
}
