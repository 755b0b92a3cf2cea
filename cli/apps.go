package cli

import (
	"fmt"

	"github.com/StardustXR/protostar/apps"
	"github.com/StardustXR/protostar/commands"
	"github.com/StardustXR/protostar/config"
	"github.com/spf13/cobra"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List installed applications",
	Long:  `Scans the desktop entry directories and prints the application catalog.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		loader := apps.NewLoader(cfg.Apps.ExtraDirs, cfg.Apps.Limit)
		if err := loader.Refresh(); err != nil {
			return err
		}
		commands.SetLoader(loader)

		response := commands.ListAppsCommand(commands.ListAppsRequest{Filter: appsFilter})
		if response.Status == "error" {
			return fmt.Errorf("%s", response.Error)
		}

		if appsJSON {
			printJson(response.Data)
			return nil
		}

		list, _ := response.Data.([]apps.App)
		for _, app := range list {
			fmt.Printf("%-32s %s\n", app.ID, app.Name)
		}
		return nil
	},
}

var launchCmd = &cobra.Command{
	Use:   "launch <app-id>",
	Short: "Launch an application by id",
	Long:  `Resolves the desktop entry for the given id and starts it detached.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		loader := apps.NewLoader(cfg.Apps.ExtraDirs, cfg.Apps.Limit)
		if err := loader.Refresh(); err != nil {
			return err
		}
		commands.SetLoader(loader)

		response := commands.LaunchCommand(commands.LaunchRequest{AppID: args[0]})
		if response.Status == "error" {
			return fmt.Errorf("%s", response.Error)
		}

		printJson(response.Data)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(launchCmd)

	appsCmd.Flags().StringVar(&appsFilter, "filter", "", "fuzzy filter over name, id and keywords")
	appsCmd.Flags().BoolVar(&appsJSON, "json", false, "print the catalog as JSON")
}
