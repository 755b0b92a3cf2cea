package cli

import (
	"fmt"

	"github.com/StardustXR/protostar/daemon"
	"github.com/spf13/cobra"
)

const defaultControlAddress = "localhost:21000"

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running launcher",
	Long:  `Connects to the control plane and sends a shutdown command via JSON-RPC.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// GetString cannot fail for defined flags
		addr, _ := cmd.Flags().GetString("listen")
		if addr == "" {
			addr = defaultControlAddress
		}

		err := daemon.KillServer(addr)
		if err != nil {
			return err
		}

		fmt.Printf("Shutdown command sent successfully\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().String("listen", "", fmt.Sprintf("control plane address of the launcher to stop (default: %s)", defaultControlAddress))
}
