package command

import (
	"os"

	"github.com/spf13/cobra"

	"linetest/cmd/cli/command/client"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the live stage board of a serial",
	Long: `Connects to the event feed and prints the stage board of --serial each
time it changes. Type another serial number and press enter to switch boards
without reconnecting; type /quit to leave. The feed reconnects on its own
when the server goes away.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wsURL, _ := cmd.Flags().GetString("ws")
		if wsURL == "" {
			wsURL = cfg.WSURL
		}
		serial, _ := cmd.Flags().GetString("serial")

		return client.Watch(cmd.Context(), client.WatchOptions{
			URL:            wsURL,
			Serial:         serial,
			ReconnectDelay: cfg.ReconnectDelay,
			In:             os.Stdin,
			Out:            cmd.OutOrStdout(),
			Logger:         logger,
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("ws", "", "event feed URL (default WS_URL or ws://localhost:8000/ws)")
	watchCmd.Flags().StringP("serial", "s", "", "serial number to follow")
}
