package command

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"linetest/cmd/cli/command/client"
)

// pcba.go = station commands that drive the PCBA event API.

var startTestCmd = &cobra.Command{
	Use:   "start-test",
	Short: "Run every test stage for a serial on the station",
	RunE: func(cmd *cobra.Command, args []string) error {
		serial, _ := cmd.Flags().GetString("serial")
		if strings.TrimSpace(serial) == "" {
			return fmt.Errorf("--serial is required")
		}

		httpClient := client.NewHTTPClient(apiURL)
		httpClient.SetToken(token)

		fmt.Fprintf(cmd.OutOrStdout(), "Running stages for %s...\n", serial)
		response, err := httpClient.StartTest(cmd.Context(), serial)
		if err != nil {
			return err
		}

		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Test %s for %s\n", response.Status, response.Serial)
		fmt.Fprintf(cmd.OutOrStdout(), "Stages: %s\n", strings.Join(response.Stages, ", "))
		return nil
	},
}

var uidSearchCmd = &cobra.Command{
	Use:   "uid-search",
	Short: "Publish a UID search result to every open panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, _ := cmd.Flags().GetString("uid")
		if strings.TrimSpace(uid) == "" {
			return fmt.Errorf("--uid is required")
		}

		httpClient := client.NewHTTPClient(apiURL)
		httpClient.SetToken(token)

		response, err := httpClient.UIDSearch(cmd.Context(), uid)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ UID %s %s\n", response.UID, response.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startTestCmd)
	rootCmd.AddCommand(uidSearchCmd)

	startTestCmd.Flags().StringP("serial", "s", "", "serial number of the board under test (required)")
	startTestCmd.MarkFlagRequired("serial")

	uidSearchCmd.Flags().StringP("uid", "u", "", "UID to publish (required)")
	uidSearchCmd.MarkFlagRequired("uid")
}
