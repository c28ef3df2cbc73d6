package command

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"linetest/cmd/cli/command/client"
	"linetest/cmd/cli/dto"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Stored test record commands",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored test records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var q dto.RecordQuery
		q.Skip, _ = cmd.Flags().GetInt("skip")
		q.Limit, _ = cmd.Flags().GetInt("limit")
		q.DeviceID, _ = cmd.Flags().GetString("device")
		q.TestResult, _ = cmd.Flags().GetString("result")
		q.StartDate, _ = cmd.Flags().GetString("from")
		q.EndDate, _ = cmd.Flags().GetString("to")

		httpClient := client.NewHTTPClient(apiURL)
		records, err := httpClient.ListRecords(cmd.Context(), q)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No records found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSERIAL\tDEVICE\tSTATION\tRESULT\tTIME\tUPLOADED")
		for _, r := range records {
			result := r.TestResult
			if result == "FAIL" {
				result = color.RedString(result)
			} else {
				result = color.GreenString(result)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
				r.ID, r.SerialNumber, r.DeviceID, r.TestStation, result,
				r.TestTime.Local().Format("2006-01-02 15:04:05"), r.UploadedToCloud)
		}
		return w.Flush()
	},
}

func init() {
	recordsCmd.AddCommand(recordsListCmd)
	rootCmd.AddCommand(recordsCmd)

	recordsListCmd.Flags().Int("skip", 0, "records to skip")
	recordsListCmd.Flags().Int("limit", 20, "maximum records to show (1-500)")
	recordsListCmd.Flags().String("device", "", "filter by device id")
	recordsListCmd.Flags().String("result", "", "filter by result: PASS or FAIL")
	recordsListCmd.Flags().String("from", "", "earliest test time (YYYY-MM-DD or RFC 3339)")
	recordsListCmd.Flags().String("to", "", "latest test time (YYYY-MM-DD or RFC 3339)")
}
