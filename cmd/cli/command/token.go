package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"linetest/cmd/cli/authentication"
	"linetest/internal/microservices/http-api/middleware"
)

// token.go manages the station token kept in the OS keyring.

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the saved station token",
	Long:  `Station tokens are issued by the line administrator and authorize start-test, uid-search and event publishing.`,
}

var tokenSaveCmd = &cobra.Command{
	Use:   "save <token>",
	Short: "Save a station token in the OS keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stored, err := authentication.StoreToken(args[0])
		if err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Token saved")
		printToken(cmd, stored)
		return nil
	},
}

var (
	issueStation string
	issueScopes  []string
	issueTTL     time.Duration
	issueSave    bool
)

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign a station token with STATION_JWT_SECRET",
	Long: `Run by the line administrator on a machine that holds STATION_JWT_SECRET.
The printed token is handed to the station, which saves it with 'linetest token save'.`,
	Example: `  linetest token issue --station line1-st3
  linetest token issue --station line1-st3 --scopes pcba:events --ttl 24h --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		signed, err := issueStationToken(cfg.StationJWTSecret, issueStation, issueScopes, issueTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)

		if issueSave {
			stored, err := authentication.StoreToken(signed)
			if err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "✓ Token saved")
			printToken(cmd, stored)
		}
		return nil
	},
}

// issueStationToken checks the inputs the server would reject later and signs
func issueStationToken(secret, station string, scopes []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("STATION_JWT_SECRET is not set")
	}
	if len(secret) < 32 {
		return "", errors.New("STATION_JWT_SECRET should be at least 32 characters long")
	}
	station = strings.TrimSpace(station)
	if station == "" {
		return "", errors.New("--station is required")
	}
	if ttl <= 0 {
		return "", errors.New("--ttl must be positive")
	}

	granted := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if scope = strings.TrimSpace(scope); scope != "" {
			granted = append(granted, scope)
		}
	}
	if len(granted) == 0 {
		granted = []string{middleware.ScopeEventsWrite, middleware.ScopeTestRun, middleware.ScopeUIDWrite}
	}
	return middleware.IssueStationToken(secret, station, granted, ttl)
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which station the saved token belongs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		stored, err := authentication.GetToken()
		if err != nil {
			return fmt.Errorf("no saved token, run 'linetest token save <token>' first")
		}
		printToken(cmd, stored)
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the saved station token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authentication.DeleteToken(); err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Token removed")
		return nil
	},
}

func printToken(cmd *cobra.Command, stored *authentication.StoredToken) {
	station := stored.Station
	if station == "" {
		station = "(unknown)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Station: %s\n", station)
	if stored.ExpiresAt > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Expires: %s\n", time.Unix(stored.ExpiresAt, 0).Format(time.RFC1123))
	}
}

func init() {
	tokenIssueCmd.Flags().StringVar(&issueStation, "station", "", "station id written into the token")
	tokenIssueCmd.Flags().StringSliceVar(&issueScopes, "scopes", nil, "granted scopes (default pcba:events,pcba:test,pcba:uid)")
	tokenIssueCmd.Flags().DurationVar(&issueTTL, "ttl", 30*24*time.Hour, "token lifetime")
	tokenIssueCmd.Flags().BoolVar(&issueSave, "save", false, "also save the token in the OS keyring")

	tokenCmd.AddCommand(tokenIssueCmd, tokenSaveCmd, tokenShowCmd, tokenClearCmd)
	rootCmd.AddCommand(tokenCmd)
}
