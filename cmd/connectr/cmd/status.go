package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/connectr/internal/connect"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	Long:  "Show login state and token expiry. The platform is not contacted.",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, connect.NopPrompter{})
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.client.Status(ctx)
	if err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Logged in:\t%t\n", st.LoggedIn)
	fmt.Fprintf(tw, "Login type:\t%s\n", st.LoginType)
	fmt.Fprintf(tw, "Region:\t%s\n", st.Region)
	if st.Username != "" {
		fmt.Fprintf(tw, "Username:\t%s\n", st.Username)
	}
	if !st.TokenExpires.IsZero() {
		fmt.Fprintf(tw, "Token refresh due:\t%s\n", st.TokenExpires.Local().Format(time.RFC1123))
	}
	if st.LoggedIn {
		fmt.Fprintf(tw, "Needs refresh:\t%t\n", st.NeedsRefresh)
	}
	return tw.Flush()
}
