package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <channel>",
	Short: "Resolve the stream URL for a channel",
	Long: `Refresh the session and print the stream URL for a channel.

The URL carries a short-lived token; pass it to a player straight away.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

var licenseCmd = &cobra.Command{
	Use:   "license <channel>",
	Short: "Print the Widevine license request for a channel",
	Args:  cobra.ExactArgs(1),
	RunE:  runLicense,
}

func init() {
	rootCmd.AddCommand(playCmd, licenseCmd)
}

func parseChannelID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid channel id %q", arg)
	}
	return id, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	id, err := parseChannelID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, terminalPrompter())
	if err != nil {
		return err
	}
	defer s.Close()

	streamURL, err := s.client.Play(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), streamURL)
	return nil
}

func runLicense(cmd *cobra.Command, args []string) error {
	id, err := parseChannelID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, terminalPrompter())
	if err != nil {
		return err
	}
	defer s.Close()

	licenseURL, headers, err := s.client.LicenseRequest(ctx, id)
	if err != nil {
		return err
	}

	flat := make(map[string]string, len(headers))
	for k := range headers {
		flat[k] = headers.Get(k)
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"url":     licenseURL,
		"headers": flat,
	})
}
