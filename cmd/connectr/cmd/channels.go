package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/connectr/internal/connect"
	"github.com/jmylchreest/connectr/internal/export"
	"github.com/jmylchreest/connectr/pkg/alphanet"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List live channels",
	Long: `List live channels in display order.

Formats:
  table  ID, number and name (default)
  json   the channel objects
  m3u    a playlist whose entries point at a running "connectr serve"`,
	RunE: runChannels,
}

func init() {
	rootCmd.AddCommand(channelsCmd)

	channelsCmd.Flags().StringP("format", "f", "table", "output format (table, json, m3u)")
	channelsCmd.Flags().String("base-url", "", "base URL of connectr serve for m3u links (default is server.public_url)")
	channelsCmd.Flags().String("group", "", "group-title for m3u entries")
}

func runChannels(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format, "table", "json", "m3u"); err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, connect.NopPrompter{})
	if err != nil {
		return err
	}
	defer s.Close()

	channels, err := s.client.Channels(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return writeJSON(out, channels)
	case "m3u":
		base, _ := cmd.Flags().GetString("base-url")
		if base == "" {
			base = s.cfg.Server.PublicURL
		}
		if base == "" {
			base = "http://" + s.cfg.Server.Address()
		}
		group, _ := cmd.Flags().GetString("group")
		return export.WritePlaylist(out, channels, export.PlaylistOptions{
			BaseURL:  base,
			GuideURL: base + "/epg.xml",
			Group:    group,
		})
	default:
		return writeChannelTable(out, channels)
	}
}

func writeChannelTable(w io.Writer, channels []alphanet.Channel) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNUMBER\tNAME")
	for _, ch := range channels {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", ch.ID.Int(), ch.LocalizeNumber.Int(), ch.Name)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q, expected one of %v", format, allowed)
}
