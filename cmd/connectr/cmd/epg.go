package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/connectr/internal/connect"
	"github.com/jmylchreest/connectr/internal/export"
	"github.com/jmylchreest/connectr/internal/i18n"
	"github.com/jmylchreest/connectr/pkg/alphanet"
)

var epgCmd = &cobra.Command{
	Use:   "epg",
	Short: "Show programme guide data",
	Long: `Fetch programmes starting within the next few hours.

Without --channel every channel is included. Formats are json (raw rows)
and xmltv.`,
	RunE: runEPG,
}

func init() {
	rootCmd.AddCommand(epgCmd)

	epgCmd.Flags().Int64SliceP("channel", "c", nil, "channel IDs to include (repeatable)")
	epgCmd.Flags().Int("hours", 0, "window length in hours (default is server.epg_hours)")
	epgCmd.Flags().StringP("format", "f", "json", "output format (json, xmltv)")
}

func runEPG(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format, "json", "xmltv"); err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, connect.NopPrompter{})
	if err != nil {
		return err
	}
	defer s.Close()

	hours, _ := cmd.Flags().GetInt("hours")
	if hours <= 0 {
		hours = s.cfg.Server.EPGHours
	}
	ids, _ := cmd.Flags().GetInt64Slice("channel")

	channels, err := s.client.Channels(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		ids = export.ChannelIDs(channels)
	} else {
		channels = selectChannels(channels, ids)
	}

	start := time.Now().UTC().Truncate(time.Hour)
	rows, err := s.client.EPG(ctx, ids, start, start.Add(time.Duration(hours)*time.Hour))
	if err != nil {
		return err
	}

	if format == "xmltv" {
		return export.WriteGuide(cmd.OutOrStdout(), channels, rows, guideLanguage(s.cfg.Service.Locale))
	}
	return writeJSON(cmd.OutOrStdout(), rows)
}

func selectChannels(channels []alphanet.Channel, ids []int64) []alphanet.Channel {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []alphanet.Channel
	for _, ch := range channels {
		if want[ch.ID.Int()] {
			out = append(out, ch)
		}
	}
	return out
}

// guideLanguage is the two-letter language of the configured locale.
func guideLanguage(locale string) string {
	base, _ := i18n.Match(locale).Base()
	return base.String()
}
