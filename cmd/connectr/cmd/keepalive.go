package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/connectr/internal/connect"
	"github.com/jmylchreest/connectr/internal/observability"
	"github.com/jmylchreest/connectr/internal/scheduler"
)

var keepaliveCmd = &cobra.Command{
	Use:   "keepalive",
	Short: "Refresh the session token on a schedule",
	Long: `Refresh the stored session token on keepalive.schedule until interrupted.

With --once the token is refreshed a single time, which suits an external
scheduler such as cron or a systemd timer.`,
	RunE: runKeepalive,
}

func init() {
	rootCmd.AddCommand(keepaliveCmd)

	keepaliveCmd.Flags().Bool("once", false, "refresh once and exit")
	keepaliveCmd.Flags().String("schedule", "", "cron schedule, seconds field optional (default is keepalive.schedule)")
	mustBindPFlag("keepalive.schedule", keepaliveCmd.Flags().Lookup("schedule"))
}

// refreshTask forces a session refresh. A session ended by the platform
// is logged and not retried until the next login.
func refreshTask(shared *connect.Shared, logger *slog.Logger) scheduler.Task {
	return func(ctx context.Context) error {
		ctx, log := observability.StartOperation(ctx, logger, "keepalive")
		if err := shared.EnsureSession(ctx, true); err != nil {
			if connect.IsFatal(err) {
				log.Error("session ended by platform, log in again", slog.Any("error", err))
			}
			return err
		}
		st, err := shared.Status(ctx)
		if err == nil && st.LoggedIn {
			log.Info("session refreshed", slog.Time("refresh_due", st.TokenExpires))
		}
		return nil
	}
}

func runKeepalive(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, connect.NopPrompter{})
	if err != nil {
		return err
	}
	defer s.Close()

	shared := connect.NewShared(s.client)
	task := refreshTask(shared, observability.WithComponent(s.logger, "keepalive"))

	if once, _ := cmd.Flags().GetBool("once"); once {
		if err := task(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session refreshed.")
		return nil
	}

	sched, err := scheduler.NewScheduler(s.cfg.Keepalive.Schedule, task)
	if err != nil {
		return fmt.Errorf("keepalive schedule: %w", err)
	}
	sched.WithLogger(observability.WithComponent(s.logger, "scheduler"))

	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	sched.Stop()
	return nil
}
