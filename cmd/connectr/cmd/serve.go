package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/connectr/internal/connect"
	internalhttp "github.com/jmylchreest/connectr/internal/http"
	"github.com/jmylchreest/connectr/internal/http/handlers"
	"github.com/jmylchreest/connectr/internal/observability"
	"github.com/jmylchreest/connectr/internal/scheduler"
	"github.com/jmylchreest/connectr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a playlist and guide for media players",
	Long: `Start the connectr HTTP server.

The server provides:
- /playlist.m3u  channels whose entries redirect through /play/{id}
- /epg.xml       XMLTV guide for the next server.epg_hours hours
- /play/{id}     302 redirect to a freshly resolved stream
- /api/...       JSON channels, status and license endpoints
- /docs          OpenAPI documentation

Log in with "connectr login" first. When keepalive.enabled is set the
session token is refreshed on keepalive.schedule.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().Int("port", 8089, "Port to listen on")
	serveCmd.Flags().String("public-url", "", "Externally reachable base URL used in playlist links")
	serveCmd.Flags().StringSlice("cors-origin", nil, "Origin allowed to read playlist, guide and channel responses (repeatable)")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("server.public_url", serveCmd.Flags().Lookup("public-url"))
	mustBindPFlag("server.cors_origins", serveCmd.Flags().Lookup("cors-origin"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, connect.NopPrompter{})
	if err != nil {
		return err
	}
	defer s.Close()

	logger := s.logger
	shared := connect.NewShared(s.client)

	server := internalhttp.NewServer(internalhttp.ServerConfigFrom(s.cfg.Server),
		observability.WithComponent(logger, "http"), version.Version)
	api := server.API()

	handlers.NewHealthHandler(version.Version).Register(api)
	handlers.NewOutputHandler(shared, handlers.OutputConfig{
		PublicURL: s.cfg.Server.PublicURL,
		EPGHours:  s.cfg.Server.EPGHours,
		Language:  guideLanguage(s.cfg.Service.Locale),
	}).WithLogger(logger).Register(api)
	handlers.NewPlayHandler(shared).WithLogger(logger).Register(api)
	apiHandler := handlers.NewAPIHandler(shared).WithLogger(logger).
		WithUpstream(func() string { return s.http.CircuitState().String() })

	var sched *scheduler.Scheduler
	if s.cfg.Keepalive.Enabled {
		sched, err = scheduler.NewScheduler(s.cfg.Keepalive.Schedule,
			refreshTask(shared, observability.WithComponent(logger, "keepalive")))
		if err != nil {
			return fmt.Errorf("keepalive schedule: %w", err)
		}
		sched.WithLogger(observability.WithComponent(logger, "scheduler"))
		apiHandler.WithKeepalive(sched.Stats)
	}
	apiHandler.Register(api)

	var keepalive keepaliveRunner
	if sched != nil {
		keepalive = sched
	}

	logger.Info("connectr serving",
		slog.String("address", server.Address()),
		slog.Bool("keepalive", sched != nil))

	return serveUntilDone(ctx, server, keepalive, func(ctx context.Context) {
		// Warm the settings cache and catch a stale token before the first
		// player request. Failures are not fatal: handlers report them.
		if err := shared.EnsureSession(ctx, false); err != nil {
			logger.Warn("initial session check failed", slog.Any("error", err))
		}
	})
}

type httpRunner interface {
	ListenAndServe(ctx context.Context) error
}

type keepaliveRunner interface {
	Start(ctx context.Context) error
	Stop()
}

// serveUntilDone runs the server, the optional keepalive and warm until ctx
// ends or the server fails, and returns only after all of them stopped.
// The keepalive starts first so a failure returns before the server runs.
func serveUntilDone(ctx context.Context, srv httpRunner, keepalive keepaliveRunner, warm func(context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)

	if keepalive != nil {
		if err := keepalive.Start(gctx); err != nil {
			return fmt.Errorf("starting keepalive: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			keepalive.Stop()
			return nil
		})
	}

	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if warm != nil {
		g.Go(func() error {
			warm(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
