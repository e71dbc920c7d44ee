package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/jmylchreest/connectr/internal/config"
	"github.com/jmylchreest/connectr/internal/connect"
	"github.com/jmylchreest/connectr/internal/database"
	"github.com/jmylchreest/connectr/internal/observability"
	"github.com/jmylchreest/connectr/internal/prompt"
	"github.com/jmylchreest/connectr/internal/repository"
	"github.com/jmylchreest/connectr/internal/version"
	"github.com/jmylchreest/connectr/pkg/alphanet"
	"github.com/jmylchreest/connectr/pkg/httpclient"
)

// storeNamespace scopes credential rows in the user data table.
const storeNamespace = "connect"

// session bundles what a command needs to talk to the platform.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *database.DB
	client *connect.Client
	http   *httpclient.Client
}

func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.Any("error", err))
	}
}

// openSession loads config, opens the credential store and builds the
// platform client. Commands that may need the user to pick a device pass
// an interactive prompter; others get NopPrompter.
func openSession(ctx context.Context, prompter connect.Prompter) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Service.ValidateRemote(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logger := slog.Default()

	db, err := database.Open(ctx, cfg.Database, observability.WithComponent(logger, "database"))
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	store := repository.NewUserDataRepository(db.DB, storeNamespace)

	transport, hc := newTransport(cfg, logger)
	client, err := connect.New(ctx, cfg.Service, transport, store,
		connect.WithCacheTTLs(cfg.Cache),
		connect.WithPrompter(prompter),
		connect.WithLogger(logger),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating client: %w", err)
	}

	return &session{cfg: cfg, logger: logger, db: db, client: client, http: hc}, nil
}

// newTransport builds the platform transport on a breaker-guarded HTTP
// client with an optional rate limit. The HTTP client is returned so its
// breaker state can be reported.
func newTransport(cfg *config.Config, logger *slog.Logger) (*alphanet.Client, *httpclient.Client) {
	userAgent := cfg.Service.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}

	hc := httpclient.New(httpclient.Config{
		Timeout:             cfg.HTTP.Timeout,
		CircuitThreshold:    cfg.HTTP.CircuitThreshold,
		CircuitTimeout:      cfg.HTTP.CircuitTimeout,
		UserAgent:           userAgent,
		Logger:              observability.WithComponent(logger, "httpclient"),
		EnableDecompression: true,
		MaxResponseSize:     cfg.HTTP.MaxResponseSize,
	})

	opts := []alphanet.ClientOption{
		alphanet.WithHTTPClient(hc.StandardClient(nil)),
		alphanet.WithUserAgent(userAgent),
		alphanet.WithLogger(observability.WithComponent(logger, "alphanet")),
	}
	if cfg.HTTP.RateLimit > 0 {
		opts = append(opts, alphanet.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.HTTP.RateLimit), cfg.HTTP.RateBurst)))
	}
	return alphanet.NewClient(opts...), hc
}

var _ connect.Prompter = (*prompt.Terminal)(nil)

// terminalPrompter asks questions on stderr so stdout stays clean for
// command output.
func terminalPrompter() *prompt.Terminal {
	return prompt.New(os.Stdin, os.Stderr, prompt.WithRefresh(func() {
		fmt.Fprintln(os.Stderr, "Session ended. Run `connectr login` to sign in again.")
	}))
}
