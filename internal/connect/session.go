package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/connectr/internal/cache"
	"github.com/jmylchreest/connectr/internal/i18n"
	"github.com/jmylchreest/connectr/pkg/alphanet"
)

// EnsureSession points the transport at the regional platform and, when
// logged in, refreshes the auth token if it expired or force is set.
func (c *Client) EnsureSession(ctx context.Context, force bool) error {
	settings, err := c.AppSettings(ctx)
	if err != nil {
		return err
	}

	platform, ok := settings.Platform(c.cfg.Region)
	if !ok {
		return &ConfigFetchError{
			Message: c.printer.Sprintf(i18n.RegionMissing, c.cfg.Region),
			Err:     fmt.Errorf("region %q not in %v", c.cfg.Region, settings.Regions()),
		}
	}

	c.transport.SetBaseURL(platform.URL)
	c.transport.SetHeader(alphanet.HeaderIdentityKey, platform.HSSKey)

	if !c.loggedIn {
		return nil
	}

	if !force {
		needs, err := c.NeedsRefresh(ctx)
		if err != nil {
			return err
		}
		if !needs {
			return nil
		}
	}

	c.logger.DebugContext(ctx, "refreshing auth token",
		slog.String("login_type", c.strategy.mode()),
		slog.Bool("forced", force),
	)
	return c.refresh(ctx)
}

// AppSettings returns the remote app settings, fetched at most once per
// cache window.
func (c *Client) AppSettings(ctx context.Context) (alphanet.AppSettings, error) {
	return cache.GetOrLoad(ctx, c.cache, CacheKeyConfig, c.ttl.ConfigTTL, c.fetchSettings)
}

func (c *Client) fetchSettings(ctx context.Context) (alphanet.AppSettings, error) {
	fail := func(err error) (alphanet.AppSettings, error) {
		return alphanet.AppSettings{}, &ConfigFetchError{
			Message: c.printer.Sprintf(i18n.ConfigFetchError),
			Err:     err,
		}
	}

	resp, err := c.transport.Get(ctx, c.cfg.SettingsURL)
	if err != nil {
		return fail(fmt.Errorf("fetching app settings: %w", err))
	}

	var doc alphanet.SettingsDocument
	if err := resp.JSON(&doc); err != nil {
		return fail(err)
	}
	if len(doc.Settings.AlphaNetworksDash) == 0 {
		return fail(errors.New("app settings contain no platforms"))
	}

	c.logger.DebugContext(ctx, "fetched app settings",
		slog.Int("regions", len(doc.Settings.AlphaNetworksDash)),
	)
	return doc.Settings, nil
}

// AppVersion returns the published app version, fetched at most once per
// cache window.
func (c *Client) AppVersion(ctx context.Context) (string, error) {
	return cache.GetOrLoad(ctx, c.cache, CacheKeyAppVersion, c.ttl.AppVersionTTL, func(ctx context.Context) (string, error) {
		resp, err := c.transport.Get(ctx, c.cfg.VersionURL)
		if err != nil {
			return "", c.wrap(err)
		}
		version := resp.Text()
		if version == "" {
			return "", c.wrap(errors.New("empty app version"))
		}
		return version, nil
	})
}
