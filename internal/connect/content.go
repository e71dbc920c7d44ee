package connect

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/jmylchreest/connectr/internal/cache"
	"github.com/jmylchreest/connectr/internal/config"
	"github.com/jmylchreest/connectr/internal/i18n"
	"github.com/jmylchreest/connectr/pkg/alphanet"
)

// Login replaces any existing session with a new one for username. The user
// picks or registers a device through the prompter. ErrLoginCancelled is
// returned when no device is chosen.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := c.Logout(ctx); err != nil {
		return err
	}
	if err := c.EnsureSession(ctx, false); err != nil {
		return err
	}

	boot, err := post[alphanet.AuthResult](ctx, c, alphanet.PathLogin,
		alphanet.WithForm(url.Values{"email": {username}, "password": {password}}))
	if err != nil {
		return err
	}
	if boot.Failed() {
		return serverError(boot.Error, c.printer.Sprintf(i18n.LoginError, boot.Error.Message))
	}

	var (
		device *alphanet.Device
		result alphanet.AuthResult
	)
	for {
		device, err = c.SelectDevice(ctx, boot.Result.NewAuthToken)
		if err != nil {
			return err
		}
		if device == nil {
			return ErrLoginCancelled
		}

		env, err := post[alphanet.AuthResult](ctx, c, alphanet.PathLogin,
			alphanet.WithForm(url.Values{
				"email":    {username},
				"password": {password},
				"deviceId": {device.UniqueDeviceID},
			}))
		if err != nil {
			return err
		}
		if env.Failed() {
			c.prompter.Error(env.Error.Message)
			continue
		}
		result = env.Result
		break
	}

	if err := c.store.Set(ctx, KeyDeviceToken, result.DeviceAuthToken); err != nil {
		return fmt.Errorf("storing device token: %w", err)
	}

	bind, err := post[alphanet.AuthResult](ctx, c, alphanet.PathDeviceAuth,
		alphanet.WithForm(url.Values{
			"name":        {device.Name},
			"casDeviceId": {device.UniqueDeviceID},
			"type":        {device.Type},
		}),
		alphanet.WithHeader(alphanet.HeaderCustomerAuthToken, result.NewAuthToken),
		alphanet.WithHeader(alphanet.HeaderDeviceAuthToken, result.DeviceAuthToken),
	)
	if err != nil {
		return err
	}
	if bind.Failed() {
		return serverError(bind.Error, bind.Error.Message)
	}

	if err := c.SetAuth(ctx, bind.Result.NewAuthToken); err != nil {
		return err
	}
	c.cache.Delete(CacheKeyChannels)

	if c.strategy.mode() == config.LoginPassword {
		for key, value := range map[string]string{
			KeyUsername: username,
			KeyPassword: password,
			KeyDeviceID: device.UniqueDeviceID,
		} {
			if err := c.store.Set(ctx, key, value); err != nil {
				return fmt.Errorf("storing %s: %w", key, err)
			}
		}
	}

	c.logger.InfoContext(ctx, "logged in",
		slog.String("device", device.Name),
		slog.String("login_type", c.strategy.mode()),
	)
	return nil
}

// Logout removes stored credentials and tokens, drops the cached settings
// and channel list, and resets the transport. The in-memory session is
// cleared even when a store delete fails.
func (c *Client) Logout(ctx context.Context) error {
	var errs []error
	for _, key := range credentialKeys {
		if err := c.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", key, err))
		}
	}

	c.cache.Delete(CacheKeyConfig)
	c.cache.Delete(CacheKeyChannels)

	if err := errors.Join(errs...); err != nil {
		c.resetSession()
		return err
	}
	return c.newSession(ctx)
}

// Channels returns the live channels ordered by their sort key. The list is
// cached.
func (c *Client) Channels(ctx context.Context) ([]alphanet.Channel, error) {
	channels, err := cache.GetOrLoad(ctx, c.cache, CacheKeyChannels, c.ttl.ChannelsTTL, c.loadChannels)
	if err != nil {
		return nil, err
	}
	return slices.Clone(channels), nil
}

func (c *Client) loadChannels(ctx context.Context) ([]alphanet.Channel, error) {
	if err := c.EnsureSession(ctx, false); err != nil {
		return nil, err
	}

	env, err := post[alphanet.ChannelsResult](ctx, c, alphanet.PathListChannels)
	if err != nil {
		return nil, err
	}
	if env.Failed() {
		return nil, serverError(env.Error, env.Error.Message)
	}

	channels := env.Result.Channels
	for i := range channels {
		channels[i].Logo = c.logoURL(channels[i].ID.Int())
	}
	slices.SortStableFunc(channels, func(a, b alphanet.Channel) int {
		return cmp.Compare(a.SortKey(), b.SortKey())
	})

	c.logger.DebugContext(ctx, "loaded channels", slog.Int("count", len(channels)))
	return channels, nil
}

func (c *Client) logoURL(channelID int64) string {
	q := url.Values{}
	q.Set("objectId", "75_"+strconv.FormatInt(channelID, 10))
	q.Set("type", "102")
	return alphanet.ResolveURL(c.transport.BaseURL(), alphanet.PathImageData+"?"+q.Encode())
}

// LicenseRequest returns the license URL for channelID and the headers that
// authorize it. The request itself is left to the caller.
func (c *Client) LicenseRequest(ctx context.Context, channelID int64) (string, http.Header, error) {
	if err := c.EnsureSession(ctx, false); err != nil {
		return "", nil, err
	}

	version, err := c.AppVersion(ctx)
	if err != nil {
		return "", nil, err
	}
	checksum, err := c.checksum(ctx, channelID, version)
	if err != nil {
		return "", nil, err
	}

	params := url.Values{}
	params.Set("wskey", c.transport.Header(alphanet.HeaderIdentityKey))
	params.Set("playerName", c.cfg.PlayerName)
	params.Set("playerVersion", version)
	params.Set("checksum", checksum)
	params.Set("idChannel", strconv.FormatInt(channelID, 10))

	u := alphanet.ResolveURL(c.transport.BaseURL(), alphanet.PathLicenseWidevine+"?"+params.Encode())
	return u, c.AuthHeaders(), nil
}

// Play resolves the stream URL for channelID. The session is always
// refreshed first so the stream starts on a fresh token.
func (c *Client) Play(ctx context.Context, channelID int64) (string, error) {
	if err := c.EnsureSession(ctx, true); err != nil {
		return "", err
	}

	version, err := c.AppVersion(ctx)
	if err != nil {
		return "", err
	}
	token, err := c.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", fmt.Errorf("loading auth token: %w", err)
	}

	form := url.Values{}
	form.Set("idChannel", strconv.FormatInt(channelID, 10))
	form.Set("playerName", c.cfg.PlayerName)
	form.Set("playerVersion", version)
	form.Set("checksum", Checksum(c.cfg.ChecksumSecret, token, channelID, version))
	form.Set("languageId", c.cfg.Language)
	form.Set("authToken", token)

	env, err := post[alphanet.StreamResult](ctx, c, alphanet.PathChannelStream,
		alphanet.WithForm(form), alphanet.WithHeaders(c.authHeaders))
	if err != nil {
		return "", err
	}
	if env.Failed() {
		return "", serverError(env.Error, env.Error.Message)
	}

	if env.Result.NewAuthToken != "" {
		if err := c.SetAuth(ctx, env.Result.NewAuthToken); err != nil {
			return "", err
		}
	}
	if env.Result.URL == "" {
		return "", c.wrap(errors.New("stream response has no url"))
	}
	return env.Result.URL, nil
}

// EPGFilter builds the filter document for programmes on ids starting in
// [start, end).
func EPGFilter(ids []int64, start, end time.Time) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	filter := map[string]any{
		"$and": []any{
			map[string]any{"id_channel": map[string]any{"$in": ids}},
			map[string]any{"startutc": map[string]any{"$ge": start.Unix()}},
			map[string]any{"startutc": map[string]any{"$lt": end.Unix()}},
		},
	}
	b, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("encoding epg filter: %w", err)
	}
	return string(b), nil
}

// EPG returns the raw guide rows for the channels in ids starting in
// [start, end).
func (c *Client) EPG(ctx context.Context, ids []int64, start, end time.Time) ([]alphanet.EPGRow, error) {
	if err := c.EnsureSession(ctx, false); err != nil {
		return nil, err
	}

	filter, err := EPGFilter(ids, start, end)
	if err != nil {
		return nil, c.wrap(err)
	}

	env, err := get[alphanet.EPGResult](ctx, c, alphanet.PathEPGFiltered,
		alphanet.WithParams(url.Values{
			"languageId": {c.cfg.Language},
			"filter":     {filter},
		}))
	if err != nil {
		return nil, err
	}
	if env.Failed() {
		return nil, serverError(env.Error, env.Error.Message)
	}
	return env.Result.EPG, nil
}
