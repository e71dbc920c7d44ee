package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jmylchreest/connectr/internal/config"
	"github.com/jmylchreest/connectr/internal/i18n"
	"github.com/jmylchreest/connectr/pkg/alphanet"
)

// loginStrategy re-authenticates a logged-in session for one login mode.
type loginStrategy interface {
	mode() string
	reauthenticate(ctx context.Context, c *Client) (*alphanet.Envelope[alphanet.AuthResult], error)
	// fatalMessage is the message shown after the platform ended the
	// session; empty selects the generic token error.
	fatalMessage(p i18n.Printer) string
}

func strategyFor(loginType string) (loginStrategy, error) {
	switch loginType {
	case config.LoginMultiIP, "":
		return multiIPStrategy{}, nil
	case config.LoginMultiDevice:
		return multiDeviceStrategy{}, nil
	case config.LoginPassword:
		return passwordStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown login type %q", loginType)
	}
}

// multiIPStrategy keeps a single device logged in while its address changes.
type multiIPStrategy struct{}

func (multiIPStrategy) mode() string { return config.LoginMultiIP }

func (multiIPStrategy) reauthenticate(ctx context.Context, c *Client) (*alphanet.Envelope[alphanet.AuthResult], error) {
	return post[alphanet.AuthResult](ctx, c, alphanet.PathLoginDevice, alphanet.WithHeaders(c.authHeaders))
}

func (multiIPStrategy) fatalMessage(p i18n.Printer) string {
	return p.Sprintf(i18n.LoginMultiIPError)
}

// multiDeviceStrategy suits several devices behind one static address.
type multiDeviceStrategy struct{}

func (multiDeviceStrategy) mode() string { return config.LoginMultiDevice }

func (multiDeviceStrategy) reauthenticate(ctx context.Context, c *Client) (*alphanet.Envelope[alphanet.AuthResult], error) {
	return post[alphanet.AuthResult](ctx, c, alphanet.PathAvailableDevices, alphanet.WithHeaders(c.authHeaders))
}

func (multiDeviceStrategy) fatalMessage(p i18n.Printer) string {
	return p.Sprintf(i18n.LoginMultiDeviceError)
}

// passwordStrategy logs in again with the stored credentials.
type passwordStrategy struct{}

func (passwordStrategy) mode() string { return config.LoginPassword }

func (passwordStrategy) reauthenticate(ctx context.Context, c *Client) (*alphanet.Envelope[alphanet.AuthResult], error) {
	form := url.Values{}
	for field, key := range map[string]string{
		"password": KeyPassword,
		"deviceId": KeyDeviceID,
		"email":    KeyUsername,
	} {
		v, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", key, err)
		}
		form.Set(field, v)
	}
	return post[alphanet.AuthResult](ctx, c, alphanet.PathLogin, alphanet.WithForm(form))
}

func (passwordStrategy) fatalMessage(i18n.Printer) string {
	return ""
}

// refresh re-authenticates with the configured strategy. A fatal platform
// error logs out and asks the host to refresh before it is returned.
func (c *Client) refresh(ctx context.Context) error {
	env, err := c.strategy.reauthenticate(ctx, c)
	if err != nil {
		return err
	}

	if env.Failed() {
		apiErr := serverError(env.Error, c.printer.Sprintf(i18n.TokenError, env.Error.Message))

		if env.Error.Code.Int() == fatalErrorCode {
			c.logger.WarnContext(ctx, "platform ended the session",
				slog.String("login_type", c.strategy.mode()),
				slog.String("reason", env.Error.Message),
			)
			logoutErr := c.Logout(ctx)
			c.prompter.Refresh()

			if msg := c.strategy.fatalMessage(c.printer); msg != "" {
				apiErr.Message = msg
			}
			if logoutErr != nil {
				c.logger.ErrorContext(ctx, "clearing stored credentials failed", slog.Any("error", logoutErr))
				apiErr.Err = errors.Join(apiErr.Err, fmt.Errorf("clearing stored credentials: %w", logoutErr))
			}
		}
		return apiErr
	}

	if env.Result.DeviceAuthToken != "" {
		if err := c.store.Set(ctx, KeyDeviceToken, env.Result.DeviceAuthToken); err != nil {
			return fmt.Errorf("storing device token: %w", err)
		}
	}

	if err := c.SetAuth(ctx, env.Result.NewAuthToken); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "auth token refreshed", slog.String("login_type", c.strategy.mode()))
	return nil
}
