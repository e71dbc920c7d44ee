package connect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiryMargin is subtracted from the token expiry so that refreshes
// happen before the platform starts rejecting the token.
const tokenExpiryMargin = 30 * time.Second

var errNoExpiry = errors.New("token has no exp claim")

// TokenExpiry reads the exp claim of an auth token. The signature is not
// verified; the platform is the only party that can.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parsing auth token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("reading exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, errNoExpiry
	}
	return exp.Time, nil
}

// SetAuth stores token as the current auth token, together with the time at
// which it must be refreshed, and recomputes the login state.
func (c *Client) SetAuth(ctx context.Context, token string) error {
	exp, err := TokenExpiry(token)
	if err != nil {
		return c.wrap(err)
	}

	threshold := exp.Add(-tokenExpiryMargin).Unix()
	if err := c.store.Set(ctx, KeyAuthToken, token); err != nil {
		return fmt.Errorf("storing auth token: %w", err)
	}
	if err := c.store.Set(ctx, KeyTokenExpires, strconv.FormatInt(threshold, 10)); err != nil {
		return fmt.Errorf("storing token expiry: %w", err)
	}

	return c.loadAuthentication(ctx)
}

// TokenExpires returns the stored refresh threshold. ok is false when no
// usable threshold is stored.
func (c *Client) TokenExpires(ctx context.Context) (t time.Time, ok bool, err error) {
	raw, err := c.store.Get(ctx, KeyTokenExpires)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("loading token expiry: %w", err)
	}
	if raw == "" {
		return time.Time{}, false, nil
	}

	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.logger.Warn("ignoring malformed token expiry", "value", raw)
		return time.Time{}, false, nil
	}
	return time.Unix(sec, 0), true, nil
}

// NeedsRefresh reports whether the current time has reached the stored
// refresh threshold. A missing threshold always needs a refresh.
func (c *Client) NeedsRefresh(ctx context.Context) (bool, error) {
	expires, ok, err := c.TokenExpires(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return !c.now().Before(expires), nil
}
