package connect

import (
	"context"
	"fmt"
	"time"
)

// Status summarizes the stored session.
type Status struct {
	LoggedIn     bool      `json:"logged_in"`
	LoginType    string    `json:"login_type"`
	Region       string    `json:"region"`
	Username     string    `json:"username,omitempty"`
	TokenExpires time.Time `json:"token_expires,omitzero"`
	NeedsRefresh bool      `json:"needs_refresh"`
}

// Status reports the login state without contacting the platform.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		LoggedIn:  c.loggedIn,
		LoginType: c.strategy.mode(),
		Region:    c.cfg.Region,
	}

	username, err := c.store.Get(ctx, KeyUsername)
	if err != nil {
		return nil, fmt.Errorf("loading username: %w", err)
	}
	st.Username = username

	if !c.loggedIn {
		return st, nil
	}

	expires, ok, err := c.TokenExpires(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		st.TokenExpires = expires.UTC()
	}
	st.NeedsRefresh = !ok || !c.now().Before(expires)
	return st, nil
}
