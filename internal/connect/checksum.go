package connect

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
)

// Checksum signs a stream or license request for channelID. authToken may be
// empty.
func Checksum(secret, authToken string, channelID int64, appVersion string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(authToken + strconv.FormatInt(channelID, 10) + appVersion))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) checksum(ctx context.Context, channelID int64, appVersion string) (string, error) {
	token, err := c.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", fmt.Errorf("loading auth token: %w", err)
	}
	return Checksum(c.cfg.ChecksumSecret, token, channelID, appVersion), nil
}
