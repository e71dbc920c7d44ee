package connect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/connectr/internal/i18n"
	"github.com/jmylchreest/connectr/pkg/alphanet"
)

// deviceIDLength is the length of generated device identifiers.
const deviceIDLength = 16

// DeviceID derives an identifier for a new device from the registration
// time and the device name.
func DeviceID(at time.Time, name string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(at.Unix(), 10) + name))
	return hex.EncodeToString(sum[:])[:deviceIDLength]
}

type deviceChoice int

const (
	choiceExisting deviceChoice = iota
	choiceNew
	choiceRemove
)

// SelectDevice lets the user pick one of the account's devices, register a
// new one, or free a slot by removing one. It returns nil when the user
// cancels. A new device is only described here; the caller registers it.
func (c *Client) SelectDevice(ctx context.Context, customerToken string) (*alphanet.Device, error) {
	token := customerToken
	devices, err := c.availableDevices(ctx, token)
	if err != nil {
		return nil, err
	}

	for {
		choice := choiceNew
		var picked alphanet.Device

		if len(devices) > 0 {
			options := make([]string, 0, len(devices)+2)
			for _, d := range devices {
				options = append(options, c.printer.Sprintf(i18n.DeviceLabel, d.Name, c.printer.Date(d.LastLoginDate.Time)))
			}
			options = append(options, c.printer.Sprintf(i18n.NewDevice), c.printer.Sprintf(i18n.RemoveDevice))

			idx, err := c.prompter.Select(c.printer.Sprintf(i18n.SelectDevice), options)
			if err != nil {
				return nil, err
			}

			switch {
			case idx < 0 || idx >= len(options):
				return nil, nil
			case idx < len(devices):
				choice, picked = choiceExisting, devices[idx]
			case idx == len(devices):
				choice = choiceNew
			default:
				choice = choiceRemove
			}
		}

		switch choice {
		case choiceExisting:
			return &picked, nil

		case choiceNew:
			device, err := c.describeNewDevice()
			if err != nil {
				return nil, err
			}
			if device != nil {
				return device, nil
			}
			if len(devices) == 0 {
				return nil, nil
			}

		case choiceRemove:
			newToken, removed, err := c.removeDevice(ctx, token, devices)
			if err != nil {
				return nil, err
			}
			if !removed {
				continue
			}

			token = newToken
			if devices, err = c.availableDevices(ctx, token); err != nil {
				return nil, err
			}
		}
	}
}

func (c *Client) availableDevices(ctx context.Context, customerToken string) ([]alphanet.Device, error) {
	env, err := post[alphanet.DevicesResult](ctx, c, alphanet.PathAvailableDevices,
		alphanet.WithHeader(alphanet.HeaderCustomerAuthToken, customerToken))
	if err != nil {
		return nil, err
	}
	if env.Failed() {
		return nil, serverError(env.Error, env.Error.Message)
	}
	return env.Result.Devices, nil
}

// describeNewDevice asks for a name and confirmation. It returns nil when
// the name is blank or the user declines.
func (c *Client) describeNewDevice() (*alphanet.Device, error) {
	name, err := c.prompter.Input(c.printer.Sprintf(i18n.DeviceName))
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	ok, err := c.prompter.YesNo(c.printer.Sprintf(i18n.NewConfirm, name))
	if err != nil || !ok {
		return nil, err
	}

	return &alphanet.Device{
		UniqueDeviceID: DeviceID(c.now(), name),
		Name:           name,
		Type:           c.cfg.DeviceType,
	}, nil
}

// removeDevice asks which device to remove until the user confirms one or
// cancels. removed is false when nothing was removed; a platform error is
// shown to the user and also reported as not removed.
func (c *Client) removeDevice(ctx context.Context, customerToken string, devices []alphanet.Device) (newToken string, removed bool, err error) {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}

	var target *alphanet.Device
	for target == nil {
		idx, err := c.prompter.Select(c.printer.Sprintf(i18n.SelectRemoveDevice), names)
		if err != nil {
			return "", false, err
		}
		if idx < 0 || idx >= len(devices) {
			return "", false, nil
		}

		ok, err := c.prompter.YesNo(c.printer.Sprintf(i18n.RemoveConfirm, devices[idx].Name))
		if err != nil {
			return "", false, err
		}
		if ok {
			target = &devices[idx]
		}
	}

	env, err := post[alphanet.AuthResult](ctx, c, alphanet.PathRemoveDevice,
		alphanet.WithForm(url.Values{"casDeviceId": {target.UniqueDeviceID}}),
		alphanet.WithHeader(alphanet.HeaderCustomerAuthToken, customerToken),
	)
	if err != nil {
		return "", false, err
	}
	if env.Failed() {
		c.prompter.Error(env.Error.Message)
		return "", false, nil
	}

	c.logger.InfoContext(ctx, "removed device", slog.String("device", target.Name))

	// Removal can rotate the customer token.
	newToken = env.Result.NewAuthToken
	if newToken == "" {
		newToken = customerToken
	}
	return newToken, true, nil
}
