package connect

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/connectr/internal/config"
	"github.com/jmylchreest/connectr/internal/i18n"
)

var (
	livingRoom = map[string]any{"uniqueDeviceId": "aaaa000011112222", "name": "Living room", "type": "Android", "lastLoginDate": 1_699_900_000}
	bedroom    = map[string]any{"uniqueDeviceId": "bbbb000011112222", "name": "Bedroom", "type": "Android"}
)

// sessionReady points the transport at the fake platform.
func sessionReady(t *testing.T, h *harness) {
	t.Helper()
	require.NoError(t, h.client.EnsureSession(context.Background(), false))
}

func TestDeviceID(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)

	id := DeviceID(at, "Kitchen")
	assert.Len(t, id, 16)
	assert.Regexp(t, "^[0-9a-f]{16}$", id)
	assert.Equal(t, id, DeviceID(at, "Kitchen"))
	assert.NotEqual(t, id, DeviceID(at.Add(time.Second), "Kitchen"))
	assert.NotEqual(t, id, DeviceID(at, "Kitchen 2"))
}

func TestSelectDevice_NoDevicesGoesStraightToNew(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	sessionReady(t, h)
	h.platform.handle("proxy/casAvailableDevice", okEnvelope(map[string]any{"device": []any{}}))
	h.prompt.inputs = []string{"  Kitchen  "}
	h.prompt.answers = []bool{true}

	device, err := h.client.SelectDevice(context.Background(), "customer")
	require.NoError(t, err)
	require.NotNil(t, device)

	assert.Empty(t, h.prompt.selectTitles, "no choice list without existing devices")
	assert.Equal(t, "Kitchen", device.Name)
	assert.Equal(t, "Android", device.Type)
	assert.Equal(t, DeviceID(h.now, "Kitchen"), device.UniqueDeviceID)
	assert.Equal(t, "customer", h.platform.last("proxy/casAvailableDevice").Header.Get("X-AN-WebService-CustomerAuthToken"))
}

func TestSelectDevice_NoDevicesBlankNameAborts(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	sessionReady(t, h)
	h.platform.handle("proxy/casAvailableDevice", okEnvelope(map[string]any{}))
	h.prompt.inputs = []string{"   "}

	device, err := h.client.SelectDevice(context.Background(), "customer")
	require.NoError(t, err)
	assert.Nil(t, device)
	assert.Len(t, h.prompt.inputTitles, 1)
}

func TestSelectDevice_OptionsAndExistingChoice(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	sessionReady(t, h)
	h.platform.handle("proxy/casAvailableDevice", okEnvelope(map[string]any{"device": []any{livingRoom, bedroom}}))
	h.prompt.selects = []int{1}

	device, err := h.client.SelectDevice(context.Background(), "customer")
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, "bbbb000011112222", device.UniqueDeviceID)

	require.Len(t, h.prompt.selectOptions, 1)
	assert.Equal(t, []string{
		"Living room (last login " + h.printer.Date(time.Unix(1_699_900_000, 0)) + ")",
		"Bedroom (last login never)",
		"New device",
		"Remove a device",
	}, h.prompt.selectOptions[0])
}

func TestSelectDevice_CancelMakesNoFurtherCalls(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	sessionReady(t, h)
	h.platform.handle("proxy/casAvailableDevice", okEnvelope(map[string]any{"device": []any{livingRoom}}))

	device, err := h.client.SelectDevice(context.Background(), "customer")
	require.NoError(t, err)
	assert.Nil(t, device)

	assert.Equal(t, 1, h.platform.calls("proxy/casAvailableDevice"))
	assert.Zero(t, h.platform.calls("proxy/casRemoveDevice"))
	assert.Zero(t, h.platform.calls("proxy/login"))
}

func TestSelectDevice_DeclinedNewDeviceReturnsToList(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	sessionReady(t, h)
	h.platform.handle("proxy/casAvailableDevice", okEnvelope(map[string]any{"device": []any{livingRoom}}))
	// New device, decline; then pick the existing device.
	h.prompt.selects = []int{1, 0}
	h.prompt.inputs = []string{"Kitchen"}
	h.prompt.answers = []bool{false}

	device, err := h.client.SelectDevice(context.Background(), "customer")
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, "Living room", device.Name)
	assert.Len(t, h.prompt.selectTitles, 2)
}

func TestSelectDevice_RemoveRebindsToken(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	sessionReady(t, h)

	h.platform.handle("proxy/casAvailableDevice", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-AN-WebService-CustomerAuthToken") == "rotated" {
			okEnvelope(map[string]any{"device": []any{bedroom}})(w, r)
			return
		}
		okEnvelope(map[string]any{"device": []any{livingRoom, bedroom}})(w, r)
	})
	h.platform.handle("proxy/casRemoveDevice", okEnvelope(map[string]any{"newAuthToken": "rotated"}))

	// Remove; pick the first device but decline, pick it again and confirm;
	// then choose the remaining device.
	h.prompt.selects = []int{3, 0, 0, 0}
	h.prompt.answers = []bool{false, true}

	device, err := h.client.SelectDevice(context.Background(), "customer")
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, "Bedroom", device.Name)

	removal := h.platform.last("proxy/casRemoveDevice")
	assert.Equal(t, "aaaa000011112222", removal.Form.Get("casDeviceId"))
	assert.Equal(t, "customer", removal.Header.Get("X-AN-WebService-CustomerAuthToken"))

	listings := h.platform.requests("proxy/casAvailableDevice")
	require.Len(t, listings, 2)
	assert.Equal(t, "rotated", listings[1].Header.Get("X-AN-WebService-CustomerAuthToken"))

	assert.Equal(t, []string{
		h.printer.Sprintf(i18n.SelectDevice),
		h.printer.Sprintf(i18n.SelectRemoveDevice),
		h.printer.Sprintf(i18n.SelectRemoveDevice),
		h.printer.Sprintf(i18n.SelectDevice),
	}, h.prompt.selectTitles)
}

func TestSelectDevice_RemoveCancelReturnsToList(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	sessionReady(t, h)
	h.platform.handle("proxy/casAvailableDevice", okEnvelope(map[string]any{"device": []any{livingRoom}}))
	h.prompt.selects = []int{2, -1, 0}

	device, err := h.client.SelectDevice(context.Background(), "customer")
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, "Living room", device.Name)
	assert.Zero(t, h.platform.calls("proxy/casRemoveDevice"))
}

func TestSelectDevice_RemoveErrorIsShownAndLoops(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	sessionReady(t, h)
	h.platform.handle("proxy/casAvailableDevice", okEnvelope(map[string]any{"device": []any{livingRoom}}))
	h.platform.handle("proxy/casRemoveDevice", errEnvelope(12, "device locked"))
	h.prompt.selects = []int{2, 0}
	h.prompt.answers = []bool{true}

	device, err := h.client.SelectDevice(context.Background(), "customer")
	require.NoError(t, err)
	assert.Nil(t, device)

	assert.Equal(t, []string{"device locked"}, h.prompt.errors)
	assert.Equal(t, 1, h.platform.calls("proxy/casAvailableDevice"))
	assert.Len(t, h.prompt.selectTitles, 3)
}

func TestSelectDevice_ListError(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	sessionReady(t, h)
	h.platform.handle("proxy/casAvailableDevice", errEnvelope(3, "bad customer"))

	_, err := h.client.SelectDevice(context.Background(), "customer")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad customer", apiErr.Message)
	assert.Equal(t, int64(3), apiErr.Code)
}
