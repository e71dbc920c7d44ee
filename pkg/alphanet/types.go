package alphanet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Envelope is the wrapper every platform web-service call responds with.
type Envelope[T any] struct {
	Error  *ErrorBody `json:"error"`
	Result T          `json:"result"`
}

// Failed reports whether the platform signalled an error. An empty or
// non-object error value counts as success.
func (e *Envelope[T]) Failed() bool {
	return e.Error != nil && (e.Error.Code != 0 || e.Error.Message != "")
}

// ErrorBody is the error member of an Envelope.
type ErrorBody struct {
	Code    FlexInt `json:"code"`
	Message string  `json:"message"`
}

// UnmarshalJSON accepts an object and ignores any other JSON value, so that
// `"error": false` or `"error": ""` decode to an empty body.
func (b *ErrorBody) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*b = ErrorBody{}
		return nil
	}
	type plain ErrorBody
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = ErrorBody(p)
	return nil
}

// Error implements the error interface so a body can be wrapped directly.
func (b *ErrorBody) Error() string {
	return fmt.Sprintf("platform error %d: %s", b.Code, b.Message)
}

// SettingsDocument is the remote app settings file.
type SettingsDocument struct {
	Settings AppSettings `json:"settings"`
}

// AppSettings holds the regional platform definitions.
type AppSettings struct {
	AlphaNetworksDash map[string]Platform `json:"alpha_networks_dash"`
}

// Platform returns the platform definition for region.
func (s *AppSettings) Platform(region string) (Platform, bool) {
	p, ok := s.AlphaNetworksDash[region]
	if !ok || p.URL == "" {
		return Platform{}, false
	}
	return p, true
}

// Regions returns the configured region keys.
func (s *AppSettings) Regions() []string {
	regions := make([]string, 0, len(s.AlphaNetworksDash))
	for r := range s.AlphaNetworksDash {
		regions = append(regions, r)
	}
	return regions
}

// Platform is one regional deployment of the web service.
type Platform struct {
	URL    string `json:"platform_url"`
	HSSKey string `json:"hss_key"`
}

// AuthResult is the result of the login, device and stream calls that can
// issue or rotate tokens.
type AuthResult struct {
	NewAuthToken    string `json:"newAuthToken"`
	DeviceAuthToken string `json:"deviceAuthToken"`
}

// DevicesResult is the result of proxy/casAvailableDevice.
type DevicesResult struct {
	AuthResult
	Devices []Device `json:"device"`
}

// Device is a playback device registered against a customer account.
type Device struct {
	UniqueDeviceID string    `json:"uniqueDeviceId"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	LastLoginDate  Timestamp `json:"lastLoginDate,omitempty"`
}

// Channel is a live channel from proxy/listChannels.
type Channel struct {
	ID             FlexInt  `json:"idChannel"`
	Name           string   `json:"name"`
	Logo           string   `json:"logo,omitempty"`
	Sorting        *FlexInt `json:"sorting,omitempty"`
	LocalizeNumber FlexInt  `json:"localizeNumber"`
}

// SortKey returns the explicit sort position when present, otherwise the
// localized channel number.
func (c *Channel) SortKey() int64 {
	if c.Sorting != nil {
		return c.Sorting.Int()
	}
	return c.LocalizeNumber.Int()
}

// ChannelsResult is the result of proxy/listChannels.
type ChannelsResult struct {
	Channels []Channel `json:"channels"`
}

// StreamResult is the result of proxy/channelStream.
type StreamResult struct {
	URL          string `json:"url"`
	NewAuthToken string `json:"newAuthToken"`
}

// EPGResult is the result of cms/epg/filtered.
type EPGResult struct {
	EPG []EPGRow `json:"epg"`
}

// EPGRow is a raw programme entry. The platform returns a loosely typed
// object; accessors cover the fields exports rely on.
type EPGRow map[string]any

// ChannelID returns the id_channel field.
func (r EPGRow) ChannelID() int64 {
	return toInt64(r["id_channel"])
}

// Start returns the startutc field as a time.
func (r EPGRow) Start() time.Time {
	return unixTime(toInt64(r["startutc"]))
}

// End returns the endutc field as a time.
func (r EPGRow) End() time.Time {
	return unixTime(toInt64(r["endutc"]))
}

// Title returns the programme title.
func (r EPGRow) Title() string {
	return r.firstString("title", "name")
}

// Description returns the programme synopsis if any.
func (r EPGRow) Description() string {
	return r.firstString("description", "synopsis", "shortDescription")
}

func (r EPGRow) firstString(keys ...string) string {
	for _, k := range keys {
		if s, ok := r[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int64(f)
		}
		return i
	case string:
		i, _ := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// FlexInt handles JSON numbers that may be encoded as strings.
type FlexInt int64

// Int returns the integer value.
func (f FlexInt) Int() int64 {
	return int64(f)
}

// String returns the decimal representation.
func (f FlexInt) String() string {
	return strconv.FormatInt(int64(f), 10)
}

// UnmarshalJSON handles both string and number JSON values.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			*f = FlexInt(i)
			return nil
		}
		if fl, err := n.Float64(); err == nil {
			*f = FlexInt(int64(fl))
			return nil
		}
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexInt(i)
		return nil
	}

	*f = 0
	return nil
}

// Timestamp is a point in time the platform encodes as unix seconds,
// unix milliseconds, or a date string.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON decodes numeric and string timestamps. Unparseable input
// yields the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		t.Time = fromEpoch(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		t.Time = fromEpoch(json.Number(s))
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// MarshalJSON encodes the timestamp as unix seconds, or null when zero.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.Unix(), 10)), nil
}

// Values above this are treated as milliseconds.
const millisThreshold = 1e11

func fromEpoch(n json.Number) time.Time {
	f, err := n.Float64()
	if err != nil || f <= 0 || math.IsInf(f, 0) {
		return time.Time{}
	}
	if f > millisThreshold {
		return time.UnixMilli(int64(f)).UTC()
	}
	return time.Unix(int64(f), 0).UTC()
}
