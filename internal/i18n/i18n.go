// Package i18n holds the user-facing message catalog.
//
// Message keys are the English format strings, so a missing translation
// falls back to readable English.
package i18n

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	TokenError            = "Failed to refresh login token: %s"
	LoginError            = "Failed to login: %s"
	LoginMultiIPError     = "Your session was ended because this account signed in from another network. Log in again, or switch the login type to multi-device or password."
	LoginMultiDeviceError = "Your session was ended because this device is no longer registered. Log in again, or switch the login type to password."
	LoginCancelled        = "Login cancelled: no device selected"
	GeoBlocked            = "This service is not available in your region"
	HTTPError             = "Unexpected HTTP response (%d)"
	UnexpectedResponse    = "Unexpected response from the service"
	ConfigFetchError      = "Failed to download app settings"
	RegionMissing         = "Region %q is not present in the app settings"
	SelectDevice          = "Select device"
	NewDevice             = "New device"
	RemoveDevice          = "Remove a device"
	DeviceName            = "Device name"
	NewConfirm            = "Register new device \"%s\"?"
	RemoveConfirm         = "Remove device \"%s\"?"
	DeviceLabel           = "%s (last login %s)"
	SelectRemoveDevice    = "Select device to remove"
	NeverLoggedIn         = "never"
)

var arabic = map[string]string{
	TokenError:            "تعذر تحديث رمز الدخول: %s",
	LoginError:            "تعذر تسجيل الدخول: %s",
	LoginMultiIPError:     "انتهت جلستك لأن هذا الحساب سجل الدخول من شبكة أخرى. سجل الدخول مرة أخرى.",
	LoginMultiDeviceError: "انتهت جلستك لأن هذا الجهاز لم يعد مسجلا. سجل الدخول مرة أخرى.",
	LoginCancelled:        "تم إلغاء تسجيل الدخول: لم يتم اختيار جهاز",
	GeoBlocked:            "هذه الخدمة غير متوفرة في منطقتك",
	HTTPError:             "استجابة HTTP غير متوقعة (%d)",
	UnexpectedResponse:    "استجابة غير متوقعة من الخدمة",
	ConfigFetchError:      "تعذر تنزيل إعدادات التطبيق",
	RegionMissing:         "المنطقة %q غير موجودة في إعدادات التطبيق",
	SelectDevice:          "اختر الجهاز",
	NewDevice:             "جهاز جديد",
	RemoveDevice:          "إزالة جهاز",
	DeviceName:            "اسم الجهاز",
	NewConfirm:            "تسجيل الجهاز الجديد \"%s\"؟",
	RemoveConfirm:         "إزالة الجهاز \"%s\"؟",
	DeviceLabel:           "%s (آخر دخول %s)",
	SelectRemoveDevice:    "اختر الجهاز المراد إزالته",
	NeverLoggedIn:         "أبدا",
}

// Date layouts per supported language.
var dateLayouts = map[language.Tag]string{
	language.English: "2 January 2006",
	language.Arabic:  "2006/01/02",
}

var supported = []language.Tag{language.English, language.Arabic}

var (
	matcher = language.NewMatcher(supported)
	cat     = mustBuildCatalog()
)

func mustBuildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range arabic {
		if err := b.SetString(language.Arabic, key, msg); err != nil {
			panic(fmt.Sprintf("i18n: building catalog: %v", err))
		}
		if err := b.SetString(language.English, key, key); err != nil {
			panic(fmt.Sprintf("i18n: building catalog: %v", err))
		}
	}
	return b
}

// Printer formats user-facing messages and dates for one locale.
type Printer interface {
	Sprintf(key string, args ...any) string
	Date(t time.Time) string
}

type printer struct {
	tag  language.Tag
	p    *message.Printer
	loc  *time.Location
	date string
}

// New returns a Printer for the best supported match of locale, a BCP 47
// tag such as "en" or "ar-AE". Dates are rendered in the local time zone.
func New(locale string) Printer {
	return NewInLocation(locale, time.Local)
}

// NewInLocation is New with an explicit time zone for date rendering.
func NewInLocation(locale string, loc *time.Location) Printer {
	tag := Match(locale)
	return &printer{
		tag:  tag,
		p:    message.NewPrinter(tag, message.Catalog(cat)),
		loc:  loc,
		date: dateLayouts[tag],
	}
}

// Match returns the supported language closest to locale.
func Match(locale string) language.Tag {
	_, idx, _ := matcher.Match(language.Make(locale))
	return supported[idx]
}

func (p *printer) Sprintf(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

func (p *printer) Date(t time.Time) string {
	if t.IsZero() {
		return p.p.Sprintf(NeverLoggedIn)
	}
	return t.In(p.loc).Format(p.date)
}
