package connect

import (
	"errors"
)

// ErrLoginCancelled is returned by Login when the user leaves device
// selection without choosing a device.
var ErrLoginCancelled = errors.New("login cancelled: no device selected")

// fatalErrorCode is the platform error code that invalidates the session.
const fatalErrorCode = -1

// APIError is the domain error returned by client operations. Message is
// localized and safe to show to a user.
type APIError struct {
	Message string
	Code    int64 // platform error code, 0 when the failure was not reported by the platform
	Status  int   // HTTP status, 0 when the response was 2xx or never arrived
	Err     error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ConfigFetchError reports that the app settings could not be downloaded or
// did not describe the configured region.
type ConfigFetchError struct {
	Message string
	Err     error
}

func (e *ConfigFetchError) Error() string {
	return e.Message
}

func (e *ConfigFetchError) Unwrap() error {
	return e.Err
}

// As lets callers treat a ConfigFetchError as an *APIError.
func (e *ConfigFetchError) As(target any) bool {
	t, ok := target.(**APIError)
	if !ok {
		return false
	}

	apiErr := &APIError{Message: e.Message, Err: e.Err}
	var inner *APIError
	if errors.As(e.Err, &inner) {
		apiErr.Status = inner.Status
	}
	*t = apiErr
	return true
}

// IsFatal reports whether err ended the session. When true, stored tokens
// and credentials have already been removed.
func IsFatal(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == fatalErrorCode
}
