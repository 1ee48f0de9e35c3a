package subscription

import (
	"errors"
	"net/http"
)

// Kind classifies failures of the subscription core
type Kind int

// Defining the failure kinds surfaced to callers
const (
	KindUnknown Kind = iota
	KindMisconfigured
	KindAuthenticationRequired
	KindSignatureInvalid
	KindProfileNotFound
	KindProviderUnavailable
	KindStorageFailure
)

func (k Kind) String() string {
	switch k {
	case KindMisconfigured:
		return "Misconfigured"
	case KindAuthenticationRequired:
		return "AuthenticationRequired"
	case KindSignatureInvalid:
		return "SignatureInvalid"
	case KindProfileNotFound:
		return "ProfileNotFound"
	case KindProviderUnavailable:
		return "ProviderUnavailable"
	case KindStorageFailure:
		return "StorageFailure"
	default:
		return "Unknown"
	}
}

// Error is the typed error returned by Bootstrap and Reconciler
type Error struct {
	Kind    Kind
	Setting string // Name of the missing setting, for KindMisconfigured
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Setting != "" {
		msg += " (" + e.Setting + ")"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so errors.Is(err, &Error{Kind: KindStorageFailure}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: msg,
		Err:     err,
	}
}

// Misconfigured reports a required setting that is absent
func Misconfigured(setting string) *Error {
	return &Error{
		Kind:    KindMisconfigured,
		Setting: setting,
		Message: "required setting is missing",
	}
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatusForManage maps a Bootstrap failure to a response status
func HTTPStatusForManage(err error) int {
	if KindOf(err) == KindAuthenticationRequired {
		return http.StatusUnauthorized
	}
	return http.StatusBadRequest
}

// HTTPStatusForWebhook maps a Reconciler failure to a response status.
// Anything but a bad signature is reported as a server error so that the provider retries delivery
func HTTPStatusForWebhook(err error) int {
	if KindOf(err) == KindSignatureInvalid {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
