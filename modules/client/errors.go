package client

import "fmt"

// Submit failure classes. The class decides how the panel reacts:
// credit errors surface a purchase prompt, auth errors redirect to login,
// transient errors invite a retry.
const (
	ClassInsufficientCredit = "insufficient_credit"
	ClassUnauthenticated    = "unauthenticated"
	ClassTransientNetwork   = "transient_network"
	ClassProviderRejected   = "provider_rejected"
	ClassDebounced          = "debounced"
)

// SubmitError carries the failure class alongside the underlying error.
type SubmitError struct {
	Class string
	Err   error
}

func (e *SubmitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("submit failed: %s", e.Class)
	}
	return fmt.Sprintf("submit failed (%s): %v", e.Class, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the failure class, or empty for non-submit errors.
func ClassOf(err error) string {
	if se, ok := err.(*SubmitError); ok {
		return se.Class
	}
	return ""
}
