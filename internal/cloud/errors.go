package cloud

import "errors"

// Sentinel errors for cloud operations. Wrap with fmt.Errorf("%w: ...")
// to add context; check with errors.Is.
var (
	// ErrAuth indicates the cloud rejected the credential. The token
	// needs refreshing (or the user needs to re-authenticate) before
	// the operation can succeed.
	ErrAuth = errors.New("cloud: authentication rejected")

	// ErrTransient indicates a temporary failure (network fault,
	// timeout, rate limit, or server error). Retrying later with the
	// same credential is reasonable.
	ErrTransient = errors.New("cloud: transient failure")

	// ErrPermanent indicates the request is invalid and retrying with
	// the same inputs will not help.
	ErrPermanent = errors.New("cloud: permanent failure")

	// ErrEmptyKey indicates no private key is available for the request.
	ErrEmptyKey = errors.New("cloud: private key is empty")
)

// IsAuthError reports whether err is (or wraps) an authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsTransientError reports whether err is (or wraps) a retryable failure.
func IsTransientError(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanentError reports whether err is (or wraps) a non-retryable failure.
func IsPermanentError(err error) bool {
	return errors.Is(err, ErrPermanent)
}
