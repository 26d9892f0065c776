package credential

import "errors"

var (
	// ErrNotConfigured indicates no credential has been stored yet.
	ErrNotConfigured = errors.New("credential: not configured")

	// ErrReauthRequired indicates the refresh grant was rejected and the
	// user must authorise the bridge again.
	ErrReauthRequired = errors.New("credential: re-authentication required")

	// ErrStaleToken indicates the token endpoint returned a token that is
	// already expired.
	ErrStaleToken = errors.New("credential: refreshed token already expired")
)
